package emit

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

// DefaultFormat is the encoder used when none is configured.
const DefaultFormat = "csv"

// Encoder serializes a header and rows to an underlying writer.
type Encoder interface {
	// WriteHeader writes the header row.
	WriteHeader(cols []Column) error

	// WriteRow writes one entry.
	WriteRow(cols []Column, e *types.Entry) error

	// Flush pushes buffered output to the underlying writer.
	Flush() error
}

// EncoderFactory creates an Encoder writing to w.
type EncoderFactory func(w io.Writer) Encoder

// Registry manages encoder registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]EncoderFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]EncoderFactory)}
}

// Register adds or replaces the encoder named name.
func (r *Registry) Register(name string, factory EncoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new encoder by name writing to w.
func (r *Registry) Get(name string, w io.Writer) (Encoder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format: %s", name)
	}
	return factory(w), nil
}

// Available returns the registered names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in encoders.
var DefaultRegistry = NewRegistry()

// Register adds an encoder to the default registry.
func Register(name string, factory EncoderFactory) {
	DefaultRegistry.Register(name, factory)
}

// GetEncoder returns an encoder from the default registry.
func GetEncoder(name string, w io.Writer) (Encoder, error) {
	return DefaultRegistry.Get(name, w)
}

// Formats returns the names in the default registry.
func Formats() []string {
	return DefaultRegistry.Available()
}
