// Package checksum computes streaming content digests of regular files.
//
// Files are read front to back in fixed-size chunks and never seeked, so
// memory use is constant regardless of file size. Buffers are pooled and an
// Engine may be shared by concurrent goroutines.
package checksum

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 64 * 1024

// ErrUnreadable is the sentinel matched by every UnreadableFileError.
var ErrUnreadable = errors.New("file unreadable")

// ErrNotRegular is the cause recorded when the opened path is not a regular
// file, for example because it was replaced after it was listed.
var ErrNotRegular = errors.New("not a regular file")

// UnreadableFileError reports a file that could not be opened or read.
type UnreadableFileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnreadableFileError) Unwrap() error {
	return e.Err
}

// Is matches ErrUnreadable.
func (e *UnreadableFileError) Is(target error) bool {
	return target == ErrUnreadable
}

// Engine computes digests with one algorithm.
type Engine struct {
	alg       Algorithm
	chunkSize int
	buffers   sync.Pool
}

// Option configures an Engine.
type Option func(*Engine)

// WithChunkSize overrides the read chunk size.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// New returns an Engine for alg.
func New(alg Algorithm, opts ...Option) *Engine {
	e := &Engine{alg: alg, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(e)
	}
	size := e.chunkSize
	e.buffers.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return e
}

// NewByName looks up the algorithm by name and returns an Engine for it.
func NewByName(name string, opts ...Option) (*Engine, error) {
	alg, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return New(alg, opts...), nil
}

// Algorithm returns the engine's algorithm.
func (e *Engine) Algorithm() Algorithm {
	return e.alg
}

// Sum returns the lowercase hex digest of the file at path. Open and read
// failures are returned as *UnreadableFileError. Cancellation is returned as
// the context's error.
func (e *Engine) Sum(ctx context.Context, path string) (string, error) {
	f, err := openRegular(path)
	if err != nil {
		return "", &UnreadableFileError{Path: path, Err: err}
	}
	defer f.Close()

	adviseSequential(f)

	sum, _, err := e.SumReader(ctx, f)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return "", err
		}
		return "", &UnreadableFileError{Path: path, Err: err}
	}
	return sum, nil
}

// SumReader digests r to EOF and returns the hex digest and the number of
// bytes read.
func (e *Engine) SumReader(ctx context.Context, r io.Reader) (string, int64, error) {
	bufp := e.buffers.Get().(*[]byte)
	defer e.buffers.Put(bufp)
	buf := *bufp

	h := e.alg.New()
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return "", total, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			total += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", total, err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), total, nil
}
