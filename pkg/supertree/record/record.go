// Package record turns a parsed listing line into a manifest entry by
// combining one metadata lookup with a content checksum.
//
// Failures on individual entries never abort a run: the entry is still
// produced, with its checksum field replaced by an error marker. Only
// context cancellation stops the builder.
package record

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/tdilauro/dm-utils/pkg/supertree/checksum"
	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
	"github.com/tdilauro/dm-utils/pkg/supertree/parse"
	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

// ErrorMarker prefixes the checksum field of entries whose metadata or
// content could not be read.
const ErrorMarker = "ERROR: "

// IsError reports whether e carries an error marker instead of a digest.
func IsError(e *types.Entry) bool {
	return strings.HasPrefix(e.Checksum, ErrorMarker)
}

// Marker formats err as a checksum-field error marker.
func Marker(err error) string {
	var ufe *checksum.UnreadableFileError
	if errors.As(err, &ufe) {
		err = ufe.Err
	}
	return ErrorMarker + strings.ReplaceAll(err.Error(), "\n", " ")
}

// Builder builds manifest entries.
type Builder struct {
	engine *checksum.Engine
	stat   StatFunc
	names  *NameCache
}

// Option configures a Builder.
type Option func(*Builder)

// WithStat replaces the metadata provider.
func WithStat(fn StatFunc) Option {
	return func(b *Builder) {
		if fn != nil {
			b.stat = fn
		}
	}
}

// WithNames enables owner and group name resolution.
func WithNames(c *NameCache) Option {
	return func(b *Builder) {
		b.names = c
	}
}

// NewBuilder returns a Builder hashing with engine.
func NewBuilder(engine *checksum.Engine, opts ...Option) *Builder {
	b := &Builder{
		engine: engine,
		stat:   Lstat,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Algorithm returns the checksum algorithm name used for the checksum column.
func (b *Builder) Algorithm() string {
	return b.engine.Algorithm().Name
}

// Build produces the entry for line at position seq.
func (b *Builder) Build(ctx context.Context, seq int64, line parse.ParsedLine, depth int) (types.Entry, error) {
	e, pending := b.Describe(seq, line, depth)
	if !pending {
		return e, nil
	}
	if err := b.Hash(ctx, &e); err != nil {
		return types.Entry{}, err
	}
	return e, nil
}

// Describe fills every field except the checksum of a readable regular file.
// pending reports whether Hash still has to run.
func (b *Builder) Describe(seq int64, line parse.ParsedLine, depth int) (e types.Entry, pending bool) {
	name := filepath.Base(line.Path)

	e = types.Entry{
		Sequence:     seq,
		Depth:        depth,
		TreeLabel:    line.BranchPrefix + parse.Escape(name),
		BranchPrefix: line.BranchPrefix,
		Path:         line.Path,
		Name:         name,
		LinkTarget:   line.LinkTarget,
		Indicator:    line.Indicator.String(),
	}

	meta, err := b.stat(line.Path)
	if err != nil {
		logging.Get("record").Warn("metadata lookup failed", "path", line.Path, "error", err)
		e.Kind = types.KindUnknown
		e.Checksum = Marker(err)
		return e, false
	}

	e.Kind = meta.Kind
	e.Mode = meta.Mode
	e.ModTime = meta.ModTime
	if meta.HasIDs && b.names != nil {
		e.Owner = b.names.Owner(meta.UID)
		e.Group = b.names.Group(meta.GID)
	}

	if meta.Kind != types.KindFile {
		return e, false
	}
	e.Size = meta.Size
	return e, true
}

// Hash computes the checksum of a regular-file entry in place. Read failures
// become an error marker; only cancellation is returned.
func (b *Builder) Hash(ctx context.Context, e *types.Entry) error {
	sum, err := b.engine.Sum(ctx, e.Path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		logging.Get("record").Warn("checksum failed", "path", e.Path, "error", err)
		e.Checksum = Marker(err)
		return nil
	}
	e.Checksum = sum
	return nil
}
