// Package pipeline runs the single forward pass that turns listing lines
// into manifest rows: read, parse, depth, metadata, checksum, emit.
//
// By default one entry is in flight at a time. With more than one worker,
// checksums run concurrently while everything else stays sequential, and
// finished entries are reassembled in sequence order through a bounded
// window, so output is identical to a sequential run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tdilauro/dm-utils/pkg/supertree/depth"
	"github.com/tdilauro/dm-utils/pkg/supertree/emit"
	"github.com/tdilauro/dm-utils/pkg/supertree/listing"
	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
	"github.com/tdilauro/dm-utils/pkg/supertree/parse"
	"github.com/tdilauro/dm-utils/pkg/supertree/record"
	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

// LineError attaches the input line number to a per-line failure.
type LineError struct {
	Number int
	Err    error
}

// Error implements the error interface.
func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Number, e.Err)
}

// Unwrap returns the underlying error.
func (e *LineError) Unwrap() error {
	return e.Err
}

// Progress is reported after every emitted row.
type Progress struct {
	Entries int64
	Bytes   int64
	Path    string
}

// Options configures Run.
type Options struct {
	Source  listing.Source
	Builder *record.Builder
	Emitter *emit.Emitter

	// SkipMalformed logs and drops malformed lines instead of failing.
	SkipMalformed bool

	// Workers is the number of concurrent checksums. Values below 2 run
	// sequentially.
	Workers int

	// Window bounds the entries held for reassembly. Zero means 4×Workers.
	Window int

	// Separator is the path separator used for depth. Zero means the
	// platform separator.
	Separator byte

	// OnProgress, when set, is called from the emitting goroutine.
	OnProgress func(Progress)
}

// Stats summarizes a run.
type Stats struct {
	Entries    int64
	Skipped    int64
	Unreadable int64
	Bytes      int64
	ByKind     map[types.Kind]int64
	Duration   time.Duration
}

func (s *Stats) count(e *types.Entry) {
	s.Entries++
	s.ByKind[e.Kind]++
	if record.IsError(e) {
		s.Unreadable++
	} else if e.Kind == types.KindFile {
		s.Bytes += e.Size
	}
}

// Run drives the pipeline to the end of the source. It does not close the
// emitter or the source; the caller commits or aborts the output based on
// the returned error.
func Run(ctx context.Context, opts Options) (Stats, error) {
	r := &runner{
		opts:    opts,
		tracker: depth.New(separator(opts.Separator)),
		stats:   Stats{ByKind: make(map[types.Kind]int64)},
		log:     logging.Get("pipeline"),
	}

	start := time.Now()
	var err error
	if opts.Workers > 1 {
		err = r.parallel(ctx)
	} else {
		err = r.sequential(ctx)
	}
	r.stats.Duration = time.Since(start)
	return r.stats, err
}

func separator(sep byte) byte {
	if sep == 0 {
		return os.PathSeparator
	}
	return sep
}

type runner struct {
	opts    Options
	tracker *depth.Tracker
	stats   Stats
	seq     int64
	log     *logging.Logger
}

// next returns the next accepted line and its depth. io.EOF ends the run.
func (r *runner) next(ctx context.Context) (parse.ParsedLine, int, error) {
	for {
		raw, err := r.opts.Source.Next(ctx)
		if err != nil {
			return parse.ParsedLine{}, 0, err
		}

		line, err := parse.Parse(raw.Text)
		if err == nil {
			var d int
			d, err = r.tracker.Observe(raw.Role, line.Path)
			if err != nil {
				err = &parse.MalformedLineError{Text: raw.Text, Reason: err.Error()}
			} else {
				if line.Annotation != "" {
					r.log.Info("listing annotation", "path", line.Path, "note", line.Annotation)
				}
				return line, d, nil
			}
		}

		if !r.opts.SkipMalformed {
			return parse.ParsedLine{}, 0, &LineError{Number: raw.Number, Err: err}
		}
		r.stats.Skipped++
		r.log.Warn("skipping malformed line", "line", raw.Number, "error", err)
	}
}

func (r *runner) emit(e *types.Entry) error {
	if err := r.opts.Emitter.Emit(e); err != nil {
		return err
	}
	r.stats.count(e)
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(Progress{Entries: r.stats.Entries, Bytes: r.stats.Bytes, Path: e.Path})
	}
	return nil
}

func (r *runner) sequential(ctx context.Context) error {
	for {
		line, d, err := r.next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		e, err := r.opts.Builder.Build(ctx, r.seq, line, d)
		if err != nil {
			return err
		}
		r.seq++

		if err := r.emit(&e); err != nil {
			return err
		}
	}
}

// future is an entry whose checksum may still be computing.
type future struct {
	entry types.Entry
	done  chan struct{}
	err   error
}

func (r *runner) parallel(ctx context.Context) error {
	window := r.opts.Window
	if window <= 0 {
		window = 4 * r.opts.Workers
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(r.opts.Workers)

	queue := make([]*future, 0, window)

	drainOne := func() error {
		f := queue[0]
		queue = queue[1:]
		<-f.done
		if f.err != nil {
			return f.err
		}
		return r.emit(&f.entry)
	}

	err := func() error {
		for {
			line, d, err := r.next(gctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}

			f := &future{done: make(chan struct{})}
			var pending bool
			f.entry, pending = r.opts.Builder.Describe(r.seq, line, d)
			r.seq++

			if pending {
				g.Go(func() error {
					defer close(f.done)
					f.err = r.opts.Builder.Hash(gctx, &f.entry)
					return f.err
				})
			} else {
				close(f.done)
			}
			queue = append(queue, f)

			if len(queue) >= window {
				if err := drainOne(); err != nil {
					return err
				}
			}
		}

		for len(queue) > 0 {
			if err := drainOne(); err != nil {
				return err
			}
		}
		return nil
	}()

	if err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	return g.Wait()
}
