package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tdilauro/dm-utils/cmd/supertree/tui"
	"github.com/tdilauro/dm-utils/pkg/supertree/checksum"
	"github.com/tdilauro/dm-utils/pkg/supertree/config"
	"github.com/tdilauro/dm-utils/pkg/supertree/emit"
	"github.com/tdilauro/dm-utils/pkg/supertree/journal"
	"github.com/tdilauro/dm-utils/pkg/supertree/listing"
	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
	"github.com/tdilauro/dm-utils/pkg/supertree/metrics"
	"github.com/tdilauro/dm-utils/pkg/supertree/pipeline"
	"github.com/tdilauro/dm-utils/pkg/supertree/record"
	"github.com/tdilauro/dm-utils/pkg/supertree/tuner"
	"github.com/tdilauro/dm-utils/pkg/supertree/types"
	"github.com/tdilauro/dm-utils/pkg/supertree/watch"
)

// stdinPath reads the listing from standard input.
const stdinPath = "-"

// manifestJob is everything resolved once before the first manifest is
// written. Watch mode reuses it for every rerun.
type manifestJob struct {
	cfg         *config.Config
	roots       []string
	fromListing string
	opts        listing.Options
	builder     *record.Builder
	columns     []emit.Column
	tuning      tuner.OptimalConfig
	progress    bool

	journal *journal.Journal
	metrics *metrics.Metrics
	log     *logging.Logger
}

func runManifest(cmd *cobra.Command, args []string) error {
	job, err := newManifestJob(appConfig, args, viper.GetString("from_listing"), viper.GetBool("watch"))
	if err != nil {
		return err
	}
	defer job.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if viper.GetBool("watch") {
		return job.watch(ctx)
	}
	_, err = job.run(ctx)
	return err
}

// newManifestJob checks every setting before any output is created.
func newManifestJob(cfg *config.Config, args []string, fromListing string, watching bool) (*manifestJob, error) {
	j := &manifestJob{
		cfg:         cfg,
		roots:       args,
		fromListing: fromListing,
		opts: listing.Options{
			Hidden:  cfg.Listing.Hidden,
			Exclude: cfg.Listing.Exclude,
			Command: cfg.Listing.Command,
		},
		log: logging.Get("pipeline"),
	}

	switch {
	case fromListing != "" && len(args) > 0:
		return nil, errors.New("ROOT arguments cannot be combined with --from-listing")
	case fromListing != "" && watching:
		return nil, errors.New("--watch needs ROOT arguments, not --from-listing")
	case watching && isStdout(cfg.Output.Path):
		return nil, errors.New("--watch needs --output FILE")
	case fromListing == "" && len(args) == 0:
		j.roots = []string{"."}
	}

	if fromListing == "" {
		if err := checkSource(cfg.Listing.Source); err != nil {
			return nil, err
		}
		if err := listing.ValidateRoots(j.roots); err != nil {
			return nil, err
		}
	}

	engine, err := checksum.NewByName(cfg.Digest.Algorithm)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(emit.Formats(), cfg.Output.Format) {
		return nil, fmt.Errorf("unknown format %q (available: %s)", cfg.Output.Format, strings.Join(emit.Formats(), ", "))
	}

	j.columns = emit.ResolveColumns(columnKeys(cfg.Output.Columns), engine.Algorithm().Name)
	if len(j.columns) == 0 {
		return nil, errors.New("no valid columns selected")
	}

	var builderOpts []record.Option
	if needsNames(j.columns) {
		names, err := record.NewNameCache(record.DefaultNameCacheSize)
		if err != nil {
			return nil, err
		}
		builderOpts = append(builderOpts, record.WithNames(names))
	}
	j.builder = record.NewBuilder(engine, builderOpts...)

	if j.tuning, err = resolveWorkers(cfg.Workers); err != nil {
		return nil, err
	}
	j.log.Debug("hashing configuration", "workers", j.tuning.Workers, "window", j.tuning.Window, "algorithm", engine.Algorithm().Name)

	j.progress = progressEnabled(cfg)

	if cfg.Journal.Enabled && !viper.GetBool("no_journal") {
		j.journal = openJournal(cfg.Journal)
	}
	if cfg.Metrics.File != "" {
		j.metrics = metrics.New()
	}
	return j, nil
}

func checkSource(kind string) error {
	switch kind {
	case "", listing.SourceAuto, listing.SourceTree, listing.SourceWalk:
		return nil
	}
	return fmt.Errorf("unknown listing source %q (want %s, %s or %s)", kind, listing.SourceAuto, listing.SourceTree, listing.SourceWalk)
}

func needsNames(cols []emit.Column) bool {
	return slices.ContainsFunc(cols, func(c emit.Column) bool {
		return c.Key == emit.KeyOwner || c.Key == emit.KeyGroup
	})
}

// resolveWorkers turns the workers setting into a hashing configuration.
// 1 is sequential, 0 sizes from the machine, anything else is capped.
func resolveWorkers(n int) (tuner.OptimalConfig, error) {
	switch {
	case n < 0:
		return tuner.OptimalConfig{}, fmt.Errorf("workers must be 0 or more, got %d", n)
	case n == 1:
		return tuner.OptimalConfig{Workers: 1}, nil
	}

	res, err := tuner.Detect()
	if err != nil {
		logging.Get("pipeline").Debug("resource detection incomplete", "error", err)
	}
	return tuner.CalculateWithOverrides(res, n), nil
}

// openJournal opens the run journal. A journal that cannot be opened, for
// example because another run holds it, is skipped.
func openJournal(jc config.JournalConfig) *journal.Journal {
	log := logging.Get("journal")

	path := jc.Path
	if path == "" {
		path = config.DefaultJournalPath()
	}
	j, err := journal.Open(path)
	if err != nil {
		log.Warn("run journal unavailable, not recording this run", "path", path, "error", err)
		return nil
	}

	if removed, err := j.Cleanup(jc.RetentionDays); err != nil {
		log.Warn("journal cleanup failed", "error", err)
	} else if removed > 0 {
		log.Debug("expired runs removed", "count", removed)
	}
	return j
}

func (j *manifestJob) close() {
	if j.journal != nil {
		if err := j.journal.Close(); err != nil {
			j.log.Warn("closing journal", "error", err)
		}
	}
}

// run writes one manifest and records its outcome.
func (j *manifestJob) run(ctx context.Context) (pipeline.Stats, error) {
	rec := j.newRun()
	stats, err := j.write(ctx)
	j.finish(rec, stats, err)
	return stats, err
}

func (j *manifestJob) newRun() *journal.Run {
	rec := journal.NewRun()
	rec.Roots = j.roots
	rec.Source = j.cfg.Listing.Source
	if j.fromListing != "" {
		rec.Roots = nil
		rec.Source = "listing:" + j.fromListing
	}
	rec.Algorithm = j.builder.Algorithm()
	rec.Format = j.cfg.Output.Format
	rec.Output = j.cfg.Output.Path
	for _, c := range j.columns {
		rec.Columns = append(rec.Columns, c.Key)
	}
	return rec
}

// write runs the pipeline into the configured output. A file manifest is
// committed only on success.
func (j *manifestJob) write(ctx context.Context) (pipeline.Stats, error) {
	src, err := j.openSource(ctx)
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer src.Close()

	sink, err := emit.Open(j.cfg.Output.Path)
	if err != nil {
		return pipeline.Stats{}, err
	}
	emitter, err := emit.New(sink, j.cfg.Output.Format, j.columns)
	if err != nil {
		_ = sink.Abort()
		return pipeline.Stats{}, err
	}

	opts := pipeline.Options{
		Source:        src,
		Builder:       j.builder,
		Emitter:       emitter,
		SkipMalformed: j.cfg.Listing.SkipMalformed,
		Workers:       j.tuning.Workers,
		Window:        j.tuning.Window,
	}

	var view *tui.Progress
	if j.progress {
		view = tui.StartProgress(os.Stderr, sink.Name())
		opts.OnProgress = view.Update

		if j.cfg.Progress.Count && j.fromListing == "" {
			countCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go j.count(countCtx, view)
		}
	}

	stats, err := pipeline.Run(ctx, opts)
	if err == nil {
		err = emitter.Close()
	} else {
		_ = emitter.Abort()
	}

	if view != nil {
		view.Finish(err)
	}
	return stats, err
}

func (j *manifestJob) openSource(ctx context.Context) (listing.Source, error) {
	switch j.fromListing {
	case "":
		return listing.Open(ctx, j.cfg.Listing.Source, j.roots, j.opts)
	case stdinPath:
		return listing.NewReaderSource(os.Stdin), nil
	default:
		src, err := listing.OpenListing(j.fromListing)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

// count sizes the progress bar while the manifest is being written.
func (j *manifestJob) count(ctx context.Context, view *tui.Progress) {
	n, err := listing.Count(ctx, j.roots, j.opts)
	if err != nil {
		if ctx.Err() == nil {
			logging.Get("listing").Debug("pre-count failed", "error", err)
		}
		return
	}
	view.SetTotal(n)
}

// finish journals the run, updates metrics and prints the summary.
func (j *manifestJob) finish(rec *journal.Run, stats pipeline.Stats, err error) {
	finished := time.Now()

	rec.Finished = finished.UTC()
	rec.Entries = stats.Entries
	rec.Skipped = stats.Skipped
	rec.Unreadable = stats.Unreadable
	rec.Bytes = stats.Bytes
	rec.Status = runStatus(err)
	if err != nil {
		rec.Error = err.Error()
	}

	if j.journal != nil {
		if jerr := j.journal.Record(rec); jerr != nil {
			j.log.Warn("recording run failed", "error", jerr)
		}
	}

	if j.metrics != nil {
		j.metrics.Observe(stats, err == nil, finished)
		if merr := j.metrics.WriteTextfile(j.cfg.Metrics.File); merr != nil {
			j.log.Warn("metrics not written", "path", j.cfg.Metrics.File, "error", merr)
		}
	}

	switch {
	case errors.Is(err, emit.ErrDownstreamClosed):
		j.log.Debug("manifest reader went away", "run", rec.ShortID(), "entries", stats.Entries)
		return
	case err != nil:
		j.log.Error("manifest run failed", "run", rec.ShortID(), "error", err)
		return
	}

	j.log.Info("manifest written",
		"run", rec.ShortID(),
		"output", j.cfg.Output.Path,
		"entries", stats.Entries,
		"bytes", stats.Bytes,
		"unreadable", stats.Unreadable,
		"skipped", stats.Skipped,
		"duration", stats.Duration)

	if !isStdout(j.cfg.Output.Path) {
		printInfo("%s", summary(j.cfg.Output.Path, stats))
	}
}

func runStatus(err error) journal.Status {
	switch {
	case err == nil:
		return journal.StatusOK
	case errors.Is(err, context.Canceled):
		return journal.StatusInterrupted
	default:
		return journal.StatusFailed
	}
}

// summary describes a finished run in one line.
func summary(output string, stats pipeline.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wrote %s entries (%s hashed) to %s in %s",
		humanize.Comma(stats.Entries),
		types.FormatSize(stats.Bytes),
		output,
		stats.Duration.Round(time.Millisecond))
	if stats.Unreadable > 0 {
		fmt.Fprintf(&b, "; %s unreadable", humanize.Comma(stats.Unreadable))
	}
	if stats.Skipped > 0 {
		fmt.Fprintf(&b, "; %s malformed lines skipped", humanize.Comma(stats.Skipped))
	}
	return b.String()
}

// watch writes a manifest, then rewrites it after every quiet period
// following a change under the roots.
func (j *manifestJob) watch(ctx context.Context) error {
	if _, err := j.run(ctx); err != nil {
		return err
	}

	w, err := watch.New(watch.Options{
		Debounce: j.cfg.Watch.Debounce,
		Ignore:   j.ignorer(),
		Skip:     j.opts.Excluded,
	})
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	for _, root := range j.roots {
		if err := w.Watch(root); err != nil {
			return fmt.Errorf("watching %s: %w", root, err)
		}
	}
	printInfo("Watching %s directories for changes (Ctrl+C to stop)", humanize.Comma(int64(w.Watched())))

	return w.Run(ctx, func(ctx context.Context) error {
		_, err := j.run(ctx)
		return err
	})
}

// ignorer returns the filter for files this process writes itself, so
// writing a manifest inside a watched tree does not trigger another run.
func (j *manifestJob) ignorer() func(string) bool {
	var own []ownFile
	for _, p := range []string{j.cfg.Output.Path, j.cfg.Metrics.File, j.cfg.Logging.Path, config.DefaultLogPath()} {
		if p != "" && p != logging.PathDisabled {
			own = append(own, newOwnFile(p))
		}
	}

	var dirs []string
	if j.journal != nil {
		path := j.cfg.Journal.Path
		if path == "" {
			path = config.DefaultJournalPath()
		}
		if abs, err := filepath.Abs(path); err == nil {
			dirs = append(dirs, abs)
		}
	}

	return func(path string) bool {
		abs, err := filepath.Abs(path)
		if err != nil {
			return false
		}
		for _, f := range own {
			if f.matches(abs) {
				return true
			}
		}
		for _, d := range dirs {
			if abs == d || strings.HasPrefix(abs, d+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}
}

// ownFile matches a file written by this process and its temporary
// siblings: ".name.*.tmp" for manifests and "name*" for textfiles.
type ownFile struct {
	dir  string
	base string
}

func newOwnFile(path string) ownFile {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return ownFile{dir: filepath.Dir(abs), base: filepath.Base(abs)}
}

func (f ownFile) matches(abs string) bool {
	if filepath.Dir(abs) != f.dir {
		return false
	}
	name := filepath.Base(abs)
	return strings.HasPrefix(name, f.base) || strings.HasPrefix(name, "."+f.base+".")
}

func isStdout(path string) bool {
	return path == "" || path == emit.StdoutPath
}
