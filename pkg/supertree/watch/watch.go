// Package watch reruns an action whenever the watched trees change.
//
// Roots are watched recursively: directories created later are added and
// removed ones are dropped. Bursts of events are coalesced, and the action
// runs once the trees have been quiet for the debounce period.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 2 * time.Second

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period before the action runs.
	Debounce time.Duration

	// Ignore reports paths whose events never trigger a run, such as the
	// manifest being written inside a watched tree.
	Ignore func(path string) bool

	// Skip reports directory base names that are not watched.
	Skip func(name string) bool
}

// Watcher watches directory trees for changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	opts    Options
	paths   map[string]bool
	mu      sync.RWMutex
	closed  bool
	log     *logging.Logger
}

// New creates a new Watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: fsw,
		opts:    opts,
		paths:   make(map[string]bool),
		log:     logging.Get("watch"),
	}, nil
}

// Watch starts watching root and every directory beneath it. Symlinks are
// not followed. A root that is not a directory is ignored.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	if err := w.addWatch(absRoot); err != nil {
		return err
	}
	w.addTree(absRoot)
	return nil
}

// addTree adds watches below dir, skipping entries that fail.
func (w *Watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || path == dir {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.IsDir() {
			return nil
		}
		if w.opts.Skip != nil && w.opts.Skip(d.Name()) {
			return filepath.SkipDir
		}
		_ = w.addWatch(path)
		return nil
	})
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}

	if err := w.watcher.Add(path); err != nil {
		w.log.Warn("failed to add watch", "path", path, "error", err)
		return err
	}

	w.paths[path] = true
	return nil
}

// Watched returns the number of directories being watched.
func (w *Watcher) Watched() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.paths)
}

// Run calls action every time the trees settle after a change, until ctx
// is canceled. Action errors are logged and watching continues; events that
// arrive while action runs schedule another run.
func (w *Watcher) Run(ctx context.Context, action func(context.Context) error) error {
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(event) {
				continue
			}
			pending++
			timer.Reset(w.opts.Debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warn("event queue overflowed, scheduling a run")
				pending++
				timer.Reset(w.opts.Debounce)
				continue
			}
			w.log.Error("watcher error", "error", err)

		case <-timer.C:
			w.log.Info("change detected, rebuilding manifest", "events", pending)
			pending = 0
			if err := action(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.log.Error("watch-triggered run failed", "error", err)
			}
		}
	}
}

// handleEvent updates the watch set and reports whether the event counts
// as a change.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if w.opts.Ignore != nil && w.opts.Ignore(event.Name) {
		return false
	}

	switch {
	case event.Has(fsnotify.Create):
		w.handleCreate(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.handleRemove(event.Name)
	}

	w.log.Debug("filesystem event", "path", event.Name, "op", event.Op.String())
	return true
}

func (w *Watcher) handleCreate(path string) {
	info, err := os.Lstat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if w.opts.Skip != nil && w.opts.Skip(filepath.Base(path)) {
		return
	}
	_ = w.addWatch(path)
	w.addTree(path)
}

func (w *Watcher) handleRemove(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for watched := range w.paths {
		if watched == path || isSubPath(watched, path) {
			_ = w.watcher.Remove(watched)
			delete(w.paths, watched)
		}
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
