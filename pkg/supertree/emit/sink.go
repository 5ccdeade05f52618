package emit

import (
	"io"
	"os"
	"path/filepath"
)

// StdoutPath selects standard output as the manifest destination.
const StdoutPath = "-"

// Sink is a manifest destination. Nothing becomes visible at a file target
// until Commit; Abort discards everything written.
type Sink interface {
	io.Writer

	// Name is the user-facing destination name.
	Name() string

	// Streaming reports whether rows should be flushed as they are written.
	Streaming() bool

	// Commit finalizes the output.
	Commit() error

	// Abort discards the output.
	Abort() error
}

// Open returns the sink for path. StdoutPath writes to standard output;
// anything else writes a sibling temporary file that Commit renames over
// path.
func Open(path string) (Sink, error) {
	if path == "" || path == StdoutPath {
		return &stdoutSink{w: os.Stdout}, nil
	}
	return openAtomic(path)
}

type stdoutSink struct {
	w io.Writer
}

func (s *stdoutSink) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *stdoutSink) Name() string                { return "<stdout>" }
func (s *stdoutSink) Streaming() bool             { return true }
func (s *stdoutSink) Commit() error               { return nil }
func (s *stdoutSink) Abort() error                { return nil }

// AtomicFile writes to a hidden temporary file next to the target.
type AtomicFile struct {
	target string
	tmp    *os.File
	done   bool
}

func openAtomic(target string) (*AtomicFile, error) {
	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, &OutputWriteError{Path: target, Op: "create", Err: err}
	}
	return &AtomicFile{target: target, tmp: tmp}, nil
}

// Write appends to the temporary file.
func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.tmp.Write(p)
}

// Name returns the target path.
func (a *AtomicFile) Name() string { return a.target }

// TempName returns the temporary file path.
func (a *AtomicFile) TempName() string { return a.tmp.Name() }

// Streaming is false for files.
func (a *AtomicFile) Streaming() bool { return false }

// Commit syncs and closes the temporary file and renames it over the
// target. An existing target keeps its permissions; a new one gets 0644.
func (a *AtomicFile) Commit() error {
	if a.done {
		return nil
	}
	a.done = true

	perm := os.FileMode(0o644)
	if info, err := os.Stat(a.target); err == nil && info.Mode().IsRegular() {
		perm = info.Mode().Perm()
	}

	fail := func(op string, err error) error {
		_ = a.tmp.Close()
		_ = os.Remove(a.tmp.Name())
		return &OutputWriteError{Path: a.target, Op: op, Err: err}
	}

	if err := a.tmp.Chmod(perm); err != nil {
		return fail("chmod", err)
	}
	if err := a.tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := a.tmp.Close(); err != nil {
		_ = os.Remove(a.tmp.Name())
		return &OutputWriteError{Path: a.target, Op: "close", Err: err}
	}
	if err := os.Rename(a.tmp.Name(), a.target); err != nil {
		_ = os.Remove(a.tmp.Name())
		return &OutputWriteError{Path: a.target, Op: "rename", Err: err}
	}
	return nil
}

// Abort closes and removes the temporary file. The target is untouched.
func (a *AtomicFile) Abort() error {
	if a.done {
		return nil
	}
	a.done = true

	_ = a.tmp.Close()
	if err := os.Remove(a.tmp.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var (
	_ Sink = (*stdoutSink)(nil)
	_ Sink = (*AtomicFile)(nil)
)
