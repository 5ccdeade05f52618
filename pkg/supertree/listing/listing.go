// Package listing produces the raw lines of a quoted tree listing and tags
// each one as a traversal root (trunk) or an entry beneath it (branch).
//
// Three sources exist: the external tree program, an existing listing read
// from a file or standard input, and a built-in walker that writes the same
// format without needing tree installed.
package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

// RawLine is one unparsed listing line.
type RawLine struct {
	Text   string
	Role   types.Role
	Number int
}

// Source yields listing lines in order. Next returns io.EOF after the last
// line. Next blocks only while waiting for the next line.
type Source interface {
	Next(ctx context.Context) (RawLine, error)
	Close() error
}

// Kinds of listing source.
const (
	SourceAuto = "auto"
	SourceTree = "tree"
	SourceWalk = "walk"
)

// DefaultCommand is the tree program looked up on PATH.
const DefaultCommand = "tree"

// Options configures which entries a source lists.
type Options struct {
	// Hidden includes names starting with a dot.
	Hidden bool

	// Exclude holds tree -I style patterns matched against base names.
	Exclude []string

	// Command is the tree program for the tree source.
	Command string
}

// ErrUnreadableRoot is matched by every UnreadableRootError.
var ErrUnreadableRoot = errors.New("root unreadable")

// UnreadableRootError reports a traversal root that does not exist or
// cannot be opened.
type UnreadableRootError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *UnreadableRootError) Error() string {
	return fmt.Sprintf("cannot read root %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnreadableRootError) Unwrap() error {
	return e.Err
}

// Is matches ErrUnreadableRoot.
func (e *UnreadableRootError) Is(target error) bool {
	return target == ErrUnreadableRoot
}

// ValidateRoots checks that every root exists and, for directories, can be
// opened. It runs before any output is created.
func ValidateRoots(roots []string) error {
	if len(roots) == 0 {
		return errors.New("no roots given")
	}
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return &UnreadableRootError{Path: root, Err: err}
		}
		if !info.IsDir() {
			continue
		}
		f, err := os.Open(root)
		if err != nil {
			return &UnreadableRootError{Path: root, Err: err}
		}
		_, err = f.ReadDir(1)
		f.Close()
		if err != nil && !errors.Is(err, io.EOF) {
			return &UnreadableRootError{Path: root, Err: err}
		}
	}
	return nil
}

// Open returns a source listing roots. SourceAuto uses tree when it is on
// PATH and the built-in walker otherwise.
func Open(ctx context.Context, kind string, roots []string, opts Options) (Source, error) {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}

	switch kind {
	case "", SourceAuto:
		if _, err := exec.LookPath(opts.Command); err != nil {
			logging.Get("listing").Info("tree not found, using built-in walker", "command", opts.Command)
			return NewWalkSource(roots, opts), nil
		}
		return StartTree(ctx, roots, opts)
	case SourceTree:
		return StartTree(ctx, roots, opts)
	case SourceWalk:
		return NewWalkSource(roots, opts), nil
	default:
		return nil, fmt.Errorf("unknown listing source %q (want %s, %s or %s)", kind, SourceAuto, SourceTree, SourceWalk)
	}
}

// RoleOf tags a line: no decoration before the first quote marks a root.
func RoleOf(text string) types.Role {
	if strings.IndexByte(text, '"') == 0 {
		return types.RoleTrunk
	}
	return types.RoleBranch
}

// Excluded reports whether name is hidden (and hidden names are off) or
// matches an exclude pattern. Patterns may hold alternatives separated by
// "|", as with tree -I.
func (o Options) Excluded(name string) bool {
	if !o.Hidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, pattern := range o.Exclude {
		for _, alt := range strings.Split(pattern, "|") {
			if alt == "" {
				continue
			}
			if ok, err := filepath.Match(alt, name); err == nil && ok {
				return true
			}
		}
	}
	return false
}
