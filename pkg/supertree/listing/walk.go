package listing

import (
	"context"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
	"github.com/tdilauro/dm-utils/pkg/supertree/parse"
	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

// Branch decorations, matching tree's UTF-8 charset.
const (
	branchMid  = "├── "
	branchLast = "└── "
	stemMid    = "│   "
	stemLast   = "    "
)

// WalkSource lists roots itself, producing lines the parser reads exactly
// like tree output. Children are sorted by name and symlinks are not
// followed.
type WalkSource struct {
	roots []string
	opts  Options
	stack []*walkFrame
	n     int
}

type walkFrame struct {
	dir     string
	prefix  string
	entries []os.DirEntry
	next    int
}

// NewWalkSource returns a walker over roots.
func NewWalkSource(roots []string, opts Options) *WalkSource {
	return &WalkSource{roots: append([]string(nil), roots...), opts: opts}
}

// Next returns the next line in depth-first, name-sorted order.
func (w *WalkSource) Next(ctx context.Context) (RawLine, error) {
	if err := ctx.Err(); err != nil {
		return RawLine{}, err
	}

	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]
		if top.next >= len(top.entries) {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}

		entry := top.entries[top.next]
		top.next++
		last := top.next == len(top.entries)

		branch, stem := branchMid, stemMid
		if last {
			branch, stem = branchLast, stemLast
		}

		path := joinPath(top.dir, entry.Name())
		text, isDir := w.describe(path)
		if isDir {
			text += w.descend(path, top.prefix+stem)
		}
		return w.line(top.prefix+branch+text, types.RoleBranch), nil
	}

	if len(w.roots) == 0 {
		return RawLine{}, io.EOF
	}

	root := w.roots[0]
	w.roots = w.roots[1:]

	text, isDir := w.describeRoot(root)
	if isDir {
		text += w.descend(root, "")
	}
	return w.line(text, types.RoleTrunk), nil
}

func (w *WalkSource) line(text string, role types.Role) RawLine {
	w.n++
	return RawLine{Text: text, Role: role, Number: w.n}
}

// descend pushes the children of dir. A read failure is reported as a
// trailing annotation, as tree does.
func (w *WalkSource) descend(dir, prefix string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Get("listing").Warn("cannot read directory", "path", dir, "error", err)
		return "  [error opening dir]"
	}

	kept := entries[:0]
	for _, e := range entries {
		if !w.opts.Excluded(e.Name()) {
			kept = append(kept, e)
		}
	}
	if len(kept) > 0 {
		w.stack = append(w.stack, &walkFrame{dir: dir, prefix: prefix, entries: kept})
	}
	return ""
}

// describe renders the quoted path with its indicator and link target.
func (w *WalkSource) describe(path string) (string, bool) {
	info, err := os.Lstat(path)
	if err != nil {
		return parse.Quote(path), false
	}

	mode := info.Mode()
	text := parse.Quote(path) + indicatorFor(mode)

	if mode&fs.ModeSymlink != 0 {
		if target, err := os.Readlink(path); err == nil {
			text += " -> " + parse.Quote(target)
		}
	}
	return text, mode.IsDir()
}

// describeRoot follows a symlinked root, as tree does. The root line
// carries no indicator.
func (w *WalkSource) describeRoot(root string) (string, bool) {
	info, err := os.Stat(root)
	if err != nil {
		return parse.Quote(root), false
	}
	return parse.Quote(root), info.IsDir()
}

func indicatorFor(mode fs.FileMode) string {
	switch {
	case mode.IsDir():
		return parse.IndicatorDirectory.String()
	case mode&fs.ModeSymlink != 0:
		return ""
	case mode&fs.ModeSocket != 0:
		return parse.IndicatorSocket.String()
	case mode&fs.ModeNamedPipe != 0:
		return parse.IndicatorNamedPipe.String()
	case mode.IsRegular() && mode&0o111 != 0:
		return parse.IndicatorExecutable.String()
	default:
		return ""
	}
}

// joinPath appends name the way tree -f does, without cleaning dir.
func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, string(os.PathSeparator)) {
		return dir + name
	}
	return dir + string(os.PathSeparator) + name
}

// Close releases nothing; the walker holds no open descriptors between
// calls.
func (w *WalkSource) Close() error {
	w.stack = nil
	w.roots = nil
	return nil
}

var _ Source = (*WalkSource)(nil)
