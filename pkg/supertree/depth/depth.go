// Package depth computes each listing entry's distance from the root of the
// traversal it belongs to.
package depth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

var (
	// ErrNoTrunk is returned for a branch observed before any root.
	ErrNoTrunk = errors.New("branch line before any root line")

	// ErrOutsideRoot is returned when a branch path is shallower than its root.
	ErrOutsideRoot = errors.New("path is outside the current root")
)

// Tracker remembers the separator count of the current root. A listing with
// several roots resets the baseline at each trunk line.
type Tracker struct {
	sep     byte
	base    int
	started bool
}

// New returns a Tracker counting the given separator.
func New(sep byte) *Tracker {
	return &Tracker{sep: sep}
}

// NewDefault returns a Tracker using the platform separator.
func NewDefault() *Tracker {
	return New(os.PathSeparator)
}

// Observe returns the depth of path. A trunk resets the baseline and is
// always depth 0.
func (t *Tracker) Observe(role types.Role, path string) (int, error) {
	n := t.count(path)

	if role == types.RoleTrunk {
		t.base = n
		t.started = true
		return 0, nil
	}

	if !t.started {
		return 0, fmt.Errorf("%w: %q", ErrNoTrunk, path)
	}

	d := n - t.base
	if d < 0 {
		return 0, fmt.Errorf("%w: %q", ErrOutsideRoot, path)
	}
	return d, nil
}

// Reset forgets the current root.
func (t *Tracker) Reset() {
	t.base = 0
	t.started = false
}

// count returns the number of separators in path, treating runs of
// separators as one and ignoring trailing ones. The filesystem root counts
// as 0. Dot components are kept so "./a" stays one level below ".".
func (t *Tracker) count(path string) int {
	path = strings.TrimRight(path, string(t.sep))
	n := 0
	prev := false
	for i := 0; i < len(path); i++ {
		if path[i] != t.sep {
			prev = false
			continue
		}
		if !prev {
			n++
		}
		prev = true
	}
	return n
}
