// Package types provides the core data types for supertree manifests.
// It includes the manifest entry record, the entry kind classification,
// and utility functions for parsing and formatting sizes.
package types

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// Kind classifies a filesystem entry. It is always derived from filesystem
// metadata, never from the listing's indicator glyph.
type Kind uint8

// Entry kinds.
const (
	KindUnknown Kind = iota
	KindFile
	KindDirectory
	KindSymlink
	KindSocket
	KindNamedPipe
	KindDoor
)

var kindNames = [...]string{
	KindUnknown:   "unknown",
	KindFile:      "file",
	KindDirectory: "directory",
	KindSymlink:   "symlink",
	KindSocket:    "socket",
	KindNamedPipe: "named_pipe",
	KindDoor:      "door",
}

// String returns the serialized name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// ErrInvalidKind is returned when a kind name is not recognized.
var ErrInvalidKind = errors.New("invalid entry kind")

// ParseKind parses a serialized kind name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// AllKinds returns every kind in declaration order.
func AllKinds() []Kind {
	kinds := make([]Kind, len(kindNames))
	for i := range kindNames {
		kinds[i] = Kind(i)
	}
	return kinds
}

// KindFromMode derives the Kind from an os.FileMode.
func KindFromMode(mode os.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDirectory
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case mode&os.ModeSocket != 0:
		return KindSocket
	case mode&os.ModeNamedPipe != 0:
		return KindNamedPipe
	default:
		return KindUnknown
	}
}

// Entry is one manifest record. It is built once per listing line,
// serialized immediately and then discarded.
type Entry struct {
	// Sequence is the emission order, starting at 0 with no gaps.
	Sequence int64 `json:"sequence"`

	// Depth is the distance from the traversal root; the root is 0.
	Depth int `json:"depth"`

	// TreeLabel is the branch decoration followed by the base name, escaped
	// as the listing shows it so the label is always a single line.
	TreeLabel string `json:"tree_label"`

	// BranchPrefix is the raw decoration preserved from the listing line.
	BranchPrefix string `json:"branch_prefix"`

	// Path is the decoded literal filesystem path.
	Path string `json:"path"`

	// Name is the base name of Path.
	Name string `json:"name"`

	// Kind is the metadata-derived classification.
	Kind Kind `json:"kind"`

	// Checksum is the lowercase hex digest for regular files, an error
	// marker when the file could not be read, and empty otherwise.
	Checksum string `json:"checksum"`

	// Size is the byte length for regular files and 0 otherwise.
	Size int64 `json:"size"`

	// LinkTarget is the symlink target reported by the listing, if any.
	LinkTarget string `json:"link_target,omitempty"`

	// Indicator is the advisory type glyph from the listing, if any.
	Indicator string `json:"indicator,omitempty"`

	// ModTime is the last modification time from metadata.
	ModTime time.Time `json:"mod_time"`

	// Mode is the permission and mode bits from metadata.
	Mode os.FileMode `json:"mode"`

	// Owner is the username of the entry's owner.
	Owner string `json:"owner,omitempty"`

	// Group is the group name of the entry's group.
	Group string `json:"group,omitempty"`
}

// HumanSize returns the entry size formatted as a human-readable string.
func (e *Entry) HumanSize() string {
	return FormatSize(e.Size)
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// It supports plain bytes ("1024") and K, M, G, T suffixes with optional
// "B" or "iB" ("100K", "50MB", "2GiB"). All units are binary.
//
// Decimal values are supported and truncated to the nearest byte.
// Leading and trailing whitespace is ignored.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units, e.g. FormatSize(1536*1024) returns "1.5 MiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// Role tags a listing line as the root of a traversal (trunk) or an entry
// beneath it (branch).
type Role uint8

// Line roles.
const (
	RoleBranch Role = iota
	RoleTrunk
)

// String returns "trunk" or "branch".
func (r Role) String() string {
	if r == RoleTrunk {
		return "trunk"
	}
	return "branch"
}
