package emit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
	"github.com/tdilauro/dm-utils/pkg/supertree/parse"
	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

// Column keys.
const (
	KeySequence     = "sequence"
	KeyDepth        = "depth"
	KeyTreeLabel    = "tree_label"
	KeyBranchPrefix = "branch_prefix"
	KeyPath         = "path"
	KeyName         = "name"
	KeyKind         = "kind"
	KeyChecksum     = "checksum"
	KeySize         = "size"
	KeyLinkTarget   = "link_target"
	KeyIndicator    = "indicator"
	KeyModTime      = "mtime"
	KeyMode         = "mode"
	KeyOwner        = "owner"
	KeyGroup        = "group"
)

// DefaultColumns is the column set used when none is configured.
var DefaultColumns = []string{
	KeySequence, KeyDepth, KeyTreeLabel, KeyBranchPrefix, KeyPath,
	KeyName, KeyKind, KeyChecksum, KeySize,
}

type columnDef struct {
	label   string
	numeric bool
	value   func(e *types.Entry) string
}

var columnDefs = map[string]columnDef{
	KeySequence: {label: "seq", numeric: true, value: func(e *types.Entry) string {
		return strconv.FormatInt(e.Sequence, 10)
	}},
	KeyDepth: {label: "depth", numeric: true, value: func(e *types.Entry) string {
		return strconv.Itoa(e.Depth)
	}},
	KeyTreeLabel:    {label: "tree", value: func(e *types.Entry) string { return e.TreeLabel }},
	KeyBranchPrefix: {label: "prefix", value: func(e *types.Entry) string { return e.BranchPrefix }},
	KeyPath:         {label: "path", value: func(e *types.Entry) string { return e.Path }},
	KeyName:         {label: "name", value: func(e *types.Entry) string { return e.Name }},
	KeyKind:         {label: "type", value: func(e *types.Entry) string { return e.Kind.String() }},
	KeyChecksum:     {value: func(e *types.Entry) string { return e.Checksum }},
	KeySize: {label: "size", numeric: true, value: func(e *types.Entry) string {
		return strconv.FormatInt(e.Size, 10)
	}},
	KeyLinkTarget: {label: "link_target", value: func(e *types.Entry) string { return e.LinkTarget }},
	KeyIndicator:  {label: "indicator", value: func(e *types.Entry) string { return e.Indicator }},
	KeyModTime: {label: "mtime", value: func(e *types.Entry) string {
		if e.ModTime.IsZero() {
			return ""
		}
		return e.ModTime.UTC().Format(time.RFC3339)
	}},
	KeyMode: {label: "mode", value: func(e *types.Entry) string {
		if e.Mode == 0 && e.ModTime.IsZero() {
			return ""
		}
		return e.Mode.String()
	}},
	KeyOwner: {label: "owner", value: func(e *types.Entry) string { return e.Owner }},
	KeyGroup: {label: "group", value: func(e *types.Entry) string { return e.Group }},
}

// Column is one output column.
type Column struct {
	Key   string
	Label string
}

// Numeric reports whether the column holds an integer.
func (c Column) Numeric() bool {
	return columnDefs[c.Key].numeric
}

// Value renders the column for e. Text is always valid UTF-8; invalid bytes
// are octal-escaped.
func (c Column) Value(e *types.Entry) string {
	def, ok := columnDefs[c.Key]
	if !ok {
		return ""
	}
	v := def.value(e)
	if def.numeric {
		return v
	}
	return parse.EscapeInvalid(v)
}

// Keys returns every known column key, default columns first.
func Keys() []string {
	keys := append([]string{}, DefaultColumns...)
	return append(keys, KeyLinkTarget, KeyIndicator, KeyModTime, KeyMode, KeyOwner, KeyGroup)
}

// ResolveColumns maps keys to columns in the requested order. Unknown and
// repeated keys are dropped with a warning. An empty list selects
// DefaultColumns. The checksum column is labelled with algorithm.
func ResolveColumns(keys []string, algorithm string) []Column {
	if len(keys) == 0 {
		keys = DefaultColumns
	}

	seen := make(map[string]bool, len(keys))
	cols := make([]Column, 0, len(keys))
	for _, raw := range keys {
		key := strings.ToLower(strings.TrimSpace(raw))
		def, ok := columnDefs[key]
		if !ok {
			logging.Get("emit").Warn("unknown column dropped", "column", raw)
			continue
		}
		if seen[key] {
			logging.Get("emit").Warn("duplicate column dropped", "column", raw)
			continue
		}
		seen[key] = true

		label := def.label
		if key == KeyChecksum {
			label = algorithm
		}
		cols = append(cols, Column{Key: key, Label: label})
	}
	return cols
}

// Labels returns the header labels of cols.
func Labels(cols []Column) []string {
	labels := make([]string, len(cols))
	for i, c := range cols {
		labels[i] = c.Label
	}
	return labels
}

// ParseHeader maps a header row written with algorithm back to column keys.
func ParseHeader(labels []string, algorithm string) ([]string, error) {
	byLabel := make(map[string]string, len(columnDefs))
	for key, def := range columnDefs {
		if key != KeyChecksum {
			byLabel[def.label] = key
		}
	}

	keys := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == algorithm {
			keys = append(keys, KeyChecksum)
			continue
		}
		key, ok := byLabel[label]
		if !ok {
			return nil, fmt.Errorf("unknown header label %q", label)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
