package parse

import "github.com/tdilauro/dm-utils/pkg/supertree/types"

// Indicator is the single type glyph appended after a quoted path.
type Indicator byte

// Known indicator glyphs.
const (
	IndicatorNone       Indicator = 0
	IndicatorDirectory  Indicator = '/'
	IndicatorSymlink    Indicator = '@'
	IndicatorSocket     Indicator = '='
	IndicatorNamedPipe  Indicator = '|'
	IndicatorDoor       Indicator = '>'
	IndicatorExecutable Indicator = '*'
)

// indicatorHints is built once and never mutated.
var indicatorHints = map[Indicator]types.Kind{
	IndicatorDirectory:  types.KindDirectory,
	IndicatorSymlink:    types.KindSymlink,
	IndicatorSocket:     types.KindSocket,
	IndicatorNamedPipe:  types.KindNamedPipe,
	IndicatorDoor:       types.KindDoor,
	IndicatorExecutable: types.KindFile,
}

// LookupIndicator reports whether b is a known indicator glyph.
func LookupIndicator(b byte) (Indicator, bool) {
	ind := Indicator(b)
	_, ok := indicatorHints[ind]
	return ind, ok
}

// Hint returns the kind the listing claims for this glyph. Executable and
// absent glyphs both mean a plain file. The hint is advisory: manifest
// kinds always come from filesystem metadata.
func (i Indicator) Hint() types.Kind {
	if kind, ok := indicatorHints[i]; ok {
		return kind
	}
	return types.KindFile
}

// String returns the glyph, or "" for IndicatorNone.
func (i Indicator) String() string {
	if i == IndicatorNone {
		return ""
	}
	return string(rune(i))
}
