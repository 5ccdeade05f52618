// Package parse decomposes one line of a quoted, indentation-decorated
// directory listing (the output of `tree -fFQ`) into its branch decoration,
// the quoted path, an optional type indicator and an optional link target.
//
// A well-formed line looks like:
//
//	│   ├── "/data/set/report.pdf"*
//	│   └── "/data/set/latest" -> "/data/set/v2"/
//
// Parse is pure: it performs no filesystem access.
package parse

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedLine is the sentinel matched by every MalformedLineError.
var ErrMalformedLine = errors.New("malformed listing line")

// MalformedLineError reports a listing line that does not match the
// expected grammar. Text is the offending raw line.
type MalformedLineError struct {
	Text   string
	Reason string
}

// Error implements the error interface.
func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed listing line %q: %s", e.Text, e.Reason)
}

// Unwrap allows errors.Is(err, ErrMalformedLine).
func (e *MalformedLineError) Unwrap() error {
	return ErrMalformedLine
}

func malformed(text, format string, args ...any) error {
	return &MalformedLineError{Text: text, Reason: fmt.Sprintf(format, args...)}
}

// ParsedLine is the structured form of one listing line.
type ParsedLine struct {
	// BranchPrefix is everything before the opening quote.
	BranchPrefix string

	// RawPath is the text between the quotes with escapes intact.
	RawPath string

	// Path is the decoded literal path, suitable for stat and open.
	Path string

	// Indicator is the type glyph appended after the closing quote.
	// It is advisory only.
	Indicator Indicator

	// LinkTarget is the decoded target of a " -> target" annotation.
	LinkTarget string

	// HasLink reports whether a link annotation was present.
	HasLink bool

	// Annotation is a trailing bracketed note such as "error opening dir".
	Annotation string
}

// HasIndicator reports whether the listing appended a type glyph.
func (p ParsedLine) HasIndicator() bool {
	return p.Indicator != IndicatorNone
}

const linkArrow = " -> "

// Parse parses one raw listing line.
func Parse(text string) (ParsedLine, error) {
	line := strings.TrimSuffix(text, "\n")
	line = strings.TrimSuffix(line, "\r")

	quotes := countQuotes(line)
	if quotes == 0 {
		return ParsedLine{}, malformed(text, "no quoted path")
	}
	if quotes%2 != 0 {
		return ParsedLine{}, malformed(text, "unbalanced quotes")
	}

	open := strings.IndexByte(line, '"')
	end := closingQuote(line, open+1)
	if end < 0 {
		return ParsedLine{}, malformed(text, "unterminated quoted path")
	}

	raw := line[open+1 : end]
	if raw == "" {
		return ParsedLine{}, malformed(text, "empty path")
	}

	p := ParsedLine{
		BranchPrefix: line[:open],
		RawPath:      raw,
		Path:         Unescape(raw),
	}

	if err := p.parseSuffix(text, line[end+1:]); err != nil {
		return ParsedLine{}, err
	}
	return p, nil
}

// parseSuffix handles everything after the closing quote of the path:
// [indicator] [" -> " target [indicator]] [ws "[" note "]"].
func (p *ParsedLine) parseSuffix(text, rest string) error {
	if rest != "" {
		if ind, ok := LookupIndicator(rest[0]); ok {
			p.Indicator = ind
			rest = rest[1:]
		}
	}

	if strings.HasPrefix(rest, linkArrow) {
		target, remainder, err := parseLinkTarget(text, rest[len(linkArrow):])
		if err != nil {
			return err
		}
		p.LinkTarget = target
		p.HasLink = true
		rest = remainder
	}

	note, ok := parseAnnotation(rest)
	if !ok {
		return malformed(text, "unrecognized trailing decoration %q", rest)
	}
	p.Annotation = note
	return nil
}

// parseLinkTarget reads a quoted (or bare) link target followed by an
// optional indicator for the target. The target's indicator describes the
// target, not the entry, so it is discarded.
func parseLinkTarget(text, s string) (target, rest string, err error) {
	if s == "" {
		return "", "", malformed(text, "empty link target")
	}

	if s[0] != '"' {
		// Bare target: everything up to an annotation.
		if i := strings.Index(s, " ["); i >= 0 {
			return s[:i], s[i:], nil
		}
		return s, "", nil
	}

	end := closingQuote(s, 1)
	if end < 0 {
		return "", "", malformed(text, "unterminated link target")
	}
	target = Unescape(s[1:end])
	rest = s[end+1:]
	if rest != "" {
		if _, ok := LookupIndicator(rest[0]); ok {
			rest = rest[1:]
		}
	}
	return target, rest, nil
}

// parseAnnotation accepts an empty remainder or whitespace followed by a
// single bracketed note.
func parseAnnotation(s string) (string, bool) {
	trimmed := strings.TrimLeft(s, " \t")
	if trimmed == "" {
		return "", true
	}
	if len(trimmed) == len(s) {
		// Notes must be separated from the path by whitespace.
		return "", false
	}
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return "", false
	}
	return trimmed[1 : len(trimmed)-1], true
}

// countQuotes counts unescaped double quotes. Inside a quoted region a
// backslash escapes the following byte; outside it is plain decoration.
func countQuotes(s string) int {
	n := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			n++
			inQuote = !inQuote
		}
	}
	return n
}

// closingQuote returns the index of the first unescaped quote at or after
// start, or -1.
func closingQuote(s string, start int) int {
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
