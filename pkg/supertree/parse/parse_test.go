package parse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want ParsedLine
	}{
		{
			name: "trunk directory",
			line: `"/data/set"/`,
			want: ParsedLine{RawPath: "/data/set", Path: "/data/set", Indicator: IndicatorDirectory},
		},
		{
			name: "branch plain file",
			line: `├── "/data/set/a.txt"`,
			want: ParsedLine{BranchPrefix: "├── ", RawPath: "/data/set/a.txt", Path: "/data/set/a.txt"},
		},
		{
			name: "nested executable",
			line: `│   └── "/data/set/bin/run"*`,
			want: ParsedLine{
				BranchPrefix: "│   └── ",
				RawPath:      "/data/set/bin/run",
				Path:         "/data/set/bin/run",
				Indicator:    IndicatorExecutable,
			},
		},
		{
			name: "ascii charset prefix",
			line: "|   `-- \"/r/x\"=",
			want: ParsedLine{BranchPrefix: "|   `-- ", RawPath: "/r/x", Path: "/r/x", Indicator: IndicatorSocket},
		},
		{
			name: "symlink with quoted target",
			line: `└── "/r/latest" -> "/r/v2"/`,
			want: ParsedLine{
				BranchPrefix: "└── ",
				RawPath:      "/r/latest",
				Path:         "/r/latest",
				LinkTarget:   "/r/v2",
				HasLink:      true,
			},
		},
		{
			name: "symlink indicator then target",
			line: `└── "/r/l"@ -> "t"`,
			want: ParsedLine{
				BranchPrefix: "└── ",
				RawPath:      "/r/l",
				Path:         "/r/l",
				Indicator:    IndicatorSymlink,
				LinkTarget:   "t",
				HasLink:      true,
			},
		},
		{
			name: "bare link target",
			line: `└── "/r/l" -> ../elsewhere`,
			want: ParsedLine{
				BranchPrefix: "└── ",
				RawPath:      "/r/l",
				Path:         "/r/l",
				LinkTarget:   "../elsewhere",
				HasLink:      true,
			},
		},
		{
			name: "escaped quote and space",
			line: `├── "/r/say \"hi\" now"`,
			want: ParsedLine{
				BranchPrefix: "├── ",
				RawPath:      `/r/say \"hi\" now`,
				Path:         `/r/say "hi" now`,
			},
		},
		{
			name: "octal escaped newline",
			line: `├── "/r/a\012b"`,
			want: ParsedLine{BranchPrefix: "├── ", RawPath: `/r/a\012b`, Path: "/r/a\nb"},
		},
		{
			name: "annotation",
			line: `├── "/r/locked"/  [error opening dir]`,
			want: ParsedLine{
				BranchPrefix: "├── ",
				RawPath:      "/r/locked",
				Path:         "/r/locked",
				Indicator:    IndicatorDirectory,
				Annotation:   "error opening dir",
			},
		},
		{
			name: "trailing carriage return",
			line: "├── \"/r/a\"\r",
			want: ParsedLine{BranchPrefix: "├── ", RawPath: "/r/a", Path: "/r/a"},
		},
		{
			name: "named pipe and door",
			line: `├── "/r/p"|`,
			want: ParsedLine{BranchPrefix: "├── ", RawPath: "/r/p", Path: "/r/p", Indicator: IndicatorNamedPipe},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"no quotes", "├── plain"},
		{"empty line", ""},
		{"single quote", `├── "/r/a`},
		{"three quotes", `"/r/a" "x`},
		{"empty path", `├── ""`},
		{"unknown glyph", `├── "/r/a"#`},
		{"junk after path", `├── "/r/a"xyz`},
		{"note without space", `├── "/r/a"[x]`},
		{"unterminated note", `├── "/r/a" [x`},
		{"empty link target", `├── "/r/a" -> `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedLine))

			var mle *MalformedLineError
			require.ErrorAs(t, err, &mle)
			assert.Equal(t, tt.line, mle.Text)
			assert.NotEmpty(t, mle.Reason)
		})
	}
}

func TestIndicator_Hint(t *testing.T) {
	tests := []struct {
		glyph byte
		want  types.Kind
	}{
		{'/', types.KindDirectory},
		{'@', types.KindSymlink},
		{'=', types.KindSocket},
		{'|', types.KindNamedPipe},
		{'>', types.KindDoor},
		{'*', types.KindFile},
	}

	for _, tt := range tests {
		ind, ok := LookupIndicator(tt.glyph)
		require.True(t, ok, "glyph %q", tt.glyph)
		assert.Equal(t, tt.want, ind.Hint())
		assert.Equal(t, string(tt.glyph), ind.String())
	}

	_, ok := LookupIndicator('#')
	assert.False(t, ok)
	assert.Equal(t, types.KindFile, IndicatorNone.Hint())
	assert.Equal(t, "", IndicatorNone.String())
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`plain`, "plain"},
		{`a\\b`, `a\b`},
		{`\"q\"`, `"q"`},
		{`\'\?`, `'?`},
		{`\a\b\f\n\r\t\v`, "\a\b\f\n\r\t\v"},
		{`\0`, "\x00"},
		{`\101BC`, "ABC"},
		{`\3777`, "\xff7"},
		{`\x41\x4a`, "AJ"},
		{`\xzz`, `\xzz`},
		{`\q`, `\q`},
		{`trail\`, `trail\`},
		{`caf\303\251`, "café"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Unescape(tt.in), "Unescape(%q)", tt.in)
	}
}

func TestQuote_RoundTrip(t *testing.T) {
	paths := []string{
		"/plain/path",
		`/with "quotes"`,
		`/back\slash`,
		"/new\nline",
		"/tab\there",
		"/ctrl\x01\x7f",
		"/bad\xffutf8\xc3",
		"/café/日本",
		"/ends/with/backslash\\",
	}

	for _, p := range paths {
		q := Quote(p)
		require.True(t, len(q) >= 2)
		assert.Equal(t, byte('"'), q[0])
		assert.Equal(t, byte('"'), q[len(q)-1])
		assert.Equal(t, p, Unescape(q[1:len(q)-1]), "round trip of %q via %q", p, q)

		parsed, err := Parse("├── " + q)
		require.NoError(t, err, "parse %q", q)
		assert.Equal(t, p, parsed.Path)
	}
}

func TestEscapeInvalid(t *testing.T) {
	assert.Equal(t, "ok/日本", EscapeInvalid("ok/日本"))
	assert.Equal(t, `a\377b`, EscapeInvalid("a\xffb"))
	assert.Equal(t, "tab\tkept", EscapeInvalid("tab\tkept"))
}
