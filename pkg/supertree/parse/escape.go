package parse

import (
	"strings"
	"unicode/utf8"
)

// Unescape decodes the C-style escapes used inside a quoted listing path.
// Octal (\NNN) and hex (\xHH) escapes each produce one byte, so the result
// may be arbitrary bytes. Unknown escapes are kept literally.
func Unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}

		i++
		switch e := s[i]; e {
		case '\\', '"', '\'', '?':
			b.WriteByte(e)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v, n := octal(s[i:])
			if v > 0xff {
				b.WriteByte('\\')
				b.WriteByte(e)
				continue
			}
			b.WriteByte(byte(v))
			i += n - 1
		case 'x':
			v, n := hex(s[i+1:])
			if n == 0 {
				b.WriteByte('\\')
				b.WriteByte(e)
				continue
			}
			b.WriteByte(byte(v))
			i += n
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String()
}

// octal reads up to three octal digits.
func octal(s string) (v, n int) {
	for n < 3 && n < len(s) && s[n] >= '0' && s[n] <= '7' {
		v = v*8 + int(s[n]-'0')
		n++
	}
	return v, n
}

// hex reads up to two hex digits.
func hex(s string) (v, n int) {
	for n < 2 && n < len(s) {
		d, ok := hexDigit(s[n])
		if !ok {
			break
		}
		v = v*16 + d
		n++
	}
	return v, n
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// Quote renders path the way the listing tool does with -Q: wrapped in
// double quotes, with quotes, backslashes, control bytes and invalid UTF-8
// escaped. Unescape(Quote(p)[1:len-1]) == p for every p.
func Quote(path string) string {
	var b strings.Builder
	b.Grow(len(path) + 2)
	b.WriteByte('"')
	b.WriteString(Escape(path))
	b.WriteByte('"')
	return b.String()
}

// Escape is Quote without the surrounding quotes.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				writeOctal(&b, c)
			} else {
				b.WriteString(s[i : i+size])
			}
			i += size
			continue
		}

		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				writeOctal(&b, c)
			} else {
				b.WriteByte(c)
			}
		}
		i++
	}
	return b.String()
}

// EscapeInvalid escapes only bytes that are not valid UTF-8, leaving
// everything else untouched. Valid input is returned unchanged.
func EscapeInvalid(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			writeOctal(&b, s[i])
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

func writeOctal(b *strings.Builder, c byte) {
	b.WriteByte('\\')
	b.WriteByte('0' + c>>6)
	b.WriteByte('0' + (c>>3)&7)
	b.WriteByte('0' + c&7)
}
