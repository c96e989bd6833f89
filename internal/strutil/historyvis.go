package strutil

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// EncodeVis encodes a string using the visual encoding libedit/readline use
// for entries in a history file, so that whitespace and control characters
// round-trip through a plain-text, one-entry-per-line file.
func EncodeVis(s string) string {
	var buf strings.Builder
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]

		switch {
		case unicode.IsSpace(r) || r == '\\':
			fmt.Fprintf(&buf, "\\%03o", int(r))
		case unicode.IsControl(r):
			buf.WriteByte('\\')
			buf.WriteByte('^')
			buf.WriteRune(r + 0x40)
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

// DecodeVis decodes the libedit/readline visual encoding produced by
// EncodeVis. It does not handle the "%<hex>", "&<amp>", or "=<mime>" escapes,
// which readline's own history files never emit.
func DecodeVis(s string) (string, error) {
	var buf strings.Builder

	for len(s) > 0 {
		meta := byte(0)
		t, ch := s, s[0]
		s = s[1:]

		switch ch {
		case '\\':
			if len(s) == 0 {
				return "", fmt.Errorf("strutil: invalid vis syntax")
			}
			ch, s = s[0], s[1:]
			switch ch {
			case '0', '1', '2', '3', '4', '5', '6', '7', 'x', '\\', 'a', 'b', 'f', 'n', 'r', 't', 'v':
				r, _, rem, err := strconv.UnquoteChar(t, 0)
				if err != nil {
					return "", err
				}
				buf.WriteRune(r)
				s = rem
			case 'M':
				if len(s) == 0 {
					return "", fmt.Errorf("strutil: invalid vis syntax after \\M")
				}
				meta = 0200
				ch, s = s[0], s[1:]
				switch ch {
				case '-':
					if len(s) == 0 {
						return "", fmt.Errorf("strutil: invalid vis syntax after \\M-")
					}
					ch, s = s[0], s[1:]
					buf.WriteByte(ch | meta)
					continue
				case '^':
					break
				default:
					return "", fmt.Errorf("strutil: invalid vis syntax after \\M")
				}
				fallthrough
			case '^':
				if len(s) == 0 {
					return "", fmt.Errorf("strutil: invalid vis syntax after \\^")
				}
				ch, s = s[0], s[1:]
				switch ch {
				case '?':
					buf.WriteByte(0177 | meta)
				default:
					buf.WriteByte((ch & 037) | meta)
				}
			case 's':
				buf.WriteByte(' ')
			case 'E':
				buf.WriteByte('\x1b')
			case '\n', '$':
				// Hidden newline or end marker, skip.
			default:
				return "", fmt.Errorf("strutil: invalid vis syntax")
			}

		default:
			r, size := utf8.DecodeRuneInString(t)
			buf.WriteRune(r)
			s = t[size:]
		}
	}

	return buf.String(), nil
}
