// Package strutil implements the small set of string transforms that the
// wrapper applies to raw child-terminal output: turning backspace/carriage-
// return sequences into what a terminal would actually display, measuring
// text while ignoring colour escapes, and translating between the live
// multi-line edit buffer and the single-line form stored in history.
package strutil

import (
	"strings"
	"unicode/utf8"
)

const (
	backspace      = '\b'
	carriageReturn = '\r'

	// startIgnore and endIgnore bracket a span of output that a terminal
	// renders with zero width (colour escapes, mostly) so that width
	// computations can skip over it. These match GNU readline's
	// RL_PROMPT_START_IGNORE / RL_PROMPT_END_IGNORE markers.
	startIgnore = '\001'
	endIgnore   = '\002'
)

// Unbackspace collapses backspace and carriage-return bytes: a backspace
// deletes the preceding rune (nothing at the start), a carriage return
// discards everything before it. Text a terminal would leave visible after
// the cursor (the "b" of "ab\rc") is not kept. The result is never longer
// than the input.
func Unbackspace(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case backspace:
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		case carriageReturn:
			out = out[:0]
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// MarkInvisible brackets every ESC CSI ... 'm' SGR sequence in s with the
// ignore markers so that ColourlessLen skips over it. It is idempotent:
// calling it twice produces the same markers, since it only looks for raw
// ESC sequences that aren't already bracketed.
func MarkInvisible(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inIgnore := false
	for i := 0; i < len(s); {
		switch s[i] {
		case startIgnore:
			inIgnore = true
			b.WriteByte(s[i])
			i++
		case endIgnore:
			inIgnore = false
			b.WriteByte(s[i])
			i++
		case 0x1b:
			end, ok := csiEnd(s, i)
			if !ok || inIgnore {
				b.WriteByte(s[i])
				i++
				continue
			}
			b.WriteByte(startIgnore)
			b.WriteString(s[i:end])
			b.WriteByte(endIgnore)
			i = end
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// csiEnd returns the index just past an "ESC [ ... m" SGR sequence starting
// at i, if s[i:] begins with one.
func csiEnd(s string, i int) (int, bool) {
	if i+1 >= len(s) || s[i] != 0x1b || s[i+1] != '[' {
		return 0, false
	}
	j := i + 2
	for j < len(s) {
		c := s[j]
		if c == 'm' {
			return j + 1, true
		}
		if !(c == ';' || (c >= '0' && c <= '9')) {
			return 0, false
		}
		j++
	}
	return 0, false
}

// ColourlessLen returns the rune length of s excluding anything bracketed by
// the ignore markers. It never exceeds len([]rune(s)).
func ColourlessLen(s string) int {
	n := 0
	ignoring := false
	for _, r := range s {
		switch r {
		case startIgnore:
			ignoring = true
		case endIgnore:
			ignoring = false
		default:
			if !ignoring {
				n++
			}
		}
	}
	return n
}

// StripMarkers removes the ignore markers (but not the text between them)
// from s, returning plain text suitable for writing to a terminal.
func StripMarkers(s string) string {
	if !strings.ContainsAny(s, "\001\002") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == startIgnore || r == endIgnore {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SearchAndReplace replaces every occurrence of pat in s with repl and
// additionally translates the 1-D rune offset cursorPos (measured in s) into
// a 1-based (line, column) pair measured in the replaced string.
func SearchAndReplace(pat, repl, s string, cursorPos int) (result string, line, col int) {
	if pat == "" {
		return s, 1, utf8.RuneCountInString(s[:clampRunes(s, cursorPos)]) + 1
	}

	var b strings.Builder
	line, col = 1, 1
	curLine, curCol := 1, 1

	runes := []rune(s)
	if cursorPos < 0 {
		cursorPos = 0
	}
	if cursorPos > len(runes) {
		cursorPos = len(runes)
	}
	patRunes := []rune(pat)

	i := 0
	for i < len(runes) {
		if i == cursorPos {
			line, col = curLine, curCol
		}
		if matchesAt(runes, i, patRunes) {
			b.WriteString(repl)
			for _, r := range repl {
				if r == '\n' {
					curLine++
					curCol = 1
				} else {
					curCol++
				}
			}
			i += len(patRunes)
			continue
		}
		r := runes[i]
		b.WriteRune(r)
		if r == '\n' {
			curLine++
			curCol = 1
		} else {
			curCol++
		}
		i++
	}
	if i == cursorPos {
		line, col = curLine, curCol
	}
	return b.String(), line, col
}

func matchesAt(s []rune, i int, pat []rune) bool {
	if len(pat) == 0 || i+len(pat) > len(s) {
		return false
	}
	for j, r := range pat {
		if s[i+j] != r {
			return false
		}
	}
	return true
}

func clampRunes(s string, n int) int {
	total := utf8.RuneCountInString(s)
	if n < 0 {
		return 0
	}
	if n > total {
		return total
	}
	// Convert a rune offset back into a byte offset.
	i := 0
	for b := range s {
		if i == n {
			return b
		}
		i++
	}
	return len(s)
}

// GetLastScreenLine returns the tail of s (after Unbackspace normalisation)
// that would occupy the terminal's current (last) screen line at the given
// width. If s contains an ESC byte -- meaning it carries escape sequences
// unbackspace can't interpret -- a fixed placeholder is returned rather than
// risking a miscomputed width.
func GetLastScreenLine(s string, width int) string {
	normalised := Unbackspace(s)
	if strings.ContainsRune(s, 0x1b) {
		return "Ehhmm..? > "
	}
	runes := []rune(normalised)
	if width <= 0 || len(runes) <= width {
		return normalised
	}
	removed := (len(runes) / width) * width
	return string(runes[removed:])
}
