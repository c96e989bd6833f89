package wrapper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineAndColumn(t *testing.T) {
	testCases := []struct {
		text      string
		point     int
		sep       string
		line, col int
	}{
		{"one two three", 0, "\n", 0, 0},
		{"one two three", 7, "\n", 0, 7},
		{"SELECT 1\nFROM t", 13, "\n", 1, 4},
		{"SELECT 1 \\ FROM t", 11, " \\ ", 1, 0},
		{"SELECT 1 \\ FROM t", 100, " \\ ", 1, 6}, // point beyond end clamps
	}
	for _, c := range testCases {
		line, col := lineAndColumn(c.text, c.point, c.sep)
		require.Equal(t, c.line, line, "text=%q point=%d", c.text, c.point)
		require.Equal(t, c.col, col, "text=%q point=%d", c.text, c.point)
	}
}

func TestSanitizeEditedText(t *testing.T) {
	testCases := []struct {
		in, sep, out string
	}{
		{"plain", "\n", "plain"},
		{"a\tb", "\n", "a    b"},
		{"line one\nline two", " \\ ", "line one \\ line two"},
		{"x\x07y", "\n", "x y"},
		{"x\x7fy", "\n", "x y"},
	}
	for _, c := range testCases {
		require.Equal(t, c.out, sanitizeEditedText(c.in, c.sep), "in=%q", c.in)
	}
}
