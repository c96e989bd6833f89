package strutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnbackspace(t *testing.T) {
	testCases := []struct {
		in, out string
	}{
		{"", ""},
		{"abc", "abc"},
		{"abc\b", "ab"},
		{"abc\b\b\b\b\b", ""},
		{"ab\rc", "c"},
		{"password: \rPassword: secret", "Password: secret"},
	}
	for _, c := range testCases {
		require.Equal(t, c.out, Unbackspace(c.in), "in=%q", c.in)
	}
}

func TestUnbackspaceIdempotent(t *testing.T) {
	cases := []string{"", "abc", "abc\b\bx", "foo\rbar\b\bz", "\b\b\bhi"}
	for _, c := range cases {
		once := Unbackspace(c)
		twice := Unbackspace(once)
		require.Equal(t, once, twice, "in=%q", c)
	}
}

func TestMarkInvisibleAndColourlessLen(t *testing.T) {
	plain := "hi> "
	require.Equal(t, plain, MarkInvisible(plain))
	require.Equal(t, 4, ColourlessLen(plain))

	coloured := "\x1b[1;31mhi> \x1b[0m"
	marked := MarkInvisible(coloured)
	require.Equal(t, 4, ColourlessLen(marked))
	require.LessOrEqual(t, ColourlessLen(marked), len([]rune(marked)))

	// Calling MarkInvisible twice does not double-bracket the sequences.
	require.Equal(t, marked, MarkInvisible(marked))
}

func TestStripMarkers(t *testing.T) {
	marked := MarkInvisible("\x1b[1;31mhi\x1b[0m")
	require.NotContains(t, StripMarkers(marked), "\x01")
	require.NotContains(t, StripMarkers(marked), "\x02")
	require.Contains(t, StripMarkers(marked), "\x1b[1;31m")
}

func TestSearchAndReplaceRoundTrip(t *testing.T) {
	replaced, line, col := SearchAndReplace(" \\ ", "\n", "SELECT 1 \\ FROM t", 11)
	require.Equal(t, "SELECT 1 \nFROM t", replaced)
	require.Equal(t, 2, line)
	require.Equal(t, 1, col)

	back, _, _ := SearchAndReplace("\n", " \\ ", replaced, 0)
	require.Equal(t, "SELECT 1 \\ FROM t", back)
}

func TestSearchAndReplaceIdentityWithoutSeparator(t *testing.T) {
	in := "plain text with no separator"
	out, _, _ := SearchAndReplace(" \\ ", "\n", in, 0)
	require.Equal(t, in, out)
}

func TestGetLastScreenLine(t *testing.T) {
	require.Equal(t, "short", GetLastScreenLine("short", 80))

	long := "0123456789012345678901234"
	require.Equal(t, "01234", GetLastScreenLine(long, 10))

	require.Equal(t, "Ehhmm..? > ", GetLastScreenLine("foo\x1b[1mbar", 2))
}

func TestVisRoundtrip(t *testing.T) {
	testCases := []string{
		`\foo`,
		" \a\b\f\n\t\vfoo",
		"\x18foo\x19",
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			e := EncodeVis(c)
			d, err := DecodeVis(e)
			require.NoError(t, err)
			require.Equal(t, d, c)
		})
	}
}

func TestVisDecode(t *testing.T) {
	testCases := []struct {
		encoded  string
		expected string
	}{
		{`\\`, `\`},
		{`\a`, "\a"},
		{`\b`, "\b"},
		{`\f`, "\f"},
		{`\n`, "\n"},
		{`\s`, " "},
		{`\t`, "\t"},
		{`\v`, "\v"},
		{`\E`, "\x1b"},
		{"\\\n", ""},
		{`\$`, ""},
		{`\x18`, "\x18"},
		{`\040`, " "},
		{`\^X`, "\x18"},
		{`\^Y`, "\x19"},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			d, err := DecodeVis(c.encoded)
			require.NoError(t, err)
			require.Equalf(t, c.expected, d, "%q", d)
		})
	}
}

func TestVisDecodeError(t *testing.T) {
	testCases := []string{
		`\`,
		`\1`,
		`\12`,
		`\^`,
		`\M`,
		`\M-`,
		`\M^`,
		`\z`,
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			_, err := DecodeVis(c)
			require.Error(t, err)
		})
	}
}
