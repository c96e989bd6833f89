package wrapper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petermattis/wraptty/internal/editor"
)

func TestWordListAddAndComplete(t *testing.T) {
	w := newWordList(false, false)
	w.Add("select")
	w.Add("selection")
	w.Add("insert")
	w.Add("select") // duplicate, ignored

	complete := w.Completer()
	got := complete([]rune("sel"), 0, 3)
	require.ElementsMatch(t, []string{"select", "selection"}, got)
}

func TestWordListCaseInsensitive(t *testing.T) {
	w := newWordList(true, false)
	w.Add("SELECT")

	complete := w.Completer()
	got := complete([]rune("sel"), 0, 3)
	require.Equal(t, []string{"SELECT"}, got)
}

func TestWordListRememberWords(t *testing.T) {
	w := newWordList(false, false)
	w.RememberWords("foo bar\tbaz\nfoo")
	require.Equal(t, []string{"foo", "bar", "baz"}, w.words)
}

func TestWordListLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nbeta\n\n  gamma  \n"), 0o644))

	w := newWordList(false, false)
	require.NoError(t, w.LoadFile(path))
	require.Equal(t, []string{"alpha", "beta", "gamma"}, w.words)
}

func TestWordListCompleteFilenames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.csv"), nil, 0o644))

	w := newWordList(false, true)
	complete := w.Completer()
	prefix := filepath.Join(dir, "report")
	got := complete([]rune(prefix), 0, len(prefix))
	require.Contains(t, got, filepath.Join(dir, "report.csv"))
}

func TestEffectiveWordBreakChars(t *testing.T) {
	require.Equal(t, editor.DefaultWordBreakChars, effectiveWordBreakChars("", ""))
	require.Equal(t, " ;", effectiveWordBreakChars(" ;", ""))

	// Quote characters are removed from the default set so a quote
	// character doesn't split the word being completed; space still does.
	got := effectiveWordBreakChars("", "'\"")
	require.NotContains(t, got, "'")
	require.NotContains(t, got, "\"")
	require.Contains(t, got, " ")

	require.Equal(t, " |", effectiveWordBreakChars(" '|", "'"))
}
