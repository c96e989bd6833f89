package wrapper

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/petermattis/wraptty/internal/editor"
)

// effectiveWordBreakChars computes the word-break character set for
// completion, starting from breakChars (or the editor's default when empty)
// and removing any character named in quoteChars. quoteChars names
// characters the wrapped program's own parser treats as quoting a word (for
// example a shell's single and double quotes), so the quote character itself
// doesn't break the word being completed. Other break characters, such as a
// space inside the quotes, still do.
func effectiveWordBreakChars(breakChars, quoteChars string) string {
	chars := breakChars
	if chars == "" {
		chars = editor.DefaultWordBreakChars
	}
	if quoteChars == "" {
		return chars
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(quoteChars, r) {
			return -1
		}
		return r
	}, chars)
}

// wordList is the completion word-list collaborator spec.md assumes exists
// externally: a growable set of candidate words, optionally seeded from a
// file (-f/--file), optionally grown from the words seen in child output
// (-r/--remember), and optionally unioned with filesystem names
// (-c/--complete-filenames).
type wordList struct {
	words             []string
	seen              map[string]bool
	caseInsensitive   bool
	completeFilenames bool
}

func newWordList(caseInsensitive, completeFilenames bool) *wordList {
	return &wordList{
		seen:              make(map[string]bool),
		caseInsensitive:   caseInsensitive,
		completeFilenames: completeFilenames,
	}
}

// LoadFile seeds the word list from path, one word per line.
func (w *wordList) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		if word := strings.TrimSpace(s.Text()); word != "" {
			w.Add(word)
		}
	}
	return s.Err()
}

// Add records word in the list, ignoring an exact duplicate.
func (w *wordList) Add(word string) {
	key := word
	if w.caseInsensitive {
		key = strings.ToLower(key)
	}
	if w.seen[key] {
		return
	}
	w.seen[key] = true
	w.words = append(w.words, word)
}

// RememberWords adds every whitespace-delimited word in s, implementing
// -r/--remember.
func (w *wordList) RememberWords(s string) {
	for _, word := range strings.Fields(s) {
		w.Add(word)
	}
}

// Completer returns an editor.Completer backed by this word list, matching
// candidates by prefix (case-insensitively when configured) and, when
// filename completion is enabled, unioning in matching path names.
func (w *wordList) Completer() editor.Completer {
	return func(text []rune, wordStart, wordEnd int) []string {
		prefix := string(text[wordStart:wordEnd])
		matchPrefix := prefix
		if w.caseInsensitive {
			matchPrefix = strings.ToLower(matchPrefix)
		}

		var out []string
		for _, word := range w.words {
			candidate := word
			if w.caseInsensitive {
				candidate = strings.ToLower(candidate)
			}
			if strings.HasPrefix(candidate, matchPrefix) {
				out = append(out, word)
			}
		}

		if w.completeFilenames {
			if matches, err := filepath.Glob(prefix + "*"); err == nil {
				out = append(out, matches...)
			}
		}
		return out
	}
}
