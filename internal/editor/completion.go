package editor

import "strings"

// Completer returns the completion candidates for the word spanning
// text[wordStart:wordEnd]. text is the full input buffer. Implementations
// typically ignore text outside of the word range, but it is supplied so a
// completer can make context-sensitive decisions (for example, completing
// file names only for the first word on the line).
type Completer func(text []rune, wordStart, wordEnd int) []string

// DefaultWordBreakChars is the word-break character set used when no
// WithWordBreakChars option is given.
const DefaultWordBreakChars = " \t\n\"'`@$><=;|&{("

const defaultWordBreakChars = DefaultWordBreakChars

// complete implements Tab completion. The word under the cursor is
// determined by scanning backwards and forwards from the cursor position to
// the nearest word-break character. A single candidate is inserted in full;
// multiple candidates are reduced to their longest common prefix, the same
// behaviour GNU readline uses before it would otherwise print the full
// candidate list.
func (s *state) complete() {
	if s.completer == nil {
		return
	}

	text := s.screen.Text()
	pos := s.screen.Position()
	breaks := s.wordBreakChars
	if breaks == "" {
		breaks = defaultWordBreakChars
	}

	wordStart := pos
	for wordStart > 0 && !strings.ContainsRune(breaks, text[wordStart-1]) {
		wordStart--
	}
	wordEnd := pos
	for wordEnd < len(text) && !strings.ContainsRune(breaks, text[wordEnd]) {
		wordEnd++
	}

	candidates := s.completer(text, wordStart, wordEnd)
	if len(candidates) == 0 {
		s.screen.outbuf.WriteRune(keyCtrlG)
		return
	}

	replacement := candidates[0]
	if len(candidates) > 1 {
		replacement = commonPrefix(candidates)
		if s.completionCaseInsensitive {
			// Case-insensitive completers may return candidates that only share a
			// prefix up to case; fall back to the first candidate's casing for the
			// portion already typed.
			replacement = commonPrefixFold(candidates)
		}
	}
	if replacement == "" {
		return
	}

	s.screen.MoveTo(wordStart)
	s.screen.EraseTo(wordEnd)
	s.screen.Insert([]rune(replacement)...)
}

func commonPrefix(candidates []string) string {
	prefix := candidates[0]
	for _, c := range candidates[1:] {
		prefix = commonPrefixOf(prefix, c)
		if prefix == "" {
			break
		}
	}
	return prefix
}

func commonPrefixOf(a, b string) string {
	ar, br := []rune(a), []rune(b)
	n := len(ar)
	if len(br) < n {
		n = len(br)
	}
	i := 0
	for i < n && ar[i] == br[i] {
		i++
	}
	return string(ar[:i])
}

func commonPrefixFold(candidates []string) string {
	prefix := candidates[0]
	for _, c := range candidates[1:] {
		ar, br := []rune(prefix), []rune(c)
		n := len(ar)
		if len(br) < n {
			n = len(br)
		}
		i := 0
		for i < n && strings.EqualFold(string(ar[i]), string(br[i])) {
			i++
		}
		prefix = string(ar[:i])
	}
	return prefix
}
