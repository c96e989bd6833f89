package wrapper

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/google/uuid"

	"github.com/petermattis/wraptty/internal/ptyhost"
	"github.com/petermattis/wraptty/internal/term"
)

// lineAndColumn returns the 0-indexed line and column of the rune offset
// point within text, where sep marks the end of a line (in place of a
// literal newline in the in-memory buffer).
func lineAndColumn(text string, point int, sep string) (line, col int) {
	runes := []rune(text)
	if point > len(runes) {
		point = len(runes)
	}
	head := string(runes[:point])
	parts := strings.Split(head, sep)
	line = len(parts) - 1
	col = len([]rune(parts[len(parts)-1]))
	return line, col
}

// sanitizeEditedText replaces tabs with four spaces, maps literal newlines
// back to the multi-line separator, and replaces any other control byte
// with a space, per the external-editor reinsertion rule.
func sanitizeEditedText(raw, sep string) string {
	raw = strings.ReplaceAll(raw, "\t", "    ")
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == '\n':
			b.WriteString(sep)
		case r < 0x20 || r == 0x7f:
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// newCallEditor builds the callback passed to editor.WithCallEditor: it
// writes the current buffer to a temp file, shells out to an external
// editor on it, and feeds the result back as the replacement buffer and
// cursor position.
//
// tmpDir is the directory temp files are created in (TMPDIR/TMP/TEMP,
// falling back to os.TempDir). sep is the multi-line separator the buffer
// uses in place of a literal newline; commandName substitutes for %C in the
// editor command line. ignoreQueuedInput is set to true once the editor
// returns, so the loop discards any keystrokes that arrived on stdin while
// the terminal was handed off. lastErr records the most recent failure so
// the caller can treat it as fatal; the editor.Editor command itself
// swallows the error returned here to keep editing alive. editorCmd is the
// already-resolved $WRAPTTY_EDITOR/$EDITOR/$VISUAL command line, or "" to
// fall back to "vi +%L".
func newCallEditor(t *term.Terminal, host *ptyhost.Host, tmpDir, sep, commandName, editorCmd string, ignoreQueuedInput *bool, lastErr *error) func(text string, point int) (string, int, error) {
	if sep == "" {
		sep = "\n"
	}
	if editorCmd == "" {
		editorCmd = "vi +%L"
	}
	return func(text string, point int) (newText string, newPoint int, err error) {
		defer func() { *lastErr = err }()
		line, _ := lineAndColumn(text, point, sep)

		f, err := os.CreateTemp(tmpDir, fmt.Sprintf("wraptty-%s-*.txt", uuid.NewString()))
		if err != nil {
			return text, point, fmt.Errorf("wrapper: create temp file: %w", err)
		}
		path := f.Name()
		defer os.Remove(path)

		if _, err := f.WriteString(strings.ReplaceAll(text, sep, "\n")); err != nil {
			f.Close()
			return text, point, fmt.Errorf("wrapper: write temp file: %w", err)
		}
		if err := f.Close(); err != nil {
			return text, point, fmt.Errorf("wrapper: close temp file: %w", err)
		}

		fields, err := shlex.Split(editorCmd)
		if err != nil || len(fields) == 0 {
			fields = []string{"vi", "+%L"}
		}
		for i, field := range fields {
			field = strings.ReplaceAll(field, "%L", strconv.Itoa(line+1))
			field = strings.ReplaceAll(field, "%C", commandName)
			fields[i] = field
		}
		fields = append(fields, path)

		if err := t.SetRaw(false); err != nil {
			return text, point, fmt.Errorf("wrapper: restore cooked mode: %w", err)
		}

		cmd := exec.Command(fields[0], fields[1:]...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Dir = filepath.Dir(path)
		runErr := cmd.Run()

		if err := t.SetRaw(true); err != nil {
			return text, point, fmt.Errorf("wrapper: re-enter raw mode: %w", err)
		}
		if host != nil {
			_ = host.MirrorSlaveModesToStdin(t.Fd())
		}
		*ignoreQueuedInput = true

		if runErr != nil {
			return text, point, fmt.Errorf("wrapper: external editor: %w", runErr)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return text, point, fmt.Errorf("wrapper: read temp file: %w", err)
		}
		newText = sanitizeEditedText(string(raw), sep)
		return newText, len([]rune(newText)), nil
	}
}
