package editor

import "bytes"

// hscrollJump bounds how far the viewport moves in one step when the
// cursor runs off an edge, so a single keystroke near the margin doesn't
// repaint the whole window on every subsequent character.
const hscrollJump = 10

// hscroll renders prompt+text as a single physical line within a width-cols
// viewport, used in place of the multi-line screen renderer for legacy
// terminals that can't be trusted to wrap or scroll sanely, and for
// starring out password input. It only ever uses carriage-return,
// erase-to-end-of-line and relative cursor motion, since the terminals it
// targets are exactly those that can't be trusted with absolute
// positioning either.
type hscroll struct {
	offset int // index into the logical line of the viewport's left edge
	onCol  int // last painted on-screen cursor column
}

// reset clears the viewport back to its left edge.
func (h *hscroll) reset() {
	h.offset = 0
	h.onCol = 0
}

// render writes the escape sequences and text needed to bring the display
// up to date with logical (prompt+buffer text), cursor at the rune offset
// cursorAt within it, within a window of the given width. When
// hidePasswords is set, every buffer byte past promptLen renders as '*'.
func (h *hscroll) render(buf *bytes.Buffer, logical []rune, cursorAt, promptLen, width int, hidePasswords bool) {
	if width < 3 {
		width = 3
	}
	innerWidth := width

	// Jumpscroll: slide the viewport by hscrollJump columns at a time until
	// the cursor is back within [1, innerWidth-2] of the window (leaving
	// room for the continuation markers on either edge).
	for cursorAt-h.offset >= innerWidth-1 {
		h.offset += hscrollJump
	}
	for cursorAt < h.offset+1 && h.offset > 0 {
		h.offset -= hscrollJump
		if h.offset < 0 {
			h.offset = 0
		}
	}

	end := h.offset + innerWidth
	if end > len(logical) {
		end = len(logical)
	}
	truncatedLeft := h.offset > 0
	truncatedRight := end < len(logical)

	start := h.offset
	if truncatedLeft {
		start++
	}
	if truncatedRight && end > start {
		end--
	}

	buf.WriteByte('\r')
	eraseLineToRight(buf)

	if truncatedLeft {
		buf.WriteByte('<')
	}
	for pos := start; pos < end; pos++ {
		if hidePasswords && pos >= promptLen {
			buf.WriteByte('*')
		} else {
			buf.WriteRune(logical[pos])
		}
	}
	if truncatedRight {
		buf.WriteByte('>')
	}

	onCol := cursorAt - start
	if truncatedLeft {
		onCol++
	}
	buf.WriteByte('\r')
	cursorMove(buf, 0, 0, 0, onCol)
	h.onCol = onCol
}
