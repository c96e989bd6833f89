package editor

import (
	"bytes"
	"strconv"
)

// attrReset is the only text attribute screen.go's renderText ever emits
// (spans are coloured by value strings stashed via SetAttrs, not by named
// attribute constants); kept here rather than inline since eraseLineToRight
// and cursorMove live in this file too.
const attrReset = "\x1b[0m"

// eraseLineToRight generates the escape sequence to erase the line from the
// current cursor position to the end of the line.
func eraseLineToRight(buf *bytes.Buffer) {
	const seq = "\x1b[K"
	_, _ = buf.WriteString(seq)
}

// cursorMove generates the escape sequences to move the cursor relative to its
// current position. Moving by one character (a common case) is slightly more
// efficient.
func cursorMove(buf *bytes.Buffer, up, down, left, right int) {
	const (
		csi             = "\x1b[" // csi = Control Sequence Introducer
		moveUpSuffix    = "A"
		moveDownSuffix  = "B"
		moveRightSuffix = "C"
		moveLeftSuffix  = "D"
	)

	if up == 1 {
		_, _ = buf.WriteString(csi)
		_, _ = buf.WriteString(moveUpSuffix)
	} else if up > 1 {
		_, _ = buf.WriteString(csi)
		_, _ = buf.WriteString(strconv.Itoa(up))
		_, _ = buf.WriteString(moveUpSuffix)
	}

	if down == 1 {
		_, _ = buf.WriteString(csi)
		_, _ = buf.WriteString(moveDownSuffix)
	} else if down > 1 {
		_, _ = buf.WriteString(csi)
		_, _ = buf.WriteString(strconv.Itoa(down))
		_, _ = buf.WriteString(moveDownSuffix)
	}

	if right == 1 {
		_, _ = buf.WriteString(csi)
		_, _ = buf.WriteString(moveRightSuffix)
	} else if right > 1 {
		_, _ = buf.WriteString(csi)
		_, _ = buf.WriteString(strconv.Itoa(right))
		_, _ = buf.WriteString(moveRightSuffix)
	}

	if left == 1 {
		_, _ = buf.WriteString(csi)
		_, _ = buf.WriteString(moveLeftSuffix)
	} else if left > 1 {
		_, _ = buf.WriteString(csi)
		_, _ = buf.WriteString(strconv.Itoa(left))
		_, _ = buf.WriteString(moveLeftSuffix)
	}
}
