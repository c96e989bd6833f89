// Package term wraps the handful of terminal primitives the wrapper needs:
// cooked/raw mode switches, cursor and line-clearing escape sequences, and
// window-size query/set. All writes target the user's tty, which may be
// reopened via /dev/tty when stdout/stderr have been redirected elsewhere.
package term

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
	xterm "golang.org/x/term"
)

// cursorHPosAllowList names the TERM prefixes known to support absolute
// horizontal cursor positioning (ESC[<n>G). Terminals outside this list fall
// back to a carriage return followed by n backspaces.
var cursorHPosAllowList = []string{
	"xterm", "screen", "tmux", "rxvt", "linux", "vt100", "vt220", "ansi",
}

// Terminal mediates cooked/raw mode and cursor primitives against the
// user's controlling tty.
type Terminal struct {
	f       *os.File
	fd      int
	saved   *xterm.State
	rawMode bool

	hasCursorHPos bool
}

// Open opens the user's controlling terminal. If stdout or stderr are not
// ttys (redirected to a file or pipe), it reopens /dev/tty so the wrapper
// can still paint the screen.
func Open() (*Terminal, error) {
	f := os.Stdout
	if !isatty.IsTerminal(f.Fd()) || !isatty.IsTerminal(os.Stderr.Fd()) {
		var err error
		f, err = os.OpenFile("/dev/tty", os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("term: reopen /dev/tty: %w", err)
		}
	}

	t := &Terminal{
		f:             f,
		fd:            int(f.Fd()),
		hasCursorHPos: probeCursorHPos(),
	}
	return t, nil
}

func probeCursorHPos() bool {
	name := os.Getenv("TERM")
	if name == "" {
		return false
	}
	for _, prefix := range cursorHPosAllowList {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Fd returns the underlying file descriptor.
func (t *Terminal) Fd() int { return t.fd }

// Writer returns an io.Writer for the terminal.
func (t *Terminal) Writer() io.Writer { return t.f }

// SetRaw puts the terminal in raw mode via golang.org/x/term's MakeRaw
// (on == true), or restores the previously saved mode (on == false). This is
// full raw mode, not cbreak: besides echo and canonical input, it also turns
// off signal-generating keys and output post-processing, so Ctrl-C and
// Ctrl-Z arrive as input bytes rather than as signals.
func (t *Terminal) SetRaw(on bool) error {
	if on {
		if t.rawMode {
			return nil
		}
		saved, err := xterm.MakeRaw(t.fd)
		if err != nil {
			return fmt.Errorf("term: make raw: %w", err)
		}
		t.saved = saved
		t.rawMode = true
		return nil
	}

	if !t.rawMode {
		return nil
	}
	if t.saved == nil {
		return nil
	}
	if err := xterm.Restore(t.fd, t.saved); err != nil {
		return fmt.Errorf("term: restore: %w", err)
	}
	t.rawMode = false
	return nil
}

// SetEcho toggles the ECHO bit on the terminal's termios without otherwise
// disturbing cooked/raw mode, for the degraded "always_echo" case and for
// restoring echo when handing the terminal back to a foreground program.
func (t *Terminal) SetEcho(on bool) error {
	attr, err := GetTermios(t.fd)
	if err != nil {
		return err
	}
	if on {
		attr.Lflag |= unix.ECHO
	} else {
		attr.Lflag &^= unix.ECHO
	}
	return SetTermios(t.fd, attr)
}

// GetTermios reads the termios attributes of fd.
func GetTermios(fd int) (*unix.Termios, error) {
	attr, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("term: get termios: %w", err)
	}
	return attr, nil
}

// SetTermios applies termios attributes to fd.
func SetTermios(fd int, attr *unix.Termios) error {
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, attr); err != nil {
		return fmt.Errorf("term: set termios: %w", err)
	}
	return nil
}

// ClearLine erases the current line from the cursor to the end.
func (t *Terminal) ClearLine() { t.WriteStr("\x1b[K") }

// CarriageReturn moves the cursor to column 0 of the current line.
func (t *Terminal) CarriageReturn() { t.WriteStr("\r") }

// CursorUp moves the cursor up n rows.
func (t *Terminal) CursorUp(n int) {
	if n <= 0 {
		return
	}
	if n == 1 {
		t.WriteStr("\x1b[A")
		return
	}
	t.WriteStr("\x1b[" + strconv.Itoa(n) + "A")
}

// CursorDown moves the cursor down n rows.
func (t *Terminal) CursorDown(n int) {
	if n <= 0 {
		return
	}
	if n == 1 {
		t.WriteStr("\x1b[B")
		return
	}
	t.WriteStr("\x1b[" + strconv.Itoa(n) + "B")
}

// CursorHPos moves the cursor to the given 0-indexed column of the current
// line, using absolute positioning when the terminal is known to support it
// and falling back to carriage-return-plus-backspaces otherwise (per the
// fallback rule: on terminals lacking absolute positioning, a caller that
// already knows the on-screen column can only get close by returning to
// column 0 and backing up, which is a no-op unless something is re-emitted
// on top — callers relying on the fallback must re-emit the text up to col
// themselves).
func (t *Terminal) CursorHPos(col int) {
	if col < 0 {
		col = 0
	}
	if t.hasCursorHPos {
		t.WriteStr("\x1b[" + strconv.Itoa(col+1) + "G")
		return
	}
	t.CarriageReturn()
	t.Backspace(col)
}

// Backspace writes n literal backspace bytes, moving the cursor left n
// columns on terminals that treat backspace as non-destructive motion.
func (t *Terminal) Backspace(n int) {
	if n <= 0 {
		return
	}
	t.WriteStr(strings.Repeat("\b", n))
}

// WriteStr writes s verbatim to the terminal.
func (t *Terminal) WriteStr(s string) {
	_, _ = io.WriteString(t.f, s)
}

// WriteChar writes a single byte to the terminal.
func (t *Terminal) WriteChar(c byte) {
	_, _ = t.f.Write([]byte{c})
}

// QueryWinsize returns the terminal's current rows and columns.
func (t *Terminal) QueryWinsize() (rows, cols int, err error) {
	ws, err := unix.IoctlGetWinsize(t.fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, fmt.Errorf("term: get winsize: %w", err)
	}
	return int(ws.Row), int(ws.Col), nil
}

// SetWinsize sets the window size on the given fd (typically the pty
// master or slave) to match rows/cols.
func SetWinsize(fd int, rows, cols int) error {
	ws := &unix.Winsize{Row: uint16(rows), Col: uint16(cols)}
	if err := unix.IoctlSetWinsize(fd, unix.TIOCSWINSZ, ws); err != nil {
		return fmt.Errorf("term: set winsize: %w", err)
	}
	return nil
}

// Close restores the terminal's saved mode, if any.
func (t *Terminal) Close() error {
	if err := t.SetRaw(false); err != nil {
		return err
	}
	if t.f != os.Stdout {
		return t.f.Close()
	}
	return nil
}
