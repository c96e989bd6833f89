// Package ptyhost spawns the wrapped child behind a pseudo-terminal and
// provides the handful of slave-introspection operations the rest of the
// wrapper needs: terminal-mode mirroring, raw-mode detection, and EOF/EOL
// byte translation.
package ptyhost

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/petermattis/wraptty/internal/term"
)

// Host owns the master/slave pty pair and the spawned child process. The
// slave fd is kept open in the parent for the sole purpose of querying the
// child's terminal modes; it is never written to or read from directly.
type Host struct {
	Master *os.File
	Slave  *os.File
	Cmd    *exec.Cmd

	// AlwaysEcho is the degraded mode entered when the master pty's
	// terminal attributes could not be queried after fork. In this mode
	// passwords may be echoed and saved to history.
	AlwaysEcho bool
}

// Spawn allocates a pty pair, sets the slave's window size, and starts
// name/args with the slave as its controlling terminal. The slave's termios
// is not copied from the user's terminal; it keeps the pty's defaults.
// termName, if non-empty, overrides TERM in the child's environment.
func Spawn(name string, args []string, termName string, rows, cols int) (*Host, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("ptyhost: open pty: %w", err)
	}

	if rows > 0 && cols > 0 {
		if err := term.SetWinsize(int(slave.Fd()), rows, cols); err != nil {
			_ = master.Close()
			_ = slave.Close()
			return nil, err
		}
	}

	cmd := exec.Command(name, args...)
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}
	cmd.Env = os.Environ()
	if termName != "" {
		cmd.Env = setEnv(cmd.Env, "TERM", termName)
	}

	if err := cmd.Start(); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, fmt.Errorf("ptyhost: start child: %w", err)
	}

	h := &Host{Master: master, Slave: slave, Cmd: cmd}

	// The master's termios should be readable immediately; some slow-to-
	// initialize children briefly leave it in a state where tcgetattr
	// fails, so retry once after a short sleep before giving up and
	// degrading to always_echo.
	if _, err := term.GetTermios(int(master.Fd())); err != nil {
		time.Sleep(time.Second)
		if _, err := term.GetTermios(int(slave.Fd())); err != nil {
			h.AlwaysEcho = true
		}
	}

	return h, nil
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			out = append(out, prefix+value)
			found = true
			continue
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, prefix+value)
	}
	return out
}

// SlaveTermios returns the slave's current termios attributes.
func (h *Host) SlaveTermios() (*unix.Termios, error) {
	return term.GetTermios(int(h.Slave.Fd()))
}

// SlaveInRawMode reports whether the slave's ICANON bit is clear, meaning
// the child has put its end of the pty in raw (non-canonical) mode and is
// doing its own line editing (or none at all).
func (h *Host) SlaveInRawMode() bool {
	if h.AlwaysEcho {
		return false
	}
	attr, err := h.SlaveTermios()
	if err != nil {
		return false
	}
	return attr.Lflag&unix.ICANON == 0
}

// MirrorSlaveEcho computes whether input should be displayed (true) or
// suppressed/starred (false). should_echo is always_echo ∨ always_readline
// ∨ the slave's ECHO bit, forced to false when a password-prompt search
// string is configured and the current prompt ends with it (trailing
// spaces trimmed).
func (h *Host) MirrorSlaveEcho(alwaysReadline bool, passwordPromptSearch, currentPrompt string) bool {
	slaveEcho := false
	if !h.AlwaysEcho {
		if attr, err := h.SlaveTermios(); err == nil {
			slaveEcho = attr.Lflag&unix.ECHO != 0
		}
	}

	shouldEcho := h.AlwaysEcho || alwaysReadline || slaveEcho

	if passwordPromptSearch != "" {
		trimmed := strings.TrimRight(currentPrompt, " ")
		if strings.HasSuffix(trimmed, passwordPromptSearch) {
			shouldEcho = false
		}
	}
	return shouldEcho
}

// WriteEOFByte returns the slave's current VEOF byte, the byte that should
// be written to the master to signal end-of-file to the child.
func (h *Host) WriteEOFByte() (byte, error) {
	attr, err := h.SlaveTermios()
	if err != nil {
		return 0, err
	}
	return attr.Cc[unix.VEOF], nil
}

// WriteEOLByte translates the accept key (CR or LF) to the byte that
// should actually be written to the master, per the slave's iflag rules:
// INLCR maps '\n'->'\r', IGNCR drops a '\r', ICRNL maps '\r'->'\n',
// otherwise the key passes through unchanged. ok is false when the byte
// should be dropped entirely (IGNCR).
func (h *Host) WriteEOLByte(acceptKey byte) (out byte, ok bool) {
	attr, err := h.SlaveTermios()
	if err != nil {
		return acceptKey, true
	}
	switch acceptKey {
	case '\n':
		if attr.Iflag&unix.INLCR != 0 {
			return '\r', true
		}
	case '\r':
		if attr.Iflag&unix.IGNCR != 0 {
			return 0, false
		}
		if attr.Iflag&unix.ICRNL != 0 {
			return '\n', true
		}
	}
	return acceptKey, true
}

// MirrorSlaveModesToStdin copies the slave's termios onto stdinFd, used
// when control returns from an external editor invocation.
func (h *Host) MirrorSlaveModesToStdin(stdinFd int) error {
	attr, err := h.SlaveTermios()
	if err != nil {
		return err
	}
	return term.SetTermios(stdinFd, attr)
}

// Close releases the pty pair. It does not wait for or kill the child.
func (h *Host) Close() error {
	err1 := h.Master.Close()
	err2 := h.Slave.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
