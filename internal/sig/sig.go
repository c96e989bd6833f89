// Package sig dispatches OS signals to the child process group and
// translates them into the flags the event loop consumes on its next turn.
//
// The original rlwrap design keeps signal handlers strictly flag-setting
// because a real Unix signal handler can interrupt the program at any
// instruction and must be async-signal-safe. Go's os/signal instead
// delivers signals by posting to a channel from a dedicated runtime
// goroutine; by the time this package's methods run (called from the
// event loop after a channel receive), we are back on the loop's own
// goroutine with no reentrancy concerns. That lets Handle* below do the
// "bounded work" the C handlers did (forwarding, winsize diffing)
// directly, with no separate flag-and-defer step — the channel receive
// already serializes everything onto the loop's single thread of control.
package sig

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/petermattis/wraptty/internal/term"
)

// Forwardable lists the signals that are always relayed to the child
// process group when a child exists.
var Forwardable = []os.Signal{
	syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGABRT,
	syscall.SIGTERM, syscall.SIGCONT, syscall.SIGUSR1, syscall.SIGUSR2,
	syscall.SIGWINCH,
}

// Dispatcher owns the signal channel and the small amount of state needed
// to decide whether SIGWINCH represents an actual size change.
type Dispatcher struct {
	ch              chan os.Signal
	alwaysReadline  bool
	childPID        int
	lastWinsize     unix.Winsize
	haveLastWinsize bool

	// SigtermReceived is set once a SIGTERM has been observed, for callers
	// that want to distinguish a clean shutdown request from child death.
	SigtermReceived bool
}

// New creates a Dispatcher and begins listening for the forwardable
// signals plus SIGTSTP and SIGCHLD.
func New(alwaysReadline bool) *Dispatcher {
	d := &Dispatcher{
		ch:             make(chan os.Signal, 32),
		alwaysReadline: alwaysReadline,
	}
	signal.Notify(d.ch, Forwardable...)
	signal.Notify(d.ch, syscall.SIGTSTP, syscall.SIGCHLD)
	return d
}

// C returns the channel the event loop selects on alongside stdin and the
// pty master.
func (d *Dispatcher) C() <-chan os.Signal { return d.ch }

// SetChildPID records the pid of the spawned child, used as the target
// process group (-pid) for forwarded signals.
func (d *Dispatcher) SetChildPID(pid int) { d.childPID = pid }

// Stop stops signal delivery to the channel.
func (d *Dispatcher) Stop() { signal.Stop(d.ch) }

func (d *Dispatcher) forward(sig syscall.Signal) error {
	if d.childPID == 0 {
		return nil
	}
	if err := syscall.Kill(-d.childPID, sig); err != nil && err != syscall.ESRCH {
		return err
	}
	return nil
}

// HandleForwardable forwards one of the always-relayed signals (everything
// in Forwardable except SIGWINCH, which has its own adapt-and-maybe-forward
// logic in HandleWinch) to the child process group.
func (d *Dispatcher) HandleForwardable(sig syscall.Signal) error {
	if sig == syscall.SIGTERM {
		d.SigtermReceived = true
	}
	return d.forward(sig)
}

// HandleWinch reads the window size on fromFd (typically stdin) and, if it
// differs from the last observed size, propagates it to toFd (the pty
// master) unless always_readline is set — many curses programs spew
// control bytes at a resize, and always_readline defers that propagation
// to the next accepted input line instead. The returned changed flag tells
// the caller whether to also forward SIGWINCH itself to the child; forwarding
// an unchanged size would risk a livelock, since the child's own TIOCSWINSZ
// on its slave would otherwise bounce straight back as another SIGWINCH.
func (d *Dispatcher) HandleWinch(fromFd, toFd int) (changed bool, rows, cols int, deferred bool, err error) {
	ws, err := unix.IoctlGetWinsize(fromFd, unix.TIOCGWINSZ)
	if err != nil {
		return false, 0, 0, false, err
	}
	if d.haveLastWinsize && *ws == d.lastWinsize {
		return false, int(ws.Row), int(ws.Col), false, nil
	}
	d.lastWinsize = *ws
	d.haveLastWinsize = true

	if d.alwaysReadline {
		return true, int(ws.Row), int(ws.Col), true, nil
	}
	if err := term.SetWinsize(toFd, int(ws.Row), int(ws.Col)); err != nil {
		return true, int(ws.Row), int(ws.Col), false, err
	}
	return true, int(ws.Row), int(ws.Col), false, nil
}

// Suspend implements the SIGTSTP choreography: forward to the child group,
// give the caller a chance to save editor state via saveFn, then actually
// suspend the wrapper process itself (raising SIGTSTP on self with the
// default disposition restored) and block until a SIGCONT wakes it. Once
// resumed, resumeFn is invoked to restore editor state or repaint before
// Suspend returns.
func (d *Dispatcher) Suspend(saveFn, resumeFn func()) error {
	_ = d.forward(syscall.SIGTSTP)
	if saveFn != nil {
		saveFn()
	}

	signal.Reset(syscall.SIGTSTP)
	defer signal.Notify(d.ch, syscall.SIGTSTP)

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTSTP); err != nil {
		return err
	}
	// Execution resumes here once the process group is foregrounded again.

	if resumeFn != nil {
		resumeFn()
	}
	return nil
}

// ReapResult describes the outcome of a non-blocking wait for the child.
type ReapResult struct {
	Reaped         bool
	MatchesChild   bool
	ExitStatus     int
	KilledBySignal syscall.Signal
}

// ReapChild performs a non-blocking waitpid for any child and reports
// whether the tracked child pid was the one reaped.
func ReapChild(trackedPID int) ReapResult {
	var ws syscall.WaitStatus
	for {
		reaped, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err == syscall.EINTR {
			continue
		}
		if err != nil || reaped <= 0 {
			return ReapResult{}
		}
		if reaped != trackedPID {
			return ReapResult{Reaped: true, MatchesChild: false}
		}
		if ws.Exited() {
			return ReapResult{Reaped: true, MatchesChild: true, ExitStatus: ws.ExitStatus()}
		}
		if ws.Signaled() {
			return ReapResult{Reaped: true, MatchesChild: true, KilledBySignal: ws.Signal()}
		}
		return ReapResult{Reaped: true, MatchesChild: true}
	}
}

// SuicideBy uninstalls signal delivery and re-raises sig on self so that
// the wrapper's own parent (a shell, typically) observes the same fatal
// signal the child died from, rather than a plain nonzero exit.
func SuicideBy(sig syscall.Signal) {
	signal.Reset()
	_ = syscall.Kill(syscall.Getpid(), sig)
}
