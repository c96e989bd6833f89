package wrapper

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/petermattis/wraptty/internal/editor"
	"github.com/petermattis/wraptty/internal/prompttrack"
	"github.com/petermattis/wraptty/internal/ptyhost"
	"github.com/petermattis/wraptty/internal/queue"
	"github.com/petermattis/wraptty/internal/sig"
	"github.com/petermattis/wraptty/internal/term"
)

// recolourIdle is how long the loop waits, once a coloured prompt repaint is
// pending, before giving up on more child output arriving in the same burst
// and painting what it has.
const recolourIdle = 40 * time.Millisecond

// Loop is the single-threaded event loop (component G): it owns the one
// blocking unix.Select call that mediates stdin, the pty master, and signal
// delivery, and drives every other component from the result.
type Loop struct {
	cfg Config
	env Env

	term    *term.Terminal
	host    *ptyhost.Host
	sigs    *sig.Dispatcher
	tracker *prompttrack.Tracker
	ed      *editor.Editor
	words   *wordList
	q       queue.Queue

	logfile *os.File

	// selfPipe lets signal delivery, which os/signal posts to a Go channel
	// on its own goroutine, wake the select call blocked on this goroutine:
	// a forwarder goroutine drains sigs.C() and writes one byte per signal
	// here, with the read end added to select's read set.
	selfPipeR *os.File
	selfPipeW *os.File
	pending   chan os.Signal

	ignoreQueuedInput bool
	lastEditorErr     error

	preGiven        string
	deferredWinsize *unix.Winsize

	lastOutputHadNewline bool

	// pendingExit is set once the child has been reaped, recording how it
	// exited. It is not acted on immediately: Run keeps servicing masterFd
	// until a read comes up dry, so buffered output the child wrote right
	// before exiting still reaches the terminal.
	pendingExit *sig.ReapResult
}

// New constructs a Loop: it opens the controlling terminal, spawns the
// wrapped child behind a pty sized to match it, and wires up the editor,
// history, completion and signal-handling collaborators per cfg and env.
func New(cfg Config, env Env) (*Loop, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("wrapper: no command given")
	}

	t, err := term.Open()
	if err != nil {
		return nil, err
	}

	rows, cols, err := t.QueryWinsize()
	if err != nil {
		rows, cols = 24, 80
	}

	termName := cfg.TermName
	if termName == "" {
		termName = env.TermName
	}

	host, err := ptyhost.Spawn(cfg.Command[0], cfg.Command[1:], termName, rows, cols)
	if err != nil {
		_ = t.Close()
		return nil, err
	}

	if host.AlwaysEcho {
		warnf(cfg.NoWarnings, "cannot read the pty's terminal settings; passwords may be echoed and saved to history")
	}

	if err := t.SetRaw(true); err != nil {
		_ = host.Close()
		_ = t.Close()
		return nil, err
	}

	sigs := sig.New(cfg.AlwaysReadline)
	if host.Cmd.Process != nil {
		sigs.SetChildPID(host.Cmd.Process.Pid)
	}

	r, w, err := os.Pipe()
	if err != nil {
		_ = t.Close()
		_ = host.Close()
		return nil, fmt.Errorf("wrapper: self-pipe: %w", err)
	}
	pending := make(chan os.Signal, 32)
	go func() {
		for s := range sigs.C() {
			pending <- s
			_, _ = w.Write([]byte{1})
		}
	}()

	var trackOpts []prompttrack.Option
	if cfg.ColourCapable && cfg.PromptColourEnabled {
		pal := defaultPalette()
		if cfg.PromptColour != "" {
			var err error
			pal, err = prompttrack.ParseSGR(cfg.PromptColour)
			if err != nil {
				return nil, err
			}
		}
		trackOpts = append(trackOpts, prompttrack.WithColour(pal))
	}
	if cfg.AnsiColourAware {
		trackOpts = append(trackOpts, prompttrack.WithANSIColourAware())
	}
	if !cfg.MultiLine {
		trackOpts = append(trackOpts, prompttrack.WithHorizontalScroll())
	}
	tracker := prompttrack.New(trackOpts...)
	tracker.SetWidth(cols)

	words := newWordList(cfg.CaseInsensitive, cfg.CompleteFiles)
	if cfg.CompletionFile != "" {
		if err := words.LoadFile(cfg.CompletionFile); err != nil {
			return nil, fmt.Errorf("wrapper: load completion file: %w", err)
		}
	}

	historyPath := cfg.HistoryFilename
	if historyPath == "" && env.Home != "" {
		historyPath = filepath.Join(env.Home, "."+cfg.CommandName+"_history")
	}

	var logfile *os.File
	if cfg.LogfilePath != "" {
		logfile, err = os.OpenFile(cfg.LogfilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("wrapper: open logfile: %w", err)
		}
		fmt.Fprintf(logfile, "\n\n[%s] %s\n", cfg.CommandName, time.Now().Format(time.ANSIC))
	}

	l := &Loop{
		cfg:                  cfg,
		env:                  env,
		term:                 t,
		host:                 host,
		sigs:                 sigs,
		tracker:              tracker,
		words:                words,
		logfile:              logfile,
		selfPipeR:            r,
		selfPipeW:            w,
		pending:              pending,
		preGiven:             cfg.PreGiven,
		lastOutputHadNewline: true,
	}

	var editorOpts []editor.Option
	editorOpts = append(editorOpts,
		editor.WithOutput(t.Writer()),
		editor.WithSize(cols, rows),
		editor.WithHistoryDupPolicy(cfg.HistoryDupPolicy),
		editor.WithHistoryDecoration(cfg.HistoryFormat, cfg.CommandName),
		editor.WithCompleter(words.Completer()),
	)
	if historyPath != "" {
		editorOpts = append(editorOpts, editor.WithHistory(historyPath, cfg.HistSize))
	}
	if cfg.CaseInsensitive {
		editorOpts = append(editorOpts, editor.WithCaseInsensitiveCompletion())
	}
	if cfg.BreakChars != "" || cfg.QuoteChars != "" {
		editorOpts = append(editorOpts, editor.WithWordBreakChars(effectiveWordBreakChars(cfg.BreakChars, cfg.QuoteChars)))
	}
	if cfg.MultiLine {
		editorOpts = append(editorOpts, editor.WithInputFinished(func(text string) bool {
			return !strings.HasSuffix(text, "\\")
		}))
	}
	editorOpts = append(editorOpts, editor.WithCallEditor(
		newCallEditor(t, host, env.TempDir, cfg.Separator, cfg.CommandName, env.Editor,
			&l.ignoreQueuedInput, &l.lastEditorErr)))

	l.ed = editor.New(editorOpts...)
	l.ed.SetRedisplayMode(!cfg.MultiLine, false)

	if historyPath != "" {
		if err := l.ed.LoadHistory(); err != nil {
			warnf(cfg.NoWarnings, "loading history: %s", err)
		}
	}

	return l, nil
}

// ResetTerminal restores the controlling terminal's saved mode. It is safe
// to call from a panic-recovery path as a best-effort substitute for the
// terminal reset a SIGSEGV handler would otherwise perform.
func (l *Loop) ResetTerminal() {
	_ = l.term.Close()
}

// Run drives the event loop until the child exits or a fatal signal is
// observed. It never returns on the ordinary path: finishAndExit always
// calls os.Exit or re-raises a signal on the wrapper itself.
//
// Child death does not exit the loop by itself: once the child is reaped,
// pendingExit records the result and the loop keeps servicing masterFd,
// since the pty master still yields whatever the child buffered right
// before exiting. Only once a read off masterFd comes up dry does the loop
// actually call finishAndExit, so that last burst of output still reaches
// the terminal.
func (l *Loop) Run() error {
	l.enterLineEdit()

	masterFd := int(l.host.Master.Fd())
	stdinFd := int(os.Stdin.Fd())
	selfPipeFd := int(l.selfPipeR.Fd())

	for {
		if l.pendingExit == nil {
			if res := sig.ReapChild(l.host.Cmd.Process.Pid); res.Reaped && res.MatchesChild {
				l.pendingExit = &res
			}
		}

		var rfds, wfds unix.FdSet
		fdZero(&rfds)
		fdZero(&wfds)
		fdSet(&rfds, stdinFd)
		fdSet(&rfds, masterFd)
		fdSet(&rfds, selfPipeFd)
		if l.q.NonEmpty() {
			fdSet(&wfds, masterFd)
		}

		maxFd := stdinFd
		if masterFd > maxFd {
			maxFd = masterFd
		}
		if selfPipeFd > maxFd {
			maxFd = selfPipeFd
		}

		var timeout *unix.Timeval
		if l.tracker.WaitAndRecolour() || l.pendingExit != nil {
			// Either a coloured-prompt repaint is pending idle time, or the
			// child is gone and masterFd should be polled rather than
			// blocking indefinitely on stdin.
			tv := unix.NsecToTimeval(recolourIdle.Nanoseconds())
			timeout = &tv
		}

		n, err := unix.Select(maxFd+1, &rfds, &wfds, nil, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("wrapper: select: %w", err)
		}

		if n == 0 {
			if l.tracker.WaitAndRecolour() {
				l.repaintColoured()
				l.tracker.ClearWaitAndRecolour()
				continue
			}
			if l.pendingExit != nil {
				l.finishAndExit(*l.pendingExit)
				return nil
			}
			continue
		}

		if fdIsSet(&rfds, selfPipeFd) {
			l.drainSelfPipe()
			l.handleSignals()
		}

		if l.q.NonEmpty() && fdIsSet(&wfds, masterFd) {
			if err := l.q.Flush(l.host.Master); err != nil {
				return fmt.Errorf("wrapper: write to child: %w", err)
			}
		}

		if fdIsSet(&rfds, masterFd) {
			if drained := l.handleMasterReadable(); drained && l.pendingExit != nil {
				l.finishAndExit(*l.pendingExit)
				return nil
			}
		}

		if fdIsSet(&rfds, stdinFd) && l.pendingExit == nil {
			l.handleStdinReadable()
		}
	}
}

func (l *Loop) drainSelfPipe() {
	var buf [64]byte
	for {
		n, err := l.selfPipeR.Read(buf[:])
		if n < len(buf) || err != nil {
			return
		}
	}
}

// handleSignals drains every signal queued on l.pending, applying each.
// Reaping on SIGCHLD happens separately, at the top of Run's loop, so that
// a select wakeup reporting both the self-pipe and masterFd readable still
// services masterFd in the same iteration instead of this skipping past it.
func (l *Loop) handleSignals() {
	for {
		select {
		case s := <-l.pending:
			l.handleSignal(s)
		default:
			return
		}
	}
}

func (l *Loop) handleSignal(s os.Signal) {
	sc, ok := s.(syscall.Signal)
	if !ok {
		return
	}

	switch sc {
	case syscall.SIGWINCH:
		changed, rows, cols, deferred, err := l.sigs.HandleWinch(int(l.term.Fd()), int(l.host.Master.Fd()))
		if err != nil {
			warnf(l.cfg.NoWarnings, "reading window size: %s", err)
			return
		}
		if !changed {
			return
		}
		l.tracker.SetWidth(cols)
		l.ed.SetSize(cols, rows)
		if deferred {
			ws := &unix.Winsize{Row: uint16(rows), Col: uint16(cols)}
			l.deferredWinsize = ws
		} else {
			_ = l.sigs.HandleForwardable(syscall.SIGWINCH)
		}

	case syscall.SIGTSTP:
		var text string
		var point int
		_ = l.sigs.Suspend(
			func() {
				text, point = l.suspendEditing()
				_ = l.term.SetRaw(false)
			},
			func() {
				_ = l.term.SetRaw(true)
				l.resumeEditing(text, point)
			},
		)

	case syscall.SIGCHLD:
		// No-op here: Run's top-of-loop ReapChild call picks this up and
		// records pendingExit, independent of signal delivery order.

	default:
		if err := l.sigs.HandleForwardable(sc); err != nil {
			warnf(l.cfg.NoWarnings, "forwarding signal: %s", err)
		}
	}
}

// handleMasterReadable implements the output-mediation steps spec.md
// assigns to child output: suspend the editor, repaint any previously
// coloured prompt in plain form so raw bytes don't land mid-escape, write
// the chunk to the terminal and logfile, extend the prompt tracker, and
// resume editing with the saved buffer reinstated. It returns drained=true
// once masterFd has nothing left to read — the pty master returns an error
// (typically EIO) once the child has exited and closed its end — which Run
// uses to decide the last buffered output has been fully delivered and it's
// safe to exit.
func (l *Loop) handleMasterReadable() (drained bool) {
	var buf [4096]byte
	n, err := l.host.Master.Read(buf[:])
	if err != nil || n == 0 {
		return true
	}
	chunk := buf[:n]

	text, point := l.suspendEditing()
	if l.tracker.ColouredPrompt() != "" {
		l.term.WriteStr("\r")
		l.term.ClearLine()
		l.term.WriteStr(l.tracker.Prompt())
	}

	l.term.WriteStr(string(chunk))
	l.lastOutputHadNewline = chunk[len(chunk)-1] == '\n'
	if l.logfile != nil {
		_, _ = l.logfile.Write(chunk)
	}

	l.tracker.Ingest(chunk)
	if l.cfg.Remember {
		l.words.RememberWords(string(chunk))
	}

	l.resumeEditing(text, point)
	return false
}

// handleStdinReadable drains whatever is immediately available on stdin,
// feeding each byte through the editor (or, when the slave is in raw mode
// and --always-readline is not set, straight through to the child) a byte at
// a time so partial escape sequences are never split across Select calls.
func (l *Loop) handleStdinReadable() {
	var buf [4096]byte
	n, err := os.Stdin.Read(buf[:])
	if err != nil {
		if err == io.EOF {
			l.finishAndExit(sig.ReapResult{})
		}
		return
	}

	for _, b := range buf[:n] {
		if l.ignoreQueuedInput {
			continue
		}
		l.handleStdinByte(b)
	}
	l.ignoreQueuedInput = false
}

func (l *Loop) handleStdinByte(b byte) {
	if l.host.SlaveInRawMode() && !l.cfg.AlwaysReadline {
		l.q.EnqueueByte(b)
		return
	}

	shouldEcho := l.host.MirrorSlaveEcho(l.cfg.AlwaysReadline, l.cfg.PasswordPromptSearch, l.tracker.Prompt())
	l.ed.SetForgetNext(!shouldEcho)

	line, accepted, err := l.ed.FeedByte(b)

	if l.lastEditorErr != nil {
		fatalErr := l.lastEditorErr
		l.lastEditorErr = nil
		fatalf(l.term, "%s", fatalErr)
	}

	switch {
	case accepted:
		// line may be empty (Enter on a blank prompt): it still needs to
		// reach the child as a bare newline, not be mistaken for EOF.
		l.onAcceptedLine(line)
	case err == io.EOF:
		l.onEditorEOF()
	}
}

// onAcceptedLine is called once the editor returns a complete line: it
// substitutes the configured multi-line separator back to literal
// newlines, applies any window-size change that was deferred while the
// line was being composed, and enqueues the line plus its translated
// end-of-line byte for the pty master.
func (l *Loop) onAcceptedLine(line string) {
	rewritten := line
	if l.cfg.MultiLine && l.cfg.Separator != "" {
		rewritten = strings.ReplaceAll(line, l.cfg.Separator, "\n")
	}

	if l.deferredWinsize != nil {
		ws := l.deferredWinsize
		l.deferredWinsize = nil
		_ = term.SetWinsize(int(l.host.Master.Fd()), int(ws.Row), int(ws.Col))
		if l.host.Cmd.Process != nil {
			_ = syscall.Kill(-l.host.Cmd.Process.Pid, syscall.SIGWINCH)
		}
	}

	l.q.Enqueue([]byte(rewritten))
	if eolByte, ok := l.host.WriteEOLByte(byte(l.ed.LastAcceptKey())); ok {
		l.q.EnqueueByte(eolByte)
	}

	l.restartBlank()
}

// onEditorEOF handles Ctrl-D on an empty buffer: it writes the slave's VEOF
// byte directly to the master rather than queuing it behind any pending
// output, matching a real terminal's canonical-mode EOF delivery.
func (l *Loop) onEditorEOF() {
	eofByte, err := l.host.WriteEOFByte()
	if err == nil {
		_, _ = l.host.Master.Write([]byte{eofByte})
	}
	l.restartBlank()
}

// restartBlank resets the editor to an empty buffer behind a blank prompt,
// ready to collect whatever the user types next even though the child
// hasn't produced its next prompt yet. The real prompt text is painted in
// over this, with any typeahead reinstated, the next time handleMasterReadable
// ingests output (via resumeEditing).
func (l *Loop) restartBlank() {
	_ = l.ed.Begin("")
}

// enterLineEdit starts reading the first line at the tracker's current
// prompt text (typically still empty, before the child has written
// anything), reinstating any one-shot pre-given text.
func (l *Loop) enterLineEdit() {
	plain, colouredMarked := l.displayPrompt()

	if l.preGiven != "" {
		text := l.preGiven
		l.preGiven = ""
		_ = l.ed.Resume(plain, colouredMarked, text, len([]rune(text)))
	} else {
		display := plain
		if colouredMarked != "" {
			display = colouredMarked
		}
		_ = l.ed.Begin(display)
	}
}

// displayPrompt returns the plain prompt alongside the coloured variant
// (marker-wrapped so the editor's width math skips the escape bytes),
// which is empty when colourisation is disabled or was declined.
func (l *Loop) displayPrompt() (plain, colouredMarked string) {
	plain = l.tracker.Prompt()
	if coloured := l.tracker.ColouredPrompt(); coloured != "" {
		return plain, l.tracker.MarkInvisible(coloured)
	}
	if l.tracker.AnsiColourAware() {
		return plain, l.tracker.MarkInvisible(plain)
	}
	return plain, ""
}

// suspendEditing saves the in-progress edit buffer before child output is
// written over it.
func (l *Loop) suspendEditing() (text string, point int) {
	return l.ed.Suspend()
}

// resumeEditing reinstates the saved buffer once child output mediation is
// done, recomputing password/redisplay-mode state since the prompt may have
// changed underneath it.
func (l *Loop) resumeEditing(text string, point int) {
	shouldEcho := l.host.MirrorSlaveEcho(l.cfg.AlwaysReadline, l.cfg.PasswordPromptSearch, l.tracker.Prompt())
	l.ed.SetRedisplayMode(!l.cfg.MultiLine, !shouldEcho)
	l.ed.SetForgetNext(!shouldEcho)

	plain, colouredMarked := l.displayPrompt()
	_ = l.ed.Resume(plain, colouredMarked, text, point)
}

// repaintColoured is called once the 40ms idle timeout fires with a
// coloured repaint pending: it redraws the prompt in colour without
// otherwise disturbing the editing buffer.
func (l *Loop) repaintColoured() {
	text, point := l.suspendEditing()
	l.resumeEditing(text, point)
}

// finishAndExit restores the terminal, flushes a trailing newline if the
// child's last chunk of output didn't end with one, and mirrors the
// child's exit status or terminating signal back to our own parent.
func (l *Loop) finishAndExit(res sig.ReapResult) {
	if !l.lastOutputHadNewline {
		l.term.WriteStr("\n")
	}
	_ = l.ed.Close()
	_ = l.term.Close()
	_ = l.host.Close()
	l.sigs.Stop()
	if l.logfile != nil {
		_ = l.logfile.Close()
	}

	if res.KilledBySignal != 0 {
		sig.SuicideBy(res.KilledBySignal)
		os.Exit(1)
	}
	os.Exit(res.ExitStatus)
}
