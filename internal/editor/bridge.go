package editor

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/petermattis/wraptty/internal/strutil"
)

type state struct {
	history  history
	killRing killRing
	screen   screen

	completer                 Completer
	wordBreakChars            string
	completionCaseInsensitive bool

	callEditor func(text string, point int) (string, int, error)

	// pendingInput buffers bytes fed via FeedByte that haven't yet resolved
	// into a complete key (a partial escape sequence, most commonly).
	pendingInput []byte

	// forgetNext is set by accept-and-forget to suppress the history Add that
	// would otherwise happen when the line is accepted.
	forgetNext bool

	// promptText is the prompt currently displayed with the ignore markers
	// removed (any colour escapes it carries are kept), recorded as history
	// decoration context.
	promptText string

	// lastAcceptKey records which key accepted the most recently returned
	// line, so a caller mediating a real terminal can replay the same
	// end-of-line byte to the wrapped child.
	lastAcceptKey rune

	// inputFinished is a callback invoked by the finish-or-enter command to
	// determine if the input is considered complete. If the callback is nil, or it
	// returns true, the input is considered complete and the line is accepted.
	// Otherwise, a newline is inserted into the input.
	inputFinished func(text string) bool

	// legacy, when non-nil, routes redisplay through the homegrown
	// single-line jumpscroll renderer instead of the multi-line screen
	// renderer, for terminals that can't be trusted with it and for
	// starring out password input.
	legacy        *hscroll
	hidePasswords bool
}

// Editor holds the state for reading single- or multi-line input from a
// terminal. Similar to readline, libedit, and other CLI line reading
// libraries, Editor provides support for basic editing functionality such as
// cursor movement, deletion, a kill ring, history and completion.
//
// Editor supports a common subset of the universe of key input sequences
// which are used by ~75% of the terminals in the terminfo database,
// including most modern terminals. Editor itself does not use terminfo.
// Additionally, Editor requires that the terminal handle a minimal set of
// ANSI escape sequences for rendering text:
//
//   - cursor-up:           ESC[A
//   - cursor-down:         ESC[B
//   - cursor-right:        ESC[C
//   - cursor-left:         ESC[D
//   - cursor-home:         ESC[H
//   - erase-line-to-right: ESC[K
//   - erase-screen:        ESC[2J
//
// Editor eschews using more advanced terminal operations such as
// insert/delete character and insert mode, at the cost of re-rendering more
// lines of text on editing operations. On modern hardware and networks this
// amount of data is trivial, and the benefit is that the same rendering
// logic works across terminals that differ wildly in their terminfo
// capabilities.
//
// Unlike a library that owns its own blocking read loop, Editor is driven
// one byte at a time through FeedByte: the caller (the event loop in
// internal/wrapper) owns the single blocking select/read call and is free to
// interleave editor input with output arriving from elsewhere.
type Editor struct {
	out io.Writer

	prompt []rune

	// bindings holds key bindings, mapping key input to an command to perform. If a
	// key is not present in the binding map it is inserted at the current cursor
	// position.
	bindings map[rune]command

	mu struct {
		sync.Mutex
		state state
	}
}

// New creates a new Editor using the supplied options. If no options are
// specified, the Editor writes to os.Stdout.
func New(options ...Option) *Editor {
	p := &Editor{
		out:      os.Stdout,
		bindings: make(map[rune]command),
	}

	if err := parseBindings(p.bindings, defaultBindings); err != nil {
		panic(err)
	}

	p.mu.state.screen.Init()
	p.mu.state.history.dupPolicy = EliminateSuccessive
	for _, opt := range options {
		opt.apply(p)
	}
	return p
}

// Close closes the Editor, releasing any open resources (the history file,
// most notably).
func (p *Editor) Close() error {
	return p.mu.state.history.Close()
}

// LoadHistory loads history entries from the path configured by WithHistory,
// a no-op if no history path was configured.
func (p *Editor) LoadHistory() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mu.state.history.Load()
}

// SetSize updates the terminal dimensions the Editor renders against,
// reflowing the current input if necessary.
func (p *Editor) SetSize(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mu.state.screen.SetSize(width, height)
	p.flushLocked()
}

// Begin starts reading a new line, displaying prompt (which may contain the
// invisible-span markers produced by strutil.MarkInvisible around any
// embedded colour escapes).
func (p *Editor) Begin(prompt string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompt = []rune(prompt)
	p.mu.state.promptText = strutil.StripMarkers(prompt)
	p.mu.state.screen.Reset(p.prompt)
	p.flushLocked()
	return nil
}

// flushLocked writes the pending redisplay to p.out, using the homegrown
// single-line renderer in place of the screen's own multi-line output when
// legacy mode is configured.
func (p *Editor) flushLocked() {
	s := &p.mu.state
	if s.legacy == nil {
		s.screen.Flush(p.out)
		return
	}
	s.screen.outbuf.Reset()

	logical := append([]rune(nil), []rune(s.promptText)...)
	logical = append(logical, s.screen.Text()...)
	cursorAt := len([]rune(s.promptText)) + s.screen.Position()

	var buf bytes.Buffer
	s.legacy.render(&buf, logical, cursorAt, len([]rune(s.promptText)), s.screen.width, s.hidePasswords)
	_, _ = io.Copy(p.out, &buf)
}

// FeedByte feeds a single byte of terminal input into the editor. It returns
// accepted=true once a full line has been accepted (Enter, or Ctrl-O
// accept-and-forget) — line may be empty if the user accepted a blank
// buffer, which is not the same as err == io.EOF, returned when the input
// was instead canceled on an empty buffer (Ctrl-D/Ctrl-C). Partial escape
// sequences are buffered internally across calls, so the caller need not
// reassemble multi-byte sequences itself.
func (p *Editor) FeedByte(b byte) (line string, accepted bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.mu.state.pendingInput = append(p.mu.state.pendingInput, b)
	return p.processInputLocked()
}

// SetForgetNext arms or disarms the forget-next-accepted-line flag normally
// set only by accept-and-forget (Ctrl-O). A caller mediating password
// prompts sets this for the duration of a suppressed-echo prompt so that an
// accepted line, however it was accepted, never reaches history.
func (p *Editor) SetForgetNext(forget bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mu.state.forgetNext = forget
}

// SetRedisplayMode switches between the default multi-line renderer and the
// homegrown single-line jumpscroll renderer (hiding buffer input behind
// '*' when hidePasswords is set), taking effect on the next Begin/Resume.
func (p *Editor) SetRedisplayMode(legacy, hidePasswords bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if legacy {
		if p.mu.state.legacy == nil {
			p.mu.state.legacy = &hscroll{}
		}
	} else {
		p.mu.state.legacy = nil
	}
	p.mu.state.hidePasswords = hidePasswords
}

// Suspend saves the in-progress edit buffer and cursor position so the
// terminal can be handed over to other output (the wrapped child writing to
// the screen, say) without losing what the user had typed. It does not alter
// the display; call Resume once output mediation is done to redraw the
// prompt and reinstate the saved text.
func (p *Editor) Suspend() (text string, point int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.mu.state.screen.Text()), p.mu.state.screen.Position()
}

// Resume redisplays prompt (or colouredPrompt, if non-empty, in its place)
// with the given saved text and cursor position reinstated.
func (p *Editor) Resume(prompt, colouredPrompt, text string, point int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	display := prompt
	if colouredPrompt != "" {
		display = colouredPrompt
	}
	p.prompt = []rune(display)
	p.mu.state.promptText = strutil.StripMarkers(display)
	p.mu.state.screen.Reset(p.prompt)
	p.mu.state.screen.Insert([]rune(text)...)
	p.mu.state.screen.MoveTo(point)
	p.flushLocked()
	return nil
}

// LastAcceptKey returns the key that accepted the most recently returned
// line, or 0 if no line has been accepted yet.
func (p *Editor) LastAcceptKey() rune {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mu.state.lastAcceptKey
}

// RecordHistory adds line to history directly, bypassing the normal
// accept-a-line flow. This is used to seed history with a line the external
// editor produced when it differs from what was typed.
func (p *Editor) RecordHistory(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mu.state.history.Add(line, p.mu.state.promptText)
}

func (p *Editor) processInputLocked() (line string, accepted bool, err error) {
	s := &p.mu.state
	var dispatchErr error
	for dispatchErr == nil {
		var key rune
		origPending := s.pendingInput
		key, s.pendingInput = parseKey(s.pendingInput)
		if key == utf8.RuneError {
			break
		}
		debugPrintf(" input: %q -> %s\n",
			origPending[:len(origPending)-len(s.pendingInput)], debugKey(key))
		dispatchErr = p.dispatchKeyLocked(key)
	}

	if dispatchErr == nil || errors.Is(dispatchErr, io.EOF) || errors.Is(dispatchErr, errAccepted) {
		// Flush any buffered rendering commands.
		p.flushLocked()
	}

	if errors.Is(dispatchErr, errAccepted) {
		text := string(s.screen.Text())
		forgot := s.forgetNext
		s.forgetNext = false
		if len(text) > 0 && !forgot {
			s.history.Add(text, s.promptText)
		}
		return text, true, nil
	}

	if errors.Is(dispatchErr, io.EOF) {
		return "", false, io.EOF
	}
	return "", false, dispatchErr
}

func (p *Editor) dispatchKeyLocked(key rune) error {
	s := &p.mu.state
	cmd := p.bindings[key]
	if cmd == "" {
		cmd = cmdInsertChar
	}
	if cmd == cmdFinishOrEnter || cmd == cmdAcceptAndForget || cmd == cmdEnter {
		s.lastAcceptKey = key
	}

	if ok, err := s.killRing.Dispatch(s, cmd, key); err != nil {
		return err
	} else if ok {
		return nil
	}

	if ok, err := s.history.Dispatch(s, cmd, key); err != nil {
		return err
	} else if ok {
		return nil
	}

	if fn, ok := baseCommands[cmd]; ok {
		_, err := fn(s, key)
		return err
	}

	return nil
}
