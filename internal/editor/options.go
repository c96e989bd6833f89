package editor

import "io"

// Option defines the interface for Editor options.
type Option interface {
	apply(p *Editor)
}

type outputOption struct {
	w io.Writer
}

func (o *outputOption) apply(p *Editor) {
	p.out = o.w
}

// WithOutput allows configuring the output writer for an Editor. Tests pass a
// mock terminal; internal/wrapper passes the user's terminal, so rendering
// output does not go through the pty host's output queue.
func WithOutput(w io.Writer) Option {
	return &outputOption{w: w}
}

type sizeOption struct {
	width, height int
}

func (o *sizeOption) apply(p *Editor) {
	p.mu.state.screen.SetSize(o.width, o.height)
}

// WithSize allows configuring the initial width and height of an Editor.
// Typically, the width and height of the terminal are determined by the
// event loop via SetSize once it knows the real terminal dimensions.
func WithSize(width, height int) Option {
	return &sizeOption{width: width, height: height}
}

type inputFinishedOption struct {
	fn func(text string) bool
}

func (o inputFinishedOption) apply(p *Editor) {
	p.mu.state.inputFinished = o.fn
}

// WithInputFinished allows configuring a callback that will be invoked when
// enter is pressed to determine if the input is considered complete or not. If
// the input is not complete, a newline is instead inserted into the input.
func WithInputFinished(fn func(text string) bool) Option {
	return inputFinishedOption{fn}
}

type completerOption struct {
	fn Completer
}

func (o completerOption) apply(p *Editor) {
	p.mu.state.completer = o.fn
}

// WithCompleter configures the callback invoked on Tab to compute completion
// candidates for the word under the cursor.
func WithCompleter(fn Completer) Option {
	return completerOption{fn}
}

type wordBreakCharsOption struct {
	chars string
}

func (o wordBreakCharsOption) apply(p *Editor) {
	p.mu.state.wordBreakChars = o.chars
}

// WithWordBreakChars overrides the set of characters that delimit words for
// completion purposes. The default is defaultWordBreakChars.
func WithWordBreakChars(chars string) Option {
	return wordBreakCharsOption{chars}
}

type caseInsensitiveCompletionOption struct{}

func (caseInsensitiveCompletionOption) apply(p *Editor) {
	p.mu.state.completionCaseInsensitive = true
}

// WithCaseInsensitiveCompletion makes multi-candidate completion compute its
// common prefix ignoring case.
func WithCaseInsensitiveCompletion() Option {
	return caseInsensitiveCompletionOption{}
}

type callEditorOption struct {
	fn func(text string, point int) (string, int, error)
}

func (o callEditorOption) apply(p *Editor) {
	p.mu.state.callEditor = o.fn
}

// WithCallEditor configures the callback invoked by the call-editor command
// (bound to Control-^) to hand the current buffer off to an external editor.
// It receives the current text and cursor position and returns the replaced
// text and cursor position.
func WithCallEditor(fn func(text string, point int) (string, int, error)) Option {
	return callEditorOption{fn}
}

type legacyRedisplayOption struct {
	hidePasswords bool
}

func (o legacyRedisplayOption) apply(p *Editor) {
	p.mu.state.legacy = &hscroll{}
	p.mu.state.hidePasswords = o.hidePasswords
}

// WithLegacyRedisplay switches the Editor to the homegrown single-line
// jumpscroll renderer in place of the default multi-line one, for
// terminals that can't be trusted to track absolute cursor position, and
// optionally stars out buffer input past the prompt (password entry).
func WithLegacyRedisplay(hidePasswords bool) Option {
	return legacyRedisplayOption{hidePasswords: hidePasswords}
}

type historyOption struct {
	path    string
	maxSize int
}

func (o historyOption) apply(p *Editor) {
	p.mu.state.history.path = o.path
	p.mu.state.history.maxSize = o.maxSize
}

// WithHistory configures the history file path and maximum number of
// entries. A negative maxSize puts history into read-only (stifled) mode:
// up to -maxSize entries are loaded and available for recall, but the file
// is never appended to. The caller must still invoke (*Editor).LoadHistory
// before first use.
func WithHistory(path string, maxSize int) Option {
	return historyOption{path: path, maxSize: maxSize}
}

type historyDupPolicyOption struct {
	policy DupPolicy
}

func (o historyDupPolicyOption) apply(p *Editor) {
	p.mu.state.history.dupPolicy = o.policy
}

// WithHistoryDupPolicy configures how duplicate entries are elided from
// history. The default is EliminateSuccessive.
func WithHistoryDupPolicy(policy DupPolicy) Option {
	return historyDupPolicyOption{policy}
}

type historyDecorationOption struct {
	format  string
	cmdName string
}

func (o historyDecorationOption) apply(p *Editor) {
	p.mu.state.history.decorationFormat = o.format
	p.mu.state.history.cmdName = o.cmdName
}

// WithHistoryDecoration configures a decoration template (see
// internal/historystore.Decorate) appended to every entry written to the
// history file, and the command name substituted for %C.
func WithHistoryDecoration(format, cmdName string) Option {
	return historyDecorationOption{format: format, cmdName: cmdName}
}
