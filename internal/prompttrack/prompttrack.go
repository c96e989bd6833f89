// Package prompttrack maintains the latest prompt string inferred from
// child output, applies colourisation, and marks invisible sequences so
// prompt-width computations skip over them.
package prompttrack

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/petermattis/wraptty/internal/strutil"
)

// Palette is an ANSI attribute triple: attr selects a text attribute (0
// reset, 1 bold, ... 8), fg and bg select the foreground/background SGR
// codes. Bg is optional; zero means "not set".
type Palette struct {
	Attr, Fg, Bg int
}

// ParseSGR parses a prompt-colour spec of the form "<attr>;<fg>[;<bg>]",
// the format accepted by the --prompt-colour flag (default "1;31").
func ParseSGR(s string) (Palette, error) {
	parts := strings.Split(s, ";")
	if len(parts) < 2 || len(parts) > 3 {
		return Palette{}, fmt.Errorf("prompttrack: invalid SGR spec %q", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Palette{}, fmt.Errorf("prompttrack: invalid SGR spec %q: %w", s, err)
		}
		nums[i] = n
	}
	pal := Palette{Attr: nums[0], Fg: nums[1]}
	if len(parts) == 3 {
		pal.Bg = nums[2]
	}
	return pal, nil
}

// SGR returns the start and end escape sequences for the palette.
func (p Palette) SGR() (start, end string) {
	if p.Bg != 0 {
		start = fmt.Sprintf("\x1b[%d;%d;%dm", p.Attr, p.Fg, p.Bg)
	} else {
		start = fmt.Sprintf("\x1b[%d;%dm", p.Attr, p.Fg)
	}
	return start, "\x1b[0m"
}

// Tracker maintains the prompt inferred from child output.
type Tracker struct {
	prompt         string
	colouredPrompt string

	waitAndRecolour bool

	colouringEnabled bool
	ansiColourAware  bool
	palette          Palette

	horizontalScroll bool
	width            int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithColour enables prompt colourisation using the given palette.
func WithColour(pal Palette) Option {
	return func(t *Tracker) {
		t.colouringEnabled = true
		t.palette = pal
	}
}

// WithANSIColourAware marks ESC-CSI "...m" sequences already present in
// child output as invisible when computing prompt width, rather than
// treating them as printable junk.
func WithANSIColourAware() Option {
	return func(t *Tracker) { t.ansiColourAware = true }
}

// WithHorizontalScroll puts the tracker in single-line (horizontal-scroll)
// mode, where only the last physical screen line of a wrapped prompt is
// kept.
func WithHorizontalScroll() Option {
	return func(t *Tracker) { t.horizontalScroll = true }
}

// New creates a Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetWidth updates the terminal width used for wrap-awareness in
// GetLastScreenLine and for the SGR-would-overflow check in Colourise.
func (t *Tracker) SetWidth(w int) { t.width = w }

// Prompt returns the current uncoloured prompt.
func (t *Tracker) Prompt() string { return t.prompt }

// ColouredPrompt returns the most recently computed coloured prompt, or
// "" if none is available (colouring disabled, or Colourise declined).
func (t *Tracker) ColouredPrompt() string { return t.colouredPrompt }

// WaitAndRecolour reports whether a coloured repaint is pending; the
// event loop arms a ~40ms idle timeout while this is true and clears it
// with ClearWaitAndRecolour once the repaint has happened.
func (t *Tracker) WaitAndRecolour() bool { return t.waitAndRecolour }

// ClearWaitAndRecolour clears the pending-repaint flag.
func (t *Tracker) ClearWaitAndRecolour() { t.waitAndRecolour = false }

// Ingest processes one chunk of child output: it extends or replaces the
// tracked prompt (step 4), normalises backspace/CR sequences (step 5),
// collapses to the last screen line in horizontal-scroll mode (step 6),
// and computes (but does not paint) a coloured variant, arming
// WaitAndRecolour (step 7). The caller is responsible for steps 1, 2, 3
// and 8: suspending/resuming the editor around this call, repainting any
// previously-coloured prompt in plain form first, and writing buf to the
// terminal and logfile.
func (t *Tracker) Ingest(buf []byte) string {
	s := string(buf)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		t.prompt = s[idx+1:]
	} else {
		t.prompt = t.prompt + s
	}

	t.prompt = strutil.Unbackspace(t.prompt)
	if t.horizontalScroll {
		t.prompt = strutil.GetLastScreenLine(t.prompt, t.width)
	}

	if t.colouringEnabled {
		if coloured, ok := t.Colourise(t.prompt); ok {
			t.colouredPrompt = coloured
		} else {
			t.colouredPrompt = ""
		}
		t.waitAndRecolour = true
	}

	return t.prompt
}

// Colourise wraps the non-space portion of prompt in the tracker's
// palette's start/end SGR sequences, leaving trailing spaces outside the
// colour span (so a highlighted cursor doesn't paint the margin). It
// returns the prompt unchanged with ok=false when prompt already contains
// an ESC byte, or when adding the SGR sequences would push the
// colourised prompt's printable width past the configured terminal width.
func (t *Tracker) Colourise(prompt string) (coloured string, ok bool) {
	if strings.ContainsRune(prompt, '\x1b') {
		return prompt, false
	}

	trimmed := strings.TrimRight(prompt, " ")
	trailing := prompt[len(trimmed):]
	start, end := t.palette.SGR()
	coloured = start + trimmed + end + trailing

	if t.width > 0 {
		marked := t.MarkInvisible(coloured)
		if strutil.ColourlessLen(marked) > t.width {
			return prompt, false
		}
	}
	return coloured, true
}

// MarkInvisible brackets every ESC-CSI "...m" SGR sequence in s with the
// editor library's ignore markers, whether it came from the palette or from
// child output. It does not consult ansi-colour-aware mode; callers check
// AnsiColourAware themselves.
func (t *Tracker) MarkInvisible(s string) string {
	return strutil.MarkInvisible(s)
}

// AnsiColourAware reports whether ansi-colour-aware mode is enabled.
func (t *Tracker) AnsiColourAware() bool { return t.ansiColourAware }
