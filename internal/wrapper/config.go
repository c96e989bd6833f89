package wrapper

import (
	"os"

	"github.com/petermattis/wraptty/internal/editor"
	"github.com/petermattis/wraptty/internal/prompttrack"
)

// Config collects every CLI-flag-and-environment-derived setting the loop
// needs. cmd/wraptty parses flags into one of these; nothing below is read
// directly from os.Args or the environment once a Config exists.
type Config struct {
	// Command is the wrapped program and its arguments.
	Command []string

	AlwaysReadline       bool
	PasswordPromptSearch string

	AnsiColourAware bool

	BreakChars      string
	QuoteChars      string
	CompleteFiles   bool
	CaseInsensitive bool
	CompletionFile  string
	Remember        bool

	CommandName string

	HistoryDupPolicy editor.DupPolicy
	HistoryFilename  string
	HistoryFormat    string
	HistSize         int

	LogfilePath string

	MultiLine bool
	Separator string

	NoWarnings bool

	// PromptColourEnabled is true when -p/--prompt-colour was given at all;
	// PromptColour then holds the SGR spec (defaulting to "1;31" when the
	// flag was given without an argument).
	PromptColourEnabled bool
	PromptColour        string

	// ColourCapable gates prompt colourisation on the output profile cmd/wraptty
	// detected via termenv: degrade to plain prompts on a terminal (or a
	// non-tty redirection target) that termenv reports as having no colour
	// support, regardless of PromptColour.
	ColourCapable bool

	PreGiven string

	TermName string
}

// Env bundles the environment variables spec.md §6 names, resolved once at
// startup so the rest of the loop never calls os.Getenv directly.
type Env struct {
	Home     string // WRAPTTY_HOME, falling back to HOME
	TempDir  string // TMPDIR, TMP, TEMP, falling back to os.TempDir()
	Editor   string // WRAPTTY_EDITOR, EDITOR, VISUAL
	TermName string
}

// ResolveEnv reads the environment variables the wrapper consults.
func ResolveEnv() Env {
	home := os.Getenv("WRAPTTY_HOME")
	if home == "" {
		home = os.Getenv("HOME")
	}
	tmp := os.Getenv("TMPDIR")
	if tmp == "" {
		tmp = os.Getenv("TMP")
	}
	if tmp == "" {
		tmp = os.Getenv("TEMP")
	}
	if tmp == "" {
		tmp = os.TempDir()
	}
	ed := os.Getenv("WRAPTTY_EDITOR")
	if ed == "" {
		ed = os.Getenv("EDITOR")
	}
	if ed == "" {
		ed = os.Getenv("VISUAL")
	}
	return Env{
		Home:     home,
		TempDir:  tmp,
		Editor:   ed,
		TermName: os.Getenv("TERM"),
	}
}

func defaultPalette() prompttrack.Palette {
	return prompttrack.Palette{Attr: 1, Fg: 31}
}
