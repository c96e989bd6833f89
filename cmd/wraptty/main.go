// Command wraptty wraps an arbitrary interactive program with line editing,
// history and completion, transparently passing everything else through.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/petermattis/wraptty/internal/editor"
	"github.com/petermattis/wraptty/internal/wrapper"
)

var version = "dev"

func main() {
	cfg := wrapper.Config{
		HistSize: 300,
	}

	var dupPolicy int
	var debugFlag string

	root := &cobra.Command{
		Use:                   "wraptty [flags] command [args...]",
		Short:                 "Transparent line-editing wrapper for interactive command-line programs",
		Version:               version,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		SilenceErrors:         true,
		Args:                  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch dupPolicy {
			case 0:
				cfg.HistoryDupPolicy = editor.EliminateSuccessive
			case 1:
				cfg.HistoryDupPolicy = editor.KeepAll
			case 2:
				cfg.HistoryDupPolicy = editor.EliminateAll
			default:
				return fmt.Errorf("invalid --history-no-dupes value %d (want 0, 1 or 2)", dupPolicy)
			}

			if cmd.Flags().Changed("debug") {
				path := debugFlag
				if path == "" {
					path = filepath.Join(os.TempDir(), progName()+".debug")
				}
				_ = os.Setenv("WRAPTTY_DEBUG", path)
			}

			cfg.Command = args
			resolveCommandName(&cfg, args)

			if !isatty.IsTerminal(os.Stdin.Fd()) {
				// spec.md's passthrough rule: without a controlling tty on
				// stdin there's nothing to mediate, so exec the command
				// directly and let it inherit our stdio.
				argv0, err := exec.LookPath(args[0])
				if err != nil {
					return err
				}
				return syscall.Exec(argv0, args, os.Environ())
			}

			wrapper.SetIdentity(progName(), version)

			env := wrapper.ResolveEnv()
			if cfg.TermName == "" {
				cfg.TermName = env.TermName
			}

			cfg.ColourCapable = termenv.ColorProfile() != termenv.Ascii

			loop, err := wrapper.New(cfg, env)
			if err != nil {
				fatal(err)
			}
			defer func() {
				if r := recover(); r != nil {
					// Best-effort terminal reset on an otherwise-fatal panic,
					// the Go-idiomatic substitute for a SIGSEGV handler that
					// resets cooked mode before the process dies.
					loop.ResetTerminal()
					fmt.Fprintf(os.Stderr, "%s-%s: error: %v\n", progName(), version, r)
					os.Exit(1)
				}
			}()
			return loop.Run()
		},
	}
	root.SetVersionTemplate(progName() + "-" + version + "\n")
	root.Flags().BoolP("version", "v", false, "print version and exit")

	flags := root.Flags()
	flags.SetInterspersed(false)

	var alwaysReadlinePassword string
	flags.VarP(optionalStringFlag{set: &cfg.AlwaysReadline, val: &alwaysReadlinePassword}, "always-readline", "a",
		"force line editing even when the wrapped program's terminal is in raw mode")
	flags.Lookup("always-readline").NoOptDefVal = ""
	flags.BoolVarP(&cfg.AnsiColourAware, "ansi-colour-aware", "A", false,
		"treat ESC-CSI ...m sequences in child output as invisible when computing prompt width")
	flags.StringVarP(&cfg.BreakChars, "break-chars", "b", "", "word-break character set for completion")
	flags.BoolVarP(&cfg.CompleteFiles, "complete-filenames", "c", false, "enable filename completion")
	flags.StringVarP(&cfg.CommandName, "command-name", "C", "", "override the history/completion filename")
	flags.StringVarP(&debugFlag, "debug", "d", "", "enable the debug log, optionally naming its path")
	flags.Lookup("debug").NoOptDefVal = ""
	flags.IntVarP(&dupPolicy, "history-no-dupes", "D", 0, "duplicate policy: 0=successive 1=keep-all 2=all")
	flags.StringVarP(&cfg.CompletionFile, "file", "f", "", "seed the completion list from a file")
	flags.StringVarP(&cfg.HistoryFormat, "history-format", "F", "", "history decoration template")
	flags.StringVarP(&cfg.HistoryFilename, "history-filename", "H", "", "explicit history file path")
	flags.BoolVarP(&cfg.CaseInsensitive, "case-insensitive", "i", false, "case-insensitive completion (must precede -f)")
	flags.StringVarP(&cfg.LogfilePath, "logfile", "l", "", "mirror child output to a log file")
	var multiLineSep string
	flags.VarP(optionalStringFlag{set: &cfg.MultiLine, val: &multiLineSep}, "multi-line", "m",
		`enable multi-line editing, optionally naming the in-history separator (default " \\ ")`)
	flags.Lookup("multi-line").NoOptDefVal = ""
	flags.BoolVarP(&cfg.NoWarnings, "no-warnings", "n", false, "suppress warnings")
	var promptColourSpec string
	flags.VarP(optionalStringFlag{set: &cfg.PromptColourEnabled, val: &promptColourSpec}, "prompt-colour", "p",
		`paint the prompt, optionally naming the SGR spec (default "1;31")`)
	flags.Lookup("prompt-colour").NoOptDefVal = ""
	flags.StringVarP(&cfg.PreGiven, "pre-given", "P", "", "preseed the editor buffer (implies -a, one-shot)")
	flags.StringVarP(&cfg.QuoteChars, "quote-characters", "q", "", "quote character set for completion")
	flags.BoolVarP(&cfg.Remember, "remember", "r", false, "feed child output words into the completion list")
	var histSize int
	flags.IntVarP(&histSize, "histsize", "s", 300, "number of history entries (negative: read-only)")
	flags.StringVarP(&cfg.TermName, "set-terminal-name", "t", "", "override TERM in the child's environment")

	root.SetArgs(os.Args[1:])

	cobra.OnInitialize(func() {
		cfg.PromptColour = promptColourSpec
		cfg.Separator = multiLineSep
		if cfg.Separator == "" {
			cfg.Separator = " \\ "
		}
		if cfg.PreGiven != "" {
			cfg.AlwaysReadline = true
		}
		if alwaysReadlinePassword != "" {
			cfg.PasswordPromptSearch = alwaysReadlinePassword
		}
		cfg.HistSize = histSize
	})

	if err := root.Execute(); err != nil {
		fatal(err)
	}
}

// resolveCommandName implements -C's "name or N" form: a bare integer N
// selects argv[argc-N] (counting from 1 at the end of the wrapped command's
// own argument list, so N=1 is the last argument) as the command name
// instead of a literal override.
func resolveCommandName(cfg *wrapper.Config, args []string) {
	if cfg.CommandName != "" {
		if n, err := strconv.Atoi(cfg.CommandName); err == nil {
			idx := len(args) - n
			if idx >= 0 && idx < len(args) {
				cfg.CommandName = filepath.Base(args[idx])
				return
			}
		}
		return
	}
	cfg.CommandName = filepath.Base(args[0])
}

func progName() string {
	return filepath.Base(os.Args[0])
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s-%s: error: %s\n", progName(), version, err)
	os.Exit(1)
}

// optionalStringFlag implements pflag.Value for a flag that may be given
// bare (--flag) or with an argument (--flag=value): set records that the
// flag was seen at all, val captures the argument when one was given.
type optionalStringFlag struct {
	set *bool
	val *string
}

func (f optionalStringFlag) String() string {
	if f.val == nil {
		return ""
	}
	return *f.val
}

func (f optionalStringFlag) Set(s string) error {
	*f.set = true
	*f.val = s
	return nil
}

func (f optionalStringFlag) Type() string { return "string" }
