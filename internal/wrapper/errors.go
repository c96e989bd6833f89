package wrapper

import (
	"fmt"
	"os"

	"github.com/petermattis/wraptty/internal/term"
)

// progName and version are stamped into every fatal/warning message, in the
// "<prog>-<version>: error: <msg>" shape spec.md §7 specifies. cmd/wraptty
// overrides both via SetIdentity before constructing a Loop.
var (
	progName = "wraptty"
	version  = "dev"
)

// SetIdentity overrides the program name and version stamped into fatal and
// warning messages. cmd/wraptty calls this once, before wrapper.New, so
// messages reflect argv[0] and the build's version instead of the defaults.
func SetIdentity(prog, ver string) {
	progName = prog
	version = ver
}

// fatalf restores t's terminal mode (best effort; t may be nil before the
// terminal is opened), prints a formatted fatal error to stderr, and exits
// non-zero. It never returns.
func fatalf(t *term.Terminal, format string, args ...interface{}) {
	if t != nil {
		_ = t.Close()
	}
	fmt.Fprintf(os.Stderr, "%s-%s: error: %s\n", progName, version, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// warnf prints a non-fatal warning to stderr unless noWarnings is set.
func warnf(noWarnings bool, format string, args ...interface{}) {
	if noWarnings {
		return
	}
	fmt.Fprintf(os.Stderr, "%s-%s: warning: %s\n", progName, version, fmt.Sprintf(format, args...))
}
