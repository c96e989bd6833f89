package wrapper

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	for _, k := range []string{"WRAPTTY_HOME", "HOME", "TMPDIR", "TMP", "TEMP", "WRAPTTY_EDITOR", "EDITOR", "VISUAL", "TERM"} {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		if had {
			defer os.Setenv(k, old)
		}
	}

	t.Setenv("HOME", "/home/user")
	t.Setenv("TMP", "/tmp/scratch")
	t.Setenv("EDITOR", "nano")
	t.Setenv("TERM", "xterm-256color")

	env := ResolveEnv()
	require.Equal(t, "/home/user", env.Home)
	require.Equal(t, "/tmp/scratch", env.TempDir)
	require.Equal(t, "nano", env.Editor)
	require.Equal(t, "xterm-256color", env.TermName)
}

func TestResolveEnvPrefersWrapttySpecificVars(t *testing.T) {
	t.Setenv("WRAPTTY_HOME", "/override/home")
	t.Setenv("HOME", "/home/user")
	t.Setenv("WRAPTTY_EDITOR", "emacs")
	t.Setenv("EDITOR", "nano")
	t.Setenv("VISUAL", "vim")

	env := ResolveEnv()
	require.Equal(t, "/override/home", env.Home)
	require.Equal(t, "emacs", env.Editor)
}

func TestDefaultPalette(t *testing.T) {
	pal := defaultPalette()
	require.Equal(t, 1, pal.Attr)
	require.Equal(t, 31, pal.Fg)
}
