//go:build unix

package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// shellInterpreter runs the source file as a shell script under --run, so
// tests can script the child's behaviour.
const shellInterpreter = `#!/bin/sh
case "$1" in
  --run) exec /bin/sh "$2" ;;
  --bytecode) echo "bytecode:$(basename "$2")"; exit 0 ;;
  --version) echo "PohLang 0.0.0-test"; exit 0 ;;
  *) echo "unknown flag $1" >&2; exit 64 ;;
esac
`

// writeInterpreter writes an executable script into a temp dir and returns
// its path.
func writeInterpreter(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pohlang")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o700)) //nolint:gosec // test helper
	return path
}

// writeSource writes source text into a fresh workspace-like directory.
func writeSource(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), SourceFileName)
	require.NoError(t, os.WriteFile(path, []byte(source), FilePermission))
	return path
}

var testModes = ModeFlags{Run: "--run", Bytecode: "--bytecode"}
