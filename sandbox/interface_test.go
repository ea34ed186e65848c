package sandbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCommandRunner implements CommandRunner for testing
type MockCommandRunner struct {
	calls    [][]string
	stdout   string
	stderr   string
	exitCode int
	err      error
}

func (m *MockCommandRunner) RunCommand(_ context.Context, args []string) (stdout, stderr string, exitCode int, err error) {
	m.calls = append(m.calls, args)
	return m.stdout, m.stderr, m.exitCode, m.err
}

func TestProbeVersion(t *testing.T) {
	t.Run("FirstLine", func(t *testing.T) {
		runner := &MockCommandRunner{stdout: "PohLang 0.6.2\nbuild abc\n"}
		v, err := ProbeVersion(context.Background(), runner, "pohlang")
		require.NoError(t, err)
		assert.Equal(t, "PohLang 0.6.2", v)
		assert.Equal(t, [][]string{{"pohlang", "--version"}}, runner.calls)
	})

	t.Run("EmptyOutput", func(t *testing.T) {
		v, err := ProbeVersion(context.Background(), &MockCommandRunner{}, "pohlang")
		require.NoError(t, err)
		assert.Equal(t, UnknownVersion, v)
	})

	t.Run("NonZeroExit", func(t *testing.T) {
		runner := &MockCommandRunner{stderr: "bad flag\n", exitCode: 2}
		v, err := ProbeVersion(context.Background(), runner, "pohlang")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad flag")
		assert.Equal(t, UnknownVersion, v)
	})

	t.Run("StartFailure", func(t *testing.T) {
		runner := &MockCommandRunner{err: errors.New("executable file not found")}
		v, err := ProbeVersion(context.Background(), runner, "pohlang")
		require.Error(t, err)
		assert.Equal(t, UnknownVersion, v)
	})
}

func TestRealCommandRunner(t *testing.T) {
	_, _, _, err := RealCommandRunner{}.RunCommand(context.Background(), nil)
	require.Error(t, err)

	_, _, code, err := RealCommandRunner{}.RunCommand(context.Background(), []string{"/nonexistent/binary/for/tests"})
	require.Error(t, err)
	assert.Equal(t, -1, code)
}
