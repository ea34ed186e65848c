package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeRun, false},
		{"run", ModeRun, false},
		{"bytecode", ModeBytecode, false},
		{"disassemble", ModeDisassemble, false},
		{" run ", "", true},
		{"run\n", "", true},
		{"compile", "", true},
		{"RUN", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModeFlagsArgs(t *testing.T) {
	flags := ModeFlags{Run: "--run", Bytecode: "--bytecode"}

	args, err := flags.Args(ModeRun, "/tmp/ws/playground.poh")
	require.NoError(t, err)
	assert.Equal(t, []string{"--run", "/tmp/ws/playground.poh"}, args)

	args, err = flags.Args(ModeBytecode, "/tmp/ws/playground.poh")
	require.NoError(t, err)
	assert.Equal(t, []string{"--bytecode", "/tmp/ws/playground.poh"}, args)

	_, err = flags.Args(ModeDisassemble, "/tmp/ws/playground.poh")
	require.ErrorIs(t, err, ErrModeNotImplemented)
	assert.False(t, flags.Supports(ModeDisassemble))

	_, err = flags.Args(Mode("jit"), "/tmp/ws/playground.poh")
	require.ErrorIs(t, err, ErrUnknownMode)

	flags.Disassemble = "--disasm"
	assert.True(t, flags.Supports(ModeDisassemble))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "timed_out", StateTimedOut.String())
	assert.Equal(t, "canceled", StateCanceled.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateCapped.Terminal())
	assert.False(t, StateRunning.Terminal())
}
