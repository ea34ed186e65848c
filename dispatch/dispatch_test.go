package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/pohrun/apperror"
	"github.com/isdmx/pohrun/metrics"
	"github.com/isdmx/pohrun/ratelimit"
	"github.com/isdmx/pohrun/sandbox"
)

// MockExecutor records calls and returns a canned result.
type MockExecutor struct {
	mu        sync.Mutex
	calls     []sandbox.Mode
	result    sandbox.Result
	err       error
	supported map[sandbox.Mode]bool
}

func newMockExecutor() *MockExecutor {
	return &MockExecutor{
		result: sandbox.Result{OK: true, Stdout: "hi\n", ExitCode: 0, Outcome: sandbox.StateCompleted},
		supported: map[sandbox.Mode]bool{
			sandbox.ModeRun:      true,
			sandbox.ModeBytecode: true,
		},
	}
}

func (m *MockExecutor) Run(_ context.Context, _ string, mode sandbox.Mode) (sandbox.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mode)
	return m.result, m.err
}

func (m *MockExecutor) Supports(mode sandbox.Mode) bool {
	return m.supported[mode]
}

func (m *MockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockLimiter admits a fixed number of requests per client.
type MockLimiter struct {
	allow  bool
	admits []string
}

func (m *MockLimiter) Admit(_ context.Context, clientID string) bool {
	m.admits = append(m.admits, clientID)
	return m.allow
}

func newTestDispatcher(t *testing.T, exec Executor, limiter ratelimit.Limiter) *Dispatcher {
	t.Helper()
	return New(zaptest.NewLogger(t), exec, limiter, 16)
}

func TestDispatchRunsValidRequest(t *testing.T) {
	exec := newMockExecutor()
	limiter := &MockLimiter{allow: true}
	d := newTestDispatcher(t, exec, limiter)

	res, err := d.Dispatch(context.Background(), "1.2.3.4", Request{Code: `Write "hi"`})
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Equal(t, "hi\n", res.Stdout)
	assert.Equal(t, []sandbox.Mode{sandbox.ModeRun}, exec.calls)
	assert.Equal(t, []string{"1.2.3.4"}, limiter.admits)
}

func TestDispatchRejections(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		target  error
		message string
	}{
		{"MissingCode", Request{}, apperror.ErrValidation, "Missing code"},
		{"TooLarge", Request{Code: strings.Repeat("x", 17)}, apperror.ErrTooLarge, "code exceeds the maximum size of 16 bytes"},
		{"UnknownMode", Request{Code: "x", Mode: "compile"}, apperror.ErrValidation, `Unknown mode "compile"`},
		{"UnconfiguredMode", Request{Code: "x", Mode: "disassemble"}, apperror.ErrNotImplemented, "not yet implemented"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newMockExecutor()
			limiter := &MockLimiter{allow: true}
			d := newTestDispatcher(t, exec, limiter)

			res, err := d.Dispatch(context.Background(), "c", tt.req)
			require.ErrorIs(t, err, tt.target)

			assert.False(t, res.OK)
			assert.Equal(t, -1, res.ExitCode)
			assert.Contains(t, res.Error, tt.message)
			assert.Zero(t, exec.callCount(), "no execution for invalid input")
			assert.Empty(t, limiter.admits, "validation happens before throttling")
		})
	}
}

func TestDispatchCodeAtLimitAccepted(t *testing.T) {
	exec := newMockExecutor()
	d := newTestDispatcher(t, exec, &MockLimiter{allow: true})

	_, err := d.Dispatch(context.Background(), "c", Request{Code: strings.Repeat("x", 16)})
	require.NoError(t, err)
	assert.Equal(t, 1, exec.callCount())
}

func TestDispatchThrottled(t *testing.T) {
	exec := newMockExecutor()
	d := newTestDispatcher(t, exec, &MockLimiter{allow: false})

	before := testutil.ToFloat64(metrics.RejectionsTotal.WithLabelValues("throttled"))
	res, err := d.Dispatch(context.Background(), "c", Request{Code: "x"})

	require.ErrorIs(t, err, apperror.ErrThrottled)
	assert.Equal(t, apperror.ThrottledMessage, res.Error)
	assert.Zero(t, exec.callCount())
	assert.InDelta(t, before+1, testutil.ToFloat64(metrics.RejectionsTotal.WithLabelValues("throttled")), 0.0001)
}

func TestDispatchNthPlusOneThrottled(t *testing.T) {
	exec := newMockExecutor()
	limiter := ratelimit.NewInProcess(ratelimit.Options{Window: time.Minute, MaxRequests: 3})
	d := newTestDispatcher(t, exec, limiter)
	ctx := context.Background()

	for range 3 {
		_, err := d.Dispatch(ctx, "alice", Request{Code: "x"})
		require.NoError(t, err)
	}

	_, err := d.Dispatch(ctx, "alice", Request{Code: "x"})
	require.ErrorIs(t, err, apperror.ErrThrottled)

	_, err = d.Dispatch(ctx, "bob", Request{Code: "x"})
	require.NoError(t, err)

	assert.Equal(t, 4, exec.callCount())
}

func TestDispatchAtCapacity(t *testing.T) {
	exec := newMockExecutor()
	exec.err = sandbox.ErrAtCapacity
	d := newTestDispatcher(t, exec, &MockLimiter{allow: true})

	res, err := d.Dispatch(context.Background(), "c", Request{Code: "x"})
	require.ErrorIs(t, err, apperror.ErrAtCapacity)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
}

func TestDispatchInternalFailureIsSanitized(t *testing.T) {
	exec := newMockExecutor()
	exec.err = errors.New("mkdir /var/secret/pohlang-x: permission denied")
	d := newTestDispatcher(t, exec, &MockLimiter{allow: true})

	res, err := d.Dispatch(context.Background(), "c", Request{Code: "x"})
	require.ErrorIs(t, err, apperror.ErrInternal)

	assert.Equal(t, apperror.InternalMessage, res.Error)
	assert.NotContains(t, res.Error, "/var/secret")
	assert.Equal(t, -1, res.ExitCode)
}

func TestDispatchHandledFailureIsNotAnError(t *testing.T) {
	exec := newMockExecutor()
	exec.result = sandbox.Result{
		OK:       false,
		ExitCode: -1,
		Error:    "Execution timeout (100ms limit exceeded)",
		Outcome:  sandbox.StateTimedOut,
	}
	d := newTestDispatcher(t, exec, &MockLimiter{allow: true})

	counter := metrics.ExecutionsTotal.WithLabelValues("bytecode", "timed_out")
	before := testutil.ToFloat64(counter)

	res, err := d.Dispatch(context.Background(), "c", Request{Code: "x", Mode: "bytecode"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "100")
	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0.0001)
}
