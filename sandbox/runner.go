package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GracePeriod is how long a signaled process has to exit before SIGKILL.
const GracePeriod = time.Second

// Limits bounds a single execution.
type Limits struct {
	Timeout        time.Duration
	MaxOutputBytes int
}

// Runner starts the interpreter on a source file and supervises it.
type Runner struct {
	logger      *zap.Logger
	binary      string
	modes       ModeFlags
	env         []string
	gracePeriod time.Duration
}

// RunnerOption defines a functional option for Runner
type RunnerOption func(*Runner)

// WithEnv appends KEY=VALUE pairs to the child environment
func WithEnv(env []string) RunnerOption {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithGracePeriod overrides the SIGTERM to SIGKILL delay
func WithGracePeriod(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.gracePeriod = d
	}
}

// NewRunner creates a Runner for the given interpreter binary.
func NewRunner(logger *zap.Logger, binary string, modes ModeFlags, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger:      logger,
		binary:      binary,
		modes:       modes,
		gracePeriod: GracePeriod,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Execute runs the interpreter on sourcePath and blocks until it reaches a
// terminal state. Every failure is reported inside the Result.
//
//nolint:gocyclo,funlen // one select loop owns every timer and transition
func (r *Runner) Execute(ctx context.Context, sourcePath string, mode Mode, limits Limits) Result {
	start := time.Now()
	state := StateSpawning

	args, err := r.modes.Args(mode, sourcePath)
	if err != nil {
		return spawnFailed(start, err)
	}

	//nolint:gosec // binary comes from operator config, the source path is ours
	cmd := exec.Command(r.binary, args...)
	cmd.Dir = filepath.Dir(sourcePath)
	cmd.Env = append(os.Environ(), r.env...)
	// Once the child exits, descendants holding the pipes get this long
	// before Wait closes them.
	cmd.WaitDelay = r.gracePeriod
	setProcessGroup(cmd)

	capped := make(chan struct{})
	var capOnce sync.Once
	onCap := func() { capOnce.Do(func() { close(capped) }) }

	stdout := newCappedBuffer(limits.MaxOutputBytes, onCap)
	stderr := newCappedBuffer(limits.MaxOutputBytes, onCap)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		r.logger.Warn("Failed to start interpreter",
			zap.String("binary", r.binary),
			zap.Error(err))
		return spawnFailed(start, err)
	}
	state = StateRunning

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	timeout := time.NewTimer(limits.Timeout)
	defer timeout.Stop()

	var kill *time.Timer
	var killC <-chan time.Time
	defer func() {
		if kill != nil {
			kill.Stop()
		}
	}()

	forced := false
	done := ctx.Done()

	terminate := func(next State) {
		if state != StateRunning {
			return
		}
		state = next
		timeout.Stop()
		if err := terminateProcess(cmd); err != nil {
			r.logger.Debug("Failed to signal process group", zap.Error(err))
		}
		kill = time.NewTimer(r.gracePeriod)
		killC = kill.C
	}

	for {
		select {
		case waitErr := <-exited:
			if errors.Is(waitErr, exec.ErrWaitDelay) {
				// The child exited but left descendants holding its output.
				_ = killProcess(cmd)
			} else if waitErr != nil {
				var exitErr *exec.ExitError
				if !errors.As(waitErr, &exitErr) {
					r.logger.Warn("Wait on interpreter failed", zap.Error(waitErr))
				}
			}
			if state == StateRunning {
				state = StateCompleted
			}
			return r.finish(cmd, state, forced, start, limits, stdout, stderr)

		case <-timeout.C:
			terminate(StateTimedOut)

		case <-capped:
			capped = nil
			terminate(StateCapped)

		case <-done:
			done = nil
			terminate(StateCanceled)

		case <-killC:
			killC = nil
			forced = true
			if err := killProcess(cmd); err != nil {
				r.logger.Debug("Failed to kill process group", zap.Error(err))
			}
		}
	}
}

func (r *Runner) finish(cmd *exec.Cmd, state State, forced bool, start time.Time, limits Limits, stdout, stderr *cappedBuffer) Result {
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	res := Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExitCode:        exitCode,
		Ms:              time.Since(start).Milliseconds(),
		Outcome:         state,
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
	}

	switch state {
	case StateTimedOut:
		res.ExitCode = -1
		res.Error = fmt.Sprintf("Execution timeout (%dms limit exceeded)", limits.Timeout.Milliseconds())
	case StateCanceled:
		res.ExitCode = -1
		res.Error = "Execution canceled"
	case StateCapped:
		if forced {
			res.ExitCode = -1
		}
		res.OK = res.ExitCode == 0
	default:
		res.OK = exitCode == 0
	}

	r.logger.Debug("Interpreter finished",
		zap.Stringer("outcome", state),
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("forced", forced),
		zap.Int64("ms", res.Ms))

	return res
}

func spawnFailed(start time.Time, err error) Result {
	return Result{
		OK:       false,
		ExitCode: -1,
		Ms:       time.Since(start).Milliseconds(),
		Error:    err.Error(),
		Outcome:  StateSpawnFailed,
	}
}
