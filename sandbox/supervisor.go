package sandbox

import (
	"context"
	"fmt"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/isdmx/pohrun/metrics"
)

// Supervisor ties the pool, workspace manager and runner together. Each Run
// provisions a private workspace, executes the interpreter in it and removes
// the workspace before returning.
type Supervisor struct {
	logger     *zap.Logger
	workspaces *WorkspaceManager
	runner     *Runner
	pool       *Pool
	limits     Limits
	version    string
}

// NewSupervisor creates a Supervisor from its parts.
func NewSupervisor(logger *zap.Logger, workspaces *WorkspaceManager, runner *Runner, pool *Pool, limits Limits) *Supervisor {
	return &Supervisor{
		logger:     logger,
		workspaces: workspaces,
		runner:     runner,
		pool:       pool,
		limits:     limits,
		version:    UnknownVersion,
	}
}

// Run executes code in the given mode. Errors are only returned when the
// execution could not be attempted at all.
func (s *Supervisor) Run(ctx context.Context, code string, mode Mode) (Result, error) {
	release, err := s.pool.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	id := xid.New().String()
	ws, err := s.workspaces.Provision(id, code)
	if err != nil {
		return Result{}, fmt.Errorf("execution %s: %w", id, err)
	}
	defer s.workspaces.Dispose(ws.Dir)

	res := s.runner.Execute(ctx, ws.SourcePath, mode, s.limits)
	res.ExecutionID = id

	if res.StdoutTruncated {
		metrics.OutputTruncationsTotal.WithLabelValues("stdout").Inc()
	}
	if res.StderrTruncated {
		metrics.OutputTruncationsTotal.WithLabelValues("stderr").Inc()
	}

	s.logger.Info("Execution finished",
		zap.String("execution_id", id),
		zap.String("mode", string(mode)),
		zap.Stringer("outcome", res.Outcome),
		zap.Int("exit_code", res.ExitCode),
		zap.Int64("ms", res.Ms),
		zap.Bool("stdout_truncated", res.StdoutTruncated),
		zap.Bool("stderr_truncated", res.StderrTruncated))

	return res, nil
}

// Supports reports whether the interpreter has a flag configured for mode.
func (s *Supervisor) Supports(mode Mode) bool {
	return s.runner.modes.Supports(mode)
}

// SetVersion records the interpreter version reported by health checks.
func (s *Supervisor) SetVersion(v string) {
	s.version = v
}

// Version returns the interpreter version string.
func (s *Supervisor) Version() string {
	return s.version
}

// InFlight returns the number of executions currently running.
func (s *Supervisor) InFlight() int {
	return s.pool.InFlight()
}

// Capacity returns the concurrency cap, zero when unbounded.
func (s *Supervisor) Capacity() int {
	return s.pool.Capacity()
}
