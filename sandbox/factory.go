package sandbox

import (
	"context"
	"os/exec"

	"go.uber.org/zap"

	"github.com/isdmx/pohrun/config"
)

// New builds a Supervisor from the application configuration and probes the
// interpreter version. A missing interpreter is logged, not fatal: each
// request then reports a spawn failure until the operator fixes the path.
func New(logger *zap.Logger, cfg *config.Config) *Supervisor {
	return NewWithCommandRunner(logger, cfg, RealCommandRunner{})
}

// NewWithCommandRunner is New with an injectable CommandRunner for the
// version probe.
func NewWithCommandRunner(logger *zap.Logger, cfg *config.Config, cmdRunner CommandRunner) *Supervisor {
	modes := ModeFlags{
		Run:         cfg.Interpreter.Modes.Run,
		Bytecode:    cfg.Interpreter.Modes.Bytecode,
		Disassemble: cfg.Interpreter.Modes.Disassemble,
	}

	runner := NewRunner(logger, cfg.Interpreter.Binary, modes, WithEnv(cfg.Interpreter.Env))
	workspaces := NewWorkspaceManager(logger, cfg.Sandbox.WorkspaceRoot)
	pool := NewPool(cfg.Sandbox.MaxConcurrent, cfg.GetQueueTimeout())

	sup := NewSupervisor(logger, workspaces, runner, pool, Limits{
		Timeout:        cfg.GetTimeout(),
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
	})

	if _, err := exec.LookPath(cfg.Interpreter.Binary); err != nil {
		logger.Warn("Interpreter binary not found",
			zap.String("binary", cfg.Interpreter.Binary),
			zap.Error(err))
	}

	version, err := ProbeVersion(context.Background(), cmdRunner, cfg.Interpreter.Binary)
	if err != nil {
		logger.Warn("Failed to probe interpreter version", zap.Error(err))
	}
	sup.SetVersion(version)

	logger.Info("Execution supervisor ready",
		zap.String("binary", cfg.Interpreter.Binary),
		zap.String("version", version),
		zap.Duration("timeout", cfg.GetTimeout()),
		zap.Int("max_output_bytes", cfg.Sandbox.MaxOutputBytes),
		zap.Int("max_concurrent", cfg.Sandbox.MaxConcurrent))

	return sup
}
