package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Executor runs one piece of source text to completion. Supervisor is the
// production implementation; transports depend on this interface.
type Executor interface {
	Run(ctx context.Context, code string, mode Mode) (Result, error)
}

// CommandRunner defines an interface for executing short-lived system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// RunCommand executes the given command with arguments
func (RealCommandRunner) RunCommand(ctx context.Context, args []string) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, errors.New("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // binary comes from operator config

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", "", -1, err
		}
		return stdoutBuf.String(), stderrBuf.String(), exitErr.ExitCode(), nil
	}

	return stdoutBuf.String(), stderrBuf.String(), 0, nil
}

// UnknownVersion is reported when the interpreter cannot be probed.
const UnknownVersion = "unknown"

// ProbeVersion asks the interpreter for its version string.
func ProbeVersion(ctx context.Context, runner CommandRunner, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	stdout, stderr, exitCode, err := runner.RunCommand(ctx, []string{binary, "--version"})
	if err != nil {
		return UnknownVersion, fmt.Errorf("probe %s: %w", binary, err)
	}
	if exitCode != 0 {
		return UnknownVersion, fmt.Errorf("probe %s: exit code %d: %s", binary, exitCode, strings.TrimSpace(stderr))
	}

	version := strings.TrimSpace(stdout)
	if version == "" {
		return UnknownVersion, nil
	}
	if i := strings.IndexByte(version, '\n'); i >= 0 {
		version = strings.TrimSpace(version[:i])
	}
	return version, nil
}

// FileSystem defines an interface for the file system operations a workspace needs
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// File permission constants
const (
	DirPermission  = 0o700
	FilePermission = 0o600
)

// Workspace naming
const (
	WorkspacePrefix = "pohlang-"
	SourceFileName  = "playground.poh"
)
