package sandbox

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/isdmx/pohrun/metrics"
)

// ErrWorkspace is returned when a workspace cannot be provisioned.
var ErrWorkspace = errors.New("workspace unavailable")

// Workspace is the private directory of one execution.
type Workspace struct {
	Dir        string
	SourcePath string
}

// WorkspaceManager creates and destroys per-execution directories.
type WorkspaceManager struct {
	logger *zap.Logger
	fs     FileSystem
	root   string
}

// WorkspaceOption defines a functional option for WorkspaceManager
type WorkspaceOption func(*WorkspaceManager)

// WithFileSystem sets the FileSystem used by the manager
func WithFileSystem(fs FileSystem) WorkspaceOption {
	return func(m *WorkspaceManager) {
		m.fs = fs
	}
}

// NewWorkspaceManager creates a manager rooted at root. An empty root means
// the OS temp directory.
func NewWorkspaceManager(logger *zap.Logger, root string, opts ...WorkspaceOption) *WorkspaceManager {
	m := &WorkspaceManager{
		logger: logger,
		fs:     RealFileSystem{},
		root:   root,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Provision creates a fresh directory holding the source file. On failure
// nothing is left behind.
func (m *WorkspaceManager) Provision(executionID, source string) (Workspace, error) {
	if m.root != "" {
		if err := m.fs.MkdirAll(m.root, DirPermission); err != nil {
			return Workspace{}, fmt.Errorf("%w: create root %s: %w", ErrWorkspace, m.root, err)
		}
	}

	dir, err := m.fs.MkdirTemp(m.root, WorkspacePrefix+executionID+"-")
	if err != nil {
		return Workspace{}, fmt.Errorf("%w: create directory: %w", ErrWorkspace, err)
	}

	sourcePath := filepath.Join(dir, SourceFileName)
	if err := m.fs.WriteFile(sourcePath, []byte(source), FilePermission); err != nil {
		m.Dispose(dir)
		return Workspace{}, fmt.Errorf("%w: write source: %w", ErrWorkspace, err)
	}

	return Workspace{Dir: dir, SourcePath: sourcePath}, nil
}

// Dispose removes dir recursively. A missing directory counts as removed.
// Failures are logged and counted, never returned.
func (m *WorkspaceManager) Dispose(dir string) {
	if dir == "" {
		return
	}

	if err := m.fs.RemoveAll(dir); err != nil {
		metrics.WorkspaceCleanupFailuresTotal.Inc()
		m.logger.Warn("Failed to remove workspace",
			zap.String("dir", dir),
			zap.Error(err))
	}
}
