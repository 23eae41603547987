package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docsync/internal/logfields"
)

// Manager handles the persistent clone root and per-repository directories.
type Manager struct {
	rootDir string
}

// NewManager creates a workspace manager rooted at rootDir.
func NewManager(rootDir string) *Manager {
	if rootDir == "" {
		rootDir = filepath.Join(os.TempDir(), "docsync-workspace")
	}
	return &Manager{rootDir: rootDir}
}

// Ensure creates the workspace root if it does not exist.
func (m *Manager) Ensure() error {
	if err := os.MkdirAll(m.rootDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	slog.Debug("Using workspace", logfields.Path(m.rootDir))
	return nil
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.rootDir
}

// RepoDir returns the working-copy directory for a repository. Owner and name
// are path segments, never interpreted, so both are sanitized against
// traversal before joining.
func (m *Manager) RepoDir(owner, name string) string {
	return filepath.Join(m.rootDir, sanitize(owner), sanitize(name))
}

// EnsureRepoDir creates the parent directory for a repository working copy
// so a clone can populate it, returning the working-copy path.
func (m *Manager) EnsureRepoDir(owner, name string) (string, error) {
	dir := m.RepoDir(owner, name)
	if err := os.MkdirAll(filepath.Dir(dir), 0o750); err != nil {
		return "", fmt.Errorf("failed to create repository parent directory: %w", err)
	}
	return dir, nil
}

// RemoveRepoDir deletes a repository working copy. Used when the remote is
// gone or the copy must be recloned from scratch.
func (m *Manager) RemoveRepoDir(owner, name string) error {
	dir := m.RepoDir(owner, name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove repository directory: %w", err)
	}
	slog.Info("Removed working copy", logfields.Path(dir))
	return nil
}

// HasRepoDir reports whether a working copy already exists (an incremental
// fetch can be attempted instead of a fresh clone).
func (m *Manager) HasRepoDir(owner, name string) bool {
	info, err := os.Stat(filepath.Join(m.RepoDir(owner, name), ".git"))
	return err == nil && info.IsDir()
}

func sanitize(segment string) string {
	segment = strings.ReplaceAll(segment, string(os.PathSeparator), "_")
	segment = strings.ReplaceAll(segment, "..", "_")
	if segment == "" {
		return "_"
	}
	return segment
}
