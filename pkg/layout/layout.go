package layout

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Manager computes the canonical per-project filesystem layout under the data
// root. Paths are always computed, never parsed from user input; this package
// is the only writer of project directories.
type Manager struct {
	dataRoot string
}

// NewManager creates a layout manager rooted at dataRoot
func NewManager(dataRoot string) *Manager {
	return &Manager{dataRoot: dataRoot}
}

// DataRoot returns the service data root
func (m *Manager) DataRoot() string {
	return m.dataRoot
}

// UserRoot returns the per-user root, the unit of disk quota accounting
func (m *Manager) UserRoot(userID int64) string {
	return filepath.Join(m.dataRoot, "projects", strconv.FormatInt(userID, 10))
}

// ProjectRoot returns the root of a single project's tree
func (m *Manager) ProjectRoot(userID, projectID int64) string {
	return filepath.Join(m.UserRoot(userID), strconv.FormatInt(projectID, 10))
}

// SourceRoot returns the project's source directory
func (m *Manager) SourceRoot(userID, projectID int64) string {
	return filepath.Join(m.ProjectRoot(userID, projectID), "src")
}

// SandboxRoot returns the project's dependency sandbox (venv) directory
func (m *Manager) SandboxRoot(userID, projectID int64) string {
	return filepath.Join(m.ProjectRoot(userID, projectID), "venv")
}

// LogDir returns the project's log directory
func (m *Manager) LogDir(userID, projectID int64) string {
	return filepath.Join(m.ProjectRoot(userID, projectID), "logs")
}

// LogFile returns the project's append-only run log
func (m *Manager) LogFile(userID, projectID int64) string {
	return filepath.Join(m.LogDir(userID, projectID), "run.log")
}

// StagingRoot returns the root for upload staging directories
func (m *Manager) StagingRoot() string {
	return filepath.Join(m.dataRoot, "staging")
}

// EnsureProjectDirs creates the project's src and logs directories. The venv
// directory is not created here.
func (m *Manager) EnsureProjectDirs(userID, projectID int64) error {
	for _, dir := range []string{
		m.SourceRoot(userID, projectID),
		m.LogDir(userID, projectID),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Base(dir), err)
		}
	}
	return nil
}

// RemoveProject deletes a project's entire tree
func (m *Manager) RemoveProject(userID, projectID int64) error {
	return os.RemoveAll(m.ProjectRoot(userID, projectID))
}

// SafeJoin joins rel onto root and verifies the result stays inside root
// after cleaning. It rejects absolute paths and parent escapes.
func SafeJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute path %q not allowed", rel)
	}
	joined := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes its root", rel)
	}
	return joined, nil
}

// DirSize returns the recursive byte-sum of a directory tree. Errors walking
// individual entries are swallowed; accounting is best-effort.
func DirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

// UsedBytes returns the user's current disk usage
func (m *Manager) UsedBytes(userID int64) int64 {
	return DirSize(m.UserRoot(userID))
}

// WithinQuota reports whether the user's usage plus extra stays under cap
func (m *Manager) WithinQuota(userID, extra, cap int64) bool {
	return m.UsedBytes(userID)+extra <= cap
}
