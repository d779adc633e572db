package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/photo2stl/internal/logfields"
)

const dirPrefix = "photo2stl-"

// Standard subdirectories inside a run workspace. Every stage addresses
// artifacts through these names only.
const (
	ImagesDir  = "images"
	SparseDir  = "sparse"
	DenseDir   = "dense"
	OpenMVSDir = "openmvs"
)

// Well-known artifact names, matching what COLMAP/OpenMVS read and write.
const (
	DatabaseFile  = "database.db"
	ScenePLY      = "scene.ply"
	SceneMVS      = "scene.mvs"
	DenseMVS      = "scene_dense.mvs"
	MeshMVS       = "scene_dense_mesh.mvs"
	RefinedMVS    = "scene_dense_mesh_refine.mvs"
	ResultSTL     = "result.stl"
	SparseModelID = "0" // mapper writes the first model under sparse/0
)

// Manager handles workspace operations (both temporary and persistent)
type Manager struct {
	baseDir    string
	dir        string
	persistent bool
}

// NewManager creates a workspace manager producing ephemeral timestamped directories.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewPersistentManager creates a workspace manager that uses a fixed directory
// (baseDir/subdirName) and does not remove it on Cleanup().
func NewPersistentManager(baseDir, subdirName string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if subdirName == "" {
		subdirName = "working"
	}
	return &Manager{
		baseDir:    baseDir,
		dir:        filepath.Join(baseDir, subdirName),
		persistent: true,
	}
}

// Create creates the workspace directory and the standard run layout.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.dir, 0o750); err != nil {
			return fmt.Errorf("failed to create persistent workspace directory: %w", err)
		}
		slog.Info("Using persistent workspace", logfields.Path(m.dir))
	} else {
		timestamp := time.Now().Format("20060102-150405")
		dir := filepath.Join(m.baseDir, dirPrefix+timestamp)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create workspace directory: %w", err)
		}
		m.dir = dir
		slog.Info("Created workspace", logfields.Path(dir))
	}

	for _, sub := range []string{ImagesDir, SparseDir, DenseDir, OpenMVSDir} {
		if _, err := m.CreateSubdir(sub); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the workspace root.
func (m *Manager) Path() string {
	return m.dir
}

// Join resolves a path inside the workspace.
func (m *Manager) Join(elem ...string) string {
	return filepath.Join(append([]string{m.dir}, elem...)...)
}

// CreateSubdir creates a subdirectory within the workspace.
func (m *Manager) CreateSubdir(name string) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	subdir := filepath.Join(m.dir, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return subdir, nil
}

// Cleanup removes the workspace directory.
// Persistent workspaces are kept; ephemeral ones are deleted.
func (m *Manager) Cleanup() error {
	if m.dir == "" {
		return nil
	}
	if m.persistent {
		slog.Debug("Skipping cleanup for persistent workspace", logfields.Path(m.dir))
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Info("Cleaned up workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}

// Sweep removes ephemeral workspaces under baseDir older than maxAge.
// Only directories carrying the photo2stl prefix are considered.
// Returns the number of removed workspaces.
func Sweep(baseDir string, maxAge time.Duration) (int, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return 0, fmt.Errorf("read workspace base dir: %w", err)
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		stamp, err := time.ParseInLocation("20060102-150405", strings.TrimPrefix(entry.Name(), dirPrefix), time.Local)
		if err != nil {
			continue
		}
		if stamp.After(cutoff) {
			continue
		}
		path := filepath.Join(baseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Failed to remove expired workspace", logfields.Path(path), logfields.Error(err))
			continue
		}
		slog.Info("Removed expired workspace", logfields.Path(path))
		removed++
	}
	return removed, nil
}
