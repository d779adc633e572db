package dataset

import (
	"os"
	"path/filepath"

	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
)

// FromPaths builds a dataset from explicit file/directory arguments.
// A single directory argument is scanned; file arguments are taken as-is and
// must be supported image formats.
func FromPaths(paths []string, maxImages int) (*Dataset, error) {
	if len(paths) == 1 {
		if info, err := os.Stat(paths[0]); err == nil && info.IsDir() {
			return FromDir(paths[0], maxImages)
		}
	}

	var images []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, perrors.WorkspaceError("resolve image path", err).WithContext("path", p)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, perrors.New(perrors.CategoryDataset, perrors.SeverityFatal, "image file not found").
				WithContext("path", p)
		}
		if !IsImage(abs) {
			return nil, perrors.New(perrors.CategoryDataset, perrors.SeverityFatal, "unsupported image format").
				WithContext("path", p)
		}
		images = append(images, abs)
	}
	return validate(joinSource(paths), images, maxImages)
}

// FromDir scans a directory (non-recursive) for supported images.
func FromDir(dir string, maxImages int) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, perrors.WorkspaceError("read dataset directory", err).WithContext("path", dir)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, perrors.WorkspaceError("resolve image path", err).WithContext("path", entry.Name())
		}
		images = append(images, abs)
	}
	return validate(dir, images, maxImages)
}

func joinSource(paths []string) string {
	if len(paths) == 1 {
		return paths[0]
	}
	return filepath.Dir(paths[0])
}
