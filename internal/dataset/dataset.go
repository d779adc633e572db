// Package dataset collects and stages the input photographs for a
// reconstruction run. Sources are local files, a local directory, or a git
// repository holding a versioned capture set.
package dataset

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
)

// imageExtensions mirrors the formats COLMAP's feature extractor accepts.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// Dataset is a validated, ordered set of image paths ready for staging.
type Dataset struct {
	// Source describes where the images came from (path or URL), for logs
	// and the job ledger.
	Source string
	// Images are absolute paths in deterministic (sorted basename) order.
	Images []string
}

// Count returns the number of images.
func (d *Dataset) Count() int { return len(d.Images) }

// IsImage reports whether the filename has a supported image extension.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// validate enforces the dataset invariants shared by all sources.
func validate(source string, images []string, maxImages int) (*Dataset, error) {
	if len(images) == 0 {
		return nil, perrors.DatasetEmpty(source)
	}
	if maxImages > 0 && len(images) > maxImages {
		return nil, perrors.DatasetTooLarge(len(images), maxImages)
	}

	// Staging copies all images into one flat directory; duplicate basenames
	// would silently overwrite each other there.
	seen := map[string]string{}
	for _, img := range images {
		base := filepath.Base(img)
		if prev, dup := seen[base]; dup {
			return nil, perrors.New(perrors.CategoryDataset, perrors.SeverityFatal, "duplicate image filename").
				WithContext("name", base).
				WithContext("first", prev).
				WithContext("second", img)
		}
		seen[base] = img
	}

	sorted := make([]string, len(images))
	copy(sorted, images)
	sort.Slice(sorted, func(i, j int) bool {
		return filepath.Base(sorted[i]) < filepath.Base(sorted[j])
	})

	return &Dataset{Source: source, Images: sorted}, nil
}

// Stage copies the dataset images into the target directory (the workspace
// images/ subdir), preserving basenames.
func (d *Dataset) Stage(targetDir string) error {
	for _, img := range d.Images {
		if err := copyFile(img, filepath.Join(targetDir, filepath.Base(img))); err != nil {
			return perrors.WorkspaceError("stage image", err).WithContext("image", img)
		}
	}
	slog.Info("Staged dataset images", logfields.Images(len(d.Images)), logfields.Path(targetDir))
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
