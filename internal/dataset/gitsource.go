package dataset

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
)

// gitPrefix marks a dataset argument as a git source: git+<clone URL>[#branch].
const gitPrefix = "git+"

// IsGitSource reports whether the argument names a git-hosted capture set.
func IsGitSource(arg string) bool {
	return strings.HasPrefix(arg, gitPrefix)
}

// FromGit shallow-clones a capture-set repository into cloneDir and collects
// the images found anywhere inside it. Capture sets are versioned alongside
// the model they document, so the whole tree is scanned.
func FromGit(arg, cloneDir string, maxImages int) (*Dataset, error) {
	url := strings.TrimPrefix(arg, gitPrefix)
	branch := ""
	if idx := strings.LastIndex(url, "#"); idx > 0 {
		branch = url[idx+1:]
		url = url[:idx]
	}

	slog.Info("Cloning capture set", slog.String("url", url), slog.String("branch", branch), logfields.Path(cloneDir))

	cloneOptions := &git.CloneOptions{URL: url, Depth: 1}
	if branch != "" {
		cloneOptions.ReferenceName = plumbing.ReferenceName("refs/heads/" + branch)
		cloneOptions.SingleBranch = true
	}
	if _, err := git.PlainClone(cloneDir, false, cloneOptions); err != nil {
		return nil, perrors.Wrap(err, perrors.CategoryDataset, perrors.SeverityFatal, "capture set clone failed").
			WithContext("url", url)
	}

	var images []string
	err := filepath.WalkDir(cloneDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if IsImage(d.Name()) {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, perrors.WorkspaceError("scan capture set", err).WithContext("url", url)
	}

	ds, verr := validate(arg, images, maxImages)
	if verr != nil {
		return nil, verr
	}
	return ds, nil
}
