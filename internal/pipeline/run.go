package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	"git.home.luguber.info/inful/photo2stl/internal/dataset"
	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
	"git.home.luguber.info/inful/photo2stl/internal/metrics"
	"git.home.luguber.info/inful/photo2stl/internal/retry"
	"git.home.luguber.info/inful/photo2stl/internal/toolchain"
	"git.home.luguber.info/inful/photo2stl/internal/workspace"
)

// RunRequest describes one reconstruction from inputs to STL.
type RunRequest struct {
	// Inputs are image files, a single directory, or one git+ URL.
	Inputs []string
	// Until truncates the pipeline after the named stage (empty = full run).
	Until StageName
	// OutputDir overrides the configured output directory when non-empty.
	OutputDir string
	// KeepWorkspace leaves the staging directory behind for inspection.
	KeepWorkspace bool
	// Recorder receives run metrics; nil means no metrics.
	Recorder metrics.Recorder
	// StageObserver receives every finished stage result (optional).
	StageObserver func(StageResult)
}

// Execute performs a complete reconstruction run: resolve tools, stage the
// dataset into a fresh workspace, run the stage plan, and clean up.
func Execute(ctx context.Context, cfg *config.Config, req RunRequest) (*RunReport, error) {
	tools, err := toolchain.Locate(cfg.Tools)
	if err != nil {
		return nil, err
	}

	ws := newWorkspaceManager(cfg)
	if err := ws.Create(); err != nil {
		return nil, perrors.WorkspaceError("create", err)
	}
	if !req.KeepWorkspace {
		defer func() {
			if err := ws.Cleanup(); err != nil {
				slog.Warn("Workspace cleanup failed", logfields.Error(err))
			}
		}()
	}

	ds, err := resolveDataset(req.Inputs, ws, cfg.Pipeline.MaxImages)
	if err != nil {
		return nil, err
	}
	slog.Info("Dataset resolved",
		logfields.JobSource(ds.Source), logfields.Images(ds.Count()))

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = cfg.Output.Directory
	}
	if cfg.Output.Clean {
		if err := cleanOutputDir(outputDir); err != nil {
			return nil, err
		}
	}

	until := req.Until
	if until == "" && cfg.Pipeline.StopAfter != "" {
		until = StageName(cfg.Pipeline.StopAfter)
	}
	plan, err := NewPlan(DefaultRegistry(), until)
	if err != nil {
		return nil, perrors.ValidationFailed("until", err.Error())
	}

	tail := NewOutputTail(20)
	rs := &RunState{
		Config:    cfg,
		Tools:     tools,
		Workspace: ws,
		Dataset:   ds,
		Runner:    &toolchain.Runner{Metrics: req.Recorder, Sink: tail.Add},
		Tail:      tail,
		OutputDir: outputDir,
	}

	p := New(plan, retry.FromConfig(cfg.Retry), req.Recorder)
	if req.StageObserver != nil {
		p.SetStageObserver(req.StageObserver)
	}
	return p.Run(ctx, rs)
}

func newWorkspaceManager(cfg *config.Config) *workspace.Manager {
	if cfg.Workspace.Persistent {
		return workspace.NewPersistentManager(cfg.Workspace.BaseDir, "working")
	}
	return workspace.NewManager(cfg.Workspace.BaseDir)
}

// resolveDataset supports local files, a capture directory, or a git+ URL.
// Git sources are cloned into the workspace so cleanup removes them too.
func resolveDataset(inputs []string, ws *workspace.Manager, maxImages int) (*dataset.Dataset, error) {
	if len(inputs) == 1 && dataset.IsGitSource(inputs[0]) {
		cloneDir, err := ws.CreateSubdir("capture")
		if err != nil {
			return nil, perrors.WorkspaceError("create clone directory", err)
		}
		return dataset.FromGit(inputs[0], cloneDir, maxImages)
	}
	return dataset.FromPaths(inputs, maxImages)
}

// cleanOutputDir empties the output directory without removing the directory
// itself, so a mounted or symlinked output location survives.
func cleanOutputDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return perrors.WorkspaceError("clean output directory", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return perrors.WorkspaceError("clean output directory", err)
		}
	}
	return nil
}
