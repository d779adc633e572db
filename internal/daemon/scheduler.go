package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
	"git.home.luguber.info/inful/photo2stl/internal/workspace"
)

// Scheduler runs the daemon's periodic maintenance: the inbox sweep (backing
// up the fsnotify watcher) and workspace garbage collection.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler builds the gocron scheduler with both maintenance jobs.
func NewScheduler(cfg *config.Config, sweepInbox func()) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, perrors.DaemonError(fmt.Sprintf("create scheduler: %v", err))
	}

	interval, err := time.ParseDuration(cfg.Daemon.SweepInterval)
	if err != nil || interval <= 0 {
		interval = 5 * time.Minute
	}

	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sweepInbox),
		gocron.WithName("inbox-sweep"),
	); err != nil {
		return nil, perrors.DaemonError(fmt.Sprintf("schedule inbox sweep: %v", err))
	}

	retention := time.Duration(cfg.Workspace.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	baseDir := cfg.Workspace.BaseDir
	if _, err := s.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			removed, err := workspace.Sweep(baseDir, retention)
			if err != nil {
				slog.Warn("Workspace sweep failed", logfields.Error(err))
				return
			}
			if removed > 0 {
				slog.Info("Workspace sweep removed expired workspaces", "removed", removed)
			}
		}),
		gocron.WithName("workspace-gc"),
	); err != nil {
		return nil, perrors.DaemonError(fmt.Sprintf("schedule workspace gc: %v", err))
	}

	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
