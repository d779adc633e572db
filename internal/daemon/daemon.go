// Package daemon runs photo2stl in continuous mode: an inbox watcher and an
// HTTP API feed a bounded job queue, each job runs the full reconstruction
// pipeline, and outcomes land in a SQLite ledger.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/jobstore"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
	"git.home.luguber.info/inful/photo2stl/internal/metrics"
	"git.home.luguber.info/inful/photo2stl/internal/queue"
	prom "github.com/prometheus/client_golang/prometheus"
)

// Daemon wires the continuous-mode components together.
type Daemon struct {
	cfg       *config.Config
	store     jobstore.Store
	queue     *queue.Queue
	watcher   *InboxWatcher
	scheduler *Scheduler
	server    *HTTPServer
	publisher *Publisher
	recorder  metrics.Recorder
	registry  *prom.Registry
	startTime time.Time
}

// New builds a daemon from configuration. The returned daemon owns its
// stores and connections; Run releases them on shutdown.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg.Daemon.Inbox == "" {
		return nil, perrors.DaemonError("daemon.inbox must be configured")
	}
	if err := os.MkdirAll(cfg.Daemon.Inbox, 0o750); err != nil {
		return nil, perrors.WorkspaceError("create inbox", err)
	}

	store, err := jobstore.NewSQLiteStore(cfg.Daemon.HistoryDB)
	if err != nil {
		return nil, perrors.DaemonError(fmt.Sprintf("open job ledger: %v", err))
	}

	registry := prom.NewRegistry()
	d := &Daemon{
		cfg:       cfg,
		store:     store,
		recorder:  metrics.NewPrometheusRecorder(registry),
		registry:  registry,
		startTime: time.Now(),
	}

	if cfg.Daemon.NATSURL != "" {
		pub, err := NewPublisher(cfg.Daemon.NATSURL, cfg.Daemon.NATSSubject)
		if err != nil {
			// NATS is an optional side channel; a dead broker should not
			// keep reconstructions from running.
			slog.Warn("NATS unavailable, job events will not be published",
				logfields.Error(err))
		} else {
			d.publisher = pub
		}
	}

	runner := &jobBuilder{cfg: cfg, store: store, recorder: d.recorder}
	d.queue = queue.New(cfg.Daemon.QueueSize, cfg.Daemon.Workers, runner)
	d.queue.SetRecorder(d.recorder)
	d.queue.SetEventSink(&ledgerSink{store: store, publisher: d.publisher})

	d.watcher, err = NewInboxWatcher(cfg, d.enqueueSource)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	d.scheduler, err = NewScheduler(cfg, d.watcher.SweepInbox)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	d.server = NewHTTPServer(cfg, d)
	return d, nil
}

// Run starts all components and blocks until the context is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("Starting daemon",
		logfields.Path(d.cfg.Daemon.Inbox),
		"listen_addr", d.cfg.Daemon.ListenAddr)

	d.queue.Start(ctx)
	if err := d.watcher.Start(ctx); err != nil {
		return err
	}
	d.scheduler.Start()
	if err := d.server.Start(); err != nil {
		return err
	}

	// Catch anything dropped into the inbox before the watcher came up.
	d.watcher.SweepInbox()

	<-ctx.Done()
	return d.shutdown()
}

func (d *Daemon) shutdown() error {
	slog.Info("Shutting down daemon")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d.server.Stop(shutdownCtx)
	if err := d.scheduler.Stop(); err != nil {
		slog.Warn("Scheduler shutdown error", logfields.Error(err))
	}
	d.watcher.Stop()
	d.queue.Stop(shutdownCtx)
	if d.publisher != nil {
		d.publisher.Close()
	}
	if err := d.store.Close(); err != nil {
		slog.Warn("Job ledger close error", logfields.Error(err))
	}

	slog.Info("Daemon stopped")
	return nil
}

// enqueueSource creates a ledger entry and queues a reconstruction for an
// inbox capture directory.
func (d *Daemon) enqueueSource(source string, jobType queue.JobType) error {
	return d.submit(source, jobType, queue.PriorityNormal)
}

func (d *Daemon) submit(source string, jobType queue.JobType, priority queue.JobPriority) error {
	job := &queue.Job{
		ID:        newJobID(),
		Source:    source,
		Type:      jobType,
		Priority:  priority,
		CreatedAt: time.Now(),
	}

	record := &jobstore.Job{
		ID:        job.ID,
		Source:    source,
		Priority:  int(priority),
		CreatedAt: job.CreatedAt,
	}
	ctx := context.Background()
	if err := d.store.CreateJob(ctx, record); err != nil {
		return perrors.DaemonError(fmt.Sprintf("record job: %v", err))
	}
	_ = d.store.AppendEvent(ctx, job.ID, jobstore.EventQueued, string(jobType))

	if err := d.queue.Enqueue(job); err != nil {
		record.Status = jobstore.StatusFailed
		record.Error = err.Error()
		_ = d.store.UpdateJob(ctx, record)
		return err
	}

	slog.Info("Job queued",
		logfields.JobID(job.ID),
		logfields.JobSource(source),
		logfields.JobPriority(int(priority)))
	return nil
}

// QueueLength reports the number of waiting jobs.
func (d *Daemon) QueueLength() int { return d.queue.Length() }

// StartTime reports when the daemon came up.
func (d *Daemon) StartTime() time.Time { return d.startTime }

// markerPath returns the ready-marker location for a capture directory.
func markerPath(cfg *config.Config, dir string) string {
	return filepath.Join(dir, cfg.Daemon.MarkerFile)
}
