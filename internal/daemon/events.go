package daemon

import (
	"context"
	"encoding/json"
	"log/slog"

	"git.home.luguber.info/inful/photo2stl/internal/jobstore"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
	"git.home.luguber.info/inful/photo2stl/internal/queue"
)

// ledgerSink records job lifecycle transitions in the SQLite ledger and, when
// a publisher is configured, mirrors them to NATS. Recording failures are
// logged and swallowed: the ledger must never block a reconstruction.
type ledgerSink struct {
	store     jobstore.Store
	publisher *Publisher
}

func (s *ledgerSink) JobStarted(ctx context.Context, job *queue.Job, worker string) {
	record := &jobstore.Job{
		ID:        job.ID,
		Source:    job.Source,
		Priority:  int(job.Priority),
		Status:    jobstore.StatusRunning,
		CreatedAt: job.CreatedAt,
		StartedAt: job.StartedAt,
	}
	if err := s.store.UpdateJob(ctx, record); err != nil {
		slog.Warn("Failed to record job start", logfields.JobID(job.ID), logfields.Error(err))
	}
	if err := s.store.AppendEvent(ctx, job.ID, jobstore.EventStarted, worker); err != nil {
		slog.Warn("Failed to append job event", logfields.JobID(job.ID), logfields.Error(err))
	}
	s.publish(job)
}

func (s *ledgerSink) JobFinished(ctx context.Context, job *queue.Job) {
	record := &jobstore.Job{
		ID:         job.ID,
		Source:     job.Source,
		Priority:   int(job.Priority),
		Status:     ledgerStatus(job.Status),
		Error:      job.Error,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
		Duration:   job.Duration,
	}
	if r := job.Report; r != nil {
		record.STLPath = r.STLPath
		record.Images = r.Images
		if r.MeshInfo != nil {
			record.Triangles = r.MeshInfo.Triangles
			record.Watertight = r.MeshInfo.Watertight
		}
		if data, err := json.Marshal(r); err == nil {
			record.Report = data
		}
	}

	if err := s.store.UpdateJob(ctx, record); err != nil {
		slog.Warn("Failed to record job finish", logfields.JobID(job.ID), logfields.Error(err))
	}
	eventType := jobstore.EventFinished
	if job.Status == queue.StatusCanceled {
		eventType = jobstore.EventCanceled
	}
	if err := s.store.AppendEvent(ctx, job.ID, eventType, string(job.Status)); err != nil {
		slog.Warn("Failed to append job event", logfields.JobID(job.ID), logfields.Error(err))
	}
	s.publish(job)
}

func (s *ledgerSink) publish(job *queue.Job) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJob(job); err != nil {
		slog.Warn("Failed to publish job event",
			logfields.JobID(job.ID), logfields.Error(err))
	}
}

func ledgerStatus(status queue.JobStatus) jobstore.JobStatus {
	switch status {
	case queue.StatusDone:
		return jobstore.StatusSucceeded
	case queue.StatusCanceled:
		return jobstore.StatusCanceled
	case queue.StatusRunning:
		return jobstore.StatusRunning
	case queue.StatusQueued:
		return jobstore.StatusQueued
	default:
		return jobstore.StatusFailed
	}
}
