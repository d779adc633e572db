// Package jobstore persists reconstruction jobs and their event history so
// the daemon survives restarts with an inspectable job ledger.
package jobstore

import (
	"context"
	"time"
)

// JobStatus is the lifecycle state of a persisted job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusCanceled  JobStatus = "canceled"
)

// Job is one reconstruction request as recorded in the ledger.
type Job struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	Priority   int           `json:"priority"`
	Status     JobStatus     `json:"status"`
	STLPath    string        `json:"stl_path,omitempty"`
	Images     int           `json:"images,omitempty"`
	Triangles  int           `json:"triangles,omitempty"`
	Watertight bool          `json:"watertight"`
	Error      string        `json:"error,omitempty"`
	Report     []byte        `json:"-"` // run report JSON, opaque to the store
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// JobEvent is one append-only entry in a job's history.
type JobEvent struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// Well-known event types.
const (
	EventQueued   = "queued"
	EventStarted  = "started"
	EventStage    = "stage"
	EventFinished = "finished"
	EventCanceled = "canceled"
)

// Store is the persistence interface for jobs and their events.
type Store interface {
	// CreateJob inserts a new job in StatusQueued.
	CreateJob(ctx context.Context, job *Job) error

	// UpdateJob overwrites the mutable fields of an existing job.
	UpdateJob(ctx context.Context, job *Job) error

	// GetJob returns the job with the given ID, or ErrNotFound.
	GetJob(ctx context.Context, id string) (*Job, error)

	// ListJobs returns the most recent jobs, newest first, up to limit.
	// A limit <= 0 returns all jobs.
	ListJobs(ctx context.Context, limit int) ([]*Job, error)

	// AppendEvent records an append-only history entry for a job.
	AppendEvent(ctx context.Context, jobID, eventType, detail string) error

	// GetEvents returns a job's history in insertion order.
	GetEvents(ctx context.Context, jobID string) ([]JobEvent, error)

	// Close releases the underlying storage.
	Close() error
}
