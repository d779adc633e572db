// Package queue provides the bounded reconstruction job queue used by the
// daemon. Jobs are processed by a small worker pool; the default is a single
// worker because COLMAP and OpenMVS saturate the GPU on their own.
package queue

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/photo2stl/internal/logfields"
	"git.home.luguber.info/inful/photo2stl/internal/metrics"
	"git.home.luguber.info/inful/photo2stl/internal/pipeline"
)

// JobType records where a job came from.
type JobType string

const (
	TypeManual JobType = "manual" // submitted via the jobs CLI
	TypeInbox  JobType = "inbox"  // picked up by the inbox watcher
	TypeAPI    JobType = "api"    // submitted via the HTTP API
)

// JobPriority orders competing jobs: higher priorities drain first, equal
// priorities drain in arrival order.
type JobPriority int

const (
	PriorityLow    JobPriority = 1
	PriorityNormal JobPriority = 2
	PriorityHigh   JobPriority = 3
)

// JobStatus is the in-memory lifecycle state of a queued job.
type JobStatus string

const (
	StatusQueued   JobStatus = "queued"
	StatusRunning  JobStatus = "running"
	StatusDone     JobStatus = "done"
	StatusFailed   JobStatus = "failed"
	StatusCanceled JobStatus = "canceled"
)

// Job is one reconstruction request flowing through the queue.
type Job struct {
	ID         string              `json:"id"`
	Source     string              `json:"source"`
	Type       JobType             `json:"type"`
	Priority   JobPriority         `json:"priority"`
	Status     JobStatus           `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Duration   time.Duration       `json:"duration,omitempty"`
	Error      string              `json:"error,omitempty"`
	Report     *pipeline.RunReport `json:"report,omitempty"`

	cancel context.CancelFunc
}

// Runner executes one job's full reconstruction and returns its report.
type Runner interface {
	Run(ctx context.Context, job *Job) (*pipeline.RunReport, error)
}

// EventSink receives job lifecycle notifications. The daemon wires it to the
// job ledger and, when configured, to NATS.
type EventSink interface {
	JobStarted(ctx context.Context, job *Job, worker string)
	JobFinished(ctx context.Context, job *Job)
}

// Queue is a bounded priority queue of reconstruction jobs with a worker
// pool. Pending jobs sit in a mutex-guarded slice ordered by priority; wake
// tokens tell idle workers a job is available.
type Queue struct {
	wake        chan struct{}
	workers     int
	maxSize     int
	mu          sync.RWMutex
	pending     []*Job
	active      map[string]*Job
	history     []*Job
	historySize int
	stopChan    chan struct{}
	wg          sync.WaitGroup
	runner      Runner

	recorder metrics.Recorder
	sink     EventSink
}

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = stdErrors.New("job queue is full")

// New creates a queue. The runner is required.
func New(maxSize, workers int, runner Runner) *Queue {
	if maxSize <= 0 {
		maxSize = 16
	}
	if workers <= 0 {
		workers = 1
	}
	if runner == nil {
		panic("queue.New: runner is required")
	}

	return &Queue{
		wake:        make(chan struct{}, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		active:      make(map[string]*Job),
		history:     make([]*Job, 0),
		historySize: 50,
		stopChan:    make(chan struct{}),
		runner:      runner,
		recorder:    metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder (optional).
func (q *Queue) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	q.recorder = r
}

// SetEventSink injects a lifecycle sink (optional).
func (q *Queue) SetEventSink(sink EventSink) {
	q.sink = sink
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	slog.Info("Starting job queue", "workers", q.workers, "max_size", q.maxSize)
	for i := range q.workers {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels active jobs and waits for the workers to drain.
func (q *Queue) Stop(_ context.Context) {
	close(q.stopChan)

	q.mu.Lock()
	for _, job := range q.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	q.mu.Unlock()

	q.wg.Wait()
}

// Length returns the number of jobs waiting in the queue.
func (q *Queue) Length() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}

// Enqueue adds a job. It never blocks: a full queue rejects the job so the
// caller can report backpressure instead of silently stalling.
func (q *Queue) Enqueue(job *Job) error {
	if job == nil {
		return stdErrors.New("job cannot be nil")
	}
	if job.ID == "" {
		return stdErrors.New("job ID is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.Status = StatusQueued

	q.mu.Lock()
	if len(q.pending) >= q.maxSize {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.pending = insertByPriority(q.pending, job)
	depth := len(q.pending)
	q.mu.Unlock()

	q.recorder.SetQueueDepth(depth)
	// Never blocks: wake capacity equals maxSize and one token exists per
	// pending job.
	q.wake <- struct{}{}
	return nil
}

// insertByPriority keeps pending ordered by descending priority, preserving
// arrival order within a priority.
func insertByPriority(pending []*Job, job *Job) []*Job {
	idx := len(pending)
	for i, queued := range pending {
		if queued.Priority < job.Priority {
			idx = i
			break
		}
	}
	pending = append(pending, nil)
	copy(pending[idx+1:], pending[idx:])
	pending[idx] = job
	return pending
}

// takeNext pops the highest-priority pending job, or nil when empty.
func (q *Queue) takeNext() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return job
}

// Cancel stops a running job by ID. Queued jobs cannot be canceled; they are
// skipped by the worker if the queue is stopping.
func (q *Queue) Cancel(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if job, ok := q.active[id]; ok && job.cancel != nil {
		job.cancel()
		return true
	}
	return false
}

// ActiveJobs returns copies of the currently running jobs.
func (q *Queue) ActiveJobs() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	active := make([]*Job, 0, len(q.active))
	for _, job := range q.active {
		cp := *job
		active = append(active, &cp)
	}
	return active
}

// JobSnapshot returns a copy of a job by ID (active first, then history).
func (q *Queue) JobSnapshot(id string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if j, ok := q.active[id]; ok {
		cp := *j
		return &cp, true
	}
	for _, j := range q.history {
		if j.ID == id {
			cp := *j
			return &cp, true
		}
	}
	return nil, false
}

func (q *Queue) worker(ctx context.Context, workerID string) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case <-q.wake:
			job := q.takeNext()
			if job != nil {
				q.recorder.SetQueueDepth(q.Length())
				q.processJob(ctx, job, workerID)
			}
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *Job, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel
	defer cancel()

	startTime := time.Now()
	q.mu.Lock()
	job.StartedAt = &startTime
	job.Status = StatusRunning
	q.active[job.ID] = job
	q.mu.Unlock()

	slog.Info("Job started",
		logfields.JobID(job.ID),
		logfields.JobSource(job.Source),
		logfields.Worker(workerID))
	if q.sink != nil {
		q.sink.JobStarted(jobCtx, job, workerID)
	}

	report, err := q.runner.Run(jobCtx, job)
	q.markJobFinished(job, report, err, jobCtx.Err() != nil)

	if q.sink != nil {
		// The job context may already be canceled; lifecycle recording
		// uses the queue context so it still lands in the ledger.
		q.sink.JobFinished(ctx, job)
	}
}

func (q *Queue) markJobFinished(job *Job, report *pipeline.RunReport, err error, canceled bool) {
	endTime := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()

	job.FinishedAt = &endTime
	if job.StartedAt != nil {
		job.Duration = endTime.Sub(*job.StartedAt)
	}
	job.Report = report
	delete(q.active, job.ID)
	q.addToHistory(job)

	switch {
	case err == nil:
		job.Status = StatusDone
		slog.Info("Job finished",
			logfields.JobID(job.ID),
			logfields.DurationMS(float64(job.Duration.Milliseconds())))
	case canceled:
		job.Status = StatusCanceled
		job.Error = err.Error()
		slog.Warn("Job canceled", logfields.JobID(job.ID))
	default:
		job.Status = StatusFailed
		job.Error = err.Error()
		slog.Error("Job failed", logfields.JobID(job.ID), logfields.Error(err))
	}
}

func (q *Queue) addToHistory(job *Job) {
	q.history = append(q.history, job)
	if len(q.history) > q.historySize {
		copy(q.history, q.history[len(q.history)-q.historySize:])
		q.history = q.history[:q.historySize]
	}
}
