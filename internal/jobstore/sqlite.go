package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a job ID does not exist in the store.
var ErrNotFound = errors.New("job not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and if necessary creates) the job ledger.
// Use ":memory:" for an in-memory database, or a file path for persistence.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		stl_path TEXT NOT NULL DEFAULT '',
		images INTEGER NOT NULL DEFAULT 0,
		triangles INTEGER NOT NULL DEFAULT 0,
		watertight INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		report BLOB,
		created_at INTEGER NOT NULL,
		started_at INTEGER,
		finished_at INTEGER,
		duration_ns INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);

	CREATE TABLE IF NOT EXISTS job_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		detail TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_job_events_job ON job_events(job_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateJob inserts a new job row.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.Status == "" {
		job.Status = StatusQueued
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, source, priority, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.Source, job.Priority, string(job.Status), job.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJob overwrites the mutable fields of the row with job.ID.
func (s *SQLiteStore) UpdateJob(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, stl_path = ?, images = ?, triangles = ?, watertight = ?,
			error = ?, report = ?, started_at = ?, finished_at = ?, duration_ns = ?
		 WHERE id = ?`,
		string(job.Status), job.STLPath, job.Images, job.Triangles, boolToInt(job.Watertight),
		job.Error, job.Report, unixOrNil(job.StartedAt), unixOrNil(job.FinishedAt), int64(job.Duration),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob returns the job with the given ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectJobColumns+" WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// ListJobs returns jobs newest first.
func (s *SQLiteStore) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectJobColumns + " ORDER BY created_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return jobs, nil
}

// AppendEvent records a history entry.
func (s *SQLiteStore) AppendEvent(ctx context.Context, jobID, eventType, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_events (job_id, event_type, timestamp, detail) VALUES (?, ?, ?, ?)`,
		jobID, eventType, time.Now().Unix(), detail,
	)
	if err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

// GetEvents returns a job's history in insertion order.
func (s *SQLiteStore) GetEvents(ctx context.Context, jobID string) ([]JobEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, event_type, timestamp, detail FROM job_events WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query job events: %w", err)
	}
	defer rows.Close()

	var events []JobEvent
	for rows.Next() {
		var e JobEvent
		var ts int64
		if err := rows.Scan(&e.ID, &e.JobID, &e.EventType, &ts, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan job event: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

const selectJobColumns = `SELECT id, source, priority, status, stl_path, images, triangles,
	watertight, error, report, created_at, started_at, finished_at, duration_ns FROM jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job        Job
		status     string
		watertight int
		createdAt  int64
		startedAt  sql.NullInt64
		finishedAt sql.NullInt64
		durationNS int64
	)
	err := row.Scan(&job.ID, &job.Source, &job.Priority, &status, &job.STLPath,
		&job.Images, &job.Triangles, &watertight, &job.Error, &job.Report,
		&createdAt, &startedAt, &finishedAt, &durationNS)
	if err != nil {
		return nil, err
	}
	job.Status = JobStatus(status)
	job.Watertight = watertight != 0
	job.CreatedAt = time.Unix(createdAt, 0)
	job.StartedAt = timeOrNil(startedAt)
	job.FinishedAt = timeOrNil(finishedAt)
	job.Duration = time.Duration(durationNS)
	return &job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}
