package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/photo2stl/internal/queue"
)

// Publisher mirrors job lifecycle events to a NATS subject so other systems
// (print farms, notification bots) can react to finished reconstructions.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher connects to NATS. The connection reconnects automatically; a
// broker outage only drops events, it never affects job processing.
func NewPublisher(url, subject string) (*Publisher, error) {
	if subject == "" {
		subject = "photo2stl.jobs"
	}

	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	slog.Info("NATS publisher connected", "url", url, "subject", subject)
	return &Publisher{conn: conn, subject: subject}, nil
}

// jobEvent is the wire format published per lifecycle transition.
type jobEvent struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	STLPath    string    `json:"stl_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// PublishJob publishes the job's current state.
func (p *Publisher) PublishJob(job *queue.Job) error {
	evt := jobEvent{
		ID:         job.ID,
		Source:     job.Source,
		Status:     string(job.Status),
		Error:      job.Error,
		DurationMS: job.Duration.Milliseconds(),
		Timestamp:  time.Now(),
	}
	if job.Report != nil {
		evt.STLPath = job.Report.STLPath
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	return p.conn.Publish(p.subject, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		slog.Warn("NATS drain error", "err", err)
	}
}
