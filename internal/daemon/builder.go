package daemon

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	"git.home.luguber.info/inful/photo2stl/internal/jobstore"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
	"git.home.luguber.info/inful/photo2stl/internal/metrics"
	"git.home.luguber.info/inful/photo2stl/internal/pipeline"
	"git.home.luguber.info/inful/photo2stl/internal/queue"
)

func newJobID() string { return uuid.NewString() }

// jobBuilder adapts the one-shot pipeline runner to the queue's Runner
// interface. Each job gets its own ephemeral workspace, and every finished
// stage is appended to the job's ledger history.
type jobBuilder struct {
	cfg      *config.Config
	store    jobstore.Store
	recorder metrics.Recorder
}

func (b *jobBuilder) Run(ctx context.Context, job *queue.Job) (*pipeline.RunReport, error) {
	return pipeline.Execute(ctx, b.cfg, pipeline.RunRequest{
		Inputs:        []string{job.Source},
		Recorder:      b.recorder,
		StageObserver: b.stageObserver(job.ID),
	})
}

// stageObserver records stage results as ledger events. Ledger failures are
// logged and swallowed so bookkeeping never aborts a reconstruction.
func (b *jobBuilder) stageObserver(jobID string) func(pipeline.StageResult) {
	if b.store == nil {
		return nil
	}
	return func(res pipeline.StageResult) {
		payload, err := json.Marshal(res)
		if err != nil {
			return
		}
		// The job context may already be canceled when the last stage
		// reports; use a fresh context so the event still lands.
		if err := b.store.AppendEvent(context.Background(), jobID, jobstore.EventStage, string(payload)); err != nil {
			slog.Warn("Failed to append stage event",
				logfields.JobID(jobID), logfields.Error(err))
		}
	}
}
