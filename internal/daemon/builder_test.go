package daemon

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/photo2stl/internal/jobstore"
	"git.home.luguber.info/inful/photo2stl/internal/pipeline"
)

func TestStageObserverAppendsLedgerEvents(t *testing.T) {
	store, err := jobstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	job := &jobstore.Job{
		ID:        newJobID(),
		Source:    "/captures/gnome",
		Status:    jobstore.StatusRunning,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateJob(ctx, job))

	b := &jobBuilder{store: store}
	observe := b.stageObserver(job.ID)
	require.NotNil(t, observe)

	observe(pipeline.StageResult{
		Stage:    pipeline.StageMatching,
		Status:   pipeline.StageStatusSuccess,
		Attempts: 1,
	})
	observe(pipeline.StageResult{
		Stage:  pipeline.StageSparse,
		Status: pipeline.StageStatusFailed,
		Error:  "mapper exited with 1",
		Output: []string{"ERROR: no images registered"},
	})

	events, err := store.GetEvents(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	for _, e := range events {
		assert.Equal(t, jobstore.EventStage, e.EventType)
	}

	var res pipeline.StageResult
	require.NoError(t, json.Unmarshal([]byte(events[1].Detail), &res))
	assert.Equal(t, pipeline.StageSparse, res.Stage)
	assert.Equal(t, pipeline.StageStatusFailed, res.Status)
	assert.Equal(t, []string{"ERROR: no images registered"}, res.Output)
}

func TestStageObserverWithoutStore(t *testing.T) {
	b := &jobBuilder{}
	assert.Nil(t, b.stageObserver("any"))
}
