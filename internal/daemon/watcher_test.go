package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	"git.home.luguber.info/inful/photo2stl/internal/queue"
)

type enqueueRecorder struct {
	mu    sync.Mutex
	calls []string
	types []queue.JobType
}

func (r *enqueueRecorder) enqueue(source string, jobType queue.JobType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, source)
	r.types = append(r.types, jobType)
	return nil
}

func (r *enqueueRecorder) sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func watcherConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Daemon.Inbox = t.TempDir()
	cfg.Daemon.DebounceMS = 50
	return cfg
}

func waitForEnqueue(t *testing.T, rec *enqueueRecorder, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.sources()) >= n {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected %d enqueued jobs, got %d", n, len(rec.sources()))
}

func TestWatcherEnqueuesOnMarker(t *testing.T) {
	cfg := watcherConfig(t)
	rec := &enqueueRecorder{}

	w, err := NewInboxWatcher(cfg, rec.enqueue)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	capture := filepath.Join(cfg.Daemon.Inbox, "vase")
	require.NoError(t, os.MkdirAll(capture, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(capture, "img1.jpg"), []byte("x"), 0o640))
	require.NoError(t, os.WriteFile(markerPath(cfg, capture), nil, 0o640))

	waitForEnqueue(t, rec, 1)
	assert.Equal(t, []string{capture}, rec.sources())
	assert.Equal(t, queue.TypeInbox, rec.types[0])

	// The marker must be consumed so the job is not re-enqueued.
	_, err = os.Stat(markerPath(cfg, capture))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(markerPath(cfg, capture) + doneSuffix)
	assert.NoError(t, err)
}

func TestWatcherIgnoresDirsWithoutMarker(t *testing.T) {
	cfg := watcherConfig(t)
	rec := &enqueueRecorder{}

	w, err := NewInboxWatcher(cfg, rec.enqueue)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	capture := filepath.Join(cfg.Daemon.Inbox, "incomplete")
	require.NoError(t, os.MkdirAll(capture, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(capture, "img1.jpg"), []byte("x"), 0o640))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, rec.sources())
}

func TestSweepInboxPicksUpPreexistingCaptures(t *testing.T) {
	cfg := watcherConfig(t)
	rec := &enqueueRecorder{}

	// Capture dropped in before the daemon started.
	capture := filepath.Join(cfg.Daemon.Inbox, "statue")
	require.NoError(t, os.MkdirAll(capture, 0o750))
	require.NoError(t, os.WriteFile(markerPath(cfg, capture), nil, 0o640))

	w, err := NewInboxWatcher(cfg, rec.enqueue)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	w.SweepInbox()
	waitForEnqueue(t, rec, 1)
	assert.Equal(t, []string{capture}, rec.sources())
}

func TestSweepInboxIgnoresConsumedMarkers(t *testing.T) {
	cfg := watcherConfig(t)
	rec := &enqueueRecorder{}

	capture := filepath.Join(cfg.Daemon.Inbox, "done-already")
	require.NoError(t, os.MkdirAll(capture, 0o750))
	require.NoError(t, os.WriteFile(markerPath(cfg, capture)+doneSuffix, nil, 0o640))

	w, err := NewInboxWatcher(cfg, rec.enqueue)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	w.SweepInbox()
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, rec.sources())
}
