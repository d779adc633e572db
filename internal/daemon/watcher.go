package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
	"git.home.luguber.info/inful/photo2stl/internal/queue"
)

// doneSuffix marks a capture directory whose job has been enqueued. The
// marker file is renamed rather than deleted so operators can see history in
// the inbox itself.
const doneSuffix = ".done"

// InboxWatcher monitors the inbox directory for capture sets. A capture set
// is a subdirectory of the inbox; it is considered complete when the marker
// file appears in it, which lets uploaders copy images at leisure and touch
// the marker last.
type InboxWatcher struct {
	cfg      *config.Config
	watcher  *fsnotify.Watcher
	enqueue  func(source string, jobType queue.JobType) error
	debounce time.Duration

	mu       sync.Mutex
	pending  map[string]*time.Timer
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewInboxWatcher creates the watcher. Start must be called to begin.
func NewInboxWatcher(cfg *config.Config, enqueue func(string, queue.JobType) error) (*InboxWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, perrors.DaemonError("create file watcher: " + err.Error())
	}

	debounce := time.Duration(cfg.Daemon.DebounceMS) * time.Millisecond
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	return &InboxWatcher{
		cfg:      cfg,
		watcher:  w,
		enqueue:  enqueue,
		debounce: debounce,
		pending:  map[string]*time.Timer{},
		stopChan: make(chan struct{}),
	}, nil
}

// Start watches the inbox and every existing capture directory in it.
func (w *InboxWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.cfg.Daemon.Inbox); err != nil {
		return perrors.DaemonError("watch inbox: " + err.Error())
	}

	entries, err := os.ReadDir(w.cfg.Daemon.Inbox)
	if err != nil {
		return perrors.DaemonError("read inbox: " + err.Error())
	}
	for _, e := range entries {
		if e.IsDir() {
			_ = w.watcher.Add(filepath.Join(w.cfg.Daemon.Inbox, e.Name()))
		}
	}

	slog.Info("Watching inbox",
		logfields.Path(w.cfg.Daemon.Inbox),
		"marker", w.cfg.Daemon.MarkerFile)
	go w.watchLoop(ctx)
	return nil
}

// Stop closes the watcher and cancels pending debounce timers.
func (w *InboxWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		_ = w.watcher.Close()

		w.mu.Lock()
		for _, t := range w.pending {
			t.Stop()
		}
		w.pending = map[string]*time.Timer{}
		w.mu.Unlock()
	})
}

func (w *InboxWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Inbox watcher error", logfields.Error(err))
		}
	}
}

func (w *InboxWatcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	// A new capture directory arrived: watch inside it for the marker.
	if filepath.Dir(event.Name) == filepath.Clean(w.cfg.Daemon.Inbox) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watcher.Add(event.Name)
			// The marker may have been copied in before the watch landed.
			w.maybeSchedule(event.Name)
			return
		}
	}

	if filepath.Base(event.Name) == w.cfg.Daemon.MarkerFile {
		w.maybeSchedule(filepath.Dir(event.Name))
	}
}

// maybeSchedule arms (or re-arms) the debounce timer for a capture directory
// whose marker file is present.
func (w *InboxWatcher) maybeSchedule(dir string) {
	marker := markerPath(w.cfg, dir)
	if _, err := os.Stat(marker); err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[dir]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[dir] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, dir)
		w.mu.Unlock()
		w.process(dir)
	})
}

// process consumes the marker and enqueues a job for the capture directory.
func (w *InboxWatcher) process(dir string) {
	marker := markerPath(w.cfg, dir)
	if _, err := os.Stat(marker); err != nil {
		return // already consumed
	}

	// Consume the marker first so a crash between rename and enqueue loses
	// at most one job instead of duplicating it forever.
	if err := os.Rename(marker, marker+doneSuffix); err != nil {
		slog.Warn("Failed to consume inbox marker", logfields.Path(marker), logfields.Error(err))
		return
	}

	if err := w.enqueue(dir, queue.TypeInbox); err != nil {
		slog.Error("Failed to enqueue inbox capture",
			logfields.Path(dir), logfields.Error(err))
		// Restore the marker so the next sweep retries.
		if err := os.Rename(marker+doneSuffix, marker); err != nil {
			slog.Warn("Failed to restore inbox marker", logfields.Path(marker), logfields.Error(err))
		}
	}
}

// SweepInbox scans the inbox for capture directories with an unconsumed
// marker. It backs up the watcher: captures that appeared while the daemon
// was down, or events the OS dropped, are picked up here.
func (w *InboxWatcher) SweepInbox() {
	entries, err := os.ReadDir(w.cfg.Daemon.Inbox)
	if err != nil {
		slog.Warn("Inbox sweep failed", logfields.Error(err))
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(w.cfg.Daemon.Inbox, e.Name())
		_ = w.watcher.Add(dir)
		w.maybeSchedule(dir)
	}
}
