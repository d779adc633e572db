package daemon

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	"git.home.luguber.info/inful/photo2stl/internal/jobstore"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
	"git.home.luguber.info/inful/photo2stl/internal/pipeline"
	"git.home.luguber.info/inful/photo2stl/internal/queue"
	"git.home.luguber.info/inful/photo2stl/internal/report"
	"git.home.luguber.info/inful/photo2stl/internal/version"
)

// HTTPServer exposes the daemon's job API, health, and metrics endpoints.
type HTTPServer struct {
	server *http.Server
	daemon *Daemon
}

// NewHTTPServer builds the server; Start binds the listener.
func NewHTTPServer(cfg *config.Config, d *Daemon) *HTTPServer {
	s := &HTTPServer{daemon: d}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/jobs", s.handleSubmitJob)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleCancelJob)
	mux.HandleFunc("GET /api/jobs/{id}/report", s.handleJobReport)
	mux.Handle("GET /metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:              cfg.Daemon.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving in a goroutine.
func (s *HTTPServer) Start() error {
	slog.Info("Starting HTTP server", "addr", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", logfields.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *HTTPServer) Stop(ctx context.Context) {
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Warn("HTTP server shutdown error", logfields.Error(err))
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":      version.Version,
		"uptime":       time.Since(s.daemon.StartTime()).Round(time.Second).String(),
		"queue_length": s.daemon.QueueLength(),
		"active_jobs":  len(s.daemon.queue.ActiveJobs()),
	})
}

type submitJobRequest struct {
	Source   string `json:"source"`
	Priority int    `json:"priority,omitempty"`
}

func (s *HTTPServer) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	priority := queue.JobPriority(req.Priority)
	if priority < queue.PriorityLow || priority > queue.PriorityHigh {
		priority = queue.PriorityNormal
	}

	if err := s.daemon.submit(req.Source, queue.TypeAPI, priority); err != nil {
		if stdErrors.Is(err, queue.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "job queue is full")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *HTTPServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.daemon.store.ListJobs(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []*jobstore.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *HTTPServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		if stdErrors.Is(err, jobstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	events, err := s.daemon.store.GetEvents(r.Context(), job.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job":    job,
		"events": events,
	})
}

func (s *HTTPServer) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.daemon.queue.Cancel(id) {
		writeError(w, http.StatusConflict, "job is not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceling"})
}

func (s *HTTPServer) handleJobReport(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		if stdErrors.Is(err, jobstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(job.Report) == 0 {
		writeError(w, http.StatusNotFound, "job has no report yet")
		return
	}

	var runReport pipeline.RunReport
	if err := json.Unmarshal(job.Report, &runReport); err != nil {
		writeError(w, http.StatusInternalServerError, "stored report is unreadable")
		return
	}

	html, err := report.HTML(&runReport)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", logfields.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
	if status >= http.StatusInternalServerError {
		slog.Error(fmt.Sprintf("HTTP %d", status), "error", msg)
	}
}
