package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	"git.home.luguber.info/inful/photo2stl/internal/jobstore"
	"git.home.luguber.info/inful/photo2stl/internal/mesh"
	"git.home.luguber.info/inful/photo2stl/internal/pipeline"
)

func testDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := config.Default()
	cfg.Daemon.Inbox = t.TempDir()
	cfg.Daemon.HistoryDB = ":memory:"
	cfg.Daemon.ListenAddr = "127.0.0.1:0"

	d, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		d.watcher.Stop()
		_ = d.scheduler.Stop()
		_ = d.store.Close()
	})
	return d
}

func doRequest(t *testing.T, d *Daemon, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	d.server.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	d := testDaemon(t)

	rec := doRequest(t, d, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	d := testDaemon(t)

	rec := doRequest(t, d, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status, "version")
	assert.Contains(t, status, "queue_length")
}

func TestSubmitJobValidation(t *testing.T) {
	d := testDaemon(t)

	rec := doRequest(t, d, http.MethodPost, "/api/jobs", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, d, http.MethodPost, "/api/jobs", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitJobQueuesAndRecords(t *testing.T) {
	d := testDaemon(t)

	body := []byte(`{"source":"/photos/vase","priority":3}`)
	rec := doRequest(t, d, http.MethodPost, "/api/jobs", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, 1, d.QueueLength())

	jobs, err := d.store.ListJobs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "/photos/vase", jobs[0].Source)
	assert.Equal(t, jobstore.StatusQueued, jobs[0].Status)
}

func TestListJobsEmpty(t *testing.T) {
	d := testDaemon(t)

	rec := doRequest(t, d, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetJobNotFound(t *testing.T) {
	d := testDaemon(t)

	rec := doRequest(t, d, http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobWithEvents(t *testing.T) {
	d := testDaemon(t)
	ctx := context.Background()

	job := &jobstore.Job{ID: uuid.NewString(), Source: "/photos/mug"}
	require.NoError(t, d.store.CreateJob(ctx, job))
	require.NoError(t, d.store.AppendEvent(ctx, job.ID, jobstore.EventQueued, "api"))

	rec := doRequest(t, d, http.MethodGet, "/api/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Job    jobstore.Job       `json:"job"`
		Events []jobstore.JobEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, job.ID, payload.Job.ID)
	require.Len(t, payload.Events, 1)
	assert.Equal(t, jobstore.EventQueued, payload.Events[0].EventType)
}

func TestCancelJobNotRunning(t *testing.T) {
	d := testDaemon(t)

	rec := doRequest(t, d, http.MethodDelete, "/api/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestJobReportEndpoint(t *testing.T) {
	d := testDaemon(t)
	ctx := context.Background()

	runReport := &pipeline.RunReport{
		Source:   "/photos/vase",
		Images:   4,
		Success:  true,
		Duration: time.Minute,
		STLPath:  "/out/result.stl",
		MeshInfo: &mesh.Info{Vertices: 100, Triangles: 196, Watertight: true},
	}
	reportJSON, err := json.Marshal(runReport)
	require.NoError(t, err)

	job := &jobstore.Job{ID: uuid.NewString(), Source: "/photos/vase"}
	require.NoError(t, d.store.CreateJob(ctx, job))
	job.Status = jobstore.StatusSucceeded
	job.Report = reportJSON
	require.NoError(t, d.store.UpdateJob(ctx, job))

	rec := doRequest(t, d, http.MethodGet, "/api/jobs/"+job.ID+"/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Reconstruction report")

	// A job without a stored report yields 404.
	bare := &jobstore.Job{ID: uuid.NewString(), Source: "x"}
	require.NoError(t, d.store.CreateJob(ctx, bare))
	rec = doRequest(t, d, http.MethodGet, "/api/jobs/"+bare.ID+"/report", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	d := testDaemon(t)

	rec := doRequest(t, d, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
