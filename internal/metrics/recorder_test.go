package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNoopRecorderIsSafe exercises every method on the zero value.
func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("matching", time.Second)
	r.ObserveRunDuration(time.Minute)
	r.IncStageResult("matching", ResultSuccess)
	r.IncRunOutcome("success")
	r.IncToolInvocation("colmap", true)
	r.IncStageRetry("densify")
	r.IncRetryExhausted("densify")
	r.SetQueueDepth(3)
}

// TestPrometheusRecorderNilSafety ensures a nil recorder never panics.
func TestPrometheusRecorderNilSafety(t *testing.T) {
	var p *PrometheusRecorder
	p.ObserveStageDuration("matching", time.Second)
	p.IncRunOutcome("failed")
	p.SetQueueDepth(1)
}

// TestPrometheusRecorderRegisters verifies metrics land in the registry.
func TestPrometheusRecorderRegisters(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewPrometheusRecorder(reg)

	p.ObserveStageDuration("matching", 2*time.Second)
	p.ObserveRunDuration(time.Minute)
	p.IncStageResult("matching", ResultFailed)
	p.IncRunOutcome("success")
	p.IncToolInvocation("colmap", false)
	p.IncStageRetry("densify")
	p.IncRetryExhausted("densify")
	p.SetQueueDepth(5)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"photo2stl_stage_duration_seconds",
		"photo2stl_run_duration_seconds",
		"photo2stl_stage_results_total",
		"photo2stl_run_outcomes_total",
		"photo2stl_tool_invocations_total",
		"photo2stl_stage_retries_total",
		"photo2stl_stage_retry_exhausted_total",
		"photo2stl_queue_depth",
	} {
		assert.True(t, names[want], "expected metric family %s", want)
	}
}
