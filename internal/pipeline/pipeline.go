package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
	"git.home.luguber.info/inful/photo2stl/internal/metrics"
	"git.home.luguber.info/inful/photo2stl/internal/retry"
)

// DefaultRegistry returns a registry holding every reconstruction stage.
func DefaultRegistry() *CommandRegistry {
	r := NewCommandRegistry()
	r.Register(NewStageImagesCommand())
	r.Register(NewFeatureExtractionCommand())
	r.Register(NewMatchingCommand())
	r.Register(NewSparseReconstructionCommand())
	r.Register(NewModelConversionCommand())
	r.Register(NewSceneImportCommand())
	r.Register(NewDensifyCommand())
	r.Register(NewMeshReconstructionCommand())
	r.Register(NewMeshRefinementCommand())
	r.Register(NewTexturingCommand())
	r.Register(NewSTLExportCommand())
	return r
}

// Pipeline executes a validated plan against a RunState, applying the retry
// policy to transient stage failures and reporting metrics per stage.
type Pipeline struct {
	plan     *Plan
	policy   retry.Policy
	metrics  metrics.Recorder
	observer func(StageResult)

	// sleep is replaceable in tests so backoff does not slow them down.
	sleep func(context.Context, time.Duration) error
}

// New creates a pipeline executor. A nil recorder defaults to NoopRecorder.
func New(plan *Plan, policy retry.Policy, rec metrics.Recorder) *Pipeline {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Pipeline{
		plan:    plan,
		policy:  policy,
		metrics: rec,
		sleep:   sleepCtx,
	}
}

// SetStageObserver registers a callback invoked with every finished stage
// result. The daemon uses it to append stage events to the job ledger.
func (p *Pipeline) SetStageObserver(fn func(StageResult)) {
	p.observer = fn
}

// Run executes the plan in order, stopping at the first non-optional failure.
// The returned report always carries the per-stage results collected so far.
func (p *Pipeline) Run(ctx context.Context, rs *RunState) (*RunReport, error) {
	start := time.Now()
	var runErr error

	for _, cmd := range p.plan.Stages() {
		result, err := p.runStage(ctx, cmd, rs)
		rs.RecordResult(result)
		if p.observer != nil {
			p.observer(result)
		}

		if err != nil {
			if optional(cmd) && !errors.Is(err, context.Canceled) {
				slog.Warn("Optional stage failed, continuing",
					logfields.Stage(string(cmd.Name())), logfields.Error(err))
				continue
			}
			runErr = err
			break
		}
	}

	report := p.buildReport(rs, start, runErr)
	p.metrics.ObserveRunDuration(report.Duration)
	p.metrics.IncRunOutcome(runOutcome(runErr))
	return report, runErr
}

// runStage executes one stage with retries. Only errors classified retryable
// are retried; everything else fails immediately.
func (p *Pipeline) runStage(ctx context.Context, cmd StageCommand, rs *RunState) (StageResult, error) {
	result := StageResult{Stage: cmd.Name(), Status: StageStatusRunning}

	if skippable, ok := cmd.(interface{ ShouldSkip(*RunState) bool }); ok && skippable.ShouldSkip(rs) {
		slog.Info("Stage skipped", logfields.Stage(string(cmd.Name())))
		result.Status = StageStatusSkipped
		p.metrics.IncStageResult(string(cmd.Name()), metrics.ResultSkipped)
		return result, nil
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; ; attempt++ {
		result.Attempts = attempt + 1
		if rs.Tail != nil {
			rs.Tail.Reset()
		}
		slog.Info("Starting stage",
			logfields.Stage(string(cmd.Name())), logfields.Attempt(attempt+1))

		exec := cmd.Execute(ctx, rs)
		if exec.Skipped {
			result.Status = StageStatusSkipped
			result.Duration = time.Since(start)
			p.metrics.IncStageResult(string(cmd.Name()), metrics.ResultSkipped)
			return result, nil
		}
		if exec.Err == nil {
			result.Status = StageStatusSuccess
			result.Duration = time.Since(start)
			p.metrics.ObserveStageDuration(string(cmd.Name()), result.Duration)
			p.metrics.IncStageResult(string(cmd.Name()), metrics.ResultSuccess)
			slog.Info("Stage completed",
				logfields.Stage(string(cmd.Name())),
				logfields.DurationMS(float64(result.Duration.Milliseconds())))
			return result, nil
		}

		lastErr = exec.Err
		if ctx.Err() != nil || !perrors.IsRetryable(lastErr) || attempt >= p.policy.MaxRetries {
			break
		}

		delay := p.policy.Delay(attempt + 1)
		slog.Warn("Stage failed, retrying",
			logfields.Stage(string(cmd.Name())),
			logfields.Attempt(attempt+1),
			logfields.Error(lastErr),
			logfields.DurationMS(float64(delay.Milliseconds())))
		p.metrics.IncStageRetry(string(cmd.Name()))
		if err := p.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	result.Duration = time.Since(start)
	result.Error = lastErr.Error()
	if rs.Tail != nil {
		result.Output = rs.Tail.Lines()
	}
	if ctx.Err() != nil {
		result.Status = StageStatusFailed
		p.metrics.IncStageResult(string(cmd.Name()), metrics.ResultCanceled)
	} else {
		result.Status = StageStatusFailed
		p.metrics.IncStageResult(string(cmd.Name()), metrics.ResultFailed)
		if perrors.IsRetryable(lastErr) {
			p.metrics.IncRetryExhausted(string(cmd.Name()))
		}
	}
	p.metrics.ObserveStageDuration(string(cmd.Name()), result.Duration)
	slog.Error("Stage failed", logfields.Stage(string(cmd.Name())), logfields.Error(lastErr))

	if ctx.Err() != nil {
		return result, lastErr
	}
	return result, perrors.StageFailed(string(cmd.Name()), lastErr)
}

func (p *Pipeline) buildReport(rs *RunState, start time.Time, runErr error) *RunReport {
	report := &RunReport{
		Images:     len(rs.Dataset.Images),
		Source:     rs.Dataset.Source,
		Stages:     rs.Results(),
		STLPath:    rs.STLPath,
		MeshInfo:   rs.MeshInfo,
		Duration:   time.Since(start),
		Success:    runErr == nil,
		FinishedAt: time.Now(),
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	return report
}

func optional(cmd StageCommand) bool {
	o, ok := cmd.(interface{ IsOptional() bool })
	return ok && o.IsOptional()
}

func runOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
