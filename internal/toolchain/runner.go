package toolchain

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
	"git.home.luguber.info/inful/photo2stl/internal/metrics"
)

// Result captures the observable outcome of a tool invocation.
type Result struct {
	ExitCode int
	Duration time.Duration
}

// LineSink receives streamed subprocess output lines. Optional.
type LineSink func(line string)

// Runner invokes external tools with streamed output.
type Runner struct {
	// Sink, when set, additionally receives every output line.
	Sink LineSink
	// Metrics counts tool invocations; nil means no metrics.
	Metrics metrics.Recorder
}

func (r *Runner) recorder() metrics.Recorder {
	if r.Metrics != nil {
		return r.Metrics
	}
	return metrics.NoopRecorder{}
}

// Run starts the binary with the given args, streaming combined stdout/stderr
// line-by-line into the debug log tagged with the stage name. Blocks until
// the process exits or ctx is canceled. Non-zero exits come back as
// retryable toolchain errors.
func (r *Runner) Run(ctx context.Context, stage, bin string, args []string, workDir string) (Result, error) {
	tool := filepath.Base(bin)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = workDir

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	slog.Info("Running external tool",
		logfields.Stage(stage),
		logfields.Tool(tool),
		slog.Any("args", args))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		r.recorder().IncToolInvocation(tool, false)
		return Result{ExitCode: -1}, perrors.ToolStartError(tool, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		// COLMAP emits long progress lines; give the scanner headroom.
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			slog.Debug(line, logfields.Stage(stage), logfields.Tool(tool))
			if r.Sink != nil {
				r.Sink(line)
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Warn("Tool output not line-scannable",
				logfields.Tool(tool), logfields.Error(err))
		}
		// The scanner stops on over-long lines; keep draining so the copy
		// into the pipe never blocks and Wait can return.
		_, _ = io.Copy(io.Discard, pr)
	}()

	waitErr := cmd.Wait()
	_ = pw.Close()
	<-done

	res := Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	r.recorder().IncToolInvocation(tool, waitErr == nil)

	slog.Info("External tool finished",
		logfields.Stage(stage),
		logfields.Tool(tool),
		logfields.ExitCode(res.ExitCode),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))

	if waitErr != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if _, ok := waitErr.(*exec.ExitError); ok {
			return res, perrors.ToolExitError(tool, res.ExitCode)
		}
		return res, perrors.ToolStartError(tool, waitErr)
	}
	return res, nil
}
