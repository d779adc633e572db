package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

// TestErrorFormatting covers Error() with and without a cause.
func TestErrorFormatting(t *testing.T) {
	plain := New(CategoryConfig, SeverityFatal, "missing section")
	if plain.Error() != "config (fatal): missing section" {
		t.Fatalf("unexpected format: %q", plain.Error())
	}

	wrapped := Wrap(fmt.Errorf("no such file"), CategoryFileSystem, SeverityError, "read failed")
	want := "filesystem (error): read failed: no such file"
	if wrapped.Error() != want {
		t.Fatalf("expected %q got %q", want, wrapped.Error())
	}
}

// TestUnwrap ensures errors.Is sees through PipelineError.
func TestUnwrap(t *testing.T) {
	sentinel := stderrors.New("sentinel")
	wrapped := Wrap(sentinel, CategoryColmap, SeverityError, "mapper failed")
	if !stderrors.Is(wrapped, sentinel) {
		t.Fatal("expected errors.Is to match wrapped cause")
	}
}

// TestRetryability checks the retryable constructors and IsRetryable.
func TestRetryability(t *testing.T) {
	if IsRetryable(New(CategoryColmap, SeverityError, "x")) {
		t.Fatal("plain errors must not be retryable")
	}
	if !IsRetryable(ToolExitError("colmap", 1)) {
		t.Fatal("tool exit errors must be retryable")
	}
	if !IsRetryable(WrapRetryable(stderrors.New("gpu"), CategoryOpenMVS, SeverityWarning, "densify")) {
		t.Fatal("WrapRetryable must produce retryable errors")
	}
	if IsRetryable(stderrors.New("plain")) {
		t.Fatal("non-pipeline errors are never retryable")
	}
}

// TestWithContext verifies context accumulation.
func TestWithContext(t *testing.T) {
	err := ToolNotFound("colmap").WithContext("hint", "install COLMAP or set tools.colmap")
	if err.Context["tool"] != "colmap" {
		t.Fatalf("expected tool context, got %v", err.Context)
	}
	if err.Context["hint"] == nil {
		t.Fatal("expected hint context")
	}
}

// TestCategoryHelpers covers IsCategory and GetCategory fallbacks.
func TestCategoryHelpers(t *testing.T) {
	err := SparseModelMissing("/tmp/ws/sparse/0")
	if !IsCategory(err, CategoryColmap) {
		t.Fatal("expected colmap category")
	}
	if IsCategory(stderrors.New("x"), CategoryColmap) {
		t.Fatal("plain error has no category")
	}
	if GetCategory(stderrors.New("x")) != CategoryInternal {
		t.Fatal("plain errors default to internal category")
	}
}

// TestExitCodes maps each category family to its CLI exit code.
func TestExitCodes(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{stderrors.New("plain"), 1},
		{ValidationFailed("images", "empty"), 2},
		{DatasetTooLarge(9, 4), 2},
		{ConfigNotFound("config.yaml"), 7},
		{ToolNotFound("colmap"), 8},
		{MeshDecodeError("scene.ply", stderrors.New("bad header")), 11},
		{DaemonError("queue full"), 12},
		{InternalError("bug", nil), 10},
	}
	for _, c := range cases {
		if got := adapter.ExitCodeFor(c.err); got != c.want {
			t.Fatalf("exit code for %v: expected %d got %d", c.err, c.want, got)
		}
	}
}

// TestFormatError checks terse vs verbose formatting.
func TestFormatError(t *testing.T) {
	terse := NewCLIErrorAdapter(false, nil)
	verbose := NewCLIErrorAdapter(true, nil)

	err := ConfigNotFound("missing.yaml")
	if terse.FormatError(err) != err.Message {
		t.Fatalf("terse config errors should show only message, got %q", terse.FormatError(err))
	}
	if verbose.FormatError(err) != err.Error() {
		t.Fatalf("verbose should show full error, got %q", verbose.FormatError(err))
	}

	toolErr := ToolNotFound("colmap")
	if terse.FormatError(toolErr) != "toolchain: external tool not found" {
		t.Fatalf("unexpected tool error format %q", terse.FormatError(toolErr))
	}
}
