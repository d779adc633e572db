package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *PipelineError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *PipelineError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Dataset errors

func DatasetEmpty(source string) *PipelineError {
	return New(CategoryDataset, SeverityFatal, "no usable images in dataset").
		WithContext("source", source)
}

func DatasetTooLarge(count, limit int) *PipelineError {
	return New(CategoryDataset, SeverityFatal, "image count exceeds configured limit").
		WithContext("count", count).
		WithContext("limit", limit)
}

// Toolchain errors

func ToolNotFound(tool string) *PipelineError {
	return New(CategoryToolchain, SeverityFatal, "external tool not found").
		WithContext("tool", tool)
}

func ToolStartError(tool string, cause error) *PipelineError {
	return Wrap(cause, CategoryToolchain, SeverityFatal, "failed to start external tool").
		WithContext("tool", tool)
}

// ToolExitError is retryable: COLMAP and OpenMVS occasionally fail on
// transient GPU/OOM conditions that a rerun survives.
func ToolExitError(tool string, exitCode int) *PipelineError {
	return Retryable(CategoryToolchain, SeverityError, "external tool exited with failure").
		WithContext("tool", tool).
		WithContext("exit_code", exitCode)
}

// Retryable creates a new retryable PipelineError
func Retryable(category ErrorCategory, severity ErrorSeverity, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: true,
	}
}

// Pipeline errors

func StageFailed(stage string, cause error) *PipelineError {
	return Wrap(cause, CategoryRuntime, SeverityFatal, "pipeline stage failed").
		WithContext("stage", stage)
}

func SparseModelMissing(path string) *PipelineError {
	return New(CategoryColmap, SeverityFatal, "sparse model not produced by mapper").
		WithContext("path", path)
}

func WorkspaceError(operation string, cause error) *PipelineError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "workspace operation failed").
		WithContext("operation", operation)
}

// Mesh errors

func MeshDecodeError(path string, cause error) *PipelineError {
	return Wrap(cause, CategoryMesh, SeverityFatal, "mesh decode failed").
		WithContext("path", path)
}

func MeshEncodeError(path string, cause error) *PipelineError {
	return Wrap(cause, CategoryMesh, SeverityFatal, "mesh encode failed").
		WithContext("path", path)
}

// Daemon errors

func DaemonError(message string) *PipelineError {
	return New(CategoryDaemon, SeverityError, message)
}

// Internal errors

func InternalError(message string, cause error) *PipelineError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
