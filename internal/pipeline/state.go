package pipeline

import (
	"time"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	"git.home.luguber.info/inful/photo2stl/internal/dataset"
	"git.home.luguber.info/inful/photo2stl/internal/mesh"
	"git.home.luguber.info/inful/photo2stl/internal/toolchain"
	"git.home.luguber.info/inful/photo2stl/internal/workspace"
)

// StageName identifies a pipeline stage.
type StageName string

// The reconstruction sequence. Order is fixed by declared dependencies, not
// by this list.
const (
	StageImages    StageName = "stage_images"
	StageFeatures  StageName = "feature_extraction"
	StageMatching  StageName = "matching"
	StageSparse    StageName = "sparse_reconstruction"
	StageConvert   StageName = "model_conversion"
	StageImport    StageName = "scene_import"
	StageDensify   StageName = "densify"
	StageMesh      StageName = "mesh_reconstruction"
	StageRefine    StageName = "mesh_refinement"
	StageTexture   StageName = "texturing"
	StageExportSTL StageName = "stl_export"
)

// StageStatus is the recorded outcome of one stage.
type StageStatus string

const (
	StageStatusPending StageStatus = "pending"
	StageStatusRunning StageStatus = "running"
	StageStatusSuccess StageStatus = "success"
	StageStatusSkipped StageStatus = "skipped"
	StageStatusFailed  StageStatus = "failed"
)

// StageResult records a stage's execution for the report and the ledger.
type StageResult struct {
	Stage    StageName     `json:"stage"`
	Status   StageStatus   `json:"status"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	// Output holds the tail of tool output from the final failed attempt.
	Output []string `json:"output,omitempty"`
}

// RunState carries everything stages need and everything they produce.
// Stages address artifacts only through the workspace paths held here.
type RunState struct {
	Config    *config.Config
	Tools     *toolchain.Toolchain
	Workspace *workspace.Manager
	Dataset   *dataset.Dataset
	Runner    *toolchain.Runner
	// Tail, when set, is fed by the Runner's line sink so failed stages can
	// report the tool output that preceded the failure.
	Tail *OutputTail

	// OutputDir is where the final STL lands (outside the workspace).
	OutputDir string

	// Produced during the run.
	STLPath  string
	MeshInfo *mesh.Info

	results []StageResult
}

// RecordResult appends a stage result.
func (rs *RunState) RecordResult(r StageResult) {
	rs.results = append(rs.results, r)
}

// Results returns the recorded stage results in execution order.
func (rs *RunState) Results() []StageResult {
	return rs.results
}

// Execution is the outcome a stage hands back to the executor.
type Execution struct {
	Err     error
	Skipped bool
}

// ExecutionSuccess reports a completed stage.
func ExecutionSuccess() Execution { return Execution{} }

// ExecutionSkipped reports a stage that decided not to run.
func ExecutionSkipped() Execution { return Execution{Skipped: true} }

// ExecutionFailure reports a failed stage.
func ExecutionFailure(err error) Execution { return Execution{Err: err} }

// RunReport summarizes a finished (or aborted) run.
type RunReport struct {
	Source     string        `json:"source"`
	Images     int           `json:"images"`
	Stages     []StageResult `json:"stages"`
	STLPath    string        `json:"stl_path,omitempty"`
	MeshInfo   *mesh.Info    `json:"mesh_info,omitempty"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}
