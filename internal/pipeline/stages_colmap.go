package pipeline

import (
	"context"
	"os"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/workspace"
)

// StageImagesCommand copies the dataset into the workspace images directory.
type StageImagesCommand struct {
	BaseCommand
}

// NewStageImagesCommand creates the image staging stage.
func NewStageImagesCommand() *StageImagesCommand {
	return &StageImagesCommand{
		BaseCommand: NewBaseCommand(CommandMetadata{
			Name:        StageImages,
			Description: "Copy dataset images into the run workspace",
		}),
	}
}

// Execute runs the image staging stage.
func (c *StageImagesCommand) Execute(ctx context.Context, rs *RunState) Execution {
	if err := rs.Dataset.Stage(rs.Workspace.Join(workspace.ImagesDir)); err != nil {
		return ExecutionFailure(err)
	}
	return ExecutionSuccess()
}

// FeatureExtractionCommand runs COLMAP's feature extractor over the staged images.
type FeatureExtractionCommand struct {
	BaseCommand
}

// NewFeatureExtractionCommand creates the feature extraction stage.
func NewFeatureExtractionCommand() *FeatureExtractionCommand {
	return &FeatureExtractionCommand{
		BaseCommand: NewBaseCommand(CommandMetadata{
			Name:         StageFeatures,
			Description:  "Detect and describe image features (COLMAP feature_extractor)",
			Dependencies: []StageName{StageImages},
		}),
	}
}

// Execute runs the feature extraction stage.
func (c *FeatureExtractionCommand) Execute(ctx context.Context, rs *RunState) Execution {
	args := []string{
		"feature_extractor",
		"--database_path", rs.Workspace.Join(workspace.DatabaseFile),
		"--image_path", rs.Workspace.Join(workspace.ImagesDir),
	}
	if _, err := rs.Runner.Run(ctx, string(c.Name()), rs.Tools.Colmap, args, rs.Workspace.Path()); err != nil {
		return ExecutionFailure(err)
	}
	return ExecutionSuccess()
}

// MatchingCommand runs the configured COLMAP matcher.
type MatchingCommand struct {
	BaseCommand
}

// NewMatchingCommand creates the matching stage.
func NewMatchingCommand() *MatchingCommand {
	return &MatchingCommand{
		BaseCommand: NewBaseCommand(CommandMetadata{
			Name:         StageMatching,
			Description:  "Match features between images (COLMAP matcher)",
			Dependencies: []StageName{StageFeatures},
		}),
	}
}

// Execute runs the matching stage.
func (c *MatchingCommand) Execute(ctx context.Context, rs *RunState) Execution {
	matcher := "exhaustive_matcher"
	if rs.Config.Pipeline.Matcher == config.MatcherSequential {
		matcher = "sequential_matcher"
	}
	args := []string{
		matcher,
		"--database_path", rs.Workspace.Join(workspace.DatabaseFile),
	}
	if _, err := rs.Runner.Run(ctx, string(c.Name()), rs.Tools.Colmap, args, rs.Workspace.Path()); err != nil {
		return ExecutionFailure(err)
	}
	return ExecutionSuccess()
}

// SparseReconstructionCommand runs the COLMAP mapper.
type SparseReconstructionCommand struct {
	BaseCommand
}

// NewSparseReconstructionCommand creates the sparse reconstruction stage.
func NewSparseReconstructionCommand() *SparseReconstructionCommand {
	return &SparseReconstructionCommand{
		BaseCommand: NewBaseCommand(CommandMetadata{
			Name:         StageSparse,
			Description:  "Estimate camera poses and sparse points (COLMAP mapper)",
			Dependencies: []StageName{StageMatching},
		}),
	}
}

// Execute runs the sparse reconstruction stage.
func (c *SparseReconstructionCommand) Execute(ctx context.Context, rs *RunState) Execution {
	args := []string{
		"mapper",
		"--database_path", rs.Workspace.Join(workspace.DatabaseFile),
		"--image_path", rs.Workspace.Join(workspace.ImagesDir),
		"--output_path", rs.Workspace.Join(workspace.SparseDir),
	}
	if _, err := rs.Runner.Run(ctx, string(c.Name()), rs.Tools.Colmap, args, rs.Workspace.Path()); err != nil {
		return ExecutionFailure(err)
	}

	// The mapper writes the first (and for small sets, only) model to sparse/0.
	modelDir := rs.Workspace.Join(workspace.SparseDir, workspace.SparseModelID)
	if _, err := os.Stat(modelDir); err != nil {
		return ExecutionFailure(perrors.SparseModelMissing(modelDir))
	}
	return ExecutionSuccess()
}

// ModelConversionCommand exports the sparse model to PLY for OpenMVS.
type ModelConversionCommand struct {
	BaseCommand
}

// NewModelConversionCommand creates the model conversion stage.
func NewModelConversionCommand() *ModelConversionCommand {
	return &ModelConversionCommand{
		BaseCommand: NewBaseCommand(CommandMetadata{
			Name:         StageConvert,
			Description:  "Convert the sparse model to PLY (COLMAP model_converter)",
			Dependencies: []StageName{StageSparse},
		}),
	}
}

// Execute runs the model conversion stage.
func (c *ModelConversionCommand) Execute(ctx context.Context, rs *RunState) Execution {
	args := []string{
		"model_converter",
		"--input_path", rs.Workspace.Join(workspace.SparseDir, workspace.SparseModelID),
		"--output_path", rs.Workspace.Join(workspace.ScenePLY),
		"--output_type", "PLY",
	}
	if _, err := rs.Runner.Run(ctx, string(c.Name()), rs.Tools.Colmap, args, rs.Workspace.Path()); err != nil {
		return ExecutionFailure(err)
	}
	return ExecutionSuccess()
}
