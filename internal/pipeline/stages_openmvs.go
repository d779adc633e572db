package pipeline

import (
	"context"

	"git.home.luguber.info/inful/photo2stl/internal/toolchain"
	"git.home.luguber.info/inful/photo2stl/internal/workspace"
)

// runOpenMVS resolves and runs one OpenMVS tool with the workspace openmvs/
// directory as its working directory (the -w convention all of them share).
func runOpenMVS(ctx context.Context, rs *RunState, stage StageName, tool string, args []string) Execution {
	bin, err := rs.Tools.OpenMVSTool(tool)
	if err != nil {
		return ExecutionFailure(err)
	}
	mvsDir := rs.Workspace.Join(workspace.OpenMVSDir)
	args = append(args, "-w", mvsDir)
	if _, err := rs.Runner.Run(ctx, string(stage), bin, args, rs.Workspace.Path()); err != nil {
		return ExecutionFailure(err)
	}
	return ExecutionSuccess()
}

// SceneImportCommand converts the COLMAP sparse model into an OpenMVS scene.
type SceneImportCommand struct {
	BaseCommand
}

// NewSceneImportCommand creates the scene import stage.
func NewSceneImportCommand() *SceneImportCommand {
	return &SceneImportCommand{
		BaseCommand: NewBaseCommand(CommandMetadata{
			Name:         StageImport,
			Description:  "Import the COLMAP model into OpenMVS (InterfaceCOLMAP)",
			Dependencies: []StageName{StageConvert},
		}),
	}
}

// Execute runs the scene import stage.
func (c *SceneImportCommand) Execute(ctx context.Context, rs *RunState) Execution {
	args := []string{
		"--input_folder", rs.Workspace.Join(workspace.SparseDir, workspace.SparseModelID),
		"--output_file", rs.Workspace.Join(workspace.OpenMVSDir, workspace.SceneMVS),
	}
	return runOpenMVS(ctx, rs, c.Name(), toolchain.InterfaceCOLMAPTool, args)
}

// DensifyCommand densifies the sparse point cloud.
type DensifyCommand struct {
	BaseCommand
}

// NewDensifyCommand creates the densify stage.
func NewDensifyCommand() *DensifyCommand {
	return &DensifyCommand{
		BaseCommand: NewBaseCommand(CommandMetadata{
			Name:         StageDensify,
			Description:  "Densify the point cloud (OpenMVS DensifyPointCloud)",
			Dependencies: []StageName{StageImport},
		}),
	}
}

// Execute runs the densify stage.
func (c *DensifyCommand) Execute(ctx context.Context, rs *RunState) Execution {
	args := []string{rs.Workspace.Join(workspace.OpenMVSDir, workspace.SceneMVS)}
	return runOpenMVS(ctx, rs, c.Name(), toolchain.DensifyTool, args)
}

// MeshReconstructionCommand builds a surface from the dense cloud.
type MeshReconstructionCommand struct {
	BaseCommand
}

// NewMeshReconstructionCommand creates the mesh reconstruction stage.
func NewMeshReconstructionCommand() *MeshReconstructionCommand {
	return &MeshReconstructionCommand{
		BaseCommand: NewBaseCommand(CommandMetadata{
			Name:         StageMesh,
			Description:  "Reconstruct a mesh from the dense cloud (OpenMVS ReconstructMesh)",
			Dependencies: []StageName{StageDensify},
		}),
	}
}

// Execute runs the mesh reconstruction stage.
func (c *MeshReconstructionCommand) Execute(ctx context.Context, rs *RunState) Execution {
	args := []string{rs.Workspace.Join(workspace.OpenMVSDir, workspace.DenseMVS)}
	return runOpenMVS(ctx, rs, c.Name(), toolchain.ReconstructTool, args)
}

// MeshRefinementCommand refines the reconstructed surface.
type MeshRefinementCommand struct {
	BaseCommand
}

// NewMeshRefinementCommand creates the mesh refinement stage.
func NewMeshRefinementCommand() *MeshRefinementCommand {
	return &MeshRefinementCommand{
		BaseCommand: NewBaseCommand(CommandMetadata{
			Name:         StageRefine,
			Description:  "Refine the mesh (OpenMVS RefineMesh)",
			Dependencies: []StageName{StageMesh},
		}),
	}
}

// Execute runs the mesh refinement stage.
func (c *MeshRefinementCommand) Execute(ctx context.Context, rs *RunState) Execution {
	args := []string{rs.Workspace.Join(workspace.OpenMVSDir, workspace.MeshMVS)}
	return runOpenMVS(ctx, rs, c.Name(), toolchain.RefineTool, args)
}

// TexturingCommand projects image textures onto the mesh. Optional: printing
// does not need it, and it is the slowest OpenMVS step.
type TexturingCommand struct {
	BaseCommand
}

// NewTexturingCommand creates the texturing stage.
func NewTexturingCommand() *TexturingCommand {
	return &TexturingCommand{
		BaseCommand: NewBaseCommand(CommandMetadata{
			Name:         StageTexture,
			Description:  "Texture the mesh (OpenMVS TextureMesh)",
			Dependencies: []StageName{StageRefine},
			Optional:     true,
			SkipIf: func(rs *RunState) bool {
				if !rs.Config.Pipeline.Texture {
					return true
				}
				_, err := rs.Tools.OpenMVSTool(toolchain.TextureTool)
				return err != nil
			},
		}),
	}
}

// Execute runs the texturing stage.
func (c *TexturingCommand) Execute(ctx context.Context, rs *RunState) Execution {
	args := []string{rs.Workspace.Join(workspace.OpenMVSDir, workspace.RefinedMVS)}
	return runOpenMVS(ctx, rs, c.Name(), toolchain.TextureTool, args)
}
