package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/logfields"
	"git.home.luguber.info/inful/photo2stl/internal/mesh"
	"git.home.luguber.info/inful/photo2stl/internal/workspace"
)

// STLExportCommand converts the reconstructed mesh to a printable STL in the
// configured output directory.
type STLExportCommand struct {
	BaseCommand
}

// NewSTLExportCommand creates the STL export stage.
func NewSTLExportCommand() *STLExportCommand {
	return &STLExportCommand{
		BaseCommand: NewBaseCommand(CommandMetadata{
			Name:         StageExportSTL,
			Description:  "Convert the refined mesh to STL",
			Dependencies: []StageName{StageRefine},
		}),
	}
}

// Execute locates the best mesh PLY produced by OpenMVS and writes the STL.
func (c *STLExportCommand) Execute(ctx context.Context, rs *RunState) Execution {
	if err := ctx.Err(); err != nil {
		return ExecutionFailure(err)
	}

	plyPath, err := c.findMeshPLY(rs)
	if err != nil {
		return ExecutionFailure(err)
	}

	if err := os.MkdirAll(rs.OutputDir, 0o750); err != nil {
		return ExecutionFailure(perrors.WorkspaceError("create output directory", err))
	}

	stlPath := filepath.Join(rs.OutputDir, workspace.ResultSTL)
	info, err := mesh.ConvertFile(plyPath, stlPath, rs.Config.Output.AsciiSTL)
	if err != nil {
		return ExecutionFailure(err)
	}

	rs.STLPath = stlPath
	rs.MeshInfo = &info
	slog.Info("Wrote STL",
		logfields.Path(stlPath),
		"triangles", info.Triangles,
		"watertight", info.Watertight)
	return ExecutionSuccess()
}

// findMeshPLY prefers the refined surface over the raw reconstruction. Each
// OpenMVS tool writes a PLY next to its .mvs scene with the same base name.
func (c *STLExportCommand) findMeshPLY(rs *RunState) (string, error) {
	candidates := []string{
		plyFor(workspace.RefinedMVS),
		plyFor(workspace.MeshMVS),
	}
	for _, name := range candidates {
		p := rs.Workspace.Join(workspace.OpenMVSDir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", perrors.MeshDecodeError(rs.Workspace.Join(workspace.OpenMVSDir), os.ErrNotExist)
}

func plyFor(mvsName string) string {
	return strings.TrimSuffix(mvsName, filepath.Ext(mvsName)) + ".ply"
}
