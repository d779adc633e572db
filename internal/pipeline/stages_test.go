//go:build !windows

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/dataset"
	"git.home.luguber.info/inful/photo2stl/internal/mesh"
	"git.home.luguber.info/inful/photo2stl/internal/toolchain"
	"git.home.luguber.info/inful/photo2stl/internal/workspace"
)

// captureTool writes a fake executable that records its arguments, one per
// line, so stage tests can assert the exact external invocation.
func captureTool(t *testing.T, dir, name, captureFile string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + captureFile + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o750))
	return path
}

func capturedArgs(t *testing.T, captureFile string) []string {
	t.Helper()
	data, err := os.ReadFile(captureFile)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func stageTestState(t *testing.T) (*RunState, string) {
	t.Helper()
	base := t.TempDir()
	ws := workspace.NewManager(base)
	require.NoError(t, ws.Create())

	capture := filepath.Join(base, "args.txt")
	binDir := filepath.Join(base, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0o750))

	colmap := captureTool(t, binDir, "colmap", capture)
	openmvs := map[string]string{}
	for _, name := range []string{
		toolchain.InterfaceCOLMAPTool,
		toolchain.DensifyTool,
		toolchain.ReconstructTool,
		toolchain.RefineTool,
		toolchain.TextureTool,
	} {
		openmvs[name] = captureTool(t, binDir, name, capture)
	}

	rs := &RunState{
		Config:    config.Default(),
		Tools:     &toolchain.Toolchain{Colmap: colmap, OpenMVS: openmvs},
		Workspace: ws,
		Dataset:   &dataset.Dataset{Source: "testdata", Images: nil},
		Runner:    &toolchain.Runner{},
	}
	return rs, capture
}

func TestFeatureExtractionArgs(t *testing.T) {
	rs, capture := stageTestState(t)

	exec := NewFeatureExtractionCommand().Execute(context.Background(), rs)
	require.NoError(t, exec.Err)

	assert.Equal(t, []string{
		"feature_extractor",
		"--database_path", rs.Workspace.Join(workspace.DatabaseFile),
		"--image_path", rs.Workspace.Join(workspace.ImagesDir),
	}, capturedArgs(t, capture))
}

func TestMatchingArgsExhaustive(t *testing.T) {
	rs, capture := stageTestState(t)
	rs.Config.Pipeline.Matcher = config.MatcherExhaustive

	exec := NewMatchingCommand().Execute(context.Background(), rs)
	require.NoError(t, exec.Err)

	assert.Equal(t, []string{
		"exhaustive_matcher",
		"--database_path", rs.Workspace.Join(workspace.DatabaseFile),
	}, capturedArgs(t, capture))
}

func TestMatchingArgsSequential(t *testing.T) {
	rs, capture := stageTestState(t)
	rs.Config.Pipeline.Matcher = config.MatcherSequential

	exec := NewMatchingCommand().Execute(context.Background(), rs)
	require.NoError(t, exec.Err)

	assert.Equal(t, "sequential_matcher", capturedArgs(t, capture)[0])
}

func TestSparseReconstructionRequiresModel(t *testing.T) {
	rs, _ := stageTestState(t)

	// The fake mapper does not write sparse/0, so the stage must fail.
	exec := NewSparseReconstructionCommand().Execute(context.Background(), rs)
	require.Error(t, exec.Err)
	assert.True(t, perrors.IsCategory(exec.Err, perrors.CategoryColmap))
}

func TestSparseReconstructionArgs(t *testing.T) {
	rs, capture := stageTestState(t)
	require.NoError(t, os.MkdirAll(rs.Workspace.Join(workspace.SparseDir, workspace.SparseModelID), 0o750))

	exec := NewSparseReconstructionCommand().Execute(context.Background(), rs)
	require.NoError(t, exec.Err)

	assert.Equal(t, []string{
		"mapper",
		"--database_path", rs.Workspace.Join(workspace.DatabaseFile),
		"--image_path", rs.Workspace.Join(workspace.ImagesDir),
		"--output_path", rs.Workspace.Join(workspace.SparseDir),
	}, capturedArgs(t, capture))
}

func TestModelConversionArgs(t *testing.T) {
	rs, capture := stageTestState(t)

	exec := NewModelConversionCommand().Execute(context.Background(), rs)
	require.NoError(t, exec.Err)

	assert.Equal(t, []string{
		"model_converter",
		"--input_path", rs.Workspace.Join(workspace.SparseDir, workspace.SparseModelID),
		"--output_path", rs.Workspace.Join(workspace.ScenePLY),
		"--output_type", "PLY",
	}, capturedArgs(t, capture))
}

func TestSceneImportArgs(t *testing.T) {
	rs, capture := stageTestState(t)

	exec := NewSceneImportCommand().Execute(context.Background(), rs)
	require.NoError(t, exec.Err)

	assert.Equal(t, []string{
		"--input_folder", rs.Workspace.Join(workspace.SparseDir, workspace.SparseModelID),
		"--output_file", rs.Workspace.Join(workspace.OpenMVSDir, workspace.SceneMVS),
		"-w", rs.Workspace.Join(workspace.OpenMVSDir),
	}, capturedArgs(t, capture))
}

func TestDensifyArgs(t *testing.T) {
	rs, capture := stageTestState(t)

	exec := NewDensifyCommand().Execute(context.Background(), rs)
	require.NoError(t, exec.Err)

	assert.Equal(t, []string{
		rs.Workspace.Join(workspace.OpenMVSDir, workspace.SceneMVS),
		"-w", rs.Workspace.Join(workspace.OpenMVSDir),
	}, capturedArgs(t, capture))
}

func TestOpenMVSStageFailsWithoutTools(t *testing.T) {
	rs, _ := stageTestState(t)
	rs.Tools.OpenMVS = map[string]string{}

	exec := NewSceneImportCommand().Execute(context.Background(), rs)
	require.Error(t, exec.Err)
	assert.True(t, perrors.IsCategory(exec.Err, perrors.CategoryToolchain))
}

func TestTexturingSkipConditions(t *testing.T) {
	rs, _ := stageTestState(t)
	cmd := NewTexturingCommand()

	rs.Config.Pipeline.Texture = false
	assert.True(t, cmd.ShouldSkip(rs))

	rs.Config.Pipeline.Texture = true
	assert.False(t, cmd.ShouldSkip(rs))

	delete(rs.Tools.OpenMVS, toolchain.TextureTool)
	assert.True(t, cmd.ShouldSkip(rs))
}

func TestStageImagesCopiesDataset(t *testing.T) {
	rs, _ := stageTestState(t)

	srcDir := t.TempDir()
	img := filepath.Join(srcDir, "photo1.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpegdata"), 0o640))
	rs.Dataset = &dataset.Dataset{Source: srcDir, Images: []string{img}}

	exec := NewStageImagesCommand().Execute(context.Background(), rs)
	require.NoError(t, exec.Err)

	copied := rs.Workspace.Join(workspace.ImagesDir, "photo1.jpg")
	data, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpegdata"), data)
}

func TestSTLExportPrefersRefinedMesh(t *testing.T) {
	rs, _ := stageTestState(t)
	rs.OutputDir = filepath.Join(t.TempDir(), "out")

	tetra := tetraMesh()
	mvsDir := rs.Workspace.Join(workspace.OpenMVSDir)
	writePLY(t, filepath.Join(mvsDir, "scene_dense_mesh.ply"), tetra)
	writePLY(t, filepath.Join(mvsDir, "scene_dense_mesh_refine.ply"), tetra)

	exec := NewSTLExportCommand().Execute(context.Background(), rs)
	require.NoError(t, exec.Err)

	require.NotNil(t, rs.MeshInfo)
	assert.Equal(t, 4, rs.MeshInfo.Triangles)
	assert.Equal(t, filepath.Join(rs.OutputDir, workspace.ResultSTL), rs.STLPath)
	_, err := os.Stat(rs.STLPath)
	require.NoError(t, err)
}

func TestSTLExportFallsBackToReconstructedMesh(t *testing.T) {
	rs, _ := stageTestState(t)
	rs.OutputDir = filepath.Join(t.TempDir(), "out")

	mvsDir := rs.Workspace.Join(workspace.OpenMVSDir)
	writePLY(t, filepath.Join(mvsDir, "scene_dense_mesh.ply"), tetraMesh())

	exec := NewSTLExportCommand().Execute(context.Background(), rs)
	require.NoError(t, exec.Err)
	assert.NotEmpty(t, rs.STLPath)
}

func TestSTLExportFailsWithoutMesh(t *testing.T) {
	rs, _ := stageTestState(t)
	rs.OutputDir = filepath.Join(t.TempDir(), "out")

	exec := NewSTLExportCommand().Execute(context.Background(), rs)
	require.Error(t, exec.Err)
	assert.True(t, perrors.IsCategory(exec.Err, perrors.CategoryMesh))
}

func tetraMesh() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: []mesh.Vec3{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
			{X: 0, Y: 0, Z: 1},
		},
		Faces: []mesh.Triangle{
			{0, 2, 1},
			{0, 1, 3},
			{0, 3, 2},
			{1, 2, 3},
		},
	}
}

func writePLY(t *testing.T, path string, m *mesh.Mesh) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("ply\nformat ascii 1.0\n")
	sb.WriteString("element vertex 4\n")
	sb.WriteString("property float x\nproperty float y\nproperty float z\n")
	sb.WriteString("element face 4\n")
	sb.WriteString("property list uchar int vertex_indices\nend_header\n")
	for _, v := range m.Vertices {
		fmt.Fprintf(&sb, "%g %g %g\n", v.X, v.Y, v.Z)
	}
	for _, f := range m.Faces {
		fmt.Fprintf(&sb, "3 %d %d %d\n", f[0], f[1], f[2])
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o640))
}
