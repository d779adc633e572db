package mesh

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
)

func TestEncodeSTLBinaryLayout(t *testing.T) {
	m := tetrahedron()
	var buf bytes.Buffer
	require.NoError(t, EncodeSTL(&buf, m))

	// 80-byte header + uint32 count + 50 bytes per triangle.
	assert.Equal(t, 84+50*len(m.Faces), buf.Len())

	count := binary.LittleEndian.Uint32(buf.Bytes()[80:84])
	assert.Equal(t, uint32(len(m.Faces)), count)

	// Attribute byte count of the first record is zero.
	rec := buf.Bytes()[84 : 84+50]
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(rec[48:50]))
}

func TestEncodeSTLAscii(t *testing.T) {
	m := tetrahedron()
	var buf bytes.Buffer
	require.NoError(t, EncodeSTLAscii(&buf, m, "result"))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "solid result\n"))
	assert.True(t, strings.HasSuffix(out, "endsolid result\n"))
	assert.Equal(t, len(m.Faces), strings.Count(out, "facet normal"))
	assert.Equal(t, 3*len(m.Faces), strings.Count(out, "vertex "))
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	plyPath := filepath.Join(dir, "scene.ply")
	stlPath := filepath.Join(dir, "result.stl")
	require.NoError(t, os.WriteFile(plyPath, []byte(asciiTetra), 0o644))

	info, err := ConvertFile(plyPath, stlPath, false)
	require.NoError(t, err)

	assert.Equal(t, 4, info.Vertices)
	assert.Equal(t, 4, info.Triangles)
	assert.Zero(t, info.DegenerateRemoved)
	assert.True(t, info.Watertight)

	data, err := os.ReadFile(stlPath)
	require.NoError(t, err)
	assert.Equal(t, 84+50*4, len(data))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestConvertFileAscii(t *testing.T) {
	dir := t.TempDir()
	plyPath := filepath.Join(dir, "scene.ply")
	stlPath := filepath.Join(dir, "result.stl")
	require.NoError(t, os.WriteFile(plyPath, []byte(asciiTetra), 0o644))

	_, err := ConvertFile(plyPath, stlPath, true)
	require.NoError(t, err)

	data, err := os.ReadFile(stlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "solid result")
}

func TestConvertFileMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := ConvertFile(filepath.Join(dir, "ghost.ply"), filepath.Join(dir, "out.stl"), false)
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryMesh))
}

func TestConvertFileReportsOpenSurface(t *testing.T) {
	open := `ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
element face 1
property list uchar int vertex_indices
end_header
0 0 0
1 0 0
0 1 0
3 0 1 2
`
	dir := t.TempDir()
	plyPath := filepath.Join(dir, "scene.ply")
	require.NoError(t, os.WriteFile(plyPath, []byte(open), 0o644))

	info, err := ConvertFile(plyPath, filepath.Join(dir, "out.stl"), false)
	require.NoError(t, err)
	assert.False(t, info.Watertight)
}
