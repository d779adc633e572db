package mesh

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const asciiTetra = `ply
format ascii 1.0
comment produced by a test
element vertex 4
property float x
property float y
property float z
element face 4
property list uchar int vertex_indices
end_header
0 0 0
1 0 0
0 1 0
0 0 1
3 0 2 1
3 0 1 3
3 0 3 2
3 1 2 3
`

func TestDecodeAscii(t *testing.T) {
	m, err := DecodePLY(strings.NewReader(asciiTetra))
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 4)
	assert.Len(t, m.Faces, 4)
	assert.True(t, m.IsWatertight())
	assert.Equal(t, Vec3{1, 0, 0}, m.Vertices[1])
}

func TestDecodeAsciiExtraProperties(t *testing.T) {
	// OpenMVS writes normals and colors alongside positions; they must be skipped.
	src := `ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
property float nx
property float ny
property float nz
property uchar red
property uchar green
property uchar blue
element face 1
property list uchar int vertex_indices
end_header
0 0 0 0 0 1 255 0 0
1 0 0 0 0 1 0 255 0
0 1 0 0 0 1 0 0 255
3 0 1 2
`
	m, err := DecodePLY(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 3)
	assert.Len(t, m.Faces, 1)
	assert.Equal(t, Vec3{0, 1, 0}, m.Vertices[2])
}

func TestDecodeAsciiQuadFanSplit(t *testing.T) {
	src := `ply
format ascii 1.0
element vertex 4
property float x
property float y
property float z
element face 1
property list uchar int vertex_indices
end_header
0 0 0
1 0 0
1 1 0
0 1 0
4 0 1 2 3
`
	m, err := DecodePLY(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, m.Faces, 2, "quad splits into two triangles")
	assert.Equal(t, Triangle{0, 1, 2}, m.Faces[0])
	assert.Equal(t, Triangle{0, 2, 3}, m.Faces[1])
}

// binaryTetra builds a binary_little_endian PLY byte stream for the
// tetrahedron, including a normal property that must be skipped.
func binaryTetra(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("ply\n")
	buf.WriteString("format binary_little_endian 1.0\n")
	buf.WriteString("element vertex 4\n")
	buf.WriteString("property float x\n")
	buf.WriteString("property float y\n")
	buf.WriteString("property float z\n")
	buf.WriteString("property float nx\n")
	buf.WriteString("element face 4\n")
	buf.WriteString("property list uchar uint vertex_indices\n")
	buf.WriteString("end_header\n")

	verts := [][4]float32{
		{0, 0, 0, 1},
		{1, 0, 0, 1},
		{0, 1, 0, 1},
		{0, 0, 1, 1},
	}
	for _, v := range verts {
		for _, f := range v {
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, math.Float32bits(f)))
		}
	}
	faces := [][3]uint32{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}}
	for _, f := range faces {
		buf.WriteByte(3)
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, f))
	}
	return buf.Bytes()
}

func TestDecodeBinaryLittleEndian(t *testing.T) {
	m, err := DecodePLY(bytes.NewReader(binaryTetra(t)))
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 4)
	assert.Len(t, m.Faces, 4)
	assert.True(t, m.IsWatertight())
	assert.Equal(t, Vec3{0, 0, 1}, m.Vertices[3])
}

func TestDecodeBinaryHugeListCountRejected(t *testing.T) {
	// A corrupt face count must come back as a decode error, not an
	// attempted multi-gigabyte allocation.
	var buf bytes.Buffer
	buf.WriteString("ply\n")
	buf.WriteString("format binary_little_endian 1.0\n")
	buf.WriteString("element vertex 3\n")
	buf.WriteString("property float x\n")
	buf.WriteString("property float y\n")
	buf.WriteString("property float z\n")
	buf.WriteString("element face 1\n")
	buf.WriteString("property list uint uint vertex_indices\n")
	buf.WriteString("end_header\n")
	for range 9 {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, float32(0)))
	}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF)))

	_, err := DecodePLY(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list count")
}

func TestDecodeBinaryUnknownListTypeRejected(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("ply\n")
	buf.WriteString("format binary_little_endian 1.0\n")
	buf.WriteString("element vertex 1\n")
	buf.WriteString("property float x\n")
	buf.WriteString("property float y\n")
	buf.WriteString("property float z\n")
	buf.WriteString("property list uchar weird extras\n")
	buf.WriteString("end_header\n")
	for range 3 {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, float32(0)))
	}
	buf.WriteByte(2)

	_, err := DecodePLY(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown property type")
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"not ply", "obj\nv 0 0 0\n"},
		{"big endian", "ply\nformat binary_big_endian 1.0\nend_header\n"},
		{"missing format", "ply\nend_header\n"},
		{"property before element", "ply\nformat ascii 1.0\nproperty float x\nend_header\n"},
		{"truncated body", asciiTetra[:len(asciiTetra)-30]},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := DecodePLY(strings.NewReader(c.src))
			require.Error(t, err)
		})
	}
}

func TestDecodePointCloudRejected(t *testing.T) {
	src := `ply
format ascii 1.0
element vertex 1
property float x
property float y
property float z
end_header
0 0 0
`
	_, err := DecodePLY(strings.NewReader(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "point cloud")
}
