package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
)

const stlHeaderText = "photo2stl binary STL"

// EncodeSTL writes the mesh in binary STL.
func EncodeSTL(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)

	var header [80]byte
	copy(header[:], stlHeaderText)
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Faces))); err != nil {
		return err
	}

	var rec [50]byte
	for i, f := range m.Faces {
		n := m.FaceNormal(i)
		putFloat32(rec[0:], n.X)
		putFloat32(rec[4:], n.Y)
		putFloat32(rec[8:], n.Z)
		off := 12
		for _, idx := range f {
			v := m.Vertices[idx]
			putFloat32(rec[off:], v.X)
			putFloat32(rec[off+4:], v.Y)
			putFloat32(rec[off+8:], v.Z)
			off += 12
		}
		rec[48], rec[49] = 0, 0 // attribute byte count
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// EncodeSTLAscii writes the mesh in ASCII STL under the given solid name.
func EncodeSTLAscii(w io.Writer, m *Mesh, name string) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "solid %s\n", name); err != nil {
		return err
	}
	for i, f := range m.Faces {
		n := m.FaceNormal(i)
		fmt.Fprintf(bw, "  facet normal %g %g %g\n", n.X, n.Y, n.Z)
		fmt.Fprintf(bw, "    outer loop\n")
		for _, idx := range f {
			v := m.Vertices[idx]
			fmt.Fprintf(bw, "      vertex %g %g %g\n", v.X, v.Y, v.Z)
		}
		fmt.Fprintf(bw, "    endloop\n")
		fmt.Fprintf(bw, "  endfacet\n")
	}
	if _, err := fmt.Fprintf(bw, "endsolid %s\n", name); err != nil {
		return err
	}
	return bw.Flush()
}

func putFloat32(b []byte, v float64) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
}

// ConvertFile decodes a PLY file, scrubs it, and writes the STL. The output
// is written to a temp file in the target directory and renamed, so a crash
// never leaves a half-written result.
func ConvertFile(plyPath, stlPath string, ascii bool) (Info, error) {
	m, err := DecodePLYFile(plyPath)
	if err != nil {
		return Info{}, perrors.MeshDecodeError(plyPath, err)
	}

	removed := m.Scrub()
	if len(m.Faces) == 0 {
		return Info{}, perrors.MeshDecodeError(plyPath, fmt.Errorf("all %d faces were degenerate", removed))
	}

	info := Info{
		Vertices:          len(m.Vertices),
		Triangles:         len(m.Faces),
		DegenerateRemoved: removed,
		Watertight:        m.IsWatertight(),
	}

	tmp, err := os.CreateTemp(filepath.Dir(stlPath), ".stl-*")
	if err != nil {
		return Info{}, perrors.MeshEncodeError(stlPath, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after successful rename

	if ascii {
		name := filepath.Base(stlPath)
		err = EncodeSTLAscii(tmp, m, name[:len(name)-len(filepath.Ext(name))])
	} else {
		err = EncodeSTL(tmp, m)
	}
	if err != nil {
		_ = tmp.Close()
		return Info{}, perrors.MeshEncodeError(stlPath, err)
	}
	if err := tmp.Close(); err != nil {
		return Info{}, perrors.MeshEncodeError(stlPath, err)
	}
	if err := os.Rename(tmpPath, stlPath); err != nil {
		return Info{}, perrors.MeshEncodeError(stlPath, err)
	}
	return info, nil
}
