// Package mesh converts the PLY mesh produced by OpenMVS into STL for
// printing. It is deliberately format glue only: decode, scrub obviously
// broken faces, report watertightness, encode. No hole filling, decimation,
// or smoothing happens here.
package mesh

import (
	"fmt"
	"math"
)

// Vec3 is a point or direction in model space.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Triangle references three vertices by index.
type Triangle [3]uint32

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []Vec3
	Faces    []Triangle
}

// Validate checks index ranges and rejects meshes STL cannot represent.
func (m *Mesh) Validate() error {
	if len(m.Vertices) == 0 {
		return fmt.Errorf("mesh has no vertices")
	}
	if len(m.Faces) == 0 {
		return fmt.Errorf("mesh has no faces (point cloud, not a surface)")
	}
	if uint64(len(m.Faces)) > math.MaxUint32 {
		return fmt.Errorf("mesh has %d triangles, exceeding the binary STL limit", len(m.Faces))
	}
	n := uint32(len(m.Vertices))
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx >= n {
				return fmt.Errorf("face %d references vertex %d of %d", i, idx, n)
			}
		}
	}
	return nil
}

// Scrub removes degenerate triangles (repeated vertex indices) in place and
// returns how many were dropped. OpenMVS output occasionally contains them
// and slicers reject files that do.
func (m *Mesh) Scrub() int {
	kept := m.Faces[:0]
	removed := 0
	for _, f := range m.Faces {
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	m.Faces = kept
	return removed
}

// IsWatertight reports whether every undirected edge is shared by exactly two
// faces. Printable solids need this; the result is reported, not repaired.
func (m *Mesh) IsWatertight() bool {
	if len(m.Faces) == 0 {
		return false
	}
	edges := make(map[[2]uint32]int, len(m.Faces)*3/2)
	for _, f := range m.Faces {
		for i := range 3 {
			a, b := f[i], f[(i+1)%3]
			if a > b {
				a, b = b, a
			}
			edges[[2]uint32{a, b}]++
		}
	}
	for _, count := range edges {
		if count != 2 {
			return false
		}
	}
	return true
}

// FaceNormal computes the unit normal of face i. Zero-area faces yield the
// zero vector, which STL consumers treat as "recompute yourself".
func (m *Mesh) FaceNormal(i int) Vec3 {
	f := m.Faces[i]
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	n := b.sub(a).cross(c.sub(a))
	l := n.length()
	if l == 0 {
		return Vec3{}
	}
	return Vec3{n.X / l, n.Y / l, n.Z / l}
}

// Info summarizes a conversion for logs, the ledger, and reports.
type Info struct {
	Vertices          int  `json:"vertices"`
	Triangles         int  `json:"triangles"`
	DegenerateRemoved int  `json:"degenerate_removed"`
	Watertight        bool `json:"watertight"`
}
