package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// MeshData is an indexed polygon mesh. Faces may have any number of
// vertices.
type MeshData struct {
	Positions []mgl64.Vec3
	Faces     [][]int
}

// NVerts returns the vertex count of every face.
func (m *MeshData) NVerts() []int {
	out := make([]int, len(m.Faces))
	for i, f := range m.Faces {
		out[i] = len(f)
	}
	return out
}

// Verts returns every face's vertex indices, flattened.
func (m *MeshData) Verts() []int {
	var out []int
	for _, f := range m.Faces {
		out = append(out, f...)
	}
	return out
}

// FlatPositions returns positions as x y z triples.
func (m *MeshData) FlatPositions() []float64 {
	out := make([]float64, 0, len(m.Positions)*3)
	for _, p := range m.Positions {
		out = append(out, p[0], p[1], p[2])
	}
	return out
}

// Validate reports faces with fewer than three vertices or indices out
// of range.
func (m *MeshData) Validate() error {
	for i, f := range m.Faces {
		if len(f) < 3 {
			return fmt.Errorf("face %d has %d vertices", i, len(f))
		}
		for _, v := range f {
			if v < 0 || v >= len(m.Positions) {
				return fmt.Errorf("face %d: vertex index %d out of range [0,%d)", i, v, len(m.Positions))
			}
		}
	}
	return nil
}

// Compose builds an object matrix from a translation, XYZ Euler rotation
// in degrees, and scale, applied scale first.
func Compose(translate, rotateDeg, scale mgl64.Vec3) mgl64.Mat4 {
	rot := mgl64.HomogRotate3DZ(mgl64.DegToRad(rotateDeg[2])).
		Mul4(mgl64.HomogRotate3DY(mgl64.DegToRad(rotateDeg[1]))).
		Mul4(mgl64.HomogRotate3DX(mgl64.DegToRad(rotateDeg[0])))
	return mgl64.Translate3D(translate[0], translate[1], translate[2]).
		Mul4(rot).
		Mul4(mgl64.Scale3D(scale[0], scale[1], scale[2]))
}
