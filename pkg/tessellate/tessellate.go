// Package tessellate turns kernel solids into indexed scene meshes.
package tessellate

import (
	"fmt"
	"math"

	"github.com/chazu/cyclesxml/pkg/kernel"
	"github.com/chazu/cyclesxml/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultWeldTolerance is the distance under which two soup vertices are
// treated as the same vertex.
const DefaultWeldTolerance = 1e-6

// vertexKey is a vertex position snapped to the weld grid.
type vertexKey [3]int64

func keyOf(p [3]float64, tol float64) vertexKey {
	return vertexKey{
		int64(math.Round(p[0] / tol)),
		int64(math.Round(p[1] / tol)),
		int64(math.Round(p[2] / tol)),
	}
}

// Weld merges coincident vertices of a triangle soup and returns an
// indexed mesh. Triangles that collapse to a line or point after welding
// are dropped. Vertex order follows first use.
func Weld(m *kernel.Mesh, tol float64) *scene.MeshData {
	if tol <= 0 {
		tol = DefaultWeldTolerance
	}
	out := &scene.MeshData{}
	if m == nil {
		return out
	}
	index := make(map[vertexKey]int, m.VertexCount())
	lookup := func(i uint32) int {
		p := m.Vertex(i)
		k := keyOf(p, tol)
		if j, ok := index[k]; ok {
			return j
		}
		j := len(out.Positions)
		out.Positions = append(out.Positions, mgl64.Vec3(p))
		index[k] = j
		return j
	}

	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := lookup(m.Indices[t]), lookup(m.Indices[t+1]), lookup(m.Indices[t+2])
		if a == b || b == c || a == c {
			continue
		}
		out.Faces = append(out.Faces, []int{a, b, c})
	}
	return out
}

// Tessellate meshes s with k and welds the result.
func Tessellate(k kernel.Kernel, s kernel.Solid, tol float64) (*scene.MeshData, error) {
	if k == nil || s == nil {
		return nil, fmt.Errorf("tessellate: nil kernel or solid")
	}
	soup, err := k.ToMesh(s)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	mesh := Weld(soup, tol)
	if len(mesh.Faces) == 0 {
		return nil, fmt.Errorf("tessellate: solid produced no faces")
	}
	return mesh, nil
}
