package manifold

import (
	"errors"
	"fmt"

	"github.com/chazu/cyclesxml/pkg/kernel"
)

// DefaultSegments is the circular resolution used for spheres and cylinders.
const DefaultSegments = 32

// minSegments is the coarsest circle New accepts.
const minSegments = 8

// ErrUnavailable is returned by New in builds without the manifold tag.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

var errNoTriangles = errors.New("manifold: solid produced no triangles")

func segmentsOrDefault(n int) int {
	if n < minSegments {
		return DefaultSegments
	}
	return n
}

// soupFromProps builds a kernel mesh from MeshGL vertex properties. Each
// vertex carries numProp floats, the first three being its position; the
// rest are dropped.
func soupFromProps(props []float32, numProp int, tris []uint32) (*kernel.Mesh, error) {
	if numProp < 3 {
		return nil, fmt.Errorf("manifold: %d properties per vertex, need at least 3", numProp)
	}
	if len(props) == 0 || len(tris) == 0 {
		return nil, errNoTriangles
	}
	if len(props)%numProp != 0 || len(tris)%3 != 0 {
		return nil, fmt.Errorf("manifold: malformed mesh: %d properties, %d indices", len(props), len(tris))
	}
	numVert := len(props) / numProp
	vertices := make([]float64, numVert*3)
	for i := 0; i < numVert; i++ {
		base := i * numProp
		vertices[i*3+0] = float64(props[base+0])
		vertices[i*3+1] = float64(props[base+1])
		vertices[i*3+2] = float64(props[base+2])
	}
	for _, idx := range tris {
		if int(idx) >= numVert {
			return nil, fmt.Errorf("manifold: triangle index %d out of range (%d vertices)", idx, numVert)
		}
	}
	return &kernel.Mesh{Vertices: vertices, Indices: append([]uint32(nil), tris...)}, nil
}
