package kernel

// Mesh is a triangle soup as produced by tessellation. Vertices has 3
// floats per vertex and Indices 3 entries per triangle; vertices are not
// shared between triangles until the mesh is welded.
type Mesh struct {
	Vertices []float64 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Vertex returns vertex i.
func (m *Mesh) Vertex(i uint32) [3]float64 {
	j := int(i) * 3
	return [3]float64{m.Vertices[j], m.Vertices[j+1], m.Vertices[j+2]}
}
