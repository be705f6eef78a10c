package manifold

import (
	"errors"
	"testing"
)

func TestSegmentsOrDefault(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultSegments},
		{7, DefaultSegments},
		{8, 8},
		{64, 64},
	}
	for _, tt := range tests {
		if got := segmentsOrDefault(tt.in); got != tt.want {
			t.Errorf("segmentsOrDefault(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSoupFromProps(t *testing.T) {
	// Three vertices with position plus two extra properties each.
	props := []float32{
		0, 0, 0, 9, 9,
		1, 0, 0, 9, 9,
		0, 1, 0, 9, 9,
	}
	m, err := soupFromProps(props, 5, []uint32{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}
	if len(m.Vertices) != len(want) {
		t.Fatalf("vertices = %v, want %v", m.Vertices, want)
	}
	for i := range want {
		if m.Vertices[i] != want[i] {
			t.Fatalf("vertices = %v, want %v", m.Vertices, want)
		}
	}
	if m.TriangleCount() != 1 {
		t.Errorf("triangles = %d, want 1", m.TriangleCount())
	}
}

func TestSoupFromPropsErrors(t *testing.T) {
	tri := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	if _, err := soupFromProps(nil, 3, nil); !errors.Is(err, errNoTriangles) {
		t.Errorf("empty mesh: got %v, want errNoTriangles", err)
	}
	tests := []struct {
		name    string
		props   []float32
		numProp int
		tris    []uint32
	}{
		{"too few properties", tri, 2, []uint32{0, 1, 2}},
		{"ragged properties", tri[:8], 3, []uint32{0, 1, 2}},
		{"partial triangle", tri, 3, []uint32{0, 1}},
		{"index out of range", tri, 3, []uint32{0, 1, 3}},
	}
	for _, tt := range tests {
		if _, err := soupFromProps(tt.props, tt.numProp, tt.tris); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}
