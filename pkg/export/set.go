package export

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/chazu/cyclesxml/pkg/graph"
)

// anonBase is the first key handed to shaders that carry no scene ID.
const anonBase = 1 << 31

// shaderSet records which shaders have been handled. It is safe for
// concurrent use.
type shaderSet struct {
	mu   sync.Mutex
	bits *roaring.Bitmap
	anon map[*graph.Shader]uint32
}

func newShaderSet() *shaderSet {
	return &shaderSet{bits: roaring.New(), anon: make(map[*graph.Shader]uint32)}
}

// key returns the shader's scene ID, or a stable per-set key for shaders
// that were never registered with a scene.
func (s *shaderSet) key(sh *graph.Shader) uint32 {
	if sh.ID != 0 {
		return sh.ID
	}
	k, ok := s.anon[sh]
	if !ok {
		k = anonBase + uint32(len(s.anon))
		s.anon[sh] = k
	}
	return k
}

// Add marks sh and reports whether it was not already present.
func (s *shaderSet) Add(sh *graph.Shader) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bits.CheckedAdd(s.key(sh))
}

// Contains reports whether sh has been marked.
func (s *shaderSet) Contains(sh *graph.Shader) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bits.Contains(s.key(sh))
}

// Len returns the number of marked shaders.
func (s *shaderSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.bits.GetCardinality())
}
