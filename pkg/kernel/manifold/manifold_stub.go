//go:build !manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library. When the "manifold" build tag is not set, this stub
// package is compiled instead and New returns ErrUnavailable.
//
// Build with: go build -tags=manifold
package manifold

import "github.com/chazu/cyclesxml/pkg/kernel"

// Available reports whether this build links the Manifold library.
const Available = false

// New returns ErrUnavailable.
func New(segments int) (kernel.Kernel, error) {
	return nil, ErrUnavailable
}
