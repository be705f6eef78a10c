// Package graph defines the shading node graph types for cyclesxml.
// A Shader is an immutable view over one material, world, or light node
// tree: typed nodes with ordered input and output sockets, and the links
// between them.
package graph
