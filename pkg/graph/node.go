package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"strconv"
	"strings"
)

// NodeID is a stable identifier for a shader node. It is derived from a
// path and is independent of the node's display name.
type NodeID string

// ZeroID is the empty node identifier.
const ZeroID NodeID = ""

// NewNodeID derives a NodeID from a path such as "Material/3".
func NewNodeID(path string) NodeID {
	sum := sha256.Sum256([]byte(path))
	return NodeID(hex.EncodeToString(sum[:16]))
}

// IsZero reports whether the id is unset.
func (id NodeID) IsZero() bool { return id == ZeroID }

// Short returns an abbreviated id for log and error messages.
func (id NodeID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// Direction says whether a socket receives or produces a value.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// SocketType is the value type carried by a socket.
type SocketType int

const (
	SocketShader SocketType = iota // closure, no constant default
	SocketValue                    // scalar
	SocketRGBA                     // color with alpha
	SocketVector                   // 3-component vector
)

func (t SocketType) String() string {
	switch t {
	case SocketShader:
		return "shader"
	case SocketValue:
		return "value"
	case SocketRGBA:
		return "rgba"
	case SocketVector:
		return "vector"
	default:
		return "unknown"
	}
}

// Socket is a named, typed port on a node. Names are not unique within
// a node's inputs or outputs.
type Socket struct {
	Name      string     `json:"name"`
	Direction Direction  `json:"direction"`
	Type      SocketType `json:"type"`
	Default   []float64  `json:"default,omitempty"` // nil when the socket has no constant
}

// HasDefault reports whether the socket carries a constant value.
func (s *Socket) HasDefault() bool { return len(s.Default) > 0 }

// ImageAsset is the image referenced by a texture node. Pixels is set
// for packed images whose data lives in memory rather than on disk.
type ImageAsset struct {
	Name   string      `json:"name"`
	Path   string      `json:"path"`
	Pixels image.Image `json:"-"`
}

// Node is a single shading node.
type Node struct {
	ID      NodeID      `json:"id"`
	Name    string      `json:"name"`
	Type    string      `json:"type"` // source kind, e.g. BSDF_DIFFUSE
	Inputs  []Socket    `json:"inputs,omitempty"`
	Outputs []Socket    `json:"outputs,omitempty"`
	Image   *ImageAsset `json:"image,omitempty"`
	Color   []float64   `json:"color,omitempty"` // RGB node literal
	Value   *float64    `json:"value,omitempty"` // VALUE node literal
	Active  bool        `json:"active,omitempty"` // active output flag
}

// Sockets returns the node's sockets in the given direction.
func (n *Node) Sockets(dir Direction) []Socket {
	if dir == Output {
		return n.Outputs
	}
	return n.Inputs
}

// Socket returns a pointer to the socket at index i, or nil if out of range.
func (n *Node) Socket(dir Direction, i int) *Socket {
	socks := n.Sockets(dir)
	if i < 0 || i >= len(socks) {
		return nil
	}
	return &socks[i]
}

// Occurrence returns the 1-based position of socket i among the
// same-direction sockets sharing its name, and how many share it.
func (n *Node) Occurrence(dir Direction, i int) (nth, count int) {
	socks := n.Sockets(dir)
	if i < 0 || i >= len(socks) {
		return 0, 0
	}
	name := socks[i].Name
	for j, s := range socks {
		if s.Name != name {
			continue
		}
		count++
		if j == i {
			nth = count
		}
	}
	return nth, count
}

// FindSocket resolves a socket by name. The name may carry an occurrence
// suffix ("Shader2") to pick among duplicates; a bare name picks the first
// match. Matching ignores case and treats spaces, underscores, and hyphens
// as equal. Returns -1 when nothing matches.
func (n *Node) FindSocket(dir Direction, name string) int {
	want := foldSocketName(name)
	socks := n.Sockets(dir)
	for i, s := range socks {
		if foldSocketName(s.Name) == want {
			return i
		}
	}
	for i, s := range socks {
		nth, count := n.Occurrence(dir, i)
		if count > 1 && foldSocketName(s.Name)+strconv.Itoa(nth) == want {
			return i
		}
	}
	return -1
}

func foldSocketName(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// outputTypes is the closed set of node kinds that terminate a node tree.
var outputTypes = map[string]bool{
	"OUTPUT":          true,
	"OUTPUT_MATERIAL": true,
	"OUTPUT_WORLD":    true,
	"OUTPUT_LAMP":     true,
	"OUTPUT_LIGHT":    true,
}

// IsOutput reports whether the node is a graph output candidate.
func (n *Node) IsOutput() bool {
	return outputTypes[n.Type]
}
