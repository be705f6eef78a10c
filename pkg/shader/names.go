package shader

import (
	"strconv"
	"strings"

	"github.com/chazu/cyclesxml/pkg/graph"
)

// OutputName is the fixed element name of a shader's output node.
const OutputName = "output"

// Allocator hands out node and socket names for one serialization pass.
// Synthetic names are deterministic: the same graph always yields the same
// names.
type Allocator struct {
	output *graph.Node
	used   map[string]bool
	names  map[graph.NodeID]string
}

// NewAllocator reserves the display name of every node in s, plus the
// output name, so synthetic names never collide with them. A declared
// node that would display as "output" is renamed with a suffix so it
// cannot be mistaken for the output node in connect elements.
func NewAllocator(s *graph.Shader, output *graph.Node) *Allocator {
	a := &Allocator{
		output: output,
		used:   map[string]bool{OutputName: true},
		names:  make(map[graph.NodeID]string, len(s.Nodes)),
	}
	var clashing []*graph.Node
	for _, n := range s.Nodes {
		if a.isOutput(n) {
			continue
		}
		name := plainName(n)
		if name == OutputName {
			clashing = append(clashing, n)
			continue
		}
		a.names[n.ID] = name
		a.used[name] = true
	}
	for _, n := range clashing {
		a.names[n.ID] = a.SyntheticName(OutputName)
	}
	return a
}

func (a *Allocator) isOutput(n *graph.Node) bool {
	return a.output != nil && n.ID == a.output.ID
}

func plainName(n *graph.Node) string {
	return strings.ReplaceAll(n.Name, " ", "_")
}

// NodeDisplayName returns the element name of n: "output" for the output
// node, otherwise the declared name with spaces replaced by underscores.
func (a *Allocator) NodeDisplayName(n *graph.Node) string {
	if a.isOutput(n) {
		return OutputName
	}
	if name, ok := a.names[n.ID]; ok {
		return name
	}
	return plainName(n)
}

// DisambiguatedSocketName returns the socket's name with a 1-based
// occurrence index appended when other same-direction sockets on the node
// share the name.
func DisambiguatedSocketName(n *graph.Node, dir graph.Direction, i int) string {
	s := n.Socket(dir, i)
	if s == nil {
		return ""
	}
	nth, count := n.Occurrence(dir, i)
	if count > 1 {
		return s.Name + strconv.Itoa(nth)
	}
	return s.Name
}

// SocketName returns the translated, disambiguated name of a socket as it
// appears in connect elements.
func SocketName(n *graph.Node, dir graph.Direction, i int) string {
	return TargetSocketName(n.Type, DisambiguatedSocketName(n, dir, i))
}

// SyntheticName returns base with spaces replaced, or base with the
// smallest numeric suffix (_2, _3, ...) that is not yet taken, and
// reserves it.
func (a *Allocator) SyntheticName(base string) string {
	base = strings.ReplaceAll(base, " ", "_")
	name := base
	for i := 2; a.used[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	a.used[name] = true
	return name
}
