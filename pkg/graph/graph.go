package graph

import "fmt"

// ShaderKind says which container a node tree belongs to.
type ShaderKind int

const (
	KindMaterial ShaderKind = iota
	KindWorld
	KindLight
)

func (k ShaderKind) String() string {
	switch k {
	case KindMaterial:
		return "material"
	case KindWorld:
		return "world"
	case KindLight:
		return "light"
	default:
		return "unknown"
	}
}

// Link is a directed edge from an output socket to an input socket.
// Sockets are addressed by index because names are not unique.
type Link struct {
	FromNode   NodeID `json:"from_node"`
	FromSocket int    `json:"from_socket"`
	ToNode     NodeID `json:"to_node"`
	ToSocket   int    `json:"to_socket"`
}

// Shader is a named node tree: a material, the world, or a light.
// Serializers treat it as read-only.
type Shader struct {
	ID       uint32     `json:"id"` // identity within a scene, assigned by the scene
	Name     string     `json:"name"`
	Kind     ShaderKind `json:"kind"`
	UseNodes bool       `json:"use_nodes"`
	Nodes    []*Node    `json:"nodes"`
	Links    []Link     `json:"links"`

	index map[NodeID]*Node
}

// New creates an empty node-based shader.
func New(name string, kind ShaderKind) *Shader {
	return &Shader{
		Name:     name,
		Kind:     kind,
		UseNodes: true,
		index:    make(map[NodeID]*Node),
	}
}

// AddNode appends a node in declaration order. It does not check for duplicates.
func (s *Shader) AddNode(n *Node) {
	if s.index == nil {
		s.reindex()
	}
	s.Nodes = append(s.Nodes, n)
	if _, ok := s.index[n.ID]; !ok {
		s.index[n.ID] = n
	}
}

// AddLink appends a link without resolving it.
func (s *Shader) AddLink(l Link) {
	s.Links = append(s.Links, l)
}

// Connect links the named output of from to the named input of to.
// Names are resolved with Node.FindSocket.
func (s *Shader) Connect(from *Node, output string, to *Node, input string) error {
	oi := from.FindSocket(Output, output)
	if oi < 0 {
		return fmt.Errorf("node %q has no output %q", from.Name, output)
	}
	ii := to.FindSocket(Input, input)
	if ii < 0 {
		return fmt.Errorf("node %q has no input %q", to.Name, input)
	}
	s.AddLink(Link{FromNode: from.ID, FromSocket: oi, ToNode: to.ID, ToSocket: ii})
	return nil
}

// Get returns the node with the given ID, or nil.
func (s *Shader) Get(id NodeID) *Node {
	if s.index != nil {
		return s.index[id]
	}
	for _, n := range s.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Lookup returns the first node with the given display name, or nil.
func (s *Shader) Lookup(name string) *Node {
	for _, n := range s.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// OutputCandidates returns every output-kind node in declaration order.
func (s *Shader) OutputCandidates() []*Node {
	var outs []*Node
	for _, n := range s.Nodes {
		if n.IsOutput() {
			outs = append(outs, n)
		}
	}
	return outs
}

// OutputNode returns the designated output: the first candidate, or, when
// preferActive is set, the first candidate flagged Active. Returns nil when
// the tree has no output node.
func (s *Shader) OutputNode(preferActive bool) *Node {
	outs := s.OutputCandidates()
	if len(outs) == 0 {
		return nil
	}
	if preferActive {
		for _, n := range outs {
			if n.Active {
				return n
			}
		}
	}
	return outs[0]
}

// NodeCount returns the number of declared nodes.
func (s *Shader) NodeCount() int {
	return len(s.Nodes)
}

func (s *Shader) reindex() {
	s.index = make(map[NodeID]*Node, len(s.Nodes))
	for _, n := range s.Nodes {
		if _, ok := s.index[n.ID]; !ok {
			s.index[n.ID] = n
		}
	}
}
