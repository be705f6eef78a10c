package shader

import (
	"github.com/chazu/cyclesxml/pkg/graph"
	"github.com/chazu/cyclesxml/pkg/xmlout"
)

// Connection is one connect element: "node socket" endpoints.
type Connection struct {
	From string
	To   string
}

// Element returns the connect element for c.
func (c Connection) Element() *xmlout.Element {
	return xmlout.New("connect", "from", c.From, "to", c.To)
}

func endpoint(node, socket string) string {
	return node + " " + socket
}

// inputKey addresses one input socket of one node.
type inputKey struct {
	node  graph.NodeID
	input int
}

// Materialize turns the unconnected constant inputs of n into explicit
// constant nodes. Scalars become value nodes and colors become color
// nodes; vector and shader sockets, and sockets without a default, are
// left alone. The returned connections feed each synthetic node's single
// output into the input it replaces, in socket order.
func Materialize(n *graph.Node, linked map[inputKey]bool, alloc *Allocator) ([]*xmlout.Element, []Connection) {
	var (
		nodes []*xmlout.Element
		links []Connection
	)
	display := alloc.NodeDisplayName(n)
	for i := range n.Inputs {
		sock := &n.Inputs[i]
		if linked[inputKey{n.ID, i}] || !sock.HasDefault() {
			continue
		}

		var tag, out, value string
		switch sock.Type {
		case graph.SocketValue:
			tag, out = "value", "value"
			value = xmlout.FormatFloat(sock.Default[0])
		case graph.SocketRGBA:
			tag, out = "color", "color"
			value = formatRGB(sock.Default)
		default:
			continue
		}

		name := alloc.SyntheticName(display + "_" + sock.Name)
		nodes = append(nodes, xmlout.New(tag, "name", name, "value", value))
		links = append(links, Connection{
			From: endpoint(name, out),
			To:   endpoint(display, SocketName(n, graph.Input, i)),
		})
	}
	return nodes, links
}

// formatRGB renders the first three components of c, padding missing
// channels with zero. Alpha is dropped.
func formatRGB(c []float64) string {
	var rgb [3]float64
	copy(rgb[:], c)
	return xmlout.FormatFloats(rgb[:]...)
}
