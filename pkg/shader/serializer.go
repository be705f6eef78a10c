package shader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chazu/cyclesxml/pkg/graph"
	"github.com/chazu/cyclesxml/pkg/texture"
	"github.com/chazu/cyclesxml/pkg/xmlout"
)

// ErrInvalidGraph is returned when validation finds structural errors.
var ErrInvalidGraph = errors.New("shader: invalid node graph")

// TextureResolver resolves the image asset of a texture node.
type TextureResolver interface {
	Resolve(ctx context.Context, n *graph.Node) (texture.Resolved, error)
}

// Options configures a Serializer.
type Options struct {
	Textures           TextureResolver // nil writes image paths as-is
	Validate           bool            // run graph.Validate before serializing
	PreferActiveOutput bool            // pick the Active output node over the first one
	Logger             *slog.Logger
}

// DefaultOptions returns options with validation enabled and reference-mode
// textures.
func DefaultOptions() Options {
	return Options{
		Textures: texture.NewResolver(texture.ModeReference, nil, "", nil),
		Validate: true,
	}
}

// Serializer converts shader node graphs into Cycles XML elements. It
// keeps no per-graph state, so one Serializer may be shared by concurrent
// callers.
type Serializer struct {
	opts   Options
	logger *slog.Logger
}

// NewSerializer returns a serializer with the given options.
func NewSerializer(opts Options) *Serializer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Serializer{opts: opts, logger: logger}
}

// Serialize renders s as a shader element (background for world shaders).
// A shader that does not use nodes, or has no output node, is skipped and
// yields nil with no error.
func (z *Serializer) Serialize(ctx context.Context, s *graph.Shader) (*xmlout.Element, error) {
	if s == nil || !s.UseNodes {
		z.logger.Debug("shader skipped, node tree disabled", "shader", shaderName(s))
		return nil, nil
	}
	output := s.OutputNode(z.opts.PreferActiveOutput)
	if output == nil {
		z.logger.Debug("shader skipped, no output node", "shader", s.Name)
		return nil, nil
	}

	if z.opts.Validate {
		findings := graph.Validate(s)
		for _, f := range findings {
			if f.Severity == graph.SeverityWarning {
				z.logger.Warn("shader graph", "shader", s.Name, "finding", f.Error())
			}
		}
		if graph.HasErrors(findings) {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidGraph, s.Name, errors.Join(errorsOnly(findings)...))
		}
	}

	alloc := NewAllocator(s, output)
	conns, linked := z.connections(s, output, alloc)

	var (
		body      []*xmlout.Element
		synthetic []Connection
	)
	for _, n := range s.Nodes {
		if n.IsOutput() {
			continue
		}
		nodes, links := Materialize(n, linked, alloc)
		body = append(body, nodes...)
		synthetic = append(synthetic, links...)

		el, err := z.nodeElement(ctx, n, alloc)
		if err != nil {
			return nil, fmt.Errorf("shader %s: node %s: %w", s.Name, n.Name, err)
		}
		body = append(body, el)
	}

	for _, c := range synthetic {
		body = append(body, c.Element())
	}
	for _, c := range conns {
		body = append(body, c.Element())
	}

	tag := "shader"
	if s.Kind == graph.KindWorld {
		tag = "background"
	}
	return xmlout.New(tag, "name", s.Name).Append(body...), nil
}

// nodeElement emits the element for one non-output node.
func (z *Serializer) nodeElement(ctx context.Context, n *graph.Node, alloc *Allocator) (*xmlout.Element, error) {
	el := xmlout.New(TargetTypeName(n.Type), "name", alloc.NodeDisplayName(n))

	switch n.Type {
	case "TEX_IMAGE", "TEX_ENVIRONMENT":
		if n.Image == nil {
			break
		}
		res := texture.Resolved{Path: texture.StripRelative(n.Image.Path)}
		if z.opts.Textures != nil {
			var err error
			res, err = z.opts.Textures.Resolve(ctx, n)
			if err != nil {
				return nil, err
			}
		}
		el.Set("src", res.Path)
		if res.Inline != "" {
			el.Set("inline", res.Inline)
		}
	case "RGB":
		c := n.Color
		if c == nil && len(n.Outputs) > 0 {
			c = n.Outputs[0].Default
		}
		if c != nil {
			el.Set("value", formatRGB(c))
		}
	case "VALUE":
		switch {
		case n.Value != nil:
			el.Set("value", xmlout.FormatFloat(*n.Value))
		case len(n.Outputs) > 0 && n.Outputs[0].HasDefault():
			el.Set("value", xmlout.FormatFloat(n.Outputs[0].Default[0]))
		}
	}
	return el, nil
}

// connections translates the source links in declaration order and
// reports which inputs they feed. Links leaving the output node are
// dropped, as are links touching an output node other than the selected
// one. Without validation, unresolvable links are logged and dropped.
// An input fed only by a dropped link counts as unlinked.
func (z *Serializer) connections(s *graph.Shader, output *graph.Node, alloc *Allocator) ([]Connection, map[inputKey]bool) {
	conns := make([]Connection, 0, len(s.Links))
	linked := make(map[inputKey]bool, len(s.Links))
	for _, l := range s.Links {
		from, to := s.Get(l.FromNode), s.Get(l.ToNode)
		if from == nil || to == nil {
			z.logger.Warn("dropping link with missing endpoint", "shader", s.Name)
			continue
		}
		if from.ID == output.ID || from.IsOutput() {
			continue
		}
		if to.IsOutput() && to.ID != output.ID {
			continue
		}
		fs := SocketName(from, graph.Output, l.FromSocket)
		ts := SocketName(to, graph.Input, l.ToSocket)
		if fs == "" || ts == "" {
			z.logger.Warn("dropping link with missing socket", "shader", s.Name,
				"from", from.Name, "to", to.Name)
			continue
		}
		conns = append(conns, Connection{
			From: endpoint(alloc.NodeDisplayName(from), fs),
			To:   endpoint(alloc.NodeDisplayName(to), ts),
		})
		linked[inputKey{to.ID, l.ToSocket}] = true
	}
	return conns, linked
}

func errorsOnly(findings []graph.ValidationError) []error {
	var errs []error
	for _, f := range findings {
		if f.Severity == graph.SeverityError {
			errs = append(errs, f)
		}
	}
	return errs
}

func shaderName(s *graph.Shader) string {
	if s == nil {
		return ""
	}
	return s.Name
}
