package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/cyclesxml/pkg/graph"
	"github.com/chazu/cyclesxml/pkg/kernel"
	"github.com/chazu/cyclesxml/pkg/scene"
	"github.com/chazu/cyclesxml/pkg/tessellate"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/go-gl/mathgl/mgl64"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms scene script source before passing it to
// zygomys. It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: light-shader -> light_shader
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
//  3. Line comments: ; -> //
//
// All transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only when the hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

type sexpVec3 struct {
	vec mgl64.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

type sexpColor struct {
	rgba [4]float64
}

func (c *sexpColor) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(rgba %g %g %g %g)", c.rgba[0], c.rgba[1], c.rgba[2], c.rgba[3])
}
func (c *sexpColor) Type() *zygo.RegisteredType { return nil }

type sexpImage struct {
	asset *graph.ImageAsset
}

func (im *sexpImage) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(image %q)", im.asset.Path)
}
func (im *sexpImage) Type() *zygo.RegisteredType { return nil }

// sexpNode wraps a shading node that is not yet part of a shader.
type sexpNode struct {
	node *graph.Node
}

func (n *sexpNode) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(node %q %q)", n.node.Type, n.node.Name)
}
func (n *sexpNode) Type() *zygo.RegisteredType { return nil }

type sexpLink struct {
	from, to      *graph.Node
	output, input string
}

func (l *sexpLink) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(link %q %q %q %q)", l.from.Name, l.output, l.to.Name, l.input)
}
func (l *sexpLink) Type() *zygo.RegisteredType { return nil }

type sexpShader struct {
	shader *graph.Shader
}

func (s *sexpShader) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q)", s.shader.Kind, s.shader.Name)
}
func (s *sexpShader) Type() *zygo.RegisteredType { return nil }

type sexpSolid struct {
	solid kernel.Solid
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	min, max := s.solid.BoundingBox()
	return fmt.Sprintf("(solid %v %v)", min, max)
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

type sexpMesh struct {
	mesh *scene.MeshData
}

func (m *sexpMesh) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(mesh %d verts %d faces)", len(m.mesh.Positions), len(m.mesh.Faces))
}
func (m *sexpMesh) Type() *zygo.RegisteredType { return nil }

type sexpObject struct {
	obj *scene.Object
}

func (o *sexpObject) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(object %q %s)", o.obj.Name, o.obj.Kind)
}
func (o *sexpObject) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string // keyword names in source order
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if _, dup := result.kw[name]; !dup {
			result.order = append(result.order, name)
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			// Keyword at end with no value: treat as flag with nil.
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		// A bare trailing keyword is a flag.
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_persp) and plain strings ("persp").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toVec3 accepts a vec3 value or a list of three numbers.
func toVec3(s zygo.Sexp) (mgl64.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	fs, err := toFloats(s)
	if err != nil || len(fs) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
	}
	return mgl64.Vec3{fs[0], fs[1], fs[2]}, nil
}

// toColor accepts an rgba value or a list of three or four numbers.
func toColor(s zygo.Sexp) ([]float64, error) {
	if c, ok := s.(*sexpColor); ok {
		return c.rgba[:], nil
	}
	fs, err := toFloats(s)
	if err != nil || len(fs) < 3 || len(fs) > 4 {
		return nil, fmt.Errorf("expected rgba, got %T (%s)", s, s.SexpString(nil))
	}
	if len(fs) == 3 {
		fs = append(fs, 1)
	}
	return fs, nil
}

func toFloats(s zygo.Sexp) ([]float64, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if out[i], err = toFloat64(item); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

func toInts(s zygo.Sexp) ([]int, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(items))
	for i, item := range items {
		if out[i], err = toInt(item); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

func toNode(s zygo.Sexp) (*graph.Node, error) {
	if n, ok := s.(*sexpNode); ok {
		return n.node, nil
	}
	return nil, fmt.Errorf("expected node, got %T (%s)", s, s.SexpString(nil))
}

func toShader(s zygo.Sexp, kind graph.ShaderKind) (*graph.Shader, error) {
	sh, ok := s.(*sexpShader)
	if !ok {
		return nil, fmt.Errorf("expected %s, got %T (%s)", kind, s, s.SexpString(nil))
	}
	if sh.shader.Kind != kind {
		return nil, fmt.Errorf("expected %s, got %s %q", kind, sh.shader.Kind, sh.shader.Name)
	}
	return sh.shader, nil
}

func toSolid(s zygo.Sexp) (kernel.Solid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v.solid, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Evaluation state
// ---------------------------------------------------------------------------

// builder accumulates the scene during one evaluation.
type builder struct {
	scene  *scene.Scene
	kernel kernel.Kernel
	weld   float64
	seq    int // node id sequence, scoped to the evaluation
	warn   func(msg string, args ...any)

	owner map[*graph.Node]*graph.Shader // nodes already placed in a shader
}

func (b *builder) nextNodeID(kind string) graph.NodeID {
	b.seq++
	return graph.NewNodeID(fmt.Sprintf("%s/%d", kind, b.seq))
}

// transform reads :at, :rotate and :scale into an object matrix.
func transform(pa kwArgs, fn string) (mgl64.Mat4, error) {
	at, rot, scale := mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}
	for key, dst := range map[string]*mgl64.Vec3{"at": &at, "rotate": &rot, "scale": &scale} {
		v, ok := pa.kw[key]
		if !ok {
			continue
		}
		if key == "scale" {
			if f, err := toFloat64(v); err == nil {
				*dst = mgl64.Vec3{f, f, f}
				continue
			}
		}
		vec, err := toVec3(v)
		if err != nil {
			return mgl64.Mat4{}, fmt.Errorf("%s: %s: %w", fn, key, err)
		}
		*dst = vec
	}
	return scene.Compose(at, rot, scale), nil
}

// buildShader assembles a shader from its body: nodes and links in any
// order. Nodes only reachable through links are added at first reference.
func (b *builder) buildShader(fn string, kind graph.ShaderKind, args []zygo.Sexp) (*graph.Shader, error) {
	pa := parseArgs(args)
	if len(pa.positional) < 1 {
		return nil, fmt.Errorf("%s requires a name argument", fn)
	}
	name, err := toString(pa.positional[0])
	if err != nil {
		return nil, fmt.Errorf("%s: name: %w", fn, err)
	}

	sh := graph.New(name, kind)
	if v, ok := pa.kw["use-nodes"]; ok {
		on, err := toBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: use-nodes: %w", fn, err)
		}
		sh.UseNodes = on
	}

	if b.owner == nil {
		b.owner = map[*graph.Node]*graph.Shader{}
	}
	add := func(n *graph.Node) error {
		switch prev := b.owner[n]; {
		case prev == sh:
			return nil
		case prev != nil:
			return fmt.Errorf("%s %q: node %q already belongs to %q", fn, name, n.Name, prev.Name)
		}
		b.owner[n] = sh
		sh.AddNode(n)
		return nil
	}
	var links []*sexpLink
	for i, item := range pa.positional[1:] {
		switch v := item.(type) {
		case *sexpNode:
			if err := add(v.node); err != nil {
				return nil, err
			}
		case *sexpLink:
			if err := add(v.from); err != nil {
				return nil, err
			}
			if err := add(v.to); err != nil {
				return nil, err
			}
			links = append(links, v)
		default:
			return nil, fmt.Errorf("%s %q: item %d: expected node or link, got %T (%s)",
				fn, name, i+1, item, item.SexpString(nil))
		}
	}
	for _, l := range links {
		if err := sh.Connect(l.from, l.output, l.to, l.input); err != nil {
			return nil, fmt.Errorf("%s %q: %w", fn, name, err)
		}
	}
	return sh, nil
}

// reserved node keywords that are not input sockets.
var nodeKeywords = map[string]bool{"image": true, "color": true, "value": true, "active": true}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the scene DSL builtins into a zygomys
// environment. The builtins populate b.scene during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var v mgl64.Vec3
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			v[i] = f
		}
		return &sexpVec3{vec: v}, nil
	})

	// -----------------------------------------------------------------------
	// (rgba 0.8 0.1 0.1) or (rgba 0.8 0.1 0.1 1)
	// -----------------------------------------------------------------------
	env.AddFunction("rgba", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 && len(args) != 4 {
			return zygo.SexpNull, fmt.Errorf("rgba requires 3 or 4 arguments, got %d", len(args))
		}
		c := &sexpColor{rgba: [4]float64{0, 0, 0, 1}}
		for i, arg := range args {
			f, err := toFloat64(arg)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rgba: channel %d: %w", i, err)
			}
			c.rgba[i] = f
		}
		return c, nil
	})

	// -----------------------------------------------------------------------
	// (film :width 1280 :height 720 :percent 50)
	// -----------------------------------------------------------------------
	env.AddFunction("film", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		f := &b.scene.Film
		for key, dst := range map[string]*int{"width": &f.Width, "height": &f.Height, "percent": &f.Percent} {
			v, ok := pa.kw[key]
			if !ok {
				continue
			}
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("film: %s: %w", key, err)
			}
			if n <= 0 {
				return zygo.SexpNull, fmt.Errorf("film: %s must be positive, got %d", key, n)
			}
			*dst = n
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (image "//textures/wood.png" :name "wood")
	// -----------------------------------------------------------------------
	env.AddFunction("image", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("image requires a path argument")
		}
		path, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("image: path: %w", err)
		}
		asset := &graph.ImageAsset{Name: path, Path: path}
		if v, ok := pa.kw["name"]; ok {
			if asset.Name, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("image: name: %w", err)
			}
		}
		return &sexpImage{asset: asset}, nil
	})

	// -----------------------------------------------------------------------
	// (node "BSDF_DIFFUSE" "Diffuse" :Color (rgba 0.8 0.1 0.1) :Roughness 0.2)
	//
	// Keywords other than :image, :color, :value and :active set the
	// default of the input socket with that name.
	// -----------------------------------------------------------------------
	env.AddFunction("node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("node requires a type argument")
		}
		kind, err := toKeywordString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: type: %w", err)
		}
		kind = strings.ToUpper(kind)
		display := kind
		if len(pa.positional) > 1 {
			if display, err = toString(pa.positional[1]); err != nil {
				return zygo.SexpNull, fmt.Errorf("node: name: %w", err)
			}
		}
		if !graph.KnownType(kind) {
			b.warn("node type has no socket template", "type", kind, "node", display)
		}
		n := graph.NewNode(b.nextNodeID(kind), kind, display)

		if v, ok := pa.kw["image"]; ok {
			im, ok := v.(*sexpImage)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("node %q: image: expected image, got %T", display, v)
			}
			n.Image = im.asset
		}
		if v, ok := pa.kw["color"]; ok {
			if n.Color, err = toColor(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("node %q: color: %w", display, err)
			}
		}
		if v, ok := pa.kw["value"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("node %q: value: %w", display, err)
			}
			n.Value = &f
		}
		if v, ok := pa.kw["active"]; ok {
			if n.Active, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("node %q: active: %w", display, err)
			}
		}

		for _, key := range pa.order {
			if nodeKeywords[key] {
				continue
			}
			i := n.FindSocket(graph.Input, key)
			if i < 0 {
				return zygo.SexpNull, fmt.Errorf("node %q: no input named %q", display, key)
			}
			sock := &n.Inputs[i]
			v := pa.kw[key]
			switch sock.Type {
			case graph.SocketValue:
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("node %q: %s: %w", display, key, err)
				}
				sock.Default = []float64{f}
			case graph.SocketRGBA:
				c, err := toColor(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("node %q: %s: %w", display, key, err)
				}
				sock.Default = c
			case graph.SocketVector:
				vec, err := toVec3(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("node %q: %s: %w", display, key, err)
				}
				sock.Default = []float64{vec[0], vec[1], vec[2]}
			default:
				return zygo.SexpNull, fmt.Errorf("node %q: input %q takes a shader and cannot have a default", display, key)
			}
		}
		return &sexpNode{node: n}, nil
	})

	// -----------------------------------------------------------------------
	// (link diffuse "BSDF" out "Surface")
	// -----------------------------------------------------------------------
	env.AddFunction("link", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 4 {
			return zygo.SexpNull, fmt.Errorf("link requires from, output, to, input; got %d arguments", len(args))
		}
		from, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("link: from: %w", err)
		}
		output, err := toKeywordString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("link: output: %w", err)
		}
		to, err := toNode(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("link: to: %w", err)
		}
		input, err := toKeywordString(args[3])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("link: input: %w", err)
		}
		return &sexpLink{from: from, output: output, to: to, input: input}, nil
	})

	// -----------------------------------------------------------------------
	// (material "Red" diffuse out (link diffuse "BSDF" out "Surface"))
	// -----------------------------------------------------------------------
	env.AddFunction("material", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		sh, err := b.buildShader("material", graph.KindMaterial, args)
		if err != nil {
			return zygo.SexpNull, err
		}
		b.scene.AddShader(sh)
		return &sexpShader{shader: sh}, nil
	})

	// -----------------------------------------------------------------------
	// (world "World" bg out (link bg "Background" out "Surface"))
	// -----------------------------------------------------------------------
	env.AddFunction("world", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		sh, err := b.buildShader("world", graph.KindWorld, args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if b.scene.World != nil {
			b.warn("world replaced", "old", b.scene.World.Name, "new", sh.Name)
		}
		b.scene.SetWorld(sh)
		return &sexpShader{shader: sh}, nil
	})

	// -----------------------------------------------------------------------
	// (light-shader "Warm" emit out (link emit "Emission" out "Surface"))
	// -----------------------------------------------------------------------
	env.AddFunction("light_shader", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		sh, err := b.buildShader("light-shader", graph.KindLight, args)
		if err != nil {
			return zygo.SexpNull, err
		}
		b.scene.AddShader(sh)
		return &sexpShader{shader: sh}, nil
	})

	// -----------------------------------------------------------------------
	// Solids: (box 2 2 2) (sphere 1) (cylinder 2 0.5)
	//         (union a b) (difference a b) (intersection a b)
	//         (translate s (vec3 1 0 0)) (rotate s (vec3 0 0 45))
	// -----------------------------------------------------------------------
	needKernel := func(fn string) error {
		if b.kernel == nil {
			return fmt.Errorf("%s: no geometry kernel configured", fn)
		}
		return nil
	}
	positive := func(fn string, args []zygo.Sexp, n int) ([]float64, error) {
		if err := needKernel(fn); err != nil {
			return nil, err
		}
		if len(args) != n {
			return nil, fmt.Errorf("%s requires exactly %d arguments, got %d", fn, n, len(args))
		}
		out := make([]float64, n)
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", fn, i+1, err)
			}
			if f <= 0 {
				return nil, fmt.Errorf("%s: argument %d must be positive, got %g", fn, i+1, f)
			}
			out[i] = f
		}
		return out, nil
	}

	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		d, err := positive("box", args, 3)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolid{solid: b.kernel.Box(d[0], d[1], d[2])}, nil
	})
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		d, err := positive("sphere", args, 1)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolid{solid: b.kernel.Sphere(d[0])}, nil
	})
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		d, err := positive("cylinder", args, 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolid{solid: b.kernel.Cylinder(d[0], d[1])}, nil
	})

	booleans := map[string]func(a, c kernel.Solid) kernel.Solid{
		"union":        func(a, c kernel.Solid) kernel.Solid { return b.kernel.Union(a, c) },
		"difference":   func(a, c kernel.Solid) kernel.Solid { return b.kernel.Difference(a, c) },
		"intersection": func(a, c kernel.Solid) kernel.Solid { return b.kernel.Intersection(a, c) },
	}
	for fn, op := range booleans {
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if err := needKernel(fn); err != nil {
				return zygo.SexpNull, err
			}
			if len(args) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least 2 solids, got %d", fn, len(args))
			}
			acc, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: argument 1: %w", fn, err)
			}
			for i, a := range args[1:] {
				s, err := toSolid(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: argument %d: %w", fn, i+2, err)
				}
				acc = op(acc, s)
			}
			return &sexpSolid{solid: acc}, nil
		})
	}

	transforms := map[string]func(s kernel.Solid, v mgl64.Vec3) kernel.Solid{
		"translate": func(s kernel.Solid, v mgl64.Vec3) kernel.Solid { return b.kernel.Translate(s, v[0], v[1], v[2]) },
		"rotate":    func(s kernel.Solid, v mgl64.Vec3) kernel.Solid { return b.kernel.Rotate(s, v[0], v[1], v[2]) },
	}
	for fn, op := range transforms {
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if err := needKernel(fn); err != nil {
				return zygo.SexpNull, err
			}
			if len(args) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires a solid and a vec3", fn)
			}
			s, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			v, err := toVec3(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			return &sexpSolid{solid: op(s, v)}, nil
		})
	}

	// -----------------------------------------------------------------------
	// (mesh :solid (box 2 2 2))
	// (mesh :box (vec3 2 2 2)) (mesh :sphere 1) (mesh :cylinder (list 2 0.5))
	// (mesh :P (list 0 0 0 1 0 0 0 1 0) :nverts (list 3) :verts (list 0 1 2))
	// -----------------------------------------------------------------------
	env.AddFunction("mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if _, ok := pa.kw["P"]; ok {
			m, err := explicitMesh(pa)
			if err != nil {
				return zygo.SexpNull, err
			}
			return &sexpMesh{mesh: m}, nil
		}

		if err := needKernel("mesh"); err != nil {
			return zygo.SexpNull, err
		}
		var solid kernel.Solid
		switch {
		case pa.kw["solid"] != nil:
			s, err := toSolid(pa.kw["solid"])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("mesh: solid: %w", err)
			}
			solid = s
		case pa.kw["box"] != nil:
			v, err := toVec3(pa.kw["box"])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("mesh: box: %w", err)
			}
			if v[0] <= 0 || v[1] <= 0 || v[2] <= 0 {
				return zygo.SexpNull, fmt.Errorf("mesh: box dimensions must be positive")
			}
			solid = b.kernel.Box(v[0], v[1], v[2])
		case pa.kw["sphere"] != nil:
			r, err := toFloat64(pa.kw["sphere"])
			if err != nil || r <= 0 {
				return zygo.SexpNull, fmt.Errorf("mesh: sphere: expected positive radius")
			}
			solid = b.kernel.Sphere(r)
		case pa.kw["cylinder"] != nil:
			d, err := toFloats(pa.kw["cylinder"])
			if err != nil || len(d) != 2 || d[0] <= 0 || d[1] <= 0 {
				return zygo.SexpNull, fmt.Errorf("mesh: cylinder: expected (list height radius)")
			}
			solid = b.kernel.Cylinder(d[0], d[1])
		default:
			return zygo.SexpNull, fmt.Errorf("mesh requires :solid, :box, :sphere, :cylinder or :P")
		}
		m, err := tessellate.Tessellate(b.kernel, solid, b.weld)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh: %w", err)
		}
		return &sexpMesh{mesh: m}, nil
	})

	// -----------------------------------------------------------------------
	// (object "Cube" :mesh m :material red :at (vec3 0 0 1) :rotate (vec3 0 0 45) :scale 2)
	// (object "Hair" :kind "CURVE")
	// -----------------------------------------------------------------------
	env.AddFunction("object", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("object requires a name argument")
		}
		objName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("object: name: %w", err)
		}
		m, err := transform(pa, "object")
		if err != nil {
			return zygo.SexpNull, err
		}
		o := &scene.Object{Name: objName, Kind: scene.KindMesh, Matrix: m}

		if v, ok := pa.kw["kind"]; ok {
			k, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("object: kind: %w", err)
			}
			o.Kind = scene.Kind(strings.ToUpper(k))
		}
		if v, ok := pa.kw["mesh"]; ok {
			mv, ok := v.(*sexpMesh)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("object %q: mesh: expected mesh, got %T", objName, v)
			}
			o.Mesh = mv.mesh
		}
		if v, ok := pa.kw["material"]; ok {
			items := []zygo.Sexp{v}
			if _, single := v.(*sexpShader); !single {
				if items, err = sexpListToSlice(v); err != nil {
					return zygo.SexpNull, fmt.Errorf("object %q: material: %w", objName, err)
				}
			}
			for _, item := range items {
				sh, err := toShader(item, graph.KindMaterial)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("object %q: material: %w", objName, err)
				}
				o.Materials = append(o.Materials, sh)
			}
		}
		b.scene.AddObject(o)
		return &sexpObject{obj: o}, nil
	})

	// -----------------------------------------------------------------------
	// (lamp "Key" :at (vec3 4 -4 6) :shader warm)
	// -----------------------------------------------------------------------
	env.AddFunction("lamp", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("lamp requires a name argument")
		}
		lampName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lamp: name: %w", err)
		}
		m, err := transform(pa, "lamp")
		if err != nil {
			return zygo.SexpNull, err
		}
		o := &scene.Object{Name: lampName, Kind: scene.KindLight, Matrix: m, Light: &scene.LightData{}}
		if v, ok := pa.kw["shader"]; ok {
			if o.Light.Shader, err = toShader(v, graph.KindLight); err != nil {
				return zygo.SexpNull, fmt.Errorf("lamp %q: shader: %w", lampName, err)
			}
		}
		b.scene.AddObject(o)
		return &sexpObject{obj: o}, nil
	})

	// -----------------------------------------------------------------------
	// (camera "Cam" :type :persp :at (vec3 0 -10 2) :rotate (vec3 80 0 0)
	//         :near 0.1 :far 100 :focus 10 :active true)
	//
	// The first camera is active unless a later one says :active.
	// -----------------------------------------------------------------------
	env.AddFunction("camera", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		camName := "Camera"
		if len(pa.positional) > 0 {
			var err error
			if camName, err = toString(pa.positional[0]); err != nil {
				return zygo.SexpNull, fmt.Errorf("camera: name: %w", err)
			}
		}
		m, err := transform(pa, "camera")
		if err != nil {
			return zygo.SexpNull, err
		}
		cd := &scene.CameraData{Projection: scene.Perspective, ClipStart: 0.1, ClipEnd: 100, FocusDistance: 10}
		if v, ok := pa.kw["type"]; ok {
			p, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("camera: type: %w", err)
			}
			cd.Projection = scene.Projection(strings.ToUpper(p))
		}
		for key, dst := range map[string]*float64{"near": &cd.ClipStart, "far": &cd.ClipEnd, "focus": &cd.FocusDistance} {
			v, ok := pa.kw[key]
			if !ok {
				continue
			}
			if *dst, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("camera: %s: %w", key, err)
			}
		}
		o := &scene.Object{Name: camName, Kind: scene.KindCamera, Matrix: m, Camera: cd}
		active := b.scene.Camera == nil
		if v, ok := pa.kw["active"]; ok {
			if active, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("camera: active: %w", err)
			}
		}
		b.scene.AddObject(o)
		if active {
			b.scene.Camera = o
		}
		return &sexpObject{obj: o}, nil
	})
}

// explicitMesh reads :P, :nverts and :verts into mesh data.
func explicitMesh(pa kwArgs) (*scene.MeshData, error) {
	p, err := toFloats(pa.kw["P"])
	if err != nil {
		return nil, fmt.Errorf("mesh: P: %w", err)
	}
	if len(p)%3 != 0 {
		return nil, fmt.Errorf("mesh: P has %d values, not a multiple of 3", len(p))
	}
	nverts, err := toInts(pa.kw["nverts"])
	if err != nil {
		return nil, fmt.Errorf("mesh: nverts: %w", err)
	}
	verts, err := toInts(pa.kw["verts"])
	if err != nil {
		return nil, fmt.Errorf("mesh: verts: %w", err)
	}

	m := &scene.MeshData{}
	for i := 0; i < len(p); i += 3 {
		m.Positions = append(m.Positions, mgl64.Vec3{p[i], p[i+1], p[i+2]})
	}
	at := 0
	for i, n := range nverts {
		if at+n > len(verts) {
			return nil, fmt.Errorf("mesh: face %d needs %d indices, only %d remain", i, n, len(verts)-at)
		}
		m.Faces = append(m.Faces, append([]int(nil), verts[at:at+n]...))
		at += n
	}
	if at != len(verts) {
		return nil, fmt.Errorf("mesh: %d unused vertex indices", len(verts)-at)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	return m, nil
}
