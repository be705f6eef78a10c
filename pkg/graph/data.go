package graph

// ---------------------------------------------------------------------------
// Node catalog
// ---------------------------------------------------------------------------

// socketTemplate describes one socket of a catalog node kind.
type socketTemplate struct {
	name string
	typ  SocketType
	def  []float64
}

// nodeTemplate lists the sockets a node kind is created with.
type nodeTemplate struct {
	inputs  []socketTemplate
	outputs []socketTemplate
}

func in(name string, typ SocketType, def ...float64) socketTemplate {
	return socketTemplate{name: name, typ: typ, def: def}
}

var (
	grey80  = []float64{0.8, 0.8, 0.8, 1}
	white   = []float64{1, 1, 1, 1}
	bsdfOut = []socketTemplate{in("BSDF", SocketShader)}
)

// catalog maps source node kinds to their socket layouts and defaults.
var catalog = map[string]nodeTemplate{
	// Shaders
	"BSDF_DIFFUSE": {
		inputs:  []socketTemplate{in("Color", SocketRGBA, grey80...), in("Roughness", SocketValue, 0), in("Normal", SocketVector)},
		outputs: bsdfOut,
	},
	"BSDF_GLOSSY": {
		inputs:  []socketTemplate{in("Color", SocketRGBA, grey80...), in("Roughness", SocketValue, 0.2), in("Normal", SocketVector)},
		outputs: bsdfOut,
	},
	"BSDF_GLASS": {
		inputs:  []socketTemplate{in("Color", SocketRGBA, white...), in("Roughness", SocketValue, 0), in("IOR", SocketValue, 1.45), in("Normal", SocketVector)},
		outputs: bsdfOut,
	},
	"BSDF_TRANSPARENT": {
		inputs:  []socketTemplate{in("Color", SocketRGBA, white...)},
		outputs: bsdfOut,
	},
	"BSDF_TRANSLUCENT": {
		inputs:  []socketTemplate{in("Color", SocketRGBA, grey80...), in("Normal", SocketVector)},
		outputs: bsdfOut,
	},
	"BSDF_VELVET": {
		inputs:  []socketTemplate{in("Color", SocketRGBA, grey80...), in("Sigma", SocketValue, 1), in("Normal", SocketVector)},
		outputs: bsdfOut,
	},
	"BSDF_ANISOTROPIC": {
		inputs: []socketTemplate{
			in("Color", SocketRGBA, grey80...), in("Roughness", SocketValue, 0.2),
			in("Anisotropy", SocketValue, 0.5), in("Rotation", SocketValue, 0),
			in("Normal", SocketVector), in("Tangent", SocketVector),
		},
		outputs: bsdfOut,
	},
	"EMISSION": {
		inputs:  []socketTemplate{in("Color", SocketRGBA, white...), in("Strength", SocketValue, 1)},
		outputs: []socketTemplate{in("Emission", SocketShader)},
	},
	"BACKGROUND": {
		inputs:  []socketTemplate{in("Color", SocketRGBA, grey80...), in("Strength", SocketValue, 1)},
		outputs: []socketTemplate{in("Background", SocketShader)},
	},
	"HOLDOUT": {
		outputs: []socketTemplate{in("Holdout", SocketShader)},
	},
	"MIX_SHADER": {
		inputs:  []socketTemplate{in("Fac", SocketValue, 0.5), in("Shader", SocketShader), in("Shader", SocketShader)},
		outputs: []socketTemplate{in("Shader", SocketShader)},
	},
	"ADD_SHADER": {
		inputs:  []socketTemplate{in("Shader", SocketShader), in("Shader", SocketShader)},
		outputs: []socketTemplate{in("Shader", SocketShader)},
	},

	// Textures
	"TEX_IMAGE": {
		inputs:  []socketTemplate{in("Vector", SocketVector)},
		outputs: []socketTemplate{in("Color", SocketRGBA), in("Alpha", SocketValue)},
	},
	"TEX_ENVIRONMENT": {
		inputs:  []socketTemplate{in("Vector", SocketVector)},
		outputs: []socketTemplate{in("Color", SocketRGBA)},
	},
	"TEX_CHECKER": {
		inputs: []socketTemplate{
			in("Vector", SocketVector), in("Color1", SocketRGBA, grey80...),
			in("Color2", SocketRGBA, 0.2, 0.2, 0.2, 1), in("Scale", SocketValue, 5),
		},
		outputs: []socketTemplate{in("Color", SocketRGBA), in("Fac", SocketValue)},
	},
	"TEX_NOISE": {
		inputs: []socketTemplate{
			in("Vector", SocketVector), in("Scale", SocketValue, 5),
			in("Detail", SocketValue, 2), in("Distortion", SocketValue, 0),
		},
		outputs: []socketTemplate{in("Color", SocketRGBA), in("Fac", SocketValue)},
	},
	"TEX_COORD": {
		outputs: []socketTemplate{
			in("Generated", SocketVector), in("Normal", SocketVector), in("UV", SocketVector),
			in("Object", SocketVector), in("Camera", SocketVector), in("Window", SocketVector),
			in("Reflection", SocketVector),
		},
	},

	// Inputs and converters
	"RGB": {
		outputs: []socketTemplate{in("Color", SocketRGBA, 0.5, 0.5, 0.5, 1)},
	},
	"VALUE": {
		outputs: []socketTemplate{in("Value", SocketValue, 0.5)},
	},
	"MATH": {
		inputs:  []socketTemplate{in("Value", SocketValue, 0.5), in("Value", SocketValue, 0.5)},
		outputs: []socketTemplate{in("Value", SocketValue)},
	},
	"MIX_RGB": {
		inputs: []socketTemplate{
			in("Fac", SocketValue, 0.5), in("Color1", SocketRGBA, 0.5, 0.5, 0.5, 1),
			in("Color2", SocketRGBA, 0.5, 0.5, 0.5, 1),
		},
		outputs: []socketTemplate{in("Color", SocketRGBA)},
	},
	"FRESNEL": {
		inputs:  []socketTemplate{in("IOR", SocketValue, 1.45), in("Normal", SocketVector)},
		outputs: []socketTemplate{in("Fac", SocketValue)},
	},
	"LAYER_WEIGHT": {
		inputs:  []socketTemplate{in("Blend", SocketValue, 0.5), in("Normal", SocketVector)},
		outputs: []socketTemplate{in("Fresnel", SocketValue), in("Facing", SocketValue)},
	},

	// Outputs
	"OUTPUT_MATERIAL": {
		inputs: []socketTemplate{in("Surface", SocketShader), in("Volume", SocketShader), in("Displacement", SocketValue)},
	},
	"OUTPUT_WORLD": {
		inputs: []socketTemplate{in("Surface", SocketShader), in("Volume", SocketShader)},
	},
	"OUTPUT_LAMP": {
		inputs: []socketTemplate{in("Surface", SocketShader)},
	},
}

// KnownType reports whether kind has a catalog entry.
func KnownType(kind string) bool {
	_, ok := catalog[kind]
	return ok
}

// NewNode creates a node of the given kind with the catalog's sockets and
// defaults. Unknown kinds produce a node without sockets.
func NewNode(id NodeID, kind, name string) *Node {
	n := &Node{ID: id, Type: kind, Name: name}
	tmpl, ok := catalog[kind]
	if !ok {
		return n
	}
	n.Inputs = instantiate(tmpl.inputs, Input)
	n.Outputs = instantiate(tmpl.outputs, Output)
	return n
}

func instantiate(tmpls []socketTemplate, dir Direction) []Socket {
	if len(tmpls) == 0 {
		return nil
	}
	socks := make([]Socket, len(tmpls))
	for i, t := range tmpls {
		socks[i] = Socket{Name: t.name, Direction: dir, Type: t.typ}
		if len(t.def) > 0 {
			socks[i].Default = append([]float64(nil), t.def...)
		}
	}
	return socks
}
