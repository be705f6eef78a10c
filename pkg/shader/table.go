// Package shader serializes shading node graphs into Cycles XML shader
// elements. It translates node and socket names from the source node
// vocabulary, materializes unconnected constant inputs as explicit nodes,
// and emits the connect elements that wire them together.
package shader

import "strings"

// translation is the target vocabulary entry for one source node kind.
type translation struct {
	target  string
	sockets map[string]string // disambiguated source socket name -> target socket name
}

// closureSockets renames the duplicate Shader inputs of mix and add nodes.
var closureSockets = map[string]string{
	"Shader1": "Closure1",
	"Shader2": "Closure2",
	"Shader":  "Closure",
}

// table maps source node kinds to Cycles node names. Kinds without an
// entry pass through lowercased.
var table = map[string]translation{
	"BSDF_DIFFUSE":     {target: "diffuse_bsdf"},
	"BSDF_GLOSSY":      {target: "glossy_bsdf"},
	"BSDF_GLASS":       {target: "glass_bsdf"},
	"BSDF_TRANSPARENT": {target: "transparent_bsdf"},
	"BSDF_TRANSLUCENT": {target: "translucent_bsdf"},
	"BSDF_VELVET":      {target: "velvet_bsdf"},
	"BSDF_ANISOTROPIC": {target: "anisotropic_bsdf"},
	"EMISSION":         {target: "emission"},
	"BACKGROUND":       {target: "background"},
	"HOLDOUT":          {target: "holdout"},
	"MIX_SHADER":       {target: "mix_closure", sockets: closureSockets},
	"ADD_SHADER":       {target: "add_closure", sockets: closureSockets},
	"TEX_IMAGE":        {target: "image_texture"},
	"TEX_ENVIRONMENT":  {target: "environment_texture"},
	"TEX_CHECKER":      {target: "checker_texture"},
	"TEX_NOISE":        {target: "noise_texture"},
	"TEX_COORD":        {target: "texture_coordinate"},
	"RGB":              {target: "color"},
	"VALUE":            {target: "value"},
	"MATH":             {target: "math"},
	"MIX_RGB":          {target: "mix"},
	"FRESNEL":          {target: "fresnel"},
	"LAYER_WEIGHT":     {target: "layer_weight"},
}

// TargetTypeName returns the Cycles node name for a source node kind,
// falling back to the lowercased kind.
func TargetTypeName(sourceType string) string {
	if t, ok := table[sourceType]; ok {
		return t.target
	}
	return strings.ToLower(sourceType)
}

// TargetSocketName returns the Cycles socket name for a (disambiguated)
// source socket name on a node of sourceType, falling back to the name
// with spaces replaced by underscores.
func TargetSocketName(sourceType, socketName string) string {
	if t, ok := table[sourceType]; ok {
		if name, ok := t.sockets[socketName]; ok {
			return name
		}
	}
	return strings.ReplaceAll(socketName, " ", "_")
}
