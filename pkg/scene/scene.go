// Package scene is the in-memory scene handed to the exporter: film, an
// active camera, a world shader, and a flat list of objects with their
// materials.
package scene

import (
	"errors"
	"fmt"

	"github.com/chazu/cyclesxml/pkg/graph"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrNoScene is returned when an operation needs a scene and gets none.
var ErrNoScene = errors.New("scene: no scene")

// Kind is an object type tag.
type Kind string

const (
	KindMesh   Kind = "MESH"
	KindLight  Kind = "LIGHT"
	KindCamera Kind = "CAMERA"
)

// Projection is a camera projection type.
type Projection string

const (
	Perspective  Projection = "PERSP"
	Orthographic Projection = "ORTHO"
	Panoramic    Projection = "PANO"
)

// Film is the output resolution. Percent scales both axes; zero means 100.
type Film struct {
	Width   int
	Height  int
	Percent int
}

// Resolution returns the scaled pixel size.
func (f Film) Resolution() (int, int) {
	p := f.Percent
	if p <= 0 {
		p = 100
	}
	return f.Width * p / 100, f.Height * p / 100
}

// CameraData holds the projection parameters of a camera object.
type CameraData struct {
	Projection    Projection
	ClipStart     float64
	ClipEnd       float64
	FocusDistance float64
}

// LightData is a point light. Shader is optional.
type LightData struct {
	Shader *graph.Shader
}

// Object is one scene object. Which of Mesh, Camera, and Light is set
// depends on Kind.
type Object struct {
	Name      string
	Kind      Kind
	Matrix    mgl64.Mat4 // object to world
	Mesh      *MeshData
	Camera    *CameraData
	Light     *LightData
	Materials []*graph.Shader
}

// Location returns the world-space origin of the object.
func (o *Object) Location() mgl64.Vec3 {
	return o.Matrix.Col(3).Vec3()
}

// Scene is everything the exporter reads.
type Scene struct {
	Name    string
	BaseDir string // directory scene-relative paths resolve against
	Film    Film
	Camera  *Object
	World   *graph.Shader
	Objects []*Object

	shaders []*graph.Shader
}

// New returns an empty scene with a 1920x1080 film at 100%.
func New(name string) *Scene {
	return &Scene{Name: name, Film: Film{Width: 1920, Height: 1080, Percent: 100}}
}

// AddShader registers sh with the scene and assigns its identity. IDs
// start at 1 and follow registration order. Registering a shader twice
// keeps its first ID.
func (s *Scene) AddShader(sh *graph.Shader) *graph.Shader {
	if sh == nil {
		return nil
	}
	for _, have := range s.shaders {
		if have == sh {
			return sh
		}
	}
	sh.ID = uint32(len(s.shaders) + 1)
	s.shaders = append(s.shaders, sh)
	return sh
}

// Shaders returns every registered shader in registration order.
func (s *Scene) Shaders() []*graph.Shader {
	return s.shaders
}

// AddObject appends o, registering its materials and light shader.
func (s *Scene) AddObject(o *Object) *Object {
	for _, m := range o.Materials {
		s.AddShader(m)
	}
	if o.Light != nil {
		s.AddShader(o.Light.Shader)
	}
	s.Objects = append(s.Objects, o)
	return o
}

// SetWorld registers and installs the world shader.
func (s *Scene) SetWorld(sh *graph.Shader) {
	s.World = s.AddShader(sh)
}

// Lookup returns the first object with the given name, or nil.
func (s *Scene) Lookup(name string) *Object {
	for _, o := range s.Objects {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// Validate checks the scene for problems that would make its document
// unusable: unnamed shaders and malformed meshes. Unsupported kinds are
// left to the exporter.
func (s *Scene) Validate() error {
	if s == nil {
		return ErrNoScene
	}
	var errs []error
	for _, sh := range s.shaders {
		if sh.Name == "" {
			errs = append(errs, fmt.Errorf("shader %d has no name", sh.ID))
		}
	}
	for _, o := range s.Objects {
		if o.Kind == KindMesh && o.Mesh != nil {
			if err := o.Mesh.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("object %s: %w", o.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}
