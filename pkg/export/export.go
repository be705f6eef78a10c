// Package export assembles a scene into the ordered sequence of Cycles
// XML elements and writes it out.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/chazu/cyclesxml/pkg/graph"
	"github.com/chazu/cyclesxml/pkg/scene"
	"github.com/chazu/cyclesxml/pkg/shader"
	"github.com/chazu/cyclesxml/pkg/xmlout"
	"github.com/go-git/go-billy/v5"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnsupportedCamera aborts an export whose camera projection has
	// no Cycles equivalent.
	ErrUnsupportedCamera = errors.New("export: unsupported camera")
	// ErrUnsupportedObject aborts an export containing an object kind
	// outside mesh, light, and camera.
	ErrUnsupportedObject = errors.New("export: unsupported object kind")
)

var projections = map[scene.Projection]string{
	scene.Perspective:  "perspective",
	scene.Orthographic: "orthogonal",
}

// flipZ turns a camera looking down -Z into one looking down +Z.
var flipZ = mgl64.Scale3D(1, 1, -1)

// Options configures an Assembler.
type Options struct {
	Workers int // shaders serialized in parallel; <= 1 is sequential
	Logger  *slog.Logger
}

// Assembler turns scenes into element sequences. It holds no per-scene
// state.
type Assembler struct {
	shaders *shader.Serializer
	workers int
	logger  *slog.Logger
}

// NewAssembler returns an assembler that renders node trees with ser.
func NewAssembler(ser *shader.Serializer, opts Options) *Assembler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if ser == nil {
		ser = shader.NewSerializer(shader.Options{Validate: true, Logger: logger})
	}
	return &Assembler{shaders: ser, workers: opts.Workers, logger: logger}
}

// assembly is the state of one Assemble call.
type assembly struct {
	*Assembler
	ctx     context.Context
	emitted *shaderSet
	cache   map[*graph.Shader]*xmlout.Element
	out     []*xmlout.Element
}

// Assemble renders sc in document order: film, camera, world background,
// then each object with the shaders it references emitted once, ahead of
// first use. Unsupported camera projections and object kinds are fatal.
func (a *Assembler) Assemble(ctx context.Context, sc *scene.Scene) ([]*xmlout.Element, error) {
	if sc == nil {
		return nil, scene.ErrNoScene
	}
	as := &assembly{
		Assembler: a,
		ctx:       ctx,
		emitted:   newShaderSet(),
	}
	if a.workers > 1 {
		cache, err := a.preserialize(ctx, sc)
		if err != nil {
			return nil, err
		}
		as.cache = cache
	}

	w, h := sc.Film.Resolution()
	as.out = append(as.out, xmlout.New("film", "width", fmt.Sprint(w), "height", fmt.Sprint(h)))

	if sc.Camera != nil {
		el, err := cameraElement(sc.Camera)
		if err != nil {
			return nil, err
		}
		as.out = append(as.out, el)
	}

	if sc.World != nil {
		if _, err := as.emitShader(sc.World); err != nil {
			return nil, err
		}
	}

	for _, o := range sc.Objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := as.object(sc, o); err != nil {
			return nil, err
		}
	}
	a.logger.Debug("scene assembled", "scene", sc.Name, "elements", len(as.out), "shaders", as.emitted.Len())
	return as.out, nil
}

func (as *assembly) object(sc *scene.Scene, o *scene.Object) error {
	switch o.Kind {
	case scene.KindMesh:
		return as.mesh(o)
	case scene.KindLight:
		return as.light(o)
	case scene.KindCamera:
		if o != sc.Camera {
			as.logger.Debug("inactive camera ignored", "object", o.Name)
		}
		return nil
	default:
		return fmt.Errorf("%w: object %q has kind %q", ErrUnsupportedObject, o.Name, o.Kind)
	}
}

func (as *assembly) mesh(o *scene.Object) error {
	if o.Mesh == nil {
		as.logger.Warn("mesh object without mesh data skipped", "object", o.Name)
		return nil
	}
	mesh := xmlout.New("mesh",
		"nverts", xmlout.FormatInts(o.Mesh.NVerts()...),
		"verts", xmlout.FormatInts(o.Mesh.Verts()...),
		"P", xmlout.FormatFloats(o.Mesh.FlatPositions()...),
	)

	el := mesh
	if len(o.Materials) > 0 {
		if len(o.Materials) > 1 {
			as.logger.Warn("only the first material is exported", "object", o.Name, "dropped", len(o.Materials)-1)
		}
		name, err := as.emitShader(o.Materials[0])
		if err != nil {
			return err
		}
		if name != "" {
			el = el.Wrap("state", "shader", name)
		}
	}
	as.out = append(as.out, el.Wrap("transform", "matrix", FormatMatrix(o.Matrix)))
	return nil
}

func (as *assembly) light(o *scene.Object) error {
	p := o.Location()
	el := xmlout.New("light", "P", xmlout.FormatFloats(p[:]...))
	if o.Light != nil && o.Light.Shader != nil {
		name, err := as.emitShader(o.Light.Shader)
		if err != nil {
			return err
		}
		if name != "" {
			el = el.Wrap("state", "shader", name)
		}
	}
	as.out = append(as.out, el)
	return nil
}

// emitShader appends sh's element the first time it is seen and returns
// the name to reference it by. Skipped shaders return "".
func (as *assembly) emitShader(sh *graph.Shader) (string, error) {
	first := as.emitted.Add(sh)
	el, err := as.render(sh)
	if err != nil {
		return "", err
	}
	if el == nil {
		return "", nil
	}
	if first {
		as.out = append(as.out, el)
	}
	return sh.Name, nil
}

func (as *assembly) render(sh *graph.Shader) (*xmlout.Element, error) {
	if el, ok := as.cache[sh]; ok {
		return el, nil
	}
	el, err := as.shaders.Serialize(as.ctx, sh)
	if err != nil {
		return nil, err
	}
	if as.cache == nil {
		as.cache = make(map[*graph.Shader]*xmlout.Element)
	}
	as.cache[sh] = el
	return el, nil
}

// preserialize renders every shader the scene references using up to
// a.workers goroutines. Shaders referenced more than once are rendered
// once.
func (a *Assembler) preserialize(ctx context.Context, sc *scene.Scene) (map[*graph.Shader]*xmlout.Element, error) {
	var refs []*graph.Shader
	if sc.World != nil {
		refs = append(refs, sc.World)
	}
	for _, o := range sc.Objects {
		if len(o.Materials) > 0 {
			refs = append(refs, o.Materials[0])
		}
		if o.Light != nil && o.Light.Shader != nil {
			refs = append(refs, o.Light.Shader)
		}
	}

	var (
		mu    sync.Mutex
		cache = make(map[*graph.Shader]*xmlout.Element, len(refs))
		seen  = newShaderSet()
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, sh := range refs {
		g.Go(func() error {
			if !seen.Add(sh) {
				return nil
			}
			el, err := a.shaders.Serialize(gctx, sh)
			if err != nil {
				return err
			}
			mu.Lock()
			cache[sh] = el
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cache, nil
}

func cameraElement(o *scene.Object) (*xmlout.Element, error) {
	if o.Camera == nil {
		return nil, fmt.Errorf("%w: object %q has no camera data", ErrUnsupportedCamera, o.Name)
	}
	typ, ok := projections[o.Camera.Projection]
	if !ok {
		return nil, fmt.Errorf("%w: projection %q on %q", ErrUnsupportedCamera, o.Camera.Projection, o.Name)
	}
	cam := xmlout.New("camera",
		"type", typ,
		"nearclip", xmlout.FormatFloat(o.Camera.ClipStart),
		"farclip", xmlout.FormatFloat(o.Camera.ClipEnd),
		"focaldistance", xmlout.FormatFloat(o.Camera.FocusDistance),
	)
	return cam.Wrap("transform", "matrix", FormatMatrix(o.Matrix.Mul4(flipZ))), nil
}

// FormatMatrix lists the 16 entries of m column by column, which is the
// transpose of its row-major form.
func FormatMatrix(m mgl64.Mat4) string {
	return xmlout.FormatFloats(m[:]...)
}

// Export assembles sc and writes it to w. Nothing is written unless the
// whole scene assembles.
func (a *Assembler) Export(ctx context.Context, sc *scene.Scene, w io.Writer, xw *xmlout.Writer) error {
	elems, err := a.Assemble(ctx, sc)
	if err != nil {
		return err
	}
	if xw == nil {
		xw = xmlout.NewWriter()
	}
	return xw.WriteElements(w, elems)
}

// ExportFile exports sc to path on fs. The document is written to a
// temporary file next to path and renamed over it, so path is never left
// half written.
func (a *Assembler) ExportFile(ctx context.Context, sc *scene.Scene, fs billy.Filesystem, path string, xw *xmlout.Writer) error {
	elems, err := a.Assemble(ctx, sc)
	if err != nil {
		return err
	}
	if xw == nil {
		xw = xmlout.NewWriter()
	}

	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create %s: %w", dir, err)
	}
	tmp, err := fs.TempFile(dir, ".cyclesxml-")
	if err != nil {
		return fmt.Errorf("export: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := xw.WriteElements(tmp, elems); err != nil {
		tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("export: rename %s: %w", path, err)
	}
	a.logger.Info("scene exported", "scene", sc.Name, "path", path, "elements", len(elems))
	return nil
}
