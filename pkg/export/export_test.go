package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/chazu/cyclesxml/pkg/graph"
	"github.com/chazu/cyclesxml/pkg/scene"
	"github.com/chazu/cyclesxml/pkg/shader"
	"github.com/chazu/cyclesxml/pkg/xmlout"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAssembler(workers int) *Assembler {
	ser := shader.NewSerializer(shader.Options{Validate: true, Logger: quiet()})
	return NewAssembler(ser, Options{Workers: workers, Logger: quiet()})
}

func diffuseMaterial(name string) *graph.Shader {
	s := graph.New(name, graph.KindMaterial)
	d := graph.NewNode(graph.NewNodeID(name+"/0"), "BSDF_DIFFUSE", "Diffuse BSDF")
	out := graph.NewNode(graph.NewNodeID(name+"/1"), "OUTPUT_MATERIAL", "Material Output")
	s.AddNode(d)
	s.AddNode(out)
	if err := s.Connect(d, "BSDF", out, "Surface"); err != nil {
		panic(err)
	}
	return s
}

func triangle() *scene.MeshData {
	return &scene.MeshData{
		Positions: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:     [][]int{{0, 1, 2}},
	}
}

func camera(p scene.Projection) *scene.Object {
	return &scene.Object{
		Name:   "Camera",
		Kind:   scene.KindCamera,
		Matrix: mgl64.Translate3D(0, 0, 10),
		Camera: &scene.CameraData{Projection: p, ClipStart: 0.1, ClipEnd: 100, FocusDistance: 10},
	}
}

func sampleScene() *scene.Scene {
	sc := scene.New("sample")
	sc.Film = scene.Film{Width: 640, Height: 480, Percent: 50}
	sc.Camera = sc.AddObject(camera(scene.Perspective))

	world := graph.New("World", graph.KindWorld)
	bg := graph.NewNode(graph.NewNodeID("World/0"), "BACKGROUND", "Background")
	wout := graph.NewNode(graph.NewNodeID("World/1"), "OUTPUT_WORLD", "World Output")
	world.AddNode(bg)
	world.AddNode(wout)
	_ = world.Connect(bg, "Background", wout, "Surface")
	sc.SetWorld(world)

	red := diffuseMaterial("Red")
	blue := diffuseMaterial("Blue")
	sc.AddObject(&scene.Object{Name: "A", Kind: scene.KindMesh, Matrix: mgl64.Ident4(), Mesh: triangle(), Materials: []*graph.Shader{red}})
	sc.AddObject(&scene.Object{Name: "B", Kind: scene.KindMesh, Matrix: mgl64.Translate3D(2, 0, 0), Mesh: triangle(), Materials: []*graph.Shader{red, blue}})
	sc.AddObject(&scene.Object{Name: "C", Kind: scene.KindMesh, Matrix: mgl64.Ident4(), Mesh: triangle()})
	sc.AddObject(&scene.Object{Name: "Lamp", Kind: scene.KindLight, Matrix: mgl64.Translate3D(1, 2, 3), Light: &scene.LightData{}})
	return sc
}

func tags(elems []*xmlout.Element) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.Tag
	}
	return out
}

func TestAssembleOrder(t *testing.T) {
	elems, err := newAssembler(0).Assemble(context.Background(), sampleScene())
	require.NoError(t, err)

	// film, camera, world, Red, A, B (Red already emitted), C, lamp
	assert.Equal(t, []string{"film", "transform", "background", "shader", "transform", "transform", "transform", "light"}, tags(elems))

	w, _ := elems[0].Get("width")
	h, _ := elems[0].Get("height")
	assert.Equal(t, "320", w)
	assert.Equal(t, "240", h)

	cam := elems[1].Children[0]
	assert.Equal(t, "camera", cam.Tag)
	typ, _ := cam.Get("type")
	assert.Equal(t, "perspective", typ)

	name, _ := elems[3].Get("name")
	assert.Equal(t, "Red", name)

	// A and B reference Red; C has no material and no state wrapper.
	for _, i := range []int{4, 5} {
		st := elems[i].Children[0]
		require.Equal(t, "state", st.Tag)
		ref, _ := st.Get("shader")
		assert.Equal(t, "Red", ref)
		assert.Equal(t, "mesh", st.Children[0].Tag)
	}
	assert.Equal(t, "mesh", elems[6].Children[0].Tag)

	p, _ := elems[7].Get("P")
	assert.Equal(t, "1.000000 2.000000 3.000000", p)
}

func TestMeshAttributes(t *testing.T) {
	sc := scene.New("m")
	sc.AddObject(&scene.Object{Name: "T", Kind: scene.KindMesh, Matrix: mgl64.Translate3D(1, 2, 3), Mesh: triangle()})
	elems, err := newAssembler(0).Assemble(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, elems, 2)

	tr := elems[1]
	m, _ := tr.Get("matrix")
	assert.Equal(t, "1.000000 0.000000 0.000000 0.000000 0.000000 1.000000 0.000000 0.000000 "+
		"0.000000 0.000000 1.000000 0.000000 1.000000 2.000000 3.000000 1.000000", m)

	mesh := tr.Children[0]
	nverts, _ := mesh.Get("nverts")
	verts, _ := mesh.Get("verts")
	pts, _ := mesh.Get("P")
	assert.Equal(t, "3", nverts)
	assert.Equal(t, "0 1 2", verts)
	assert.Equal(t, "0.000000 0.000000 0.000000 1.000000 0.000000 0.000000 0.000000 1.000000 0.000000", pts)
}

func TestCameraFlipsZ(t *testing.T) {
	el, err := cameraElement(camera(scene.Orthographic))
	require.NoError(t, err)
	m, _ := el.Get("matrix")
	fields := strings.Fields(m)
	require.Len(t, fields, 16)
	assert.Equal(t, "-1.000000", fields[10])
	assert.Equal(t, "10.000000", fields[14])
	typ, _ := el.Children[0].Get("type")
	assert.Equal(t, "orthogonal", typ)
}

func TestUnsupportedCameraAbortsBeforeOutput(t *testing.T) {
	sc := sampleScene()
	sc.Camera.Camera.Projection = scene.Panoramic

	var buf bytes.Buffer
	err := newAssembler(0).Export(context.Background(), sc, &buf, nil)
	require.ErrorIs(t, err, ErrUnsupportedCamera)
	assert.Zero(t, buf.Len(), "nothing may be written")

	fs := memfs.New()
	err = newAssembler(0).ExportFile(context.Background(), sc, fs, "/out/scene.xml", nil)
	require.ErrorIs(t, err, ErrUnsupportedCamera)
	_, statErr := fs.Stat("/out/scene.xml")
	assert.Error(t, statErr)
}

func TestUnsupportedObjectIsFatal(t *testing.T) {
	sc := sampleScene()
	sc.AddObject(&scene.Object{Name: "Curve", Kind: "CURVE"})

	var buf bytes.Buffer
	err := newAssembler(0).Export(context.Background(), sc, &buf, nil)
	require.ErrorIs(t, err, ErrUnsupportedObject)
	assert.Contains(t, err.Error(), "Curve")
	assert.Zero(t, buf.Len())
}

func TestInactiveCameraIgnored(t *testing.T) {
	sc := scene.New("cams")
	sc.Camera = sc.AddObject(camera(scene.Perspective))
	other := camera(scene.Panoramic)
	other.Name = "Spare"
	sc.AddObject(other)

	elems, err := newAssembler(0).Assemble(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"film", "transform"}, tags(elems))
}

func TestLightShader(t *testing.T) {
	sc := scene.New("lit")
	ls := graph.New("Lamp Shader", graph.KindLight)
	em := graph.NewNode(graph.NewNodeID("L/0"), "EMISSION", "Emission")
	out := graph.NewNode(graph.NewNodeID("L/1"), "OUTPUT_LAMP", "Lamp Output")
	ls.AddNode(em)
	ls.AddNode(out)
	require.NoError(t, ls.Connect(em, "Emission", out, "Surface"))
	sc.AddObject(&scene.Object{Name: "Key", Kind: scene.KindLight, Matrix: mgl64.Ident4(), Light: &scene.LightData{Shader: ls}})

	elems, err := newAssembler(0).Assemble(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, []string{"film", "shader", "state"}, tags(elems))
	assert.Equal(t, "light", elems[2].Children[0].Tag)
}

func TestSkippedMaterialOmitsState(t *testing.T) {
	sc := scene.New("skip")
	off := diffuseMaterial("Off")
	off.UseNodes = false
	sc.AddObject(&scene.Object{Name: "M", Kind: scene.KindMesh, Matrix: mgl64.Ident4(), Mesh: triangle(), Materials: []*graph.Shader{off}})

	elems, err := newAssembler(0).Assemble(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, []string{"film", "transform"}, tags(elems))
	assert.Equal(t, "mesh", elems[1].Children[0].Tag)
}

func TestInvalidMaterialIsFatal(t *testing.T) {
	sc := scene.New("bad")
	m := diffuseMaterial("Broken")
	m.AddLink(graph.Link{FromNode: "missing", ToNode: m.Nodes[0].ID})
	sc.AddObject(&scene.Object{Name: "M", Kind: scene.KindMesh, Matrix: mgl64.Ident4(), Mesh: triangle(), Materials: []*graph.Shader{m}})

	for _, workers := range []int{0, 4} {
		_, err := newAssembler(workers).Assemble(context.Background(), sc)
		assert.ErrorIs(t, err, shader.ErrInvalidGraph, "workers=%d", workers)
	}
}

func TestWorkersMatchSequential(t *testing.T) {
	ctx := context.Background()
	seq, err := newAssembler(1).Assemble(ctx, sampleScene())
	require.NoError(t, err)
	par, err := newAssembler(4).Assemble(ctx, sampleScene())
	require.NoError(t, err)

	w := xmlout.NewWriter()
	a, err := w.Marshal(seq)
	require.NoError(t, err)
	b, err := w.Marshal(par)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestShaderSet(t *testing.T) {
	set := newShaderSet()
	named := graph.New("a", graph.KindMaterial)
	named.ID = 7
	anon := graph.New("b", graph.KindMaterial)

	assert.True(t, set.Add(named))
	assert.False(t, set.Add(named))
	assert.True(t, set.Add(anon))
	assert.False(t, set.Add(anon))
	assert.True(t, set.Contains(anon))
	assert.Equal(t, 2, set.Len())

	var wg sync.WaitGroup
	added := make(chan bool, 16)
	fresh := graph.New("c", graph.KindMaterial)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added <- set.Add(fresh)
		}()
	}
	wg.Wait()
	close(added)
	var firsts int
	for ok := range added {
		if ok {
			firsts++
		}
	}
	assert.Equal(t, 1, firsts)
}

func TestExportFile(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, newAssembler(2).ExportFile(context.Background(), sampleScene(), fs, "/out/scene.xml", nil))

	data, err := util.ReadFile(fs, "/out/scene.xml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `<film width="320" height="240">`))
	assert.Contains(t, string(data), `<background name="World">`)

	entries, err := fs.ReadDir("/out")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestNilScene(t *testing.T) {
	_, err := newAssembler(0).Assemble(context.Background(), nil)
	assert.ErrorIs(t, err, scene.ErrNoScene)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newAssembler(0).Assemble(ctx, sampleScene())
	assert.ErrorIs(t, err, context.Canceled)
}
