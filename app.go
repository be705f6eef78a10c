package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/chazu/cyclesxml/pkg/config"
	"github.com/chazu/cyclesxml/pkg/engine"
	"github.com/chazu/cyclesxml/pkg/export"
	"github.com/chazu/cyclesxml/pkg/kernel"
	"github.com/chazu/cyclesxml/pkg/kernel/manifold"
	"github.com/chazu/cyclesxml/pkg/kernel/sdfx"
	"github.com/chazu/cyclesxml/pkg/scene"
	"github.com/chazu/cyclesxml/pkg/shader"
	"github.com/chazu/cyclesxml/pkg/texture"
	"github.com/chazu/cyclesxml/pkg/xmlout"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ScriptError reports the evaluation errors of one scene script.
type ScriptError struct {
	Path   string
	Errors []engine.EvalError
}

func (e *ScriptError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ee := range e.Errors {
		if ee.Line > 0 {
			msgs[i] = fmt.Sprintf("%s:%d: %s", e.Path, ee.Line, ee.Message)
		} else {
			msgs[i] = fmt.Sprintf("%s: %s", e.Path, ee.Message)
		}
	}
	return strings.Join(msgs, "\n")
}

// App wires configuration, the script engine and the exporter together.
// Scripts, textures and output all go through one filesystem.
type App struct {
	cfg    *config.Config
	fs     billy.Filesystem
	log    *slog.Logger
	engine *engine.Engine
}

// NewApp creates an App evaluating scripts with the configured kernel.
// When the manifold kernel is requested but not linked in, it falls back
// to sdfx with a warning.
func NewApp(cfg *config.Config, fs billy.Filesystem, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		cfg: cfg,
		fs:  fs,
		log: log,
		engine: engine.NewEngine(engine.Options{
			Timeout: cfg.Engine.Timeout,
			Kernel:  newKernel(cfg, log),
			Logger:  log,
		}),
	}
}

func newKernel(cfg *config.Config, log *slog.Logger) kernel.Kernel {
	if cfg.Engine.Kernel == config.KernelManifold {
		k, err := manifold.New(cfg.Engine.MeshCells)
		if err == nil {
			return k
		}
		log.Warn("falling back to sdfx kernel", "error", err)
	}
	return sdfx.New(cfg.Engine.MeshCells)
}

// Evaluate runs the script at path and returns its scene. The scene is
// named after the file and resolves relative textures against its
// directory.
func (a *App) Evaluate(ctx context.Context, path string) (*scene.Scene, error) {
	source, err := util.ReadFile(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	sc, evalErrs, err := a.engine.Evaluate(ctx, string(source))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		return nil, &ScriptError{Path: path, Errors: evalErrs}
	}
	sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sc.BaseDir = filepath.Dir(path)
	return sc, nil
}

// assembler builds the exporter stack for one scene.
func (a *App) assembler(sc *scene.Scene) (*export.Assembler, error) {
	mode, err := texture.ParseMode(a.cfg.Texture.Mode)
	if err != nil {
		return nil, err
	}
	ser := shader.NewSerializer(shader.Options{
		Textures:           texture.NewResolver(mode, a.fs, sc.BaseDir, a.log),
		Validate:           a.cfg.Shader.Validate,
		PreferActiveOutput: a.cfg.PreferActiveOutput(),
		Logger:             a.log,
	})
	return export.NewAssembler(ser, export.Options{
		Workers: a.cfg.Export.Workers,
		Logger:  a.log,
	}), nil
}

// Export evaluates the script at src and writes Cycles XML to dst.
func (a *App) Export(ctx context.Context, src, dst string) error {
	sc, err := a.Evaluate(ctx, src)
	if err != nil {
		return err
	}
	asm, err := a.assembler(sc)
	if err != nil {
		return err
	}
	return asm.ExportFile(ctx, sc, a.fs, dst, xmlout.NewWriter())
}

// Validate evaluates the script at src and checks that it would export,
// without writing anything. Graph warnings are logged by the serializer.
func (a *App) Validate(ctx context.Context, src string) error {
	sc, err := a.Evaluate(ctx, src)
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	asm, err := a.assembler(sc)
	if err != nil {
		return err
	}
	elems, err := asm.Assemble(ctx, sc)
	if err != nil {
		return err
	}
	a.log.Info("scene valid",
		"script", src,
		"elements", len(elems),
		"objects", len(sc.Objects),
		"shaders", len(sc.Shaders()))
	return nil
}

// DefaultOutput is the XML path used when no output is given: the script
// path with its extension replaced by .xml.
func DefaultOutput(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".xml"
}

// IsScriptError reports whether err came from the script itself rather
// than from the exporter or the filesystem.
func IsScriptError(err error) bool {
	var se *ScriptError
	return errors.As(err, &se)
}
