package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "reference", cfg.Texture.Mode)
	assert.Equal(t, OutputFirst, cfg.Shader.Output)
	assert.True(t, cfg.Shader.Validate)
	assert.Equal(t, 1, cfg.Export.Workers)
	assert.Equal(t, 5*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, KernelSdfx, cfg.Engine.Kernel)
	assert.False(t, cfg.PreferActiveOutput())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "cyclesxml.yaml", `
texture:
  mode: embed
shader:
  output: active
  validate: false
export:
  workers: 4
engine:
  timeout: 30s
  mesh_cells: 128
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "embed", cfg.Texture.Mode)
	assert.True(t, cfg.PreferActiveOutput())
	assert.False(t, cfg.Shader.Validate)
	assert.Equal(t, 4, cfg.Export.Workers)
	assert.Equal(t, 30*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 128, cfg.Engine.MeshCells)
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "cyclesxml.toml", `
[texture]
mode = "embed"

[export]
workers = 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "embed", cfg.Texture.Mode)
	assert.Equal(t, 3, cfg.Export.Workers)
	assert.Equal(t, OutputFirst, cfg.Shader.Output, "unset keys keep defaults")
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "c.yaml", "export:\n  workers: 2\n")
	t.Setenv("CYCLESXML_EXPORT_WORKERS", "8")
	t.Setenv("CYCLESXML_TEXTURE_MODE", "embed")
	t.Setenv("CYCLESXML_SHADER_VALIDATE", "false")
	t.Setenv("CYCLESXML_ENGINE_TIMEOUT", "1m")
	t.Setenv("CYCLESXML_ENGINE_KERNEL", "manifold")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Export.Workers)
	assert.Equal(t, "embed", cfg.Texture.Mode)
	assert.False(t, cfg.Shader.Validate)
	assert.Equal(t, time.Minute, cfg.Engine.Timeout)
	assert.Equal(t, KernelManifold, cfg.Engine.Kernel)
}

func TestEnvParseErrors(t *testing.T) {
	env := map[string]string{
		"CYCLESXML_EXPORT_WORKERS":  "many",
		"CYCLESXML_SHADER_VALIDATE": "perhaps",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXPORT_WORKERS")
	assert.Contains(t, err.Error(), "SHADER_VALIDATE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"texture mode", func(c *Config) { c.Texture.Mode = "copy" }, "texture.mode"},
		{"output", func(c *Config) { c.Shader.Output = "last" }, "shader.output"},
		{"workers", func(c *Config) { c.Export.Workers = 0 }, "export.workers"},
		{"timeout", func(c *Config) { c.Engine.Timeout = 0 }, "engine.timeout"},
		{"kernel", func(c *Config) { c.Engine.Kernel = "cgal" }, "engine.kernel"},
		{"cells", func(c *Config) { c.Engine.MeshCells = 2 }, "engine.mesh_cells"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := writeConfig(t, "bad.yaml", "export: [unterminated")
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse")
}
