// Package config loads exporter settings from a YAML or TOML file, a
// .env file, and CYCLESXML_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CYCLESXML_"

// Geometry kernels.
const (
	KernelSdfx     = "sdfx"
	KernelManifold = "manifold"
)

// Output selection policies.
const (
	OutputFirst  = "first"
	OutputActive = "active"
)

// Config is the full exporter configuration.
type Config struct {
	Texture struct {
		Mode string `yaml:"mode" toml:"mode"` // reference or embed
	} `yaml:"texture" toml:"texture"`

	Shader struct {
		Output   string `yaml:"output" toml:"output"`     // first or active
		Validate bool   `yaml:"validate" toml:"validate"` // reject structurally broken graphs
	} `yaml:"shader" toml:"shader"`

	Export struct {
		Workers int `yaml:"workers" toml:"workers"`
	} `yaml:"export" toml:"export"`

	Engine struct {
		Timeout   time.Duration `yaml:"timeout" toml:"timeout"`
		Kernel    string        `yaml:"kernel" toml:"kernel"`         // sdfx or manifold
		MeshCells int           `yaml:"mesh_cells" toml:"mesh_cells"` // marching cubes cells, or circle segments for manifold
	} `yaml:"engine" toml:"engine"`

	Log struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"` // text or json
	} `yaml:"log" toml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Texture.Mode = "reference"
	cfg.Shader.Output = OutputFirst
	cfg.Shader.Validate = true
	cfg.Export.Workers = 1
	cfg.Engine.Timeout = 5 * time.Second
	cfg.Engine.Kernel = KernelSdfx
	cfg.Engine.MeshCells = 64
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads path (if non-empty) over the defaults, then applies .env and
// environment overrides, and validates the result. The format is chosen
// by extension: .toml is TOML, anything else YAML.
func Load(path string) (*Config, error) {
	// A missing .env is not an error.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := cfg.decode(path, data); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from CYCLESXML_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("TEXTURE_MODE", &c.Texture.Mode)
	str("SHADER_OUTPUT", &c.Shader.Output)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("ENGINE_KERNEL", &c.Engine.Kernel)

	var errs []error
	if v, ok := lookup(EnvPrefix + "SHADER_VALIDATE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSHADER_VALIDATE: %w", EnvPrefix, err))
		}
		c.Shader.Validate = b
	}
	for key, dst := range map[string]*int{
		"EXPORT_WORKERS":    &c.Export.Workers,
		"ENGINE_MESH_CELLS": &c.Engine.MeshCells,
	} {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				continue
			}
			*dst = n
		}
	}
	if v, ok := lookup(EnvPrefix + "ENGINE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sENGINE_TIMEOUT: %w", EnvPrefix, err))
		}
		c.Engine.Timeout = d
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Validate checks every field for a legal value.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Texture.Mode) {
	case "reference", "ref", "embed", "inline":
	default:
		errs = append(errs, fmt.Errorf("texture.mode %q: want reference or embed", c.Texture.Mode))
	}
	switch c.Shader.Output {
	case OutputFirst, OutputActive:
	default:
		errs = append(errs, fmt.Errorf("shader.output %q: want first or active", c.Shader.Output))
	}
	if c.Export.Workers < 1 {
		errs = append(errs, fmt.Errorf("export.workers must be at least 1, got %d", c.Export.Workers))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.timeout must be positive, got %s", c.Engine.Timeout))
	}
	switch c.Engine.Kernel {
	case KernelSdfx, KernelManifold:
	default:
		errs = append(errs, fmt.Errorf("engine.kernel %q: want sdfx or manifold", c.Engine.Kernel))
	}
	if c.Engine.MeshCells < 8 {
		errs = append(errs, fmt.Errorf("engine.mesh_cells must be at least 8, got %d", c.Engine.MeshCells))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Level parses the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	return l, nil
}

// PreferActiveOutput reports whether the active output node wins.
func (c *Config) PreferActiveOutput() bool {
	return c.Shader.Output == OutputActive
}
