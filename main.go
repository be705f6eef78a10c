package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chazu/cyclesxml/pkg/config"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "cyclesxml",
		Short:         "Export scene scripts to Cycles standalone XML",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configPath string
	logLevel   string
	logFormat  string

	outputPath   string
	embed        bool
	workers      int
	activeOutput bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML or TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	for _, cmd := range []*cobra.Command{exportCmd, watchCmd} {
		cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output XML path (default: script path with .xml)")
		cmd.Flags().BoolVar(&embed, "embed", false, "Embed textures as base64 PNG")
		cmd.Flags().IntVarP(&workers, "workers", "j", 0, "Shader serialization workers")
		cmd.Flags().BoolVar(&activeOutput, "active-output", false, "Use the active output node instead of the first")
	}

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(watchCmd)
}

// loadApp builds an App from the config file and command-line overrides.
func loadApp(cmd *cobra.Command) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("embed") && embed {
		cfg.Texture.Mode = "embed"
	}
	if flags.Changed("workers") {
		cfg.Export.Workers = workers
	}
	if flags.Changed("active-output") && activeOutput {
		cfg.Shader.Output = config.OutputActive
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return NewApp(cfg, osfs.New("/"), log), nil
}

// newLogger returns the slog logger described by cfg.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q, expected text or json", cfg.Log.Format)
}

// paths returns the absolute script and output paths for args.
func paths(args []string) (src, dst string, err error) {
	src, err = filepath.Abs(args[0])
	if err != nil {
		return "", "", err
	}
	dst = DefaultOutput(src)
	if outputPath != "" {
		if dst, err = filepath.Abs(outputPath); err != nil {
			return "", "", err
		}
	}
	return src, dst, nil
}

var exportCmd = &cobra.Command{
	Use:   "export <scene.lisp>",
	Short: "Evaluate a scene script and write Cycles XML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		src, dst, err := paths(args)
		if err != nil {
			return err
		}
		return app.Export(cmd.Context(), src, dst)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <scene.lisp>",
	Short: "Check that a scene script exports cleanly without writing output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		src, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		return app.Validate(cmd.Context(), src)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <scene.lisp>",
	Short: "Re-export a scene script every time it changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		src, dst, err := paths(args)
		if err != nil {
			return err
		}
		w := NewWatcher(app, src, dst)
		w.OnExport = func(err error) {
			if err != nil {
				app.log.Error("export failed", "script", src, "error", err)
			}
		}
		return w.Run(cmd.Context())
	},
}
