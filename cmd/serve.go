package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/pantry/internal/config"
	"github.com/conneroisu/pantry/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the pantry development server",
	Long: `Start the pantry development server.

Every ingredient is served under the mount path at:
  /<ingredient>/preview        rendered preview (?modelPath= selects a model subtree)
  /<ingredient>/docs           rendered ingredient.md
  /<ingredient>/assets/...     bundled index.js and index.css, and static files

Changes to bundled files rebuild the assets and reload open previews unless
--no-hot-reload is given.

Examples:
  pantry serve -n kitchen                          # Serve the current directory
  pantry serve -d ./components -n kitchen -p 3000  # Serve ./components on port 3000
  pantry serve -n kitchen --helpers text --helpers ./lib/dates.lua`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd, serveBindings)
	},
	RunE: runServe,
}

var serveBindings = map[string]string{
	"base-dir":        "pantry.base_dir",
	"namespace":       "pantry.namespace",
	"port":            "server.port",
	"host":            "server.host",
	"mount":           "server.mount_path",
	"helpers":         "preview.helpers",
	"default-preview": "preview.default_template",
	"default-model":   "preview.default_model",
	"minify":          "assets.minify",
	"sourcemap":       "assets.sourcemap",
}

var noHotReload bool

func init() {
	rootCmd.AddCommand(serveCmd)

	AddStandardFlags(serveCmd, "pantry")
	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().String("mount", "/", "Path prefix the pantry is served under")
	serveCmd.Flags().StringArray("helpers", nil, "Handlebars helper module (repeatable, later modules override)")
	serveCmd.Flags().String("default-preview", "", "Preview template for ingredients without preview.hbs")
	serveCmd.Flags().String("default-model", "", "Model file for ingredients without a model")
	serveCmd.Flags().Bool("minify", false, "Minify bundled assets")
	serveCmd.Flags().Bool("sourcemap", false, "Inline source maps in bundled assets")
	serveCmd.Flags().BoolVar(&noHotReload, "no-hot-reload", false, "Don't watch the pantry for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("no-hot-reload") {
		cfg.Development.HotReload = !noHotReload
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}
	return nil
}
