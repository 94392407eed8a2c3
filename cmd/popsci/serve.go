package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/popsci/internal/config"
	"github.com/jackzampolin/popsci/internal/home"
	"github.com/jackzampolin/popsci/internal/server"
)

var logLevel string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the popsci server",
	Long: `Start the popsci HTTP server.

Configuration is read from --config, ./config.yaml, or ~/.popsci/config.yaml,
and any key can be overridden with a POPSCI_ environment variable
(e.g. POPSCI_SERVER_PORT=3000). Changes to the config file are applied
without a restart where possible.

The server provides:
  - /api/health  - Liveness check
  - /api/ready   - Readiness check (task registry and providers)
  - /api/paper/* - Interpretation tasks and artifacts
  - /metrics     - Prometheus metrics

Examples:
  popsci serve                          # Start with the default config
  popsci serve --log-level debug        # Verbose logging
  POPSCI_SERVER_HOST=0.0.0.0 popsci serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfgMgr, err := config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}
		if f := cfgMgr.File(); f != "" {
			logger.Info("loaded config", "file", f)
		}

		srv, err := server.New(ctx, server.Config{
			ConfigManager: cfgMgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Blocks until ctx is cancelled.
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, or error")

	rootCmd.AddCommand(serveCmd)
}
