package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/yrajput/closet-organizer/internal/config"
	"github.com/yrajput/closet-organizer/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web application",
		Long: `Serve the web application on PORT until SIGINT or SIGTERM.

Required environment:
  GITHUB_CLIENT_ID, GITHUB_CLIENT_SECRET   OAuth application credentials
  GITHUB_ORG                               organization whose members may log in
  APP_SECRET_KEY                           session signing secret (16+ characters)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stdout, cfg.SlogLevel())

			srv, err := server.New(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("failed to create server", slog.String("error", err.Error()))
				return fmt.Errorf("creating server: %w", err)
			}

			// Start blocks until the server is shut down.
			return srv.Start()
		},
	}
}
