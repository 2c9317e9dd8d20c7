package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yrajput/closet-organizer/internal/config"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/server"
)

func newExportCmd() *cobra.Command {
	var (
		owner    string
		category string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Materialize an owner's photos and print their locations",
		Long: `Write every photo an owner has stored, optionally only one category,
to the configured blob store and print one location per line in upload order.

Only the storage settings are read from the environment, so export runs
without GitHub credentials.

Examples:
  closet-server export --owner alice
  closet-server export --owner alice --category beach`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var c model.Category
			if category != "" {
				var ok bool
				if c, ok = model.ParseCategory(category); !ok {
					return fmt.Errorf("unknown category %q", category)
				}
			}

			cfg, err := config.LoadStorage()
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), slog.LevelWarn)

			storage, err := server.OpenStorage(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			media := storage.MediaService(cfg.Upload)
			n := 0
			for loc, err := range media.ListFor(cmd.Context(), owner, c) {
				if err != nil {
					return fmt.Errorf("exporting %s: %w", owner, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), loc)
				n++
			}
			logger.Info("export finished", slog.String("owner", owner), slog.Int("photos", n))
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "GitHub login whose photos to export (required)")
	cmd.Flags().StringVar(&category, "category", "", "only export this category")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
