package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Bring the configured SQL store up to the latest schema version.

The memory driver has no schema; migrate is a no-op for it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Database.Driver == "memory" {
				logger.Info("memory driver has no schema to migrate")
				return nil
			}
			// openBackend migrates SQL stores before returning
			_, closeFn, err := openBackend(cmd.Context(), cfg.Database, logger)
			if err != nil { return fmt.Errorf("migration failed: %w", err) }
			closeFn()
			logger.Info("database migrations complete", "driver", cfg.Database.Driver)
			return nil
		},
	}
}
