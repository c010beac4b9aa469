package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/questhold/questhold/internal/infrastructure/persistence/gorm"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			zl, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			db, cleanup, err := gorm.NewDB(cfg, zl)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := gorm.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}
