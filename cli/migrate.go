package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conmonhq/conmon/engine/infra/postgres"
	"github.com/conmonhq/conmon/pkg/config"
	"github.com/conmonhq/conmon/pkg/logger"
)

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			if cfg.Store.Driver != "postgres" {
				return fmt.Errorf("migrate requires the postgres store driver, got %q", cfg.Store.Driver)
			}
			if err := postgres.ApplyMigrations(ctx, postgres.DSN(&cfg.Postgres)); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("Migrations applied", "database", cfg.Postgres.DBName)
			return nil
		},
	}
}
