package internal

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maestro-org/maestro/internal/appconfig"
	"github.com/maestro-org/maestro/internal/storage/postgres"
)

func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(*configPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
			if err != nil {
				return fmt.Errorf("migrate: connect to postgres: %w", err)
			}
			defer pool.Close()

			if err := postgres.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Println("migrate: schema applied")
			return nil
		},
	}
}
