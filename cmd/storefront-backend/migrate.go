package main

import (
	"errors"

	"github.com/spf13/cobra"

	"storefront-backend/internal/infrastructure/repo"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL required")
			}
			pg, err := repo.NewPostgresRepo(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pg.Close()
			return pg.Migrate()
		},
	}
}
