package main

import (
	"fmt"
	"time"

	"github.com/phrazzld/evaluator/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool := postgres.PoolOptions{
				MaxOpenConns:   1,
				ConnectTimeout: time.Duration(cfg.Database.ConnectTimeoutSeconds) * time.Second,
			}

			// Each database gets only the tables it serves. A shared
			// database gets both sets, versioned in separate tables.
			targets := []struct {
				url string
				set postgres.MigrationSet
			}{
				{cfg.Database.URL, postgres.RecordMigrations},
				{cfg.Queue.URL, postgres.QueueMigrations},
			}
			for _, target := range targets {
				db, err := postgres.Open(ctx, target.url, pool, log)
				if err != nil {
					return err
				}
				err = postgres.Migrate(ctx, db, target.set, args[0], log)
				_ = db.Close()
				if err != nil {
					return fmt.Errorf("migrate %s %s: %w", target.set.Name, args[0], err)
				}
			}
			return nil
		},
	}
}
