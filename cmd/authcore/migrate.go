package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore/store/sqlstore"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the identities table of a SQL store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := newLogger(os.Stderr, cfg.Log)
			if err != nil {
				return err
			}

			dialect, err := sqlstore.ParseDialect(cfg.Store.Driver)
			if err != nil {
				return fmt.Errorf("migrate needs a postgres or sqlite store: %w", err)
			}
			// Open applies pending migrations.
			s, err := sqlstore.Open(cmd.Context(), dialect, cfg.Store.DSN)
			if err != nil {
				return err
			}
			defer s.Close()

			logger.Info("migrations applied", "dialect", string(dialect))
			return nil
		},
	}
}
