package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfirmEmailCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-email <email>",
		Short: "Mark an account's email as verified without a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := newLogger(os.Stderr, cfg.Log)
			if err != nil {
				return err
			}

			rt, err := buildRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.engine.ConfirmEmailByAddress(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("confirm %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "confirmed %s\n", args[0])
			return nil
		},
	}
}
