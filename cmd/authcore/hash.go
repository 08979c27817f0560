package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore/password"
)

func newHashCmd(opts *globalOptions) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "hash [password]",
		Short: "Print the argon2id hash the service would store for a password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			var plaintext string
			switch {
			case fromStdin:
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				plaintext = strings.TrimRight(line, "\r\n")
			case len(args) == 1:
				plaintext = args[0]
			default:
				return errors.New("pass the password as an argument or use --stdin")
			}

			hasher, err := password.NewArgon2(password.Config{
				Memory:      cfg.Password.MemoryKiB,
				Time:        cfg.Password.Time,
				Parallelism: cfg.Password.Parallelism,
				SaltLength:  password.DefaultConfig().SaltLength,
				KeyLength:   password.DefaultConfig().KeyLength,
			})
			if err != nil {
				return err
			}
			encoded, err := hasher.Hash(plaintext)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the password from the first line of stdin")
	return cmd
}
