package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "authcore",
		Short: "Email and password authentication service with Google sign-in",
		Long: `authcore serves the account API: registration, email verification,
login with lockout, password reset, logout and Google OAuth sign-in.

Configuration is read from an optional YAML file (--config) and then from
AUTHCORE_* environment variables, which win over the file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "json or text (overrides config)")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newConfirmEmailCmd(opts),
		newHashCmd(opts),
	)
	return root
}

// load reads the config and applies flag overrides.
func (o *globalOptions) load() (*fileConfig, error) {
	cfg, err := loadConfig(o.configPath, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg logConfig) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}
}
