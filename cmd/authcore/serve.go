package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/oauth/google"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := newLogger(os.Stderr, cfg.Log)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

// runtime is an engine wired to its backend.
type runtime struct {
	engine  *authcore.Engine
	backend *backend
}

func (r *runtime) Close() {
	r.engine.Close()
	r.backend.Close()
}

func buildRuntime(ctx context.Context, cfg *fileConfig, logger *slog.Logger) (*runtime, error) {
	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var mailer mail.Mailer
	if smtpCfg, ok := cfg.smtp(); ok {
		mailer, err = mail.NewSMTP(smtpCfg)
		if err != nil {
			return nil, fmt.Errorf("smtp: %w", err)
		}
	} else {
		logger.Warn("no SMTP relay configured; account email is logged instead of sent")
		mailer = mail.NewLog(logger)
	}

	b, err := openBackend(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	engine, err := b.apply(authcore.New().WithConfig(engineCfg)).
		WithMailer(mailer).
		WithLogger(logger).
		WithAuditSink(authcore.NewSlogSink(logger)).
		Build()
	if err != nil {
		b.Close()
		return nil, err
	}
	return &runtime{engine: engine, backend: b}, nil
}

func serve(ctx context.Context, cfg *fileConfig, logger *slog.Logger) error {
	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	apiOpts := httpapi.Options{
		Engine:            rt.engine,
		AdminKey:          cfg.HTTP.AdminKey,
		PostLoginRedirect: cfg.HTTP.PostLoginRedirect,
		SecureCookies:     cfg.HTTP.SecureCookies,
		TrustProxyHeaders: cfg.HTTP.TrustProxyHeaders,
		Logger:            logger,
	}
	if googleCfg, ok := cfg.google(); ok {
		provider, err := google.New(ctx, googleCfg)
		if err != nil {
			return fmt.Errorf("google oauth: %w", err)
		}
		apiOpts.Google = provider
	}
	if cfg.Metrics.Enabled {
		apiOpts.Metrics = prometheus.New(rt.engine).Handler()
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httpapi.New(apiOpts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authcore listening",
			"addr", cfg.Listen,
			"store", cfg.Store.Driver,
			"google", apiOpts.Google != nil,
			"metrics", cfg.Metrics.Enabled,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
