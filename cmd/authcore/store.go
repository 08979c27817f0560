package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/sqlstore"
)

// backend is an opened identity store plus what the engine builder needs
// from it.
type backend struct {
	store   identity.Store
	redis   redis.UniversalClient
	cleanup []func()
}

func (b *backend) Close() {
	for i := len(b.cleanup) - 1; i >= 0; i-- {
		b.cleanup[i]()
	}
}

// apply hands the backend to the engine builder. Redis backends also carry
// the revocation list and the request counters.
func (b *backend) apply(builder *authcore.Builder) *authcore.Builder {
	if b.redis != nil {
		builder = builder.WithRedis(b.redis)
	}
	if b.store != nil {
		builder = builder.WithStore(b.store)
	}
	return builder
}

func openBackend(ctx context.Context, cfg storeConfig, logger *slog.Logger) (*backend, error) {
	b := &backend{}

	switch driver := strings.ToLower(cfg.Driver); driver {
	case "", "memory":
		b.store = memory.New()
		logger.Warn("using in-memory identity store; data is lost on exit")

	case "miniredis":
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		b.cleanup = append(b.cleanup, mr.Close)
		b.redis = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		b.cleanup = append(b.cleanup, func() { _ = b.redis.Close() })
		logger.Warn("using embedded miniredis; data is lost on exit", "addr", mr.Addr())

	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("store driver redis requires redis_addr")
		}
		b.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    strings.Split(cfg.RedisAddr, ","),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		b.cleanup = append(b.cleanup, func() { _ = b.redis.Close() })
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}

	default:
		dialect, err := sqlstore.ParseDialect(driver)
		if err != nil {
			return nil, err
		}
		s, err := sqlstore.Open(ctx, dialect, cfg.DSN)
		if err != nil {
			return nil, err
		}
		b.store = s
		b.cleanup = append(b.cleanup, func() { _ = s.Close() })
	}

	return b, nil
}
