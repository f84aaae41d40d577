package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/charter"
	"github.com/xraph/charter/cache"
	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/memory"
	"github.com/xraph/charter/store/mongo"
	"github.com/xraph/charter/store/postgres"
	"github.com/xraph/charter/store/sqlite"
)

func openStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "postgres":
		s, err = postgres.Open(ctx, cfg.DSN)
	case "sqlite":
		s, err = sqlite.Open(ctx, cfg.DSN)
	case "mongo":
		s, err = mongo.Open(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return s, nil
}

// openCache returns nil for the "none" driver. The closer is never nil.
func openCache(ctx context.Context, cfg CacheConfig, logger *slog.Logger) (charter.Cache, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case "none":
		return nil, noop, nil
	case "memory":
		var opts []cache.MemoryOption
		if cfg.TTL > 0 {
			opts = append(opts, cache.WithTTL(cfg.TTL))
		}
		return cache.NewMemory(opts...), noop, nil
	case "redis":
		opts := []cache.RedisOption{cache.WithRedisLogger(logger)}
		if cfg.TTL > 0 {
			opts = append(opts, cache.WithRedisTTL(cfg.TTL))
		}
		rc, err := cache.DialRedis(ctx, cfg.RedisURL, opts...)
		if err != nil {
			return nil, noop, err
		}
		return rc, rc.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
