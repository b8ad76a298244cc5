package cache

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/redis"
)

// Open builds the Store selected by cfg.Cache.Backend. The returned close
// function releases any connection the store holds.
func Open(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Cache.Backend {
	case "", "file":
		s, err := NewFileStore(cfg.Cache.DataDir, cfg.Cache.Name)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "redis":
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, fmt.Errorf("opening redis store: %w", err)
		}
		return NewRedisStore(client, cfg.Cache.Name), client.Close, nil
	case "postgres":
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, noop, fmt.Errorf("opening postgres store: %w", err)
		}
		s, err := NewPostgresStore(ctx, db, cfg.Cache.Name)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return s, db.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
