package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis"
	apperrors "github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/redis"
)

// RedisStore keeps the table under analysis:<name>:payload with its build
// time under analysis:<name>:built_at. Both keys are set in one transaction.
type RedisStore struct {
	client     *redis.Client
	payloadKey string
	builtAtKey string
	now        func() time.Time
	logger     *slog.Logger
}

// NewRedisStore creates a RedisStore for the named artifact.
func NewRedisStore(client *redis.Client, name string) *RedisStore {
	if name == "" {
		name = "analysis"
	}
	prefix := "analysis:" + name
	return &RedisStore{
		client:     client,
		payloadKey: prefix + ":payload",
		builtAtKey: prefix + ":built_at",
		now:        time.Now,
		logger:     slog.Default().With("component", "redis-store"),
	}
}

func (s *RedisStore) Location() string {
	return "redis://" + s.payloadKey
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *RedisStore) Exists(ctx context.Context) (bool, error) {
	ok, err := s.client.Exists(ctx, s.payloadKey, s.builtAtKey)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", s.payloadKey, err)
	}
	return ok, nil
}

func (s *RedisStore) Read(ctx context.Context) (analysis.Table, error) {
	data, err := s.client.Get(ctx, s.payloadKey)
	if redis.IsNilError(err) || (err == nil && len(data) == 0) {
		return nil, apperrors.ErrCacheNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.payloadKey, err)
	}
	return decode(data)
}

func (s *RedisStore) Write(ctx context.Context, table analysis.Table) error {
	data, err := encode(table)
	if err != nil {
		return err
	}
	err = s.client.SetAll(ctx, map[string]any{
		s.payloadKey: data,
		s.builtAtKey: s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", s.payloadKey, err)
	}
	s.logger.Info("artifact written", "key", s.payloadKey, "entries", len(table))
	return nil
}

func (s *RedisStore) Age(ctx context.Context) (time.Duration, error) {
	raw, err := s.client.Get(ctx, s.builtAtKey)
	if redis.IsNilError(err) {
		return 0, apperrors.ErrCacheNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", s.builtAtKey, err)
	}
	builtAt, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", s.builtAtKey, err)
	}
	age := s.now().Sub(builtAt)
	if age < 0 {
		age = 0
	}
	return age, nil
}
