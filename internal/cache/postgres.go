package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis"
	apperrors "github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS analysis_cache (
    name     TEXT PRIMARY KEY,
    payload  JSONB NOT NULL,
    built_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps one row per artifact name in analysis_cache:
//
//	CREATE TABLE analysis_cache (
//	    name     TEXT PRIMARY KEY,
//	    payload  JSONB NOT NULL,
//	    built_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db     *postgres.Client
	name   string
	logger *slog.Logger
}

// NewPostgresStore creates the table if needed and returns a store for name.
func NewPostgresStore(ctx context.Context, db *postgres.Client, name string) (*PostgresStore, error) {
	if name == "" {
		name = "analysis"
	}
	if _, err := db.DB.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating analysis_cache table: %w", err)
	}
	return &PostgresStore{
		db:     db,
		name:   name,
		logger: slog.Default().With("component", "postgres-store"),
	}, nil
}

func (s *PostgresStore) Location() string {
	return "postgres://analysis_cache/" + s.name
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM analysis_cache WHERE name = $1)`, s.name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking analysis_cache: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Read(ctx context.Context) (analysis.Table, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT payload FROM analysis_cache WHERE name = $1`, s.name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrCacheNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading analysis_cache: %w", err)
	}
	return decode(data)
}

func (s *PostgresStore) Write(ctx context.Context, table analysis.Table) error {
	data, err := encode(table)
	if err != nil {
		return err
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO analysis_cache (name, payload, built_at)
			 VALUES ($1, $2, NOW())
			 ON CONFLICT (name) DO UPDATE
			 SET payload = EXCLUDED.payload, built_at = EXCLUDED.built_at`,
			s.name, data,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("writing analysis_cache: %w", err)
	}
	s.logger.Info("artifact written", "name", s.name, "entries", len(table))
	return nil
}

func (s *PostgresStore) Age(ctx context.Context) (time.Duration, error) {
	var age float64
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT GREATEST(EXTRACT(EPOCH FROM (NOW() - built_at)), 0) FROM analysis_cache WHERE name = $1`, s.name,
	).Scan(&age)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.ErrCacheNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading analysis_cache age: %w", err)
	}
	return time.Duration(age * float64(time.Second)), nil
}
