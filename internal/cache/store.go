// Package cache persists the analysis table at a single well-known location.
// Backends replace the table as a whole so readers never see a partial write.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis"
)

// Store holds at most one analysis table.
type Store interface {
	// Exists reports whether a non-empty artifact is present.
	Exists(ctx context.Context) (bool, error)
	// Read returns the artifact or errors.ErrCacheNotFound.
	Read(ctx context.Context) (analysis.Table, error)
	// Write replaces the artifact.
	Write(ctx context.Context, table analysis.Table) error
	// Age is the time since the last Write, or errors.ErrCacheNotFound.
	Age(ctx context.Context) (time.Duration, error)
	// Location identifies where the artifact lives.
	Location() string
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// encode renders table as pretty-printed UTF-8 JSON, non-ASCII kept verbatim.
// A nil table encodes as an empty array.
func encode(table analysis.Table) ([]byte, error) {
	if table == nil {
		table = analysis.Table{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(table); err != nil {
		return nil, fmt.Errorf("encoding analysis table: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (analysis.Table, error) {
	var table analysis.Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decoding analysis table: %w", err)
	}
	if table == nil {
		table = analysis.Table{}
	}
	return table, nil
}
