package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Qiita.Tag != "Python" {
		t.Errorf("expected default tag Python, got %q", cfg.Qiita.Tag)
	}
	if cfg.Analysis.MinLikes != 50 || cfg.Analysis.MinCount != 2 || cfg.Analysis.MinStocks != 0 {
		t.Errorf("unexpected default thresholds: %+v", cfg.Analysis)
	}
	if cfg.Qiita.MaxPages != 10 || cfg.Qiita.PerPage != 100 {
		t.Errorf("unexpected paging defaults: %+v", cfg.Qiita)
	}
	if cfg.Cache.TTL != 0 {
		t.Errorf("expected TTL 0 by default, got %v", cfg.Cache.TTL)
	}
	if cfg.Qiita.PageDelay != 400*time.Millisecond {
		t.Errorf("expected 400ms page delay, got %v", cfg.Qiita.PageDelay)
	}
	if !cfg.Analysis.KeepStaleOnFetchFailure || !cfg.Build().KeepStale {
		t.Error("expected a failed fetch to keep the existing artifact by default")
	}
}

func TestTrustForwardedForIsOptIn(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.TrustForwardedFor {
		t.Error("X-Forwarded-For must not be trusted by default")
	}
	t.Setenv("TTA_TRUST_FORWARDED_FOR", "true")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Server.TrustForwardedFor {
		t.Error("expected TTA_TRUST_FORWARDED_FOR=true to opt in")
	}
}

func TestKeepStaleCanBeDisabled(t *testing.T) {
	t.Setenv("KEEP_STALE_ON_FETCH_FAILURE", "false")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Build().KeepStale {
		t.Error("expected KEEP_STALE_ON_FETCH_FAILURE=false to restore always-overwrite")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfig(t, `
qiita:
  tag: Go
  maxPages: 3
  perPage: 20
analysis:
  minLikes: 5
  stopwords: "foo,bar"
cache:
  backend: redis
  ttl: 1h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Qiita.Tag != "Go" || cfg.Qiita.MaxPages != 3 || cfg.Qiita.PerPage != 20 {
		t.Errorf("yaml values not applied: %+v", cfg.Qiita)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.TTL != time.Hour {
		t.Errorf("cache values not applied: %+v", cfg.Cache)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Analysis.MinCount != 2 {
		t.Errorf("expected default minCount, got %d", cfg.Analysis.MinCount)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QIITA_TAG", "Rust")
	t.Setenv("QIITA_SEARCH_QUERY", "stocks:>20")
	t.Setenv("MIN_LIKES", "10")
	t.Setenv("MIN_STOCKS", "3")
	t.Setenv("MIN_COUNT", "4")
	t.Setenv("CACHE_TTL_SECONDS", "600")
	t.Setenv("STOPWORDS", "a,b")
	t.Setenv("TTA_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b := cfg.Build()
	if b.Tag != "Rust" || b.Query != "stocks:>20" {
		t.Errorf("selector not overridden: %+v", b)
	}
	if b.MinLikes != 10 || b.MinStocks != 3 || b.MinCount != 4 {
		t.Errorf("thresholds not overridden: %+v", b)
	}
	if b.TTL != 10*time.Minute {
		t.Errorf("expected 10m TTL, got %v", b.TTL)
	}
	if b.Stopwords != "a,b" {
		t.Errorf("expected stopwords override, got %q", b.Stopwords)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if !cfg.Kafka.Enabled() {
		t.Error("expected kafka to be enabled")
	}
}

func TestInvalidEnvValuesAreIgnored(t *testing.T) {
	t.Setenv("MIN_LIKES", "lots")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.MinLikes != 50 {
		t.Errorf("expected default to survive malformed env, got %d", cfg.Analysis.MinLikes)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"per page too large", func(c *Config) { c.Qiita.PerPage = 101 }},
		{"per page zero", func(c *Config) { c.Qiita.PerPage = 0 }},
		{"max pages zero", func(c *Config) { c.Qiita.MaxPages = 0 }},
		{"no selector", func(c *Config) { c.Qiita.Tag = ""; c.Qiita.Query = "" }},
		{"negative likes", func(c *Config) { c.Analysis.MinLikes = -1 }},
		{"percent above one", func(c *Config) { c.Analysis.TopLikesPercent = 1.5 }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "s3" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestFileSourceRereadsEnvironment(t *testing.T) {
	src := FileSource("")
	t.Setenv("QIITA_TAG", "First")
	first, err := src()
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	t.Setenv("QIITA_TAG", "Second")
	second, err := src()
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	if first.Tag != "First" || second.Tag != "Second" {
		t.Errorf("expected per-call snapshots, got %q then %q", first.Tag, second.Tag)
	}
}
