// Package config loads and validates application configuration from YAML files,
// an optional .env file, and environment-variable overrides. It provides typed
// structs for every subsystem (Server, Qiita, Analysis, Cache, Redis, Postgres,
// Kafka, Scheduler, Logging, Metrics) and the per-build snapshot consumed by
// the analysis builder.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Qiita     QiitaConfig     `yaml:"qiita"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RebuildTimeout bounds a forced rebuild triggered over HTTP.
	RebuildTimeout time.Duration `yaml:"rebuildTimeout"`
	// RebuildsPerMinute limits POST /api/rebuild per client address.
	RebuildsPerMinute int      `yaml:"rebuildsPerMinute"`
	AllowOrigins      []string `yaml:"allowOrigins"`
	// TrustForwardedFor keys the rebuild limit on X-Forwarded-For instead of
	// the peer address. Enable only behind a proxy that sets the header.
	TrustForwardedFor bool `yaml:"trustForwardedFor"`
}

// QiitaConfig describes the content platform and how it is paged.
type QiitaConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	Token          string        `yaml:"token"`
	Tag            string        `yaml:"tag"`
	Query          string        `yaml:"query"`
	MaxPages       int           `yaml:"maxPages"`
	PerPage        int           `yaml:"perPage"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	PageDelay      time.Duration `yaml:"pageDelay"`
}

// AnalysisConfig holds the article and word filtering thresholds.
type AnalysisConfig struct {
	MinLikes        int     `yaml:"minLikes"`
	MinStocks       int     `yaml:"minStocks"`
	MinCount        int     `yaml:"minCount"`
	TopLikesPercent float64 `yaml:"topLikesPercent"`
	// Stopwords is a comma-separated list merged with the built-in defaults.
	Stopwords string `yaml:"stopwords"`
	// KeepStaleOnFetchFailure defaults to true: a build whose fetch failed,
	// forced or not, leaves an existing artifact in place rather than
	// replacing it with the partial result. Set it to false to always
	// overwrite, including with a truncated fetch.
	KeepStaleOnFetchFailure bool `yaml:"keepStaleOnFetchFailure"`
}

// CacheConfig selects the artifact backend and its freshness window.
type CacheConfig struct {
	// Backend is one of "file", "redis" or "postgres".
	Backend string `yaml:"backend"`
	// DataDir defaults to <executable dir>/data when empty.
	DataDir string `yaml:"dataDir"`
	Name    string `yaml:"name"`
	// TTL of zero keeps the artifact until a forced rebuild.
	TTL time.Duration `yaml:"ttl"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds broker and topic settings. Kafka is optional and stays
// disabled while Brokers is empty.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	BuildEvents     string `yaml:"buildEvents"`
	RebuildRequests string `yaml:"rebuildRequests"`
}

// SchedulerConfig controls periodic rebuilds. An empty Spec disables them.
type SchedulerConfig struct {
	Spec     string `yaml:"spec"`
	Timezone string `yaml:"timezone"`
	Force    bool   `yaml:"force"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a .env file (if present), a YAML config file (if provided) and
// applies environment-variable overrides. The result is validated.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns the built-in defaults applied before the YAML file.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8000,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RebuildTimeout:    5 * time.Minute,
			RebuildsPerMinute: 6,
			AllowOrigins:      []string{"*"},
		},
		Qiita: QiitaConfig{
			BaseURL:        "https://qiita.com/api/v2",
			Tag:            "Python",
			MaxPages:       10,
			PerPage:        100,
			RequestTimeout: 15 * time.Second,
			PageDelay:      400 * time.Millisecond,
		},
		Analysis: AnalysisConfig{
			MinLikes:                50,
			MinStocks:               0,
			MinCount:                2,
			KeepStaleOnFetchFailure: true,
		},
		Cache: CacheConfig{
			Backend: "file",
			Name:    "analysis",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "titletrend",
			User:            "titletrend",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "title-trend-analytics",
			Topics: KafkaTopics{
				BuildEvents:     "analysis.build-events",
				RebuildRequests: "analysis.rebuild-requests",
			},
		},
		Scheduler: SchedulerConfig{
			Timezone: "UTC",
			Force:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads the plain analysis variables (QIITA_TAG, MIN_LIKES, ...) and the
// TTA_* infrastructure variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QIITA_TAG"); v != "" {
		cfg.Qiita.Tag = v
	}
	if v, ok := os.LookupEnv("QIITA_SEARCH_QUERY"); ok {
		cfg.Qiita.Query = v
	}
	if v := os.Getenv("QIITA_TOKEN"); v != "" {
		cfg.Qiita.Token = v
	}
	if v := os.Getenv("QIITA_BASE_URL"); v != "" {
		cfg.Qiita.BaseURL = v
	}
	setInt("QIITA_MAX_PAGES", &cfg.Qiita.MaxPages)
	setInt("QIITA_PER_PAGE", &cfg.Qiita.PerPage)
	setInt("MIN_LIKES", &cfg.Analysis.MinLikes)
	setInt("MIN_STOCKS", &cfg.Analysis.MinStocks)
	setInt("MIN_COUNT", &cfg.Analysis.MinCount)
	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Cache.TTL = time.Duration(secs) * time.Second
		}
	}
	if v, ok := os.LookupEnv("STOPWORDS"); ok {
		cfg.Analysis.Stopwords = v
	}
	if v := os.Getenv("TOP_LIKES_PERCENT"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.TopLikesPercent = p
		}
	}
	if v := os.Getenv("KEEP_STALE_ON_FETCH_FAILURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Analysis.KeepStaleOnFetchFailure = b
		}
	}

	setInt("TTA_SERVER_PORT", &cfg.Server.Port)
	if v := os.Getenv("TTA_TRUST_FORWARDED_FOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.TrustForwardedFor = b
		}
	}
	if v := os.Getenv("TTA_ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = splitList(v)
	}
	if v := os.Getenv("TTA_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("TTA_CACHE_DATA_DIR"); v != "" {
		cfg.Cache.DataDir = v
	}
	if v := os.Getenv("TTA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TTA_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TTA_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	setInt("TTA_POSTGRES_PORT", &cfg.Postgres.Port)
	if v := os.Getenv("TTA_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TTA_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TTA_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TTA_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("TTA_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v, ok := os.LookupEnv("TTA_SCHEDULE"); ok {
		cfg.Scheduler.Spec = v
	}
	if v := os.Getenv("TTA_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TTA_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	setInt("TTA_METRICS_PORT", &cfg.Metrics.Port)
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects configurations the builder cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Qiita.PerPage < 1 || c.Qiita.PerPage > 100:
		return fmt.Errorf("qiita.perPage must be between 1 and 100, got %d", c.Qiita.PerPage)
	case c.Qiita.MaxPages < 1:
		return fmt.Errorf("qiita.maxPages must be at least 1, got %d", c.Qiita.MaxPages)
	case c.Qiita.Tag == "" && c.Qiita.Query == "":
		return fmt.Errorf("either qiita.tag or qiita.query must be set")
	case c.Analysis.MinLikes < 0 || c.Analysis.MinStocks < 0 || c.Analysis.MinCount < 0:
		return fmt.Errorf("analysis thresholds must not be negative")
	case c.Analysis.TopLikesPercent < 0 || c.Analysis.TopLikesPercent > 1:
		return fmt.Errorf("analysis.topLikesPercent must be within [0, 1], got %v", c.Analysis.TopLikesPercent)
	case c.Cache.TTL < 0:
		return fmt.Errorf("cache.ttl must not be negative")
	}
	switch c.Cache.Backend {
	case "file", "redis", "postgres":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}
