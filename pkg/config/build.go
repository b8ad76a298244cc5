package config

import "time"

// BuildConfig is the immutable snapshot of parameters a single analysis build
// runs with. It is produced once per build and passed down explicitly.
type BuildConfig struct {
	Tag             string
	Query           string
	Token           string
	BaseURL         string
	MaxPages        int
	PerPage         int
	RequestTimeout  time.Duration
	PageDelay       time.Duration
	MinLikes        int
	MinStocks       int
	MinCount        int
	TopLikesPercent float64
	TTL             time.Duration
	Stopwords       string
	KeepStale       bool
}

// Build returns the build snapshot of c.
func (c *Config) Build() BuildConfig {
	return BuildConfig{
		Tag:             c.Qiita.Tag,
		Query:           c.Qiita.Query,
		Token:           c.Qiita.Token,
		BaseURL:         c.Qiita.BaseURL,
		MaxPages:        c.Qiita.MaxPages,
		PerPage:         c.Qiita.PerPage,
		RequestTimeout:  c.Qiita.RequestTimeout,
		PageDelay:       c.Qiita.PageDelay,
		MinLikes:        c.Analysis.MinLikes,
		MinStocks:       c.Analysis.MinStocks,
		MinCount:        c.Analysis.MinCount,
		TopLikesPercent: c.Analysis.TopLikesPercent,
		TTL:             c.Cache.TTL,
		Stopwords:       c.Analysis.Stopwords,
		KeepStale:       c.Analysis.KeepStaleOnFetchFailure,
	}
}

// Source yields a fresh BuildConfig for every build.
type Source func() (BuildConfig, error)

// FileSource re-reads the config file and environment on every call so that
// each build observes the configuration current at its start.
func FileSource(path string) Source {
	return func() (BuildConfig, error) {
		cfg, err := Load(path)
		if err != nil {
			return BuildConfig{}, err
		}
		return cfg.Build(), nil
	}
}

// StaticSource always yields b.
func StaticSource(b BuildConfig) Source {
	return func() (BuildConfig, error) {
		return b, nil
	}
}
