// Package builder runs the analysis pipeline: fetch, filter, tokenize,
// rank and persist. At most one build runs at a time per Builder, and
// identical concurrent requests share a single run.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/qiita"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/tracing"
)

// Outcome says what a build did.
type Outcome string

const (
	// OutcomeBuilt means a new artifact was written.
	OutcomeBuilt Outcome = "built"
	// OutcomeFresh means the existing artifact was within its TTL.
	OutcomeFresh Outcome = "fresh"
	// OutcomeKeptStale means the fetch failed and the previous artifact was kept.
	OutcomeKeptStale Outcome = "kept_stale"
	// OutcomeFailed means the build errored and nothing was written.
	OutcomeFailed Outcome = "failed"
)

// Result describes one build.
type Result struct {
	Outcome   Outcome                  `json:"outcome"`
	Forced    bool                     `json:"forced"`
	Location  string                   `json:"location"`
	Selector  string                   `json:"selector"`
	Pages     int                      `json:"pages"`
	Fetched   int                      `json:"articles_fetched"`
	Qualified int                      `json:"articles_qualified"`
	Entries   int                      `json:"entries"`
	FetchErr  string                   `json:"fetch_error,omitempty"`
	Error     string                   `json:"error,omitempty"`
	TraceID   string                   `json:"trace_id"`
	StartedAt time.Time                `json:"started_at"`
	Duration  time.Duration            `json:"duration_ns"`
	Stages    map[string]time.Duration `json:"stages_ns,omitempty"`
}

// Fetcher retrieves articles for a selector.
type Fetcher interface {
	Fetch(ctx context.Context, sel qiita.Selector, maxPages, perPage int) qiita.FetchResult
}

// Notifier is told about every build that ran past the freshness gate.
type Notifier interface {
	BuildCompleted(ctx context.Context, res Result) error
}

// Options wires a Builder.
type Options struct {
	Store     cache.Store
	Tokenizer tokenizer.Tokenizer
	// NewFetcher creates the fetcher for one build. Defaults to a Qiita client
	// configured from the build snapshot.
	NewFetcher func(cfg config.BuildConfig) Fetcher
	Metrics    *metrics.Metrics
	Notifier   Notifier
	Logger     *slog.Logger
}

// Builder owns the build pipeline for one cache location.
type Builder struct {
	store      cache.Store
	extractor  *analysis.Extractor
	newFetcher func(cfg config.BuildConfig) Fetcher
	metrics    *metrics.Metrics
	notifier   Notifier
	logger     *slog.Logger

	mu       sync.Mutex
	group    singleflight.Group
	inFlight atomic.Bool

	lastMu sync.RWMutex
	last   *Result
}

// New creates a Builder. Store and Tokenizer are required.
func New(opts Options) (*Builder, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("builder: store is required")
	}
	if opts.Tokenizer == nil {
		return nil, fmt.Errorf("builder: tokenizer is required")
	}
	b := &Builder{
		store:      opts.Store,
		extractor:  analysis.NewExtractor(opts.Tokenizer),
		newFetcher: opts.NewFetcher,
		metrics:    opts.Metrics,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
	}
	if b.metrics == nil {
		b.metrics = metrics.NewUnregistered()
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("component", "builder", "location", opts.Store.Location())
	if b.newFetcher == nil {
		b.newFetcher = b.qiitaFetcher
	}
	return b, nil
}

func (b *Builder) qiitaFetcher(cfg config.BuildConfig) Fetcher {
	return qiita.NewClient(
		qiita.WithBaseURL(cfg.BaseURL),
		qiita.WithToken(cfg.Token),
		qiita.WithRequestTimeout(cfg.RequestTimeout),
		qiita.WithPageDelay(cfg.PageDelay),
		qiita.WithMetrics(b.metrics),
	)
}

// Store returns the store the builder writes to.
func (b *Builder) Store() cache.Store {
	return b.store
}

// BuildIfNeeded builds unless the current artifact is still fresh.
func (b *Builder) BuildIfNeeded(ctx context.Context, cfg config.BuildConfig) (Result, error) {
	return b.Build(ctx, cfg, false)
}

// Rebuild builds regardless of the artifact's age.
func (b *Builder) Rebuild(ctx context.Context, cfg config.BuildConfig) (Result, error) {
	return b.Build(ctx, cfg, true)
}

// Trigger loads a configuration snapshot from src and builds with it.
func (b *Builder) Trigger(ctx context.Context, src config.Source, force bool) (Result, error) {
	cfg, err := src()
	if err != nil {
		b.metrics.BuildsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return Result{Outcome: OutcomeFailed, Forced: force, Location: b.store.Location(), Error: err.Error()},
			fmt.Errorf("loading build config: %w", err)
	}
	return b.Build(ctx, cfg, force)
}

// Build runs the pipeline. Unless force is set, a fresh artifact short
// circuits the build. Concurrent calls with the same force flag share one
// run; different flags run one after the other.
func (b *Builder) Build(ctx context.Context, cfg config.BuildConfig, force bool) (Result, error) {
	v, err, shared := b.group.Do(strconv.FormatBool(force), func() (any, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.inFlight.Store(true)
		defer b.inFlight.Store(false)
		return b.run(ctx, cfg, force)
	})
	res := v.(Result)
	if shared {
		b.logger.Debug("joined in-flight build", "forced", force, "trace_id", res.TraceID)
	}
	return res, err
}

// InFlight reports whether a build is running.
func (b *Builder) InFlight() bool {
	return b.inFlight.Load()
}

// LastResult returns the most recent build that went past the freshness
// gate, if any.
func (b *Builder) LastResult() (Result, bool) {
	b.lastMu.RLock()
	defer b.lastMu.RUnlock()
	if b.last == nil {
		return Result{}, false
	}
	return *b.last, true
}

func (b *Builder) run(ctx context.Context, cfg config.BuildConfig, force bool) (res Result, err error) {
	ctx, span := tracing.StartSpan(ctx, "build", "")
	sel := qiita.Selector{Tag: cfg.Tag, Query: cfg.Query}
	res = Result{
		Forced:    force,
		Location:  b.store.Location(),
		Selector:  sel.String(),
		TraceID:   span.TraceID,
		StartedAt: span.StartTime,
	}
	logger := b.logger.With("trace_id", span.TraceID, "forced", force, "selector", res.Selector)

	defer func() {
		span.SetAttr("outcome", string(res.Outcome))
		span.End()
		res.Duration = span.Duration
		res.Stages = span.Stages()
		if err != nil {
			res.Error = err.Error()
		}
		b.metrics.BuildsTotal.WithLabelValues(string(res.Outcome)).Inc()
		if res.Outcome == OutcomeFresh {
			logger.Debug("artifact fresh, build skipped")
			return
		}
		b.metrics.BuildDuration.Observe(res.Duration.Seconds())
		span.Log(logger)
		b.remember(res)
		b.notify(ctx, res, logger)
	}()

	if !force {
		fresh, ferr := b.fresh(ctx, cfg.TTL)
		if ferr != nil {
			res.Outcome = OutcomeFailed
			return res, fmt.Errorf("checking artifact freshness: %w", ferr)
		}
		if fresh {
			res.Outcome = OutcomeFresh
			return res, nil
		}
	}

	b.metrics.BuildsInFlight.Inc()
	defer b.metrics.BuildsInFlight.Dec()
	logger.Info("build started")

	stop := analysis.NewStopwordSet(cfg.Stopwords, cfg.Tag, cfg.Query)

	fetchCtx, fetchSpan := tracing.StartChildSpan(ctx, "fetch")
	fetched := b.newFetcher(cfg).Fetch(fetchCtx, sel, cfg.MaxPages, cfg.PerPage)
	fetchSpan.SetAttr("pages", fetched.Pages)
	fetchSpan.SetAttr("articles", len(fetched.Articles))
	fetchSpan.End()
	res.Pages = fetched.Pages
	res.Fetched = len(fetched.Articles)
	b.metrics.ArticlesFetched.Set(float64(res.Fetched))

	if ctx.Err() != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("build aborted: %w", ctx.Err())
	}
	if fetched.Err != nil {
		res.FetchErr = fetched.Err.Error()
		logger.Warn("fetch truncated", "pages", fetched.Pages, "articles", res.Fetched, "error", fetched.Err)
		if cfg.KeepStale {
			exists, eerr := b.store.Exists(ctx)
			if eerr == nil && exists {
				res.Outcome = OutcomeKeptStale
				logger.Warn("keeping previous artifact after fetch failure")
				return res, nil
			}
		}
	}

	_, analyzeSpan := tracing.StartChildSpan(ctx, "analyze")
	qualified := Qualify(fetched.Articles, cfg.MinLikes, cfg.MinStocks, cfg.TopLikesPercent)
	titles := make([]string, 0, len(qualified))
	for _, a := range qualified {
		titles = append(titles, a.Title)
	}
	table := analysis.Rank(b.extractor.Analyze(titles), stop, cfg.MinCount)
	analyzeSpan.SetAttr("titles", len(titles))
	analyzeSpan.SetAttr("entries", len(table))
	analyzeSpan.End()
	res.Qualified = len(qualified)
	res.Entries = len(table)
	b.metrics.ArticlesQualified.Set(float64(res.Qualified))

	persistCtx, persistSpan := tracing.StartChildSpan(ctx, "persist")
	werr := b.store.Write(persistCtx, table)
	persistSpan.End()
	if werr != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("persisting artifact: %w", werr)
	}
	b.metrics.CacheEntries.Set(float64(len(table)))

	res.Outcome = OutcomeBuilt
	logger.Info("build finished",
		"pages", res.Pages,
		"articles", res.Fetched,
		"qualified", res.Qualified,
		"entries", res.Entries,
		"partial", fetched.Err != nil,
	)
	return res, nil
}

// fresh reports whether the artifact exists and is younger than ttl. A zero
// ttl never expires.
func (b *Builder) fresh(ctx context.Context, ttl time.Duration) (bool, error) {
	exists, err := b.store.Exists(ctx)
	if err != nil || !exists {
		return false, err
	}
	if ttl <= 0 {
		return true, nil
	}
	age, err := b.store.Age(ctx)
	if err != nil {
		return false, err
	}
	return age < ttl, nil
}

func (b *Builder) remember(res Result) {
	b.lastMu.Lock()
	b.last = &res
	b.lastMu.Unlock()
}

func (b *Builder) notify(ctx context.Context, res Result, logger *slog.Logger) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.BuildCompleted(context.WithoutCancel(ctx), res); err != nil {
		logger.Warn("build notification failed", "error", err)
	}
}
