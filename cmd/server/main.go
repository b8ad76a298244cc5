package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/api/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/api/router"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/builder"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/scheduler"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/metrics"
)

// writeMargin is added on top of the rebuild timeout so a slow rebuild can
// still write its response.
const writeMargin = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (defaults and environment only when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analysis service",
		"port", cfg.Server.Port,
		"backend", cfg.Cache.Backend,
		"tag", cfg.Qiita.Tag,
		"query", cfg.Qiita.Query,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	store, closeStore, err := cache.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open analysis store", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	slog.Info("analysis store opened", "location", store.Location())

	tok, err := tokenizer.NewKagome()
	if err != nil {
		slog.Error("failed to load tokenizer", "error", err)
		os.Exit(1)
	}

	opts := builder.Options{
		Store:     store,
		Tokenizer: tok,
		Metrics:   m,
		Logger:    slog.Default(),
	}

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.BuildEvents)
		defer producer.Close()
		notifier := events.NewNotifier(producer, 64)
		notifier.Start(ctx)
		defer notifier.Close()
		opts.Notifier = notifier
		slog.Info("build events enabled", "topic", cfg.Kafka.Topics.BuildEvents)
	}

	b, err := builder.New(opts)
	if err != nil {
		slog.Error("failed to create builder", "error", err)
		os.Exit(1)
	}

	src := config.FileSource(*configPath)
	trigger := func(ctx context.Context, force bool) (builder.Result, error) {
		return b.Trigger(ctx, src, force)
	}

	if cfg.Kafka.Enabled() {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RebuildRequests, events.HandleRebuildRequests(trigger))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("rebuild consumer error", "error", err)
			}
		}()
		slog.Info("rebuild requests enabled", "topic", cfg.Kafka.Topics.RebuildRequests)
	}

	// Warm the cache in the background; a fresh artifact makes this a no-op.
	go func() {
		if _, err := trigger(ctx, false); err != nil {
			slog.Warn("initial build failed", "error", err)
		}
	}()

	if cfg.Scheduler.Spec != "" {
		force := cfg.Scheduler.Force
		sched, err := scheduler.New(cfg.Scheduler.Spec, cfg.Scheduler.Timezone, func(ctx context.Context) {
			if _, err := trigger(ctx, force); err != nil {
				slog.Warn("scheduled build failed", "error", err)
			}
		})
		if err != nil {
			slog.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				slog.Warn("scheduler did not stop cleanly", "error", err)
			}
		}()
	}

	var limiter *ratelimit.Limiter
	if cfg.Server.RebuildsPerMinute > 0 {
		limiter = ratelimit.New(cfg.Server.RebuildsPerMinute, time.Minute)
		defer limiter.Stop()
	}

	h := handler.New(handler.Config{
		Source:            src,
		RebuildTimeout:    cfg.Server.RebuildTimeout,
		TrustForwardedFor: cfg.Server.TrustForwardedFor,
	}, b, limiter, m)

	checker := health.NewChecker(2 * time.Second)
	checker.Register("analysis", health.Ping(h.ReadyCheck, true))
	if p, ok := store.(cache.Pinger); ok {
		checker.Register("store", health.Ping(p.Ping, false))
	}

	writeTimeout := cfg.Server.WriteTimeout
	if floor := cfg.Server.RebuildTimeout + writeMargin; writeTimeout < floor {
		writeTimeout = floor
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(h, checker, m, router.Options{
			AllowOrigins:   cfg.Server.AllowOrigins,
			RequestTimeout: cfg.Server.ReadTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: writeTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analysis service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analysis service stopped")
}
