package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/builder"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults and environment only when empty)")
	force := flag.Bool("force", false, "rebuild even when the artifact is fresh")
	printTable := flag.Bool("print", false, "print the resulting table to stdout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	os.Exit(run(cfg, *force, *printTable))
}

func run(cfg *config.Config, force, printTable bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := cache.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open analysis store", "error", err)
		return 1
	}
	defer closeStore()

	tok, err := tokenizer.NewKagome()
	if err != nil {
		slog.Error("failed to load tokenizer", "error", err)
		return 1
	}

	opts := builder.Options{Store: store, Tokenizer: tok}
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.BuildEvents)
		defer producer.Close()
		notifier := events.NewNotifier(producer, 1)
		notifier.Start(context.Background())
		defer notifier.Close()
		opts.Notifier = notifier
	}

	b, err := builder.New(opts)
	if err != nil {
		slog.Error("failed to create builder", "error", err)
		return 1
	}

	res, err := b.Build(ctx, cfg.Build(), force)
	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	enc.Encode(res)
	if err != nil {
		slog.Error("build failed", "error", err)
		return 1
	}

	if printTable {
		table, err := store.Read(ctx)
		if err != nil {
			slog.Error("failed to read artifact", "error", err)
			return 1
		}
		out := json.NewEncoder(os.Stdout)
		out.SetEscapeHTML(false)
		out.SetIndent("", "  ")
		if err := out.Encode(table); err != nil {
			slog.Error("failed to write table", "error", err)
			return 1
		}
	}
	return 0
}
