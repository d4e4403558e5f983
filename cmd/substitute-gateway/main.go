package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rxflow/substitute-gateway/internal/catalog"
	"github.com/rxflow/substitute-gateway/internal/llm"
	"github.com/rxflow/substitute-gateway/internal/observability"
	"github.com/rxflow/substitute-gateway/internal/observability/analyzer"
	"github.com/rxflow/substitute-gateway/internal/observability/drift"
	"github.com/rxflow/substitute-gateway/internal/observability/metrics"
	"github.com/rxflow/substitute-gateway/internal/observability/store"
	"github.com/rxflow/substitute-gateway/internal/pipeline"
	"github.com/rxflow/substitute-gateway/internal/pkg/config"
	"github.com/rxflow/substitute-gateway/internal/server"
	"github.com/rxflow/substitute-gateway/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("substitute-gateway", "1.0.0", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	st, err := store.New(cfg.Storage.Dir, logger)
	if err != nil {
		log.Fatalf("Failed to open metrics store: %v", err)
	}
	if removed := st.Cleanup(cfg.Storage.RetentionDays); removed > 0 {
		logger.Info("removed expired metric partitions", slog.Int("files", removed))
	}

	// The chat generator backs both pipeline reasoning and AI analysis.
	// Without an endpoint the deterministic rule-based generator keeps the
	// service fully functional offline.
	var gen llm.Generator
	if cfg.LLM.BaseURL != "" {
		gen = llm.NewChatClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
		logger.Info("using chat completions generator", slog.String("model", cfg.LLM.Model))
	} else {
		gen = llm.NewRuleBased()
		logger.Info("no llm endpoint configured, using rule-based generator")
	}

	var an *analyzer.Analyzer
	if cfg.Observability.AIAnalysis {
		an = analyzer.New(gen)
	}

	tracker := observability.NewTracker(st, drift.NewDetector(), an, metrics.NewTokenCounter(), observability.DriftConfig{
		BaselineLimit:    cfg.Drift.BaselineLimit,
		RefreshEvery:     cfg.Drift.RefreshEvery,
		RefreshThreshold: cfg.Drift.RefreshThreshold,
		RecentWindow:     cfg.Drift.RecentWindow,
	}, logger)

	cat := catalog.New()
	cat.BulkAdd(catalog.Seed())

	pipe := pipeline.New(cat, pipeline.DefaultDatasets(), gen, logger)

	srv := server.New(cfg.Server.Port, cat, pipe, tracker, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})

	logger.Info("substitute gateway started",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage_dir", cfg.Storage.Dir),
		slog.Bool("ai_analysis", cfg.Observability.AIAnalysis),
	)

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("substitute gateway shutdown complete")
}
