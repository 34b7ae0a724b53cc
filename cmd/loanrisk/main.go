// Loanrisk - Loan application scoring with explainable decisions.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

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

	"github.com/opensource-finance/loanrisk/internal/api"
	"github.com/opensource-finance/loanrisk/internal/bus"
	"github.com/opensource-finance/loanrisk/internal/cache"
	"github.com/opensource-finance/loanrisk/internal/config"
	"github.com/opensource-finance/loanrisk/internal/domain"
	"github.com/opensource-finance/loanrisk/internal/logging"
	"github.com/opensource-finance/loanrisk/internal/metrics"
	"github.com/opensource-finance/loanrisk/internal/repository"
	"github.com/opensource-finance/loanrisk/internal/scoring"
	"github.com/opensource-finance/loanrisk/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", os.Getenv("LOANRISK_CONFIG"), "path to YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.New(cfg.Logging).With("service", cfg.Tracing.ServiceName)
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting loanrisk",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"artifacts", cfg.Model.ArtifactDir,
	)

	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	m := metrics.New()

	// Load scoring artifacts. The server starts without them and answers
	// 503 until POST /api/model/reload succeeds.
	loader := scoring.Loader{
		Dir:     cfg.Model.ArtifactDir,
		Options: scoring.OptionsFromConfig(cfg),
	}
	holder := scoring.NewHolder(nil)
	sc, err := loader.Load(ctx)
	m.ObserveReload(err)
	if err != nil {
		slog.Warn("scoring artifacts not loaded", "dir", cfg.Model.ArtifactDir, "error", err)
	} else {
		holder.Store(sc)
		slog.Info("scoring artifacts loaded",
			"version", sc.Version,
			"model", sc.Classifier.ModelName(),
			"fraud_rules", sc.Fraud.RulesCount(),
		)
	}

	orch := scoring.NewOrchestrator(holder, repo,
		scoring.WithEventBus(busImpl),
		scoring.WithMetrics(m),
		scoring.WithLoader(loader),
	)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, orch)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg, orch, repo, cacheImpl, busImpl, m, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("loanrisk is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("loanrisk shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║                 LOANRISK                  ║")
	fmt.Println("  ║       Loan Application Risk Scoring       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/predict            - Score an application")
	fmt.Println("    POST /api/applications       - Queue an application (async worker)")
	fmt.Println("    GET  /api/applications       - Recent decisions, newest first")
	fmt.Println("    GET  /api/applications/{id}  - Get decision by ID")
	fmt.Println("    GET  /api/stats              - Dashboard statistics")
	fmt.Println("    GET  /api/model              - Loaded model artifacts")
	fmt.Println("    POST /api/model/reload       - Hot-reload model artifacts")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println("    GET  /metrics                - Prometheus metrics")
	fmt.Println()
}
