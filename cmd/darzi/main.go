// Darzi - dynamic pricing engine for tailoring services.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/silaiwala/darzi/internal/api"
	"github.com/silaiwala/darzi/internal/bus"
	"github.com/silaiwala/darzi/internal/cache"
	"github.com/silaiwala/darzi/internal/domain"
	"github.com/silaiwala/darzi/internal/features"
	"github.com/silaiwala/darzi/internal/predictor"
	"github.com/silaiwala/darzi/internal/pricing"
	"github.com/silaiwala/darzi/internal/repository"
	"github.com/silaiwala/darzi/internal/rules"
	"github.com/silaiwala/darzi/internal/training"
	"github.com/silaiwala/darzi/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("DARZI_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting darzi",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("DARZI_PROFILE") == "production" {
		cfg = domain.ProductionConfig()
		slog.Info("running with production profile")
	}
	if dir := os.Getenv("DARZI_MODEL_DIR"); dir != "" {
		cfg.ModelDir = dir
	}
	if path := os.Getenv("DARZI_SQLITE_PATH"); path != "" {
		cfg.Repository.SQLitePath = path
	}

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"model_dir", cfg.ModelDir,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

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

	// Initialize Rule Engine and load active rules from the database
	engine := rules.NewEngine()
	if err := loadRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Initialize model plumbing
	store := predictor.NewStore(cfg.ModelDir)
	pred := predictor.New(store, engine)
	builder := features.NewBuilder(repo)
	pipeline := training.NewPipeline(repo, store)

	// Initialize pricing services
	calc := pricing.NewCalculator(repo, cacheImpl, busImpl, builder, pred)
	opt := pricing.NewOptimizer(repo, builder, pred)

	// Initialize async worker
	asyncWorker := worker.New(repo, busImpl, pipeline, pred)
	if err := asyncWorker.Start(ctx); err != nil {
		slog.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, calc, opt, pipeline, pred, asyncWorker, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("darzi is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop worker first so in-flight events drain before the bus closes
	asyncWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("darzi shutdown complete")
}

// loadRulesFromDatabase loads active pricing rules into the engine.
// All rules are configured via POST /rules API - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListActiveRules(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.ReloadRules(dbRules)
	}

	slog.Info("no rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                   DARZI")
	fmt.Println("        Dynamic pricing for tailoring")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /pricing/calculate              - Calculate a dynamic price")
	fmt.Println("    GET  /services/{id}/pricing          - Price across all areas")
	fmt.Println("    GET  /services/{id}/recommendations  - Optimization report")
	fmt.Println("    POST /model/train                    - Train the pricing model")
	fmt.Println("    GET  /rules                          - List loaded rules")
	fmt.Println("    POST /rules                          - Create a new rule")
	fmt.Println("    POST /rules/reload                   - Hot-reload rules from database")
	fmt.Println("    GET  /customers/{id}/profile         - Customer loyalty profile")
	fmt.Println("    POST /orders/completed               - Record a completed order")
	fmt.Println("    GET  /history                        - Pricing history")
	fmt.Println("    GET  /health                         - Health check")
	fmt.Println()
}
