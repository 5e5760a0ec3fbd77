// Package main is the entry point for the docnum API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docnum/internal/config"
	"docnum/internal/domain/numbering"
	v1 "docnum/internal/infrastructure/http/v1"
	"docnum/internal/infrastructure/http/v1/handlers"
	"docnum/internal/infrastructure/metrics"
	"docnum/internal/infrastructure/storage/memory"
	"docnum/internal/infrastructure/storage/postgres"
	"docnum/internal/infrastructure/storage/postgres/numbering_repo"
	"docnum/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Process:     "server",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting docnum server", "storage", cfg.StorageDriver)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	routerCfg := v1.RouterConfig{
		Logger:          log,
		Metrics:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		GenerateTimeout: cfg.GenerateTimeout,
	}

	// --- Storage ---
	var store numbering.RuleStore
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.PoolConfig())
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		log.Info("database connection established")

		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, pool, postgres.MigrateUp, log); err != nil {
				log.Fatalw("failed to apply migrations", "error", err)
			}
		}

		metrics.RegisterPoolStats(registry, pool.Pool)

		txm := postgres.NewTxManager(pool, cfg.Database.StatementTimeout)
		audit, err := postgres.NewAuditService(txm)
		if err != nil {
			log.Fatalw("failed to create audit service", "error", err)
		}

		store = numbering_repo.NewRuleStore(txm, audit, numbering_repo.Config{
			DocumentsTable:       cfg.Numbering.DocumentsTable,
			DocumentNumberColumn: cfg.Numbering.DocumentNumberColumn,
		})
		routerCfg.Audit = audit
		routerCfg.HealthChecks = map[string]handlers.Checker{"database": pool.Healthcheck()}

	case config.DriverMemory:
		log.Warn("using in-memory storage; counters are lost on restart")
		store = memory.NewRuleStore()
		routerCfg.HealthChecks = map[string]handlers.Checker{}
	}

	// --- Numbering Service ---
	svcCfg := cfg.ServiceConfig()
	svcCfg.Store = store
	svcCfg.Metrics = metrics.NewNumberingMetrics(registry)
	routerCfg.Numbering = numbering.NewService(svcCfg)

	log.Infow("numbering service initialized",
		"verify_unique", svcCfg.VerifyUnique,
		"max_attempts", svcCfg.MaxAttempts,
		"generate_timeout", cfg.GenerateTimeout,
	)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      v1.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.AppPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
