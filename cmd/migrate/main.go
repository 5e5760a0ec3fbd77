// Package main provides CLI for schema migrations.
// Usage: migrate up
//        migrate down
//        migrate status
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"docnum/internal/config"
	"docnum/internal/infrastructure/storage/postgres"
	"docnum/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var cmd postgres.MigrateCommand
	switch os.Args[1] {
	case "up":
		cmd = postgres.MigrateUp
	case "down":
		cmd = postgres.MigrateDown
	case "status":
		cmd = postgres.MigrateStatus
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.StorageDriver != config.DriverPostgres {
		fmt.Printf("Error: migrations require STORAGE_DRIVER=%s\n", config.DriverPostgres)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Process:     "migrate",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.PoolConfig())
	if err != nil {
		log.Errorw("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, cmd, log); err != nil {
		log.Errorw("migration failed", "command", cmd, "error", err)
		os.Exit(1)
	}
	log.Infow("migration finished", "command", cmd)
}

func printUsage() {
	fmt.Println(`docnum schema migrations

Usage:
  migrate <command>

Commands:
  up        Apply all pending migrations
  down      Roll back the latest migration
  status    Print migration status
  help      Show this help

Environment Variables:
  DATABASE_URL    PostgreSQL connection string (required)`)
}
