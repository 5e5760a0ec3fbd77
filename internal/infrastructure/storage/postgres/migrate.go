package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"docnum/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// MigrateCommand is a goose command supported by Migrate.
type MigrateCommand string

const (
	MigrateUp     MigrateCommand = "up"
	MigrateDown   MigrateCommand = "down"
	MigrateStatus MigrateCommand = "status"
)

// Migrate runs the embedded schema migrations against the pool.
// goose speaks database/sql, so the pool is bridged through pgx's stdlib adapter.
func Migrate(ctx context.Context, pool *Pool, cmd MigrateCommand, log *logger.Logger) error {
	db := stdlib.OpenDBFromPool(pool.Pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorw("close migration connection", "error", err)
		}
	}()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{log: log.WithComponent("migrate")})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	var err error
	switch cmd {
	case MigrateUp:
		err = goose.UpContext(ctx, db, migrationsDir)
	case MigrateDown:
		err = goose.DownContext(ctx, db, migrationsDir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, db, migrationsDir)
	default:
		return fmt.Errorf("unknown migrate command %q", cmd)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cmd, err)
	}
	return nil
}

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	log *logger.Logger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Errorf(format, v...)
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Infof(format, v...)
}
