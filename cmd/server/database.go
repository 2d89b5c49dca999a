package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/tasktrack/internal/config"
	"github.com/phrazzld/tasktrack/internal/platform/postgres"
	"github.com/phrazzld/tasktrack/internal/platform/sqlite"
	"github.com/phrazzld/tasktrack/internal/store"
)

// pingTimeout bounds the initial connectivity check.
const pingTimeout = 5 * time.Second

// openDatabase connects to the configured backend and verifies it answers.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err = sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
	case config.DriverPostgres:
		db, err = sql.Open("pgx", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}

		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logger.Info("Database connection established", "driver", cfg.Driver)
	return db, nil
}

// newHandleFactory returns the store backend matching driver.
func newHandleFactory(driver string, db *sql.DB, logger *slog.Logger) (store.HandleFactory, error) {
	switch driver {
	case config.DriverSQLite:
		return sqlite.NewHandleFactory(db, logger), nil
	case config.DriverPostgres:
		return postgres.NewHandleFactory(db, logger), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
