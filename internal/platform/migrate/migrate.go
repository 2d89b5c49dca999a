// Package migrate applies the embedded goose migrations of the configured
// store backend.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/tasktrack/internal/config"
	"github.com/phrazzld/tasktrack/internal/platform/postgres"
	"github.com/phrazzld/tasktrack/internal/platform/sqlite"
	"github.com/pressly/goose/v3"
)

// TableName is the goose version table.
const TableName = "schema_migrations"

// migrationsDir is the directory inside each backend's embedded FS.
const migrationsDir = "migrations"

// Commands lists the goose commands the binary exposes.
var Commands = []string{"up", "down", "status", "version", "reset", "redo"}

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct {
	log *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs at error level; it does not exit, goose returns the error to us.
func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// source returns the embedded migrations and goose dialect for driver.
func source(driver string) (fs.FS, string, error) {
	switch driver {
	case config.DriverPostgres:
		return postgres.Migrations, "postgres", nil
	case config.DriverSQLite:
		return sqlite.Migrations, "sqlite3", nil
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Run executes a goose command against db using the migrations of driver.
func Run(ctx context.Context, db *sql.DB, driver, command string, log *slog.Logger) error {
	if !slices.Contains(Commands, command) {
		return fmt.Errorf("unsupported migration command %q (want one of %s)",
			command, strings.Join(Commands, ", "))
	}

	fsys, dialect, err := source(driver)
	if err != nil {
		return err
	}

	if log == nil {
		log = slog.Default()
	}
	log = log.With(
		slog.String("component", "migrations"),
		slog.String("command", command),
		slog.String("driver", driver),
	)

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(&slogGooseLogger{log: log})
	goose.SetTableName(TableName)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	start := time.Now()
	log.Info("starting migration", slog.String("operation", "goose "+command))
	if err := goose.RunContext(ctx, command, db, migrationsDir); err != nil {
		log.Error("migration failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return fmt.Errorf("goose %s failed: %w", command, err)
	}
	log.Info("migration completed", slog.Duration("duration", time.Since(start)))
	return nil
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB, driver string, log *slog.Logger) error {
	return Run(ctx, db, driver, "up", log)
}

// Version returns the current schema version recorded in the goose table.
func Version(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	_, dialect, err := source(driver)
	if err != nil {
		return 0, err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetTableName(TableName)
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, db)
}
