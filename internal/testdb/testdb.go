package testdb

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/tasktrack/internal/config"
	"github.com/phrazzld/tasktrack/internal/platform/migrate"
	"github.com/phrazzld/tasktrack/internal/platform/sqlite"
	"github.com/stretchr/testify/require"
)

// TestDatabaseURLEnv names the PostgreSQL database used by integration tests.
const TestDatabaseURLEnv = "TASKTRACK_TEST_DATABASE_URL"

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 10 * time.Second

// GetTestDatabaseURL returns the PostgreSQL URL for tests, or "".
func GetTestDatabaseURL() string {
	return os.Getenv(TestDatabaseURLEnv)
}

// ShouldSkipDatabaseTest reports whether PostgreSQL integration tests should be skipped.
func ShouldSkipDatabaseTest() bool {
	return GetTestDatabaseURL() == ""
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OpenSQLite creates a migrated SQLite database in a temporary directory.
// The database is closed when the test ends.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err, "failed to open sqlite test database")
	t.Cleanup(func() { CleanupDB(t, db) })

	require.NoError(t, migrate.Up(ctx, db, config.DriverSQLite, quietLogger()),
		"failed to migrate sqlite test database")
	return db
}

// OpenPostgres connects to the integration database, migrates it and empties
// the task tables. Skips the test if no database is configured.
func OpenPostgres(t testing.TB) *sql.DB {
	t.Helper()

	url := GetTestDatabaseURL()
	if url == "" {
		t.Skip(TestDatabaseURLEnv + " not set - skipping PostgreSQL test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := sql.Open("pgx", url)
	require.NoError(t, err, "failed to open postgres test database")
	t.Cleanup(func() { CleanupDB(t, db) })

	require.NoError(t, db.PingContext(ctx), "failed to reach postgres test database")
	require.NoError(t, migrate.Up(ctx, db, config.DriverPostgres, quietLogger()),
		"failed to migrate postgres test database")

	truncate := func() {
		_, err := db.ExecContext(context.Background(), `TRUNCATE task_logs, tasks`)
		require.NoError(t, err, "failed to truncate task tables")
	}
	truncate()
	t.Cleanup(truncate)

	return db
}

// CleanupDB closes db, reporting failures on t.
func CleanupDB(t testing.TB, db *sql.DB) {
	t.Helper()
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}

// WithTx runs fn inside a transaction that is rolled back afterwards.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "failed to begin transaction")
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			t.Errorf("failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}
