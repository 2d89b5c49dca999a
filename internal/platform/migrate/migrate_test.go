package migrate

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/phrazzld/tasktrack/internal/config"
	"github.com/phrazzld/tasktrack/internal/platform/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunSQLiteLifecycle(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := quietLogger()

	require.NoError(t, Up(ctx, db, config.DriverSQLite, log))
	v, err := Version(ctx, db, config.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	countTables := func() int {
		var n int
		require.NoError(t, db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('tasks', 'task_logs')`,
		).Scan(&n))
		return n
	}
	assert.Equal(t, 2, countTables())

	hasJobID := func() bool {
		var n int
		require.NoError(t, db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pragma_table_info('tasks') WHERE name = 'job_id'`,
		).Scan(&n))
		return n == 1
	}
	assert.True(t, hasJobID())

	// Idempotent.
	require.NoError(t, Up(ctx, db, config.DriverSQLite, log))

	require.NoError(t, Run(ctx, db, config.DriverSQLite, "status", log))
	require.NoError(t, Run(ctx, db, config.DriverSQLite, "redo", log))
	assert.Equal(t, 2, countTables())

	assert.True(t, hasJobID())

	require.NoError(t, Run(ctx, db, config.DriverSQLite, "down", log))
	assert.Equal(t, 2, countTables())
	assert.False(t, hasJobID())

	require.NoError(t, Run(ctx, db, config.DriverSQLite, "down", log))
	assert.Equal(t, 1, countTables())

	require.NoError(t, Run(ctx, db, config.DriverSQLite, "reset", log))
	assert.Equal(t, 0, countTables())
	v, err = Version(ctx, db, config.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestRunRejectsUnknownInput(t *testing.T) {
	ctx := context.Background()

	err := Run(ctx, nil, config.DriverSQLite, "drop-everything", quietLogger())
	assert.ErrorContains(t, err, "unsupported migration command")

	err = Run(ctx, nil, "mysql", "up", quietLogger())
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = Version(ctx, nil, "mysql")
	assert.Error(t, err)
}
