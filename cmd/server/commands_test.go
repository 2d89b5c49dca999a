package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/phrazzld/tasktrack/internal/config"
	"github.com/phrazzld/tasktrack/internal/platform/migrate"
	"github.com/phrazzld/tasktrack/internal/platform/sqlite"
	"github.com/phrazzld/tasktrack/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestMigrateCommandRejectsUnknownAction(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate", "sideways"})

	assert.Error(t, root.Execute())
}

func TestMigrateCommandRequiresAction(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate"})

	assert.Error(t, root.Execute())
}

func TestMigrateCommandAppliesMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	t.Setenv("TASKTRACK_DATABASE_DRIVER", config.DriverSQLite)
	t.Setenv("TASKTRACK_DATABASE_URL", dbPath)
	t.Setenv("TASKTRACK_SERVER_LOG_LEVEL", "error")

	root := newRootCmd()
	root.SetArgs([]string{"migrate", "up"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	db, err := sqlite.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer testdb.CleanupDB(t, db)

	version, err := migrate.Version(context.Background(), db, config.DriverSQLite)
	require.NoError(t, err)
	assert.Positive(t, version)
}

func TestMigrateCommandReportsBadConfig(t *testing.T) {
	t.Setenv("TASKTRACK_DATABASE_DRIVER", "oracle")
	t.Setenv("TASKTRACK_DATABASE_URL", "anything")

	root := newRootCmd()
	root.SetArgs([]string{"migrate", "status"})
	assert.Error(t, root.Execute())
}
