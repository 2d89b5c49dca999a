package postgres_test

import (
	"database/sql"
	"testing"

	"github.com/phrazzld/tasktrack/internal/platform/postgres"
	"github.com/phrazzld/tasktrack/internal/store"
	"github.com/phrazzld/tasktrack/internal/store/storetest"
	"github.com/phrazzld/tasktrack/internal/testdb"
)

func TestPostgresTaskStore(t *testing.T) {
	if testdb.ShouldSkipDatabaseTest() {
		t.Skip(testdb.TestDatabaseURLEnv + " not set - skipping PostgreSQL store tests")
	}

	storetest.RunTaskStoreSuite(t,
		func(t *testing.T) *sql.DB { return testdb.OpenPostgres(t) },
		func(db store.DBTX) store.TaskStore { return postgres.NewPostgresTaskStore(db, nil) },
	)
}

func TestNewPostgresTaskStoreNilDB(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil db")
		}
	}()
	postgres.NewPostgresTaskStore(nil, nil)
}
