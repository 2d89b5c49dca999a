package sqlite

import (
	"database/sql"
	"log/slog"

	"github.com/phrazzld/tasktrack/internal/store"
)

// NewHandleFactory returns a HandleFactory whose handles carry SQLite task stores.
func NewHandleFactory(db *sql.DB, logger *slog.Logger) *store.SQLHandleFactory {
	return store.NewSQLHandleFactory(db, func(conn store.DBTX) store.TaskStore {
		return NewSQLiteTaskStore(conn, logger)
	})
}
