package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// Handle is a persistence handle owned by exactly one unit of work (a request
// or one step of a background job). It must be closed by its owner and must
// not be shared with another unit of work.
type Handle interface {
	// Tasks returns a TaskStore bound to this handle.
	Tasks() TaskStore

	// RunInTx runs fn inside a transaction on this handle. The TaskStore
	// passed to fn is bound to the transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tasks TaskStore) error) error

	// Close releases the handle. Closing twice is a no-op.
	Close() error
}

// HandleFactory hands out independent persistence handles.
type HandleFactory interface {
	Acquire(ctx context.Context) (Handle, error)
}

// ErrHandleClosed is returned when a closed handle is used.
var ErrHandleClosed = errors.New("persistence handle is closed")

// SQLHandleFactory acquires a dedicated *sql.Conn from a pool for each handle.
type SQLHandleFactory struct {
	db       *sql.DB
	newTasks func(db DBTX) TaskStore
}

// NewSQLHandleFactory creates a HandleFactory over db. newTasks builds the
// dialect-specific TaskStore for a connection.
func NewSQLHandleFactory(db *sql.DB, newTasks func(db DBTX) TaskStore) *SQLHandleFactory {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	return &SQLHandleFactory{db: db, newTasks: newTasks}
}

// Acquire checks a connection out of the pool for exclusive use.
func (f *SQLHandleFactory) Acquire(ctx context.Context) (Handle, error) {
	conn, err := f.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	return &sqlHandle{conn: conn, tasks: f.newTasks(conn)}, nil
}

var _ HandleFactory = (*SQLHandleFactory)(nil)

type sqlHandle struct {
	mu     sync.Mutex
	conn   *sql.Conn
	tasks  TaskStore
	closed bool
}

func (h *sqlHandle) Tasks() TaskStore {
	return h.tasks
}

func (h *sqlHandle) RunInTx(ctx context.Context, fn func(ctx context.Context, tasks TaskStore) error) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrHandleClosed
	}

	return RunInTransaction(ctx, h.conn, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, h.tasks.WithTx(tx))
	})
}

func (h *sqlHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.conn.Close()
}
