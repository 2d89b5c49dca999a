// Package storetest holds a behavioural test suite that every
// store.TaskStore implementation must pass.
package storetest

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a TaskStore over db. Tests run transactions on db directly.
type Factory func(db store.DBTX) store.TaskStore

// Opener returns a fresh, migrated and empty database for one subtest.
type Opener func(t *testing.T) *sql.DB

// RunTaskStoreSuite exercises the full store.TaskStore contract.
func RunTaskStoreSuite(t *testing.T, open Opener, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, db *sql.DB, s store.TaskStore)
	}{
		{"CreateAssignsIdentity", testCreateAssignsIdentity},
		{"CreateRejectsInvalid", testCreateRejectsInvalid},
		{"GetByIDNotFound", testGetByIDNotFound},
		{"ListPaginationAndOrder", testListPaginationAndOrder},
		{"ListFilters", testListFilters},
		{"UpdateGuardedByStatus", testUpdateGuardedByStatus},
		{"CompareAndSetStatus", testCompareAndSetStatus},
		{"UpdateReleasesJob", testUpdateReleasesJob},
		{"AppendAndListLogs", testAppendAndListLogs},
		{"AppendLogUnknownTask", testAppendLogUnknownTask},
		{"DeleteRemovesLogs", testDeleteRemovesLogs},
		{"FindByStatus", testFindByStatus},
		{"WithTxRollback", testWithTxRollback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := open(t)
			tt.fn(t, db, newStore(db))
		})
	}
}

func mustCreate(t *testing.T, s store.TaskStore, title string, priority int) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(title, "desc "+title, priority)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), task))
	return task
}

func testCreateAssignsIdentity(t *testing.T, _ *sql.DB, s store.TaskStore) {
	ctx := context.Background()
	task := &domain.Task{Title: "Write report", Description: "quarterly", Priority: 3, Status: domain.TaskStatusCompleted}

	before := time.Now().Add(-time.Second)
	require.NoError(t, s.Create(ctx, task))

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, domain.TaskStatusPending, task.Status, "status is forced to pending")
	assert.True(t, task.CreatedAt.After(before))
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)

	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "Write report", got.Title)
	assert.Equal(t, "quarterly", got.Description)
	assert.Equal(t, 3, got.Priority)
	assert.Equal(t, domain.TaskStatusPending, got.Status)
	assert.True(t, task.CreatedAt.Equal(got.CreatedAt), "created_at round-trips")
	assert.Nil(t, got.Logs)
}

func testCreateRejectsInvalid(t *testing.T, _ *sql.DB, s store.TaskStore) {
	ctx := context.Background()

	err := s.Create(ctx, &domain.Task{Title: "  ", Priority: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = s.Create(ctx, &domain.Task{Title: strings.Repeat("x", domain.MaxTitleLength+1), Priority: 1})
	assert.ErrorIs(t, err, domain.ErrTitleTooLong)

	err = s.Create(ctx, &domain.Task{Title: "ok", Priority: 11})
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)
}

func testGetByIDNotFound(t *testing.T, _ *sql.DB, s store.TaskStore) {
	_, err := s.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.True(t, store.IsNotFoundError(err))
}

func testListPaginationAndOrder(t *testing.T, _ *sql.DB, s store.TaskStore) {
	ctx := context.Background()
	var ids []uuid.UUID
	for i := 0; i < 12; i++ {
		ids = append(ids, mustCreate(t, s, "task "+string(rune('a'+i)), 1).ID)
	}

	page, err := s.List(ctx, store.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, page, store.DefaultListLimit)
	for i, task := range page {
		assert.Equal(t, ids[i], task.ID, "listing follows creation order")
	}

	page, err = s.List(ctx, store.TaskFilter{Offset: 10, Limit: 5})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[10], page[0].ID)

	page, err = s.List(ctx, store.TaskFilter{Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func testListFilters(t *testing.T, _ *sql.DB, s store.TaskStore) {
	ctx := context.Background()
	report := mustCreate(t, s, "Quarterly Report", 1)
	mustCreate(t, s, "Groceries", 2)
	pct := mustCreate(t, s, "Raise to 100%", 3)
	mustCreate(t, s, "Raise to 1000", 3)

	_, err := s.CompareAndSetStatus(ctx, report.ID, domain.TaskStatusPending, domain.TaskStatusInProgress, uuid.Nil)
	require.NoError(t, err)

	got, err := s.List(ctx, store.TaskFilter{Title: "report"})
	require.NoError(t, err)
	require.Len(t, got, 1, "title match is case-insensitive")
	assert.Equal(t, report.ID, got[0].ID)

	got, err = s.List(ctx, store.TaskFilter{Title: "100%"})
	require.NoError(t, err)
	require.Len(t, got, 1, "wildcards in the filter match literally")
	assert.Equal(t, pct.ID, got[0].ID)

	got, err = s.List(ctx, store.TaskFilter{Status: domain.TaskStatusPending})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = s.List(ctx, store.TaskFilter{Title: "Raise", Status: domain.TaskStatusInProgress})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testUpdateGuardedByStatus(t *testing.T, _ *sql.DB, s store.TaskStore) {
	ctx := context.Background()
	task := mustCreate(t, s, "Original", 4)
	created := task.UpdatedAt

	task.Title = "Renamed"
	task.Priority = 9
	require.NoError(t, s.Update(ctx, task, domain.TaskStatusPending))
	assert.False(t, task.UpdatedAt.Before(created))

	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 9, got.Priority)

	task.Title = "Stale write"
	err = s.Update(ctx, task, domain.TaskStatusInProgress)
	assert.ErrorIs(t, err, store.ErrStatusConflict)

	missing := &domain.Task{ID: uuid.New(), Title: "x", Priority: 1, Status: domain.TaskStatusPending}
	err = s.Update(ctx, missing, domain.TaskStatusPending)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func testCompareAndSetStatus(t *testing.T, _ *sql.DB, s store.TaskStore) {
	ctx := context.Background()
	task := mustCreate(t, s, "Process me", 5)

	jobID := uuid.New()

	got, err := s.CompareAndSetStatus(ctx, task.ID, domain.TaskStatusPending, domain.TaskStatusInProgress, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, got.Status)
	assert.Equal(t, "Process me", got.Title)
	assert.Equal(t, jobID, got.JobID)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	reloaded, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, jobID, reloaded.JobID)

	_, err = s.CompareAndSetStatus(ctx, task.ID, domain.TaskStatusPending, domain.TaskStatusInProgress, uuid.New())
	assert.ErrorIs(t, err, store.ErrStatusConflict, "second start loses the race")

	got, err = s.CompareAndSetStatus(ctx, task.ID, domain.TaskStatusInProgress, domain.TaskStatusCompleted, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got.JobID, "uuid.Nil clears the owning job")

	_, err = s.CompareAndSetStatus(ctx, uuid.New(), domain.TaskStatusPending, domain.TaskStatusInProgress, uuid.Nil)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func testUpdateReleasesJob(t *testing.T, _ *sql.DB, s store.TaskStore) {
	ctx := context.Background()
	task := mustCreate(t, s, "Owned", 5)
	jobID := uuid.New()

	owned, err := s.CompareAndSetStatus(ctx, task.ID, domain.TaskStatusPending, domain.TaskStatusInProgress, jobID)
	require.NoError(t, err)

	owned.Priority = 7
	require.NoError(t, s.Update(ctx, owned, domain.TaskStatusInProgress))
	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, jobID, got.JobID, "staying in_progress keeps the job")

	got.Status = domain.TaskStatusCompleted
	require.NoError(t, s.Update(ctx, got, domain.TaskStatusInProgress))
	assert.Equal(t, uuid.Nil, got.JobID)
	got, err = s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got.JobID)

	// Update never claims a task for a job.
	byHand := mustCreate(t, s, "By hand", 5)
	byHand.Status = domain.TaskStatusInProgress
	byHand.JobID = uuid.New()
	require.NoError(t, s.Update(ctx, byHand, domain.TaskStatusPending))
	got, err = s.GetByID(ctx, byHand.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got.JobID)
}

func testAppendAndListLogs(t *testing.T, _ *sql.DB, s store.TaskStore) {
	ctx := context.Background()
	task := mustCreate(t, s, "Audited", 1)
	other := mustCreate(t, s, "Other", 1)

	statuses := []domain.TaskStatus{
		domain.TaskStatusPending,
		domain.TaskStatusInProgress,
		domain.TaskStatusCompleted,
	}
	var lastID int64
	for _, st := range statuses {
		entry, err := s.AppendLog(ctx, task.ID, st)
		require.NoError(t, err)
		assert.Greater(t, entry.ID, lastID)
		assert.Equal(t, task.ID, entry.TaskID)
		lastID = entry.ID
	}
	_, err := s.AppendLog(ctx, other.ID, domain.TaskStatusPending)
	require.NoError(t, err)

	logs, err := s.ListLogs(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, statuses, domain.StatusHistory(logs))

	empty, err := s.ListLogs(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testAppendLogUnknownTask(t *testing.T, _ *sql.DB, s store.TaskStore) {
	_, err := s.AppendLog(context.Background(), uuid.New(), domain.TaskStatusPending)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func testDeleteRemovesLogs(t *testing.T, _ *sql.DB, s store.TaskStore) {
	ctx := context.Background()
	task := mustCreate(t, s, "Doomed", 1)
	_, err := s.AppendLog(ctx, task.ID, domain.TaskStatusPending)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, task.ID))

	_, err = s.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	logs, err := s.ListLogs(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	assert.ErrorIs(t, s.Delete(ctx, task.ID), store.ErrTaskNotFound)
}

func testFindByStatus(t *testing.T, _ *sql.DB, s store.TaskStore) {
	ctx := context.Background()
	a := mustCreate(t, s, "A", 1)
	mustCreate(t, s, "B", 1)
	c := mustCreate(t, s, "C", 1)
	_, err := s.CompareAndSetStatus(ctx, a.ID, domain.TaskStatusPending, domain.TaskStatusInProgress, uuid.New())
	require.NoError(t, err)
	_, err = s.CompareAndSetStatus(ctx, c.ID, domain.TaskStatusPending, domain.TaskStatusInProgress, uuid.Nil)
	require.NoError(t, err)

	got, err := s.FindByStatus(ctx, domain.TaskStatusInProgress, 0, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, c.ID}, []uuid.UUID{got[0].ID, got[1].ID})

	got, err = s.FindByStatus(ctx, domain.TaskStatusInProgress, 0, true)
	require.NoError(t, err)
	require.Len(t, got, 1, "only job-owned tasks")
	assert.Equal(t, a.ID, got[0].ID)

	got, err = s.FindByStatus(ctx, domain.TaskStatusInProgress, time.Hour, false)
	require.NoError(t, err)
	assert.Empty(t, got, "recently updated tasks are not stale")
}

func testWithTxRollback(t *testing.T, db *sql.DB, s store.TaskStore) {
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	txStore := s.WithTx(tx)

	task, err := domain.NewTask("Uncommitted", "", 1)
	require.NoError(t, err)
	require.NoError(t, txStore.Create(ctx, task))
	_, err = txStore.AppendLog(ctx, task.ID, domain.TaskStatusPending)
	require.NoError(t, err)

	_, err = txStore.GetByID(ctx, task.ID)
	require.NoError(t, err, "visible inside the transaction")
	require.NoError(t, tx.Rollback())

	_, err = s.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}
