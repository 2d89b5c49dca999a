package task

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func submitNew(t *testing.T, q *JobQueue) *Job {
	t.Helper()
	res, err := q.Reserve()
	require.NoError(t, err)
	job := NewJob(uuid.New())
	require.NoError(t, res.Submit(job))
	return job
}

func TestJobQueueFIFO(t *testing.T) {
	t.Parallel()

	q := NewJobQueue(3, quietLogger())
	first := submitNew(t, q)
	second := submitNew(t, q)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, JobScheduled, first.State())

	ctx := context.Background()
	got, ok := q.Next(ctx)
	require.True(t, ok)
	assert.Same(t, first, got)

	got, ok = q.Next(ctx)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 0, q.Len())
}

func TestJobQueueReserveCountsAgainstCapacity(t *testing.T) {
	t.Parallel()

	q := NewJobQueue(1, quietLogger())

	res, err := q.Reserve()
	require.NoError(t, err)

	_, err = q.Reserve()
	assert.ErrorIs(t, err, ErrQueueFull)

	res.Release()
	res.Release()

	_, err = q.Reserve()
	assert.NoError(t, err, "a released slot can be reserved again")
}

func TestJobQueueNextFreesSlot(t *testing.T) {
	t.Parallel()

	q := NewJobQueue(1, quietLogger())
	submitNew(t, q)

	_, err := q.Reserve()
	require.ErrorIs(t, err, ErrQueueFull)

	_, ok := q.Next(context.Background())
	require.True(t, ok)

	_, err = q.Reserve()
	assert.NoError(t, err)
}

func TestJobQueueClose(t *testing.T) {
	t.Parallel()

	q := NewJobQueue(2, quietLogger())
	queued := submitNew(t, q)
	pending, err := q.Reserve()
	require.NoError(t, err)

	q.Close()
	q.Close()

	_, err = q.Reserve()
	assert.ErrorIs(t, err, ErrQueueClosed)

	late := NewJob(uuid.New())
	assert.ErrorIs(t, pending.Submit(late), ErrQueueClosed)
	assert.Equal(t, JobNotStarted, late.State())

	left := q.Drain()
	require.Len(t, left, 1)
	assert.Same(t, queued, left[0])

	_, ok := q.Next(context.Background())
	assert.False(t, ok, "closed and empty queue yields nothing")
}

func TestJobQueueNextHonorsContext(t *testing.T) {
	t.Parallel()

	q := NewJobQueue(1, quietLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok := q.Next(ctx)
	assert.False(t, ok)
}

func TestReservationSubmitRejectsUsedJob(t *testing.T) {
	t.Parallel()

	q := NewJobQueue(1, quietLogger())
	job := NewJob(uuid.New())
	require.True(t, job.finish(assert.AnError))

	res, err := q.Reserve()
	require.NoError(t, err)
	assert.Error(t, res.Submit(job))

	_, err = q.Reserve()
	assert.NoError(t, err, "a rejected submit gives its slot back")
}
