// Package queuetest is a conformance suite run against every queue.Queue
// implementation.
package queuetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/julianstephens/podcheck/internal/errors"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/queue"
)

// Clock is a settable time source shared between the suite and the queue
// under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Factory returns an empty queue that reads time from clock.
type Factory func(t *testing.T, clock *Clock) queue.Queue

var base = time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)

func deadlineJob(goalID string, fireAt time.Time) models.ScheduledJob {
	return models.ScheduledJob{
		JobKey: models.JobKey{Kind: models.JobDeadline, GoalID: goalID, Date: "2026-03-02"},
		FireAt: fireAt,
	}
}

func Run(t *testing.T, newQueue Factory) {
	t.Run("EnqueueIsIdempotent", func(t *testing.T) {
		ctx := context.Background()
		clock := &Clock{now: base.Add(-time.Hour)}
		q := newQueue(t, clock)

		created, err := q.Enqueue(ctx, deadlineJob("g-1", base))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = q.Enqueue(ctx, deadlineJob("g-1", base.Add(time.Hour)))
		require.NoError(t, err)
		assert.False(t, created)

		job, err := q.Get(ctx, deadlineJob("g-1", base).JobKey)
		require.NoError(t, err)
		assert.True(t, job.FireAt.Equal(base))
		assert.Equal(t, models.JobPending, job.Status)

		reminder := deadlineJob("g-1", base.Add(-2*time.Hour))
		reminder.Kind = models.JobReminder
		created, err = q.Enqueue(ctx, reminder)
		require.NoError(t, err)
		assert.True(t, created, "kind is part of the key")

		_, err = q.Get(ctx, deadlineJob("other", base).JobKey)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("ClaimHonoursFireTimeAndLease", func(t *testing.T) {
		ctx := context.Background()
		clock := &Clock{now: base}
		q := newQueue(t, clock)
		_, err := q.Enqueue(ctx, deadlineJob("g-1", base))
		require.NoError(t, err)

		jobs, err := q.Claim(ctx, base.Add(-time.Second), time.Minute, 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)

		jobs, err = q.Claim(ctx, base, time.Minute, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, models.JobRunning, jobs[0].Status)
		assert.Equal(t, 1, jobs[0].Attempts)
		assert.Equal(t, "g-1", jobs[0].GoalID)

		jobs, err = q.Claim(ctx, base.Add(30*time.Second), time.Minute, 10)
		require.NoError(t, err)
		assert.Empty(t, jobs, "lease held")

		jobs, err = q.Claim(ctx, base.Add(2*time.Minute), time.Minute, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1, "expired lease is redelivered")
		assert.Equal(t, 2, jobs[0].Attempts)
	})

	t.Run("NackDelaysRedelivery", func(t *testing.T) {
		ctx := context.Background()
		clock := &Clock{now: base}
		q := newQueue(t, clock)
		job := deadlineJob("g-1", base)
		_, err := q.Enqueue(ctx, job)
		require.NoError(t, err)

		_, err = q.Claim(ctx, base, time.Minute, 10)
		require.NoError(t, err)

		retryAt := base.Add(5 * time.Minute)
		require.NoError(t, q.Nack(ctx, job.JobKey, "db locked", retryAt))

		jobs, err := q.Claim(ctx, retryAt.Add(-time.Second), time.Minute, 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)

		jobs, err = q.Claim(ctx, retryAt, time.Minute, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "db locked", jobs[0].LastError)
		assert.Equal(t, 2, jobs[0].Attempts)
	})

	t.Run("AckStatsAndPrune", func(t *testing.T) {
		ctx := context.Background()
		clock := &Clock{now: base}
		q := newQueue(t, clock)
		done := deadlineJob("g-1", base)
		failed := deadlineJob("g-2", base)
		waiting := deadlineJob("g-3", base.Add(time.Hour))
		for _, j := range []models.ScheduledJob{done, failed, waiting} {
			_, err := q.Enqueue(ctx, j)
			require.NoError(t, err)
		}

		jobs, err := q.Claim(ctx, base, time.Minute, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 2)

		require.NoError(t, q.Ack(ctx, done.JobKey))
		require.NoError(t, q.Fail(ctx, failed.JobKey, "gave up"))

		stats, err := q.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats[models.JobDone])
		assert.Equal(t, 1, stats[models.JobFailed])
		assert.Equal(t, 1, stats[models.JobPending])
		assert.Equal(t, 0, stats[models.JobRunning])

		n, err := q.Prune(ctx, base)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = q.Prune(ctx, base.Add(time.Millisecond))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		_, err = q.Get(ctx, done.JobKey)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		_, err = q.Get(ctx, failed.JobKey)
		assert.NoError(t, err, "failed jobs are kept for inspection")

		assert.ErrorIs(t, q.Ack(ctx, deadlineJob("nope", base).JobKey), apperrors.ErrNotFound)
	})

	t.Run("ConcurrentClaimersNeverShareAJob", func(t *testing.T) {
		ctx := context.Background()
		clock := &Clock{now: base}
		q := newQueue(t, clock)

		const total = 24
		for i := 0; i < total; i++ {
			_, err := q.Enqueue(ctx, deadlineJob(fmt.Sprintf("g-%02d", i), base))
			require.NoError(t, err)
		}

		var mu sync.Mutex
		seen := map[string]int{}
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					jobs, err := q.Claim(ctx, base, time.Hour, 5)
					if !assert.NoError(t, err) || len(jobs) == 0 {
						return
					}
					mu.Lock()
					for _, j := range jobs {
						seen[j.JobKey.String()]++
					}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, total)
		for key, n := range seen {
			assert.Equal(t, 1, n, key)
		}
	})
}
