// Package sqlqueue implements queue.Queue on the scheduled_jobs table of the
// relational store.
package sqlqueue

import (
	"context"
	"time"

	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/storage"
)

type Queue struct {
	store storage.JobStore
	now   func() time.Time
}

type Option func(*Queue)

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func New(store storage.JobStore, opts ...Option) *Queue {
	q := &Queue{store: store, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Enqueue(ctx context.Context, job models.ScheduledJob) (bool, error) {
	return q.store.EnqueueJob(ctx, job)
}

func (q *Queue) Get(ctx context.Context, key models.JobKey) (models.ScheduledJob, error) {
	return q.store.GetJob(ctx, key)
}

func (q *Queue) Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.ScheduledJob, error) {
	return q.store.ClaimJobs(ctx, now, lease, limit)
}

func (q *Queue) Ack(ctx context.Context, key models.JobKey) error {
	return q.store.CompleteJob(ctx, key, q.now())
}

func (q *Queue) Nack(ctx context.Context, key models.JobKey, reason string, retryAt time.Time) error {
	return q.store.RetryJob(ctx, key, reason, retryAt)
}

func (q *Queue) Fail(ctx context.Context, key models.JobKey, reason string) error {
	return q.store.FailJob(ctx, key, reason, q.now())
}

func (q *Queue) Stats(ctx context.Context) (map[models.JobStatus]int, error) {
	return q.store.JobStats(ctx)
}

func (q *Queue) Prune(ctx context.Context, before time.Time) (int64, error) {
	return q.store.PruneJobs(ctx, before)
}

// Close is a no-op; the store owns the connection.
func (q *Queue) Close() error {
	return nil
}
