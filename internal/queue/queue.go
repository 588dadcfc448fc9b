// Package queue defines the durable delayed job queue the scheduling engine
// consumes. Delivery is at-least-once: a claimed job whose lease expires
// before it is acked or nacked becomes claimable again.
package queue

import (
	"context"
	"time"

	"github.com/julianstephens/podcheck/internal/models"
)

type Queue interface {
	// Enqueue adds the job unless a job with the same key exists. It reports
	// whether a new job was created.
	Enqueue(ctx context.Context, job models.ScheduledJob) (bool, error)
	Get(ctx context.Context, key models.JobKey) (models.ScheduledJob, error)
	// Claim leases up to limit jobs that are due at now.
	Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.ScheduledJob, error)
	Ack(ctx context.Context, key models.JobKey) error
	// Nack releases a claimed job for another attempt at retryAt.
	Nack(ctx context.Context, key models.JobKey, reason string, retryAt time.Time) error
	// Fail parks a job permanently.
	Fail(ctx context.Context, key models.JobKey, reason string) error
	Stats(ctx context.Context) (map[models.JobStatus]int, error)
	// Prune removes completed jobs last updated before the cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
