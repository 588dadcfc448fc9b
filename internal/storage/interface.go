package storage

import (
	"context"
	"time"

	"github.com/julianstephens/podcheck/internal/models"
)

// StreakFunc recomputes a goal's streak from its full check-in history. It is
// called inside the same transaction that wrote the check-in.
type StreakFunc func(goal models.Goal, history []models.CheckIn) (current, longest int)

type GoalStore interface {
	AddGoal(ctx context.Context, goal models.Goal) error
	GetGoal(ctx context.Context, id string) (models.Goal, error)
	ListGoals(ctx context.Context, includeArchived bool) ([]models.Goal, error)
	// UpdateGoal writes the editable fields only. Timezone and streak
	// counters are never touched.
	UpdateGoal(ctx context.Context, goal models.Goal) error
	ArchiveGoal(ctx context.Context, id string, at time.Time) error
}

type CheckInStore interface {
	GetCheckIn(ctx context.Context, goalID, date string) (models.CheckIn, error)
	// ListCheckIns returns check-ins ordered by date. Empty bounds are open.
	ListCheckIns(ctx context.Context, goalID, fromDate, toDate string) ([]models.CheckIn, error)
	// RecordCheckIn inserts the check-in if no record exists for (goal, date).
	// When it wins, the goal's streak is recomputed in the same transaction.
	RecordCheckIn(ctx context.Context, ci models.CheckIn, recompute StreakFunc) (bool, models.Goal, error)
	// ConvertMissed flips an existing MISSED record to COMPLETED in place,
	// carrying ci's proof, comment and client timestamp.
	ConvertMissed(ctx context.Context, ci models.CheckIn, recompute StreakFunc) (bool, models.Goal, error)
}

type JobStore interface {
	// EnqueueJob inserts the job unless its (kind, goal, date) key exists.
	EnqueueJob(ctx context.Context, job models.ScheduledJob) (bool, error)
	GetJob(ctx context.Context, key models.JobKey) (models.ScheduledJob, error)
	// ClaimJobs leases up to limit due jobs. Pending jobs whose fire time has
	// passed and running jobs whose lease expired are both eligible.
	ClaimJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.ScheduledJob, error)
	CompleteJob(ctx context.Context, key models.JobKey, now time.Time) error
	RetryJob(ctx context.Context, key models.JobKey, reason string, retryAt time.Time) error
	FailJob(ctx context.Context, key models.JobKey, reason string, now time.Time) error
	JobStats(ctx context.Context) (map[models.JobStatus]int, error)
	PruneJobs(ctx context.Context, before time.Time) (int64, error)
}

type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error

	GoalStore
	CheckInStore
	JobStore

	// SchemaStatus reports the current and latest schema versions.
	SchemaStatus(ctx context.Context) (current, latest int, err error)
	// Describe returns a non-sensitive identifier of the backing store.
	Describe() string
}
