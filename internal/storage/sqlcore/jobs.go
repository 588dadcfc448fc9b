package sqlcore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/julianstephens/podcheck/internal/errors"
	"github.com/julianstephens/podcheck/internal/models"
)

const jobColumns = `kind, goal_id, date, fire_at, status, attempts, lease_until, last_error, created_at`

// A pending job is due once its fire time has passed and any retry delay
// (kept in lease_until) has elapsed. A running job is reclaimable once its
// lease has expired.
const dueCondition = `((status = 'pending' AND fire_at <= ? AND lease_until <= ?)
	OR (status = 'running' AND lease_until < ?))`

func scanJob(row rowScanner) (models.ScheduledJob, error) {
	var j models.ScheduledJob
	var kind, status string
	var fireAt, leaseUntil, createdAt int64

	err := row.Scan(&kind, &j.GoalID, &j.Date, &fireAt, &status, &j.Attempts,
		&leaseUntil, &j.LastError, &createdAt)
	if err != nil {
		return models.ScheduledJob{}, err
	}
	j.Kind = models.JobKind(kind)
	j.Status = models.JobStatus(status)
	j.FireAt = fromMillis(fireAt)
	j.LeaseUntil = fromMillis(leaseUntil)
	j.CreatedAt = fromMillis(createdAt)
	return j, nil
}

func (c *Core) EnqueueJob(ctx context.Context, job models.ScheduledJob) (bool, error) {
	now := toMillis(c.now())
	res, err := c.db.ExecContext(ctx, c.rebind(`
		INSERT INTO scheduled_jobs (kind, goal_id, date, fire_at, status, attempts, lease_until, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, '', ?, ?)
		ON CONFLICT (kind, goal_id, date) DO NOTHING`),
		string(job.Kind), job.GoalID, job.Date, toMillis(job.FireAt), string(models.JobPending), now, now)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue job %s: %w", job.JobKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *Core) GetJob(ctx context.Context, key models.JobKey) (models.ScheduledJob, error) {
	return c.getJob(ctx, c.db, key)
}

func (c *Core) getJob(ctx context.Context, q queryer, key models.JobKey) (models.ScheduledJob, error) {
	row := q.QueryRowContext(ctx, c.rebind(
		"SELECT "+jobColumns+" FROM scheduled_jobs WHERE kind = ? AND goal_id = ? AND date = ?"),
		string(key.Kind), key.GoalID, key.Date)
	j, err := scanJob(row)
	if err != nil {
		return models.ScheduledJob{}, notFound(err, "job "+key.String())
	}
	return j, nil
}

func (c *Core) ClaimJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.ScheduledJob, error) {
	nowMs := toMillis(now)
	leaseMs := toMillis(now.Add(lease))

	var claimed []models.ScheduledJob
	err := c.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, c.rebind(`
			SELECT kind, goal_id, date FROM scheduled_jobs
			WHERE `+dueCondition+`
			ORDER BY fire_at LIMIT ?`),
			nowMs, nowMs, nowMs, limit)
		if err != nil {
			return err
		}
		var keys []models.JobKey
		for rows.Next() {
			var k models.JobKey
			var kind string
			if err := rows.Scan(&kind, &k.GoalID, &k.Date); err != nil {
				rows.Close()
				return err
			}
			k.Kind = models.JobKind(kind)
			keys = append(keys, k)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, k := range keys {
			// The condition is re-checked so that a concurrent claimer that
			// won the row in between leaves it alone.
			res, err := tx.ExecContext(ctx, c.rebind(`
				UPDATE scheduled_jobs
				SET status = 'running', attempts = attempts + 1, lease_until = ?, updated_at = ?
				WHERE kind = ? AND goal_id = ? AND date = ? AND `+dueCondition),
				leaseMs, nowMs, string(k.Kind), k.GoalID, k.Date, nowMs, nowMs, nowMs)
			if err != nil {
				return fmt.Errorf("failed to claim job %s: %w", k, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}
			j, err := c.getJob(ctx, tx, k)
			if err != nil {
				return err
			}
			claimed = append(claimed, j)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (c *Core) setJobState(ctx context.Context, key models.JobKey, status models.JobStatus, leaseUntil time.Time, reason string, now time.Time) error {
	res, err := c.db.ExecContext(ctx, c.rebind(`
		UPDATE scheduled_jobs SET status = ?, lease_until = ?, last_error = ?, updated_at = ?
		WHERE kind = ? AND goal_id = ? AND date = ?`),
		string(status), toMillis(leaseUntil), reason, toMillis(now),
		string(key.Kind), key.GoalID, key.Date)
	if err != nil {
		return fmt.Errorf("failed to mark job %s %s: %w", key, status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", key, apperrors.ErrNotFound)
	}
	return nil
}

func (c *Core) CompleteJob(ctx context.Context, key models.JobKey, now time.Time) error {
	return c.setJobState(ctx, key, models.JobDone, time.Time{}, "", now)
}

// RetryJob returns the job to pending; it becomes claimable again at retryAt.
func (c *Core) RetryJob(ctx context.Context, key models.JobKey, reason string, retryAt time.Time) error {
	return c.setJobState(ctx, key, models.JobPending, retryAt, reason, c.now())
}

func (c *Core) FailJob(ctx context.Context, key models.JobKey, reason string, now time.Time) error {
	return c.setJobState(ctx, key, models.JobFailed, time.Time{}, reason, now)
}

func (c *Core) JobStats(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM scheduled_jobs GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[models.JobStatus]int{
		models.JobPending: 0,
		models.JobRunning: 0,
		models.JobDone:    0,
		models.JobFailed:  0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[models.JobStatus(status)] = count
	}
	return stats, rows.Err()
}

// PruneJobs deletes completed jobs last touched before the cutoff.
func (c *Core) PruneJobs(ctx context.Context, before time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, c.rebind(
		"DELETE FROM scheduled_jobs WHERE status = ? AND updated_at < ?"),
		string(models.JobDone), toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}
	return res.RowsAffected()
}
