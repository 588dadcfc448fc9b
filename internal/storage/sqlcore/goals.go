package sqlcore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/julianstephens/podcheck/internal/errors"
	"github.com/julianstephens/podcheck/internal/models"
)

const goalColumns = `id, pod_id, user_id, title, frequency_kind, frequency_days,
	reminder_time, deadline_time, timezone, requires_proof,
	current_streak, longest_streak, archived_at, created_at, updated_at`

func encodeWeekdays(days []time.Weekday) (string, error) {
	ints := make([]int, 0, len(days))
	for _, d := range days {
		ints = append(ints, int(d))
	}
	b, err := json.Marshal(ints)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeFrequency(kind, days string) (models.Frequency, error) {
	f := models.Frequency{Kind: models.FrequencyKind(kind)}
	if f.Kind != models.FrequencySpecificWeekdays {
		return f, nil
	}
	var ints []int
	if err := json.Unmarshal([]byte(days), &ints); err != nil {
		return models.Frequency{}, fmt.Errorf("failed to decode weekdays: %w", err)
	}
	weekdays := make([]time.Weekday, 0, len(ints))
	for _, d := range ints {
		weekdays = append(weekdays, time.Weekday(d))
	}
	return models.SpecificWeekdays(weekdays...), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (models.Goal, error) {
	var g models.Goal
	var kind, days, createdAt, updatedAt string
	var archivedAt sql.NullString

	err := row.Scan(&g.ID, &g.PodID, &g.UserID, &g.Title, &kind, &days,
		&g.ReminderTime, &g.DeadlineTime, &g.Timezone, &g.RequiresProof,
		&g.CurrentStreak, &g.LongestStreak, &archivedAt, &createdAt, &updatedAt)
	if err != nil {
		return models.Goal{}, err
	}

	if g.Frequency, err = decodeFrequency(kind, days); err != nil {
		return models.Goal{}, err
	}
	if g.ArchivedAt, err = parseNullTime(archivedAt, "archived_at"); err != nil {
		return models.Goal{}, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Goal{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Goal{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return g, nil
}

func (c *Core) AddGoal(ctx context.Context, goal models.Goal) error {
	days, err := encodeWeekdays(goal.Frequency.Weekdays)
	if err != nil {
		return err
	}
	now := c.now()
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = now
	}
	if goal.UpdatedAt.IsZero() {
		goal.UpdatedAt = goal.CreatedAt
	}

	res, err := c.db.ExecContext(ctx, c.rebind(`
		INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`),
		goal.ID, goal.PodID, goal.UserID, goal.Title, string(goal.Frequency.Kind), days,
		goal.ReminderTime, goal.Deadline(), goal.Timezone, goal.RequiresProof,
		goal.CurrentStreak, goal.LongestStreak, nullTime(goal.ArchivedAt),
		formatTime(goal.CreatedAt), formatTime(goal.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %s: %w", goal.ID, apperrors.ErrConflict)
	}
	return nil
}

func (c *Core) GetGoal(ctx context.Context, id string) (models.Goal, error) {
	return c.getGoal(ctx, c.db, id, false)
}

func (c *Core) getGoal(ctx context.Context, q queryer, id string, lock bool) (models.Goal, error) {
	query := "SELECT " + goalColumns + " FROM goals WHERE id = ?"
	if lock {
		query += c.forUpdate()
	}
	g, err := scanGoal(q.QueryRowContext(ctx, c.rebind(query), id))
	if err != nil {
		return models.Goal{}, notFound(err, "goal "+id)
	}
	return g, nil
}

func (c *Core) ListGoals(ctx context.Context, includeArchived bool) ([]models.Goal, error) {
	query := "SELECT " + goalColumns + " FROM goals"
	if !includeArchived {
		query += " WHERE archived_at IS NULL"
	}
	query += " ORDER BY created_at, id"

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []models.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (c *Core) UpdateGoal(ctx context.Context, goal models.Goal) error {
	days, err := encodeWeekdays(goal.Frequency.Weekdays)
	if err != nil {
		return err
	}
	res, err := c.db.ExecContext(ctx, c.rebind(`
		UPDATE goals SET
			pod_id = ?, title = ?, frequency_kind = ?, frequency_days = ?,
			reminder_time = ?, deadline_time = ?, requires_proof = ?, updated_at = ?
		WHERE id = ?`),
		goal.PodID, goal.Title, string(goal.Frequency.Kind), days,
		goal.ReminderTime, goal.Deadline(), goal.RequiresProof, formatTime(c.now()),
		goal.ID)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %s: %w", goal.ID, apperrors.ErrNotFound)
	}
	return nil
}

// ArchiveGoal is idempotent; the first archive time wins.
func (c *Core) ArchiveGoal(ctx context.Context, id string, at time.Time) error {
	res, err := c.db.ExecContext(ctx, c.rebind(`
		UPDATE goals SET archived_at = COALESCE(archived_at, ?), updated_at = ?
		WHERE id = ?`),
		formatTime(at), formatTime(c.now()), id)
	if err != nil {
		return fmt.Errorf("failed to archive goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (c *Core) saveStreak(ctx context.Context, tx *sql.Tx, goal *models.Goal, current, longest int) error {
	now := c.now()
	_, err := tx.ExecContext(ctx, c.rebind(`
		UPDATE goals SET current_streak = ?, longest_streak = ?, updated_at = ?
		WHERE id = ?`),
		current, longest, formatTime(now), goal.ID)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}
	goal.CurrentStreak = current
	goal.LongestStreak = longest
	goal.UpdatedAt = now
	return nil
}
