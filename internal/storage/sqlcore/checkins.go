package sqlcore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/storage"
)

const checkInColumns = `id, goal_id, date, status, proof_ref, comment,
	client_timestamp, created_at, updated_at`

func scanCheckIn(row rowScanner) (models.CheckIn, error) {
	var ci models.CheckIn
	var status, createdAt, updatedAt string
	var clientTS sql.NullString

	err := row.Scan(&ci.ID, &ci.GoalID, &ci.Date, &status, &ci.ProofRef, &ci.Comment,
		&clientTS, &createdAt, &updatedAt)
	if err != nil {
		return models.CheckIn{}, err
	}
	ci.Status = models.CheckInStatus(status)

	if ci.ClientTimestamp, err = parseNullTime(clientTS, "client_timestamp"); err != nil {
		return models.CheckIn{}, err
	}
	if ci.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.CheckIn{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if ci.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.CheckIn{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return ci, nil
}

func (c *Core) GetCheckIn(ctx context.Context, goalID, date string) (models.CheckIn, error) {
	return c.getCheckIn(ctx, c.db, goalID, date)
}

func (c *Core) getCheckIn(ctx context.Context, q queryer, goalID, date string) (models.CheckIn, error) {
	row := q.QueryRowContext(ctx, c.rebind(
		"SELECT "+checkInColumns+" FROM check_ins WHERE goal_id = ? AND date = ?"),
		goalID, date)
	ci, err := scanCheckIn(row)
	if err != nil {
		return models.CheckIn{}, notFound(err, fmt.Sprintf("check-in %s@%s", goalID, date))
	}
	return ci, nil
}

func (c *Core) ListCheckIns(ctx context.Context, goalID, fromDate, toDate string) ([]models.CheckIn, error) {
	return c.listCheckIns(ctx, c.db, goalID, fromDate, toDate)
}

func (c *Core) listCheckIns(ctx context.Context, q queryer, goalID, fromDate, toDate string) ([]models.CheckIn, error) {
	query := "SELECT " + checkInColumns + " FROM check_ins WHERE goal_id = ?"
	args := []any{goalID}
	if fromDate != "" {
		query += " AND date >= ?"
		args = append(args, fromDate)
	}
	if toDate != "" {
		query += " AND date <= ?"
		args = append(args, toDate)
	}
	query += " ORDER BY date"

	rows, err := q.QueryContext(ctx, c.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CheckIn
	for rows.Next() {
		ci, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}

func (c *Core) RecordCheckIn(ctx context.Context, ci models.CheckIn, recompute storage.StreakFunc) (bool, models.Goal, error) {
	if ci.ID == "" {
		ci.ID = uuid.NewString()
	}
	now := c.now()

	var inserted bool
	var goal models.Goal
	err := c.WithTx(ctx, func(tx *sql.Tx) error {
		g, err := c.getGoal(ctx, tx, ci.GoalID, true)
		if err != nil {
			return err
		}
		goal = g

		res, err := tx.ExecContext(ctx, c.rebind(`
			INSERT INTO check_ins (`+checkInColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (goal_id, date) DO NOTHING`),
			ci.ID, ci.GoalID, ci.Date, string(ci.Status), ci.ProofRef, ci.Comment,
			nullTime(ci.ClientTimestamp), formatTime(now), formatTime(now))
		if err != nil {
			return fmt.Errorf("failed to insert check-in: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		inserted = true
		return c.recomputeStreak(ctx, tx, &goal, recompute)
	})
	if err != nil {
		return false, models.Goal{}, err
	}
	return inserted, goal, nil
}

func (c *Core) ConvertMissed(ctx context.Context, ci models.CheckIn, recompute storage.StreakFunc) (bool, models.Goal, error) {
	now := c.now()

	var converted bool
	var goal models.Goal
	err := c.WithTx(ctx, func(tx *sql.Tx) error {
		g, err := c.getGoal(ctx, tx, ci.GoalID, true)
		if err != nil {
			return err
		}
		goal = g

		res, err := tx.ExecContext(ctx, c.rebind(`
			UPDATE check_ins SET
				status = ?, proof_ref = ?, comment = ?, client_timestamp = ?, updated_at = ?
			WHERE goal_id = ? AND date = ? AND status = ?`),
			string(models.CheckInCompleted), ci.ProofRef, ci.Comment,
			nullTime(ci.ClientTimestamp), formatTime(now),
			ci.GoalID, ci.Date, string(models.CheckInMissed))
		if err != nil {
			return fmt.Errorf("failed to convert check-in: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		converted = true
		return c.recomputeStreak(ctx, tx, &goal, recompute)
	})
	if err != nil {
		return false, models.Goal{}, err
	}
	return converted, goal, nil
}

func (c *Core) recomputeStreak(ctx context.Context, tx *sql.Tx, goal *models.Goal, recompute storage.StreakFunc) error {
	if recompute == nil {
		return nil
	}
	history, err := c.listCheckIns(ctx, tx, goal.ID, "", "")
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	current, longest := recompute(*goal, history)
	return c.saveStreak(ctx, tx, goal, current, longest)
}
