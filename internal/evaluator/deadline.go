package evaluator

import (
	"context"

	"github.com/google/uuid"

	"github.com/julianstephens/podcheck/internal/logger"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/notifier"
	"github.com/julianstephens/podcheck/internal/utils"
)

// EvaluateDeadline records a MISSED outcome for (goalID, date) unless one
// already exists, resets the streak and notifies the owner. Only persistence
// failures are returned.
func (s *Service) EvaluateDeadline(ctx context.Context, goalID, date string) error {
	kv := []any{"goal", goalID, "date", date, "kind", models.JobDeadline}

	goal, ok, err := s.loadActiveGoal(ctx, goalID, kv)
	if err != nil || !ok {
		return err
	}

	loc, err := utils.LoadGoalLocation(goal.Timezone)
	if err != nil {
		logger.Warn("deadline skipped", append(kv, "error", err)...)
		return nil
	}
	day, err := utils.ParseDateInLocation(date, loc)
	if err != nil {
		logger.Warn("deadline skipped", append(kv, "error", err)...)
		return nil
	}
	if !goal.Frequency.IsExpectedOn(day) {
		logger.Debug("not an expected day, skipping", kv...)
		return nil
	}

	exists, err := s.hasOutcome(ctx, goal, date, day)
	if err != nil {
		return err
	}
	if exists {
		logger.Debug("outcome already recorded", kv...)
		return nil
	}

	missed := models.CheckIn{
		ID:     uuid.NewString(),
		GoalID: goal.ID,
		Date:   date,
		Status: models.CheckInMissed,
	}
	inserted, updated, err := s.store.RecordCheckIn(ctx, missed, s.recompute(loc))
	if err != nil {
		return err
	}
	if !inserted {
		logger.Debug("lost race to another writer", kv...)
		return nil
	}

	logger.Info("deadline missed", append(kv, "longest", updated.LongestStreak)...)
	s.notify(ctx, updated, notifier.EventMissed, date)
	return nil
}
