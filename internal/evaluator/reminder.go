package evaluator

import (
	"context"

	"github.com/julianstephens/podcheck/internal/logger"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/notifier"
	"github.com/julianstephens/podcheck/internal/utils"
)

// EvaluateReminder nudges the owner when (goalID, date) has no outcome yet.
// It never writes.
func (s *Service) EvaluateReminder(ctx context.Context, goalID, date string) error {
	kv := []any{"goal", goalID, "date", date, "kind", models.JobReminder}

	goal, ok, err := s.loadActiveGoal(ctx, goalID, kv)
	if err != nil || !ok {
		return err
	}
	if !goal.HasReminder() {
		logger.Debug("no reminder configured", kv...)
		return nil
	}

	loc, err := utils.LoadGoalLocation(goal.Timezone)
	if err != nil {
		logger.Warn("reminder skipped", append(kv, "error", err)...)
		return nil
	}
	day, err := utils.ParseDateInLocation(date, loc)
	if err != nil {
		logger.Warn("reminder skipped", append(kv, "error", err)...)
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
		logger.Debug("already checked in", kv...)
		return nil
	}

	s.notify(ctx, goal, notifier.EventReminder, date)
	return nil
}
