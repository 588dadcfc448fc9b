package scheduler

import (
	"fmt"
	"time"

	apperrors "github.com/julianstephens/podcheck/internal/errors"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/utils"
)

// FireInstant converts the goal's local deadline or reminder time on date to
// an absolute instant. The result is fixed at enqueue time; edits to the goal
// afterwards do not move jobs that already exist.
func FireInstant(goal models.Goal, date string, kind models.JobKind) (time.Time, error) {
	loc, err := utils.LoadGoalLocation(goal.Timezone)
	if err != nil {
		return time.Time{}, err
	}

	var clock string
	switch kind {
	case models.JobDeadline:
		clock = goal.Deadline()
	case models.JobReminder:
		if !goal.HasReminder() {
			return time.Time{}, fmt.Errorf("goal %s has no reminder: %w", goal.ID, apperrors.ErrInvalidInput)
		}
		clock = goal.ReminderTime
	default:
		return time.Time{}, fmt.Errorf("unknown job kind %q: %w", kind, apperrors.ErrInvalidInput)
	}

	return utils.CombineDateAndTime(date, clock, loc)
}
