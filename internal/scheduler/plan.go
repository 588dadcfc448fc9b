package scheduler

import (
	"fmt"
	"io"
	"time"

	"github.com/julianstephens/podcheck/internal/constants"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/utils"
)

// Firing is one job a goal produces on one logical date.
type Firing struct {
	Kind   models.JobKind
	Date   string
	FireAt time.Time // in the goal's zone
}

// Plan is the ordered list of firings for a goal over a range of dates.
type Plan struct {
	GoalID    string
	Timezone  string
	Frequency string
	Firings   []Firing
}

// FiringsOn returns the jobs goal needs on date: nothing when the date is not
// expected, otherwise an optional reminder followed by the deadline. A
// reminder that does not fall before the deadline is dropped.
func FiringsOn(goal models.Goal, date string) ([]Firing, error) {
	loc, err := utils.LoadGoalLocation(goal.Timezone)
	if err != nil {
		return nil, err
	}
	day, err := utils.ParseDateInLocation(date, loc)
	if err != nil {
		return nil, err
	}
	if !goal.Frequency.IsExpectedOn(day) {
		return nil, nil
	}

	deadline, err := FireInstant(goal, date, models.JobDeadline)
	if err != nil {
		return nil, err
	}

	var firings []Firing
	if goal.HasReminder() {
		reminder, err := FireInstant(goal, date, models.JobReminder)
		if err != nil {
			return nil, err
		}
		if reminder.Before(deadline) {
			firings = append(firings, Firing{Kind: models.JobReminder, Date: date, FireAt: reminder})
		}
	}
	return append(firings, Firing{Kind: models.JobDeadline, Date: date, FireAt: deadline}), nil
}

// Preview builds the plan for days consecutive dates starting at from.
func Preview(goal models.Goal, from string, days int) (Plan, error) {
	plan := Plan{
		GoalID:    goal.ID,
		Timezone:  goal.Timezone,
		Frequency: goal.Frequency.String(),
	}
	if days < 1 {
		return plan, fmt.Errorf("days must be at least 1")
	}

	for i := 0; i < days; i++ {
		date, err := utils.AddDays(from, i)
		if err != nil {
			return plan, err
		}
		firings, err := FiringsOn(goal, date)
		if err != nil {
			return plan, err
		}
		plan.Firings = append(plan.Firings, firings...)
	}
	return plan, nil
}

// Render writes the plan as plain text, one firing per line, with both the
// local wall time and the UTC instant.
func (p Plan) Render(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s  %s  %s\n", p.GoalID, p.Timezone, p.Frequency); err != nil {
		return err
	}
	if len(p.Firings) == 0 {
		_, err := fmt.Fprintln(w, "  (nothing scheduled)")
		return err
	}
	for _, f := range p.Firings {
		_, err := fmt.Fprintf(w, "  %s %s  %-8s  %s  %s\n",
			f.Date,
			f.FireAt.Format("Mon"),
			f.Kind,
			f.FireAt.Format(constants.TimeFormat+" MST"),
			f.FireAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
