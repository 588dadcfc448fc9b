package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/constants"
	apperrors "github.com/julianstephens/podcheck/internal/errors"
	"github.com/julianstephens/podcheck/internal/utils"
)

// EvaluateCmd runs an evaluator directly, bypassing the queue. Both evaluators
// are idempotent, so this is safe to repeat.
type EvaluateCmd struct {
	Deadline EvaluateDeadlineCmd `cmd:"" help:"Record MISSED for a goal and date unless an outcome exists."`
	Reminder EvaluateReminderCmd `cmd:"" help:"Send the reminder for a goal and date unless an outcome exists."`
}

type EvaluateDeadlineCmd struct {
	Goal string `arg:"" help:"Goal ID."`
	Date string `arg:"" help:"Logical date (YYYY-MM-DD) in the goal's timezone."`
}

func (c *EvaluateDeadlineCmd) Run(ctx *cli.Context) error {
	if err := checkDate(c.Date); err != nil {
		return err
	}
	ev, err := ctx.Evaluator()
	if err != nil {
		return err
	}
	if err := ev.EvaluateDeadline(context.Background(), c.Goal, c.Date); err != nil {
		return err
	}
	return report(ctx, c.Goal, c.Date)
}

type EvaluateReminderCmd struct {
	Goal string `arg:"" help:"Goal ID."`
	Date string `arg:"" help:"Logical date (YYYY-MM-DD) in the goal's timezone."`
}

func (c *EvaluateReminderCmd) Run(ctx *cli.Context) error {
	if err := checkDate(c.Date); err != nil {
		return err
	}
	ev, err := ctx.Evaluator()
	if err != nil {
		return err
	}
	if err := ev.EvaluateReminder(context.Background(), c.Goal, c.Date); err != nil {
		return err
	}
	ctx.Printf("Reminder evaluated for %s on %s\n", c.Goal, c.Date)
	return nil
}

func checkDate(date string) error {
	if _, err := utils.ParseDateInLocation(date, time.UTC); err != nil {
		return fmt.Errorf("invalid date %q (expected %s)", date, constants.DateFormat)
	}
	return nil
}

// report prints the outcome recorded for the date, if any.
func report(ctx *cli.Context, goalID, date string) error {
	ci, err := ctx.Store.GetCheckIn(context.Background(), goalID, date)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		ctx.Printf("No outcome recorded for %s on %s\n", goalID, date)
		return nil
	}
	if err != nil {
		return err
	}
	ctx.Printf("%s on %s: %s\n", goalID, date, ci.Status)
	return nil
}
