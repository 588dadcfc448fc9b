package goals

import (
	"context"
	"fmt"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/models"
)

// GoalEditCmd changes the editable fields of a goal. The timezone is fixed at
// creation and cannot be edited.
type GoalEditCmd struct {
	ID            string  `arg:"" help:"Goal ID."`
	Title         *string `help:"New title."`
	Frequency     *string `short:"f" help:"New frequency (daily, weekly or weekdays:mon,wed,fri)."`
	Deadline      *string `short:"d" help:"New deadline time (HH:MM)."`
	Reminder      *string `short:"r" help:"New reminder time (HH:MM)." xor:"reminder"`
	ClearReminder bool    `help:"Remove the reminder." xor:"reminder"`
	Pod           *string `help:"New pod ID."`
	RequiresProof string  `help:"Whether completions must carry a proof reference (yes|no)." enum:",yes,no" default:""`
}

func (c *GoalEditCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	goal, err := ctx.Store.GetGoal(bg, c.ID)
	if err != nil {
		return fmt.Errorf("failed to find goal: %w", err)
	}
	if goal.IsArchived() {
		return fmt.Errorf("goal %s is archived", goal.ID)
	}

	if c.Title != nil {
		goal.Title = *c.Title
	}
	if c.Frequency != nil {
		freq, err := models.ParseFrequency(*c.Frequency)
		if err != nil {
			return err
		}
		goal.Frequency = freq
	}
	if c.Deadline != nil {
		goal.DeadlineTime = *c.Deadline
	}
	if c.Reminder != nil {
		goal.ReminderTime = *c.Reminder
	}
	if c.ClearReminder {
		goal.ReminderTime = ""
	}
	if c.Pod != nil {
		goal.PodID = *c.Pod
	}
	if c.RequiresProof != "" {
		goal.RequiresProof = c.RequiresProof == "yes"
	}

	if err := goal.Validate(); err != nil {
		return fmt.Errorf("invalid goal: %w", err)
	}
	if err := ctx.Store.UpdateGoal(bg, goal); err != nil {
		return err
	}
	ctx.Printf("Updated goal %s\n", goal.ID)
	return resync(bg, ctx, goal)
}

type GoalArchiveCmd struct {
	ID string `arg:"" help:"Goal ID."`
}

// Run archives the goal. Jobs already queued stay queued and become no-ops
// when they fire.
func (c *GoalArchiveCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.ArchiveGoal(context.Background(), c.ID, ctx.Now()); err != nil {
		return err
	}
	ctx.Printf("Archived goal %s\n", c.ID)
	return nil
}
