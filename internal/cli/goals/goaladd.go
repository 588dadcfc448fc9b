package goals

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/constants"
	"github.com/julianstephens/podcheck/internal/models"
)

type GoalAddCmd struct {
	Title         string `arg:"" help:"Goal title."`
	User          string `short:"u" help:"Owner user ID (also the notification recipient)." required:""`
	Timezone      string `short:"z" help:"IANA timezone the goal is evaluated in. Fixed once created." required:""`
	Frequency     string `short:"f" help:"daily, weekly or weekdays:mon,wed,fri." default:"daily"`
	Deadline      string `short:"d" help:"Deadline time (HH:MM)." default:"23:59"`
	Reminder      string `short:"r" help:"Reminder time (HH:MM). Must be before the deadline to fire."`
	Pod           string `help:"Pod ID the goal belongs to."`
	RequiresProof bool   `help:"Completions must carry a proof reference."`
	ID            string `help:"Explicit goal ID. Generated when empty."`
}

func (c *GoalAddCmd) Run(ctx *cli.Context) error {
	freq, err := models.ParseFrequency(c.Frequency)
	if err != nil {
		return err
	}

	now := ctx.Now()
	goal := models.Goal{
		ID:            c.ID,
		PodID:         c.Pod,
		UserID:        c.User,
		Title:         c.Title,
		Frequency:     freq,
		ReminderTime:  c.Reminder,
		DeadlineTime:  c.Deadline,
		Timezone:      c.Timezone,
		RequiresProof: c.RequiresProof,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	if goal.DeadlineTime == "" {
		goal.DeadlineTime = constants.DefaultDeadlineTime
	}
	if err := goal.Validate(); err != nil {
		return fmt.Errorf("invalid goal: %w", err)
	}

	bg := context.Background()
	if err := ctx.Store.AddGoal(bg, goal); err != nil {
		return err
	}
	ctx.Printf("Added goal %s (%s)\n", goal.ID, goal.Title)
	return resync(bg, ctx, goal)
}

// resync enqueues the jobs a new or edited goal needs today.
func resync(c context.Context, ctx *cli.Context, goal models.Goal) error {
	sw, err := ctx.Sweeper(c)
	if err != nil {
		return err
	}
	n, err := sw.ResyncGoal(c, goal)
	if err != nil {
		return fmt.Errorf("goal saved but scheduling failed: %w", err)
	}
	if n > 0 {
		ctx.Printf("Scheduled %d job(s)\n", n)
	}
	return nil
}
