package goals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/evaluator"
	"github.com/julianstephens/podcheck/internal/models"
)

type CheckInCmd struct {
	Goal    string `arg:"" help:"Goal ID."`
	Status  string `short:"s" enum:"completed,skipped" default:"completed" help:"completed or skipped."`
	Proof   string `short:"p" help:"Proof reference (e.g. an uploaded media ID)."`
	Comment string `short:"c" help:"Free-form comment."`
	At      string `help:"Client timestamp (RFC3339) for a check-in recorded offline."`
}

func (c *CheckInCmd) Run(ctx *cli.Context) error {
	sub := evaluator.Submission{
		GoalID:   c.Goal,
		Status:   models.CheckInStatus(strings.ToUpper(c.Status)),
		ProofRef: c.Proof,
		Comment:  c.Comment,
	}
	if c.At != "" {
		ts, err := time.Parse(time.RFC3339, c.At)
		if err != nil {
			return fmt.Errorf("invalid --at timestamp (expected RFC3339): %w", err)
		}
		sub.ClientTimestamp = &ts
	}

	ev, err := ctx.Evaluator()
	if err != nil {
		return err
	}
	res, err := ev.SubmitCheckIn(context.Background(), sub)
	if err != nil {
		if evaluator.IsInvalidSubmission(err) {
			return fmt.Errorf("check-in rejected: %w", err)
		}
		return err
	}

	switch res.Outcome {
	case evaluator.OutcomeCreated:
		ctx.Printf("Recorded %s for %s\n", res.CheckIn.Status, res.CheckIn.Date)
	case evaluator.OutcomeConverted:
		ctx.Printf("Converted MISSED to COMPLETED for %s\n", res.CheckIn.Date)
	case evaluator.OutcomeDuplicate:
		ctx.Printf("%s already has a %s check-in; nothing changed\n", res.CheckIn.Date, res.CheckIn.Status)
		return nil
	}
	ctx.Printf("Streak: %d (best %d)\n", res.Goal.CurrentStreak, res.Goal.LongestStreak)
	return nil
}
