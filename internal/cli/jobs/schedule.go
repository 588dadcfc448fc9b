package jobs

import (
	"context"
	"fmt"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/scheduler"
	"github.com/julianstephens/podcheck/internal/utils"
)

// ScheduleCmd previews the fire instants of a goal, in its own timezone and
// in UTC.
type ScheduleCmd struct {
	Goal string `arg:"" help:"Goal ID."`
	Days int    `short:"n" help:"Number of days to show." default:"7"`
	From string `help:"First logical date (YYYY-MM-DD). Defaults to today in the goal's timezone."`
}

func (c *ScheduleCmd) Run(ctx *cli.Context) error {
	goal, err := ctx.Store.GetGoal(context.Background(), c.Goal)
	if err != nil {
		return fmt.Errorf("failed to find goal: %w", err)
	}

	from := c.From
	if from == "" {
		loc, err := utils.LoadGoalLocation(goal.Timezone)
		if err != nil {
			return err
		}
		from = utils.LogicalDate(ctx.Now(), loc)
	}

	plan, err := scheduler.Preview(goal, from, c.Days)
	if err != nil {
		return err
	}
	return plan.Render(ctx.Out)
}
