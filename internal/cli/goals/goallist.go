package goals

import (
	"context"
	"fmt"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/models"
)

type GoalListCmd struct {
	All bool `short:"a" help:"Include archived goals."`
}

func (c *GoalListCmd) Run(ctx *cli.Context) error {
	goals, err := ctx.Store.ListGoals(context.Background(), c.All)
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		ctx.Println("No goals found.")
		return nil
	}

	headers := []string{"ID", "TITLE", "OWNER", "FREQUENCY", "DEADLINE", "REMINDER", "TIMEZONE", "STREAK"}
	if c.All {
		headers = append(headers, "STATUS")
	}
	rows := make([][]string, 0, len(goals))
	for _, g := range goals {
		row := []string{
			g.ID,
			g.Title,
			g.UserID,
			g.Frequency.String(),
			g.Deadline(),
			orDash(g.ReminderTime),
			g.Timezone,
			fmt.Sprintf("%d (best %d)", g.CurrentStreak, g.LongestStreak),
		}
		if c.All {
			row = append(row, status(g))
		}
		rows = append(rows, row)
	}
	ctx.Println(cli.Table(headers, rows))
	return nil
}

func status(g models.Goal) string {
	if g.IsArchived() {
		return "archived"
	}
	return "active"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
