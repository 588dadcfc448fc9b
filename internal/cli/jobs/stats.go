package jobs

import (
	"context"
	"strconv"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/models"
)

type JobsCmd struct {
	Stats JobsStatsCmd `cmd:"" help:"Show queued job counts by status."`
}

type JobsStatsCmd struct{}

func (c *JobsStatsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	q, err := ctx.Queue(bg)
	if err != nil {
		return err
	}
	stats, err := q.Stats(bg)
	if err != nil {
		return err
	}

	total := 0
	rows := make([][]string, 0, 5)
	for _, s := range []models.JobStatus{models.JobPending, models.JobRunning, models.JobDone, models.JobFailed} {
		total += stats[s]
		rows = append(rows, []string{string(s), strconv.Itoa(stats[s])})
	}
	rows = append(rows, []string{"total", strconv.Itoa(total)})

	ctx.Printf("Queue backend: %s\n", ctx.Config.Queue.Backend)
	ctx.Println(cli.Table([]string{"STATUS", "JOBS"}, rows))
	return nil
}
