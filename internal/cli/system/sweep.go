package system

import (
	"context"

	"github.com/julianstephens/podcheck/internal/cli"
)

// SweepCmd runs one resync pass, optionally dispatching whatever became due.
type SweepCmd struct {
	Dispatch bool `help:"Also run due jobs once after sweeping."`
}

func (cmd *SweepCmd) Run(ctx *cli.Context) error {
	c := context.Background()
	sw, err := ctx.Sweeper(c)
	if err != nil {
		return err
	}

	report, err := sw.SweepOnce(c)
	if err != nil {
		return err
	}
	ctx.Printf("Swept %d goal(s): %d job(s) enqueued, %d skipped, %d error(s), %d pruned\n",
		report.Goals, report.Enqueued, report.Skipped, report.Errors, report.Pruned)

	if !cmd.Dispatch {
		return nil
	}
	engine, err := ctx.Engine(c)
	if err != nil {
		return err
	}
	n, err := engine.RunOnce(c)
	if err != nil {
		return err
	}
	ctx.Printf("Dispatched %d due job(s)\n", n)
	return nil
}
