package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/pidfile"
	"github.com/julianstephens/podcheck/internal/utils"
)

type DoctorCmd struct{}

type check struct {
	label string
	// needsDB checks are skipped when the database cannot be loaded.
	needsDB bool
	// opensDB marks the check whose failure makes the database unreachable.
	opensDB bool
	run     func(context.Context, *cli.Context) (warning string, err error)
}

var checks = []check{
	{label: "Database reachable", opensDB: true, run: checkDBReachable},
	{label: "Schema version", needsDB: true, run: checkSchemaVersion},
	{label: "Goal timezones", needsDB: true, run: checkGoalTimezones},
	{label: "Clock/timezone", run: checkClockTimezone},
	{label: "Worker", run: checkWorker},
	{label: "Job queue", needsDB: true, run: checkQueue},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	ctx.Println("Running diagnostics...")
	ctx.Println()

	hasError := false
	dbReachable := true
	for _, c := range checks {
		if c.needsDB && !dbReachable {
			ctx.Println(cli.Skip(c.label, "database not reachable"))
			continue
		}

		warning, err := c.run(bg, ctx)
		switch {
		case err != nil:
			ctx.Println(cli.Fail(c.label))
			ctx.Println(cli.Detail("Error: " + err.Error()))
			hasError = true
			if c.opensDB {
				dbReachable = false
			}
		case warning != "":
			ctx.Println(cli.Warn(c.label))
			ctx.Println(cli.Detail(warning))
		default:
			ctx.Println(cli.Pass(c.label))
		}
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(c context.Context, ctx *cli.Context) (string, error) {
	if err := ctx.Store.Load(c); err != nil {
		return "", fmt.Errorf("failed to load database: %w", err)
	}
	return "", nil
}

func checkSchemaVersion(c context.Context, ctx *cli.Context) (string, error) {
	current, latest, err := ctx.Store.SchemaStatus(c)
	if err != nil {
		return "", fmt.Errorf("failed to read schema version: %w", err)
	}
	if current != latest {
		return "", fmt.Errorf("schema version %d does not match supported version %d", current, latest)
	}
	return "", nil
}

// checkGoalTimezones fails when an active goal carries a zone the sweeper
// would skip.
func checkGoalTimezones(c context.Context, ctx *cli.Context) (string, error) {
	goals, err := ctx.Store.ListGoals(c, false)
	if err != nil {
		return "", fmt.Errorf("failed to list goals: %w", err)
	}

	var bad []error
	for _, g := range goals {
		if _, err := utils.LoadGoalLocation(g.Timezone); err != nil {
			bad = append(bad, fmt.Errorf("goal %s: %w", g.ID, err))
		}
	}
	return "", errors.Join(bad...)
}

func checkClockTimezone(_ context.Context, ctx *cli.Context) (string, error) {
	now := ctx.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return "", fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if _, err := time.LoadLocation("America/Chicago"); err != nil {
		return "", fmt.Errorf("timezone database unavailable: %w", err)
	}
	return "", nil
}

func checkWorker(_ context.Context, ctx *cli.Context) (string, error) {
	info, err := pidfile.Check(ctx.PidfilePath())
	switch {
	case err == nil:
		return "", nil
	case errors.Is(err, pidfile.ErrNotRunning):
		return "no worker is running; deadlines will not fire", nil
	case errors.Is(err, pidfile.ErrStale):
		return fmt.Sprintf("stale pidfile for pid %d; the worker exited without cleaning up", info.PID), nil
	default:
		return "", err
	}
}

func checkQueue(c context.Context, ctx *cli.Context) (string, error) {
	q, err := ctx.Queue(c)
	if err != nil {
		return "", err
	}
	stats, err := q.Stats(c)
	if err != nil {
		return "", fmt.Errorf("failed to read queue stats: %w", err)
	}
	if n := stats[models.JobFailed]; n > 0 {
		return fmt.Sprintf("%d job(s) exhausted their retries; see 'podcheck jobs stats'", n), nil
	}
	return "", nil
}
