package system

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/podcheck/internal/cli/clitest"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/pidfile"
)

func addChicagoGoal(t *testing.T, env *clitest.Env) {
	t.Helper()
	goal := models.Goal{
		ID: "g-chi", UserID: "u1", Title: "Read", Frequency: models.Daily(),
		DeadlineTime: "20:00", Timezone: "America/Chicago",
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, env.Ctx.Store.AddGoal(context.Background(), goal))
}

func TestSweepCmdDispatchesDueDeadlines(t *testing.T) {
	env := clitest.New(t)
	addChicagoGoal(t, env)
	// Just past 20:00 CST on March 2.
	env.SetNow(clitest.Now.Add(time.Minute))

	require.NoError(t, (&SweepCmd{Dispatch: true}).Run(env.Ctx))

	out := env.Out.String()
	assert.Contains(t, out, "Swept 1 goal(s): 2 job(s) enqueued")
	assert.Contains(t, out, "Dispatched 2 due job(s)")
	assert.Equal(t, 2, env.Notifier.Count())

	for _, date := range []string{"2026-03-01", "2026-03-02"} {
		ci, err := env.Ctx.Store.GetCheckIn(context.Background(), "g-chi", date)
		require.NoError(t, err)
		assert.Equal(t, models.CheckInMissed, ci.Status)
	}

	// A second pass finds nothing new.
	env.Out.Reset()
	require.NoError(t, (&SweepCmd{Dispatch: true}).Run(env.Ctx))
	assert.Contains(t, env.Out.String(), "0 job(s) enqueued")
	assert.Contains(t, env.Out.String(), "Dispatched 0 due job(s)")
	assert.Equal(t, 2, env.Notifier.Count())
}

func TestWorkerProcessesJobsUntilCancelled(t *testing.T) {
	env := clitest.New(t)
	addChicagoGoal(t, env)
	env.SetNow(clitest.Now.Add(time.Minute))
	env.Ctx.Config.Worker.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- (&WorkerCmd{}).run(ctx, env.Ctx) }()

	require.Eventually(t, func() bool { return env.Notifier.Count() == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorkerRefusesSecondInstance(t *testing.T) {
	env := clitest.New(t)

	release, err := pidfile.Acquire(env.Ctx.PidfilePath(), clitest.Now)
	require.NoError(t, err)
	t.Cleanup(func() { _ = release() })

	err = (&WorkerCmd{}).Run(env.Ctx)
	require.ErrorIs(t, err, pidfile.ErrAlreadyRunning)

	_, err = os.Stat(env.Ctx.PidfilePath())
	assert.NoError(t, err, "the running worker's pidfile must survive")
}
