package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/podcheck/internal/cli/clitest"
	"github.com/julianstephens/podcheck/internal/models"
)

func seedGoal(t *testing.T, env *clitest.Env, goal models.Goal) {
	t.Helper()
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	}
	require.NoError(t, env.Ctx.Store.AddGoal(context.Background(), goal))
}

func chicagoGoal() models.Goal {
	return models.Goal{
		ID: "g-chi", UserID: "u1", Title: "Read", Frequency: models.Daily(),
		ReminderTime: "19:00", DeadlineTime: "20:00", Timezone: "America/Chicago",
	}
}

func TestEvaluateDeadlineIsIdempotent(t *testing.T) {
	env := clitest.New(t)
	seedGoal(t, env, chicagoGoal())

	cmd := &EvaluateDeadlineCmd{Goal: "g-chi", Date: "2026-03-02"}
	require.NoError(t, cmd.Run(env.Ctx))
	require.NoError(t, cmd.Run(env.Ctx))

	assert.Contains(t, env.Out.String(), "g-chi on 2026-03-02: MISSED")
	assert.Equal(t, 1, env.Notifier.Count())
}

func TestEvaluateDeadlineUnknownGoalIsNoOp(t *testing.T) {
	env := clitest.New(t)

	require.NoError(t, (&EvaluateDeadlineCmd{Goal: "ghost", Date: "2026-03-02"}).Run(env.Ctx))
	assert.Contains(t, env.Out.String(), "No outcome recorded for ghost on 2026-03-02")
	assert.Zero(t, env.Notifier.Count())
}

func TestEvaluateRejectsBadDate(t *testing.T) {
	env := clitest.New(t)
	require.Error(t, (&EvaluateDeadlineCmd{Goal: "g", Date: "03/02/2026"}).Run(env.Ctx))
	require.Error(t, (&EvaluateReminderCmd{Goal: "g", Date: "2026-13-01"}).Run(env.Ctx))
}

func TestEvaluateReminder(t *testing.T) {
	env := clitest.New(t)
	seedGoal(t, env, chicagoGoal())

	require.NoError(t, (&EvaluateReminderCmd{Goal: "g-chi", Date: "2026-03-02"}).Run(env.Ctx))
	require.Equal(t, 1, env.Notifier.Count())
	assert.Equal(t, "u1", env.Notifier.Sent[0].UserID)
	assert.Equal(t, "reminder", env.Notifier.Sent[0].Data["event"])

	// No reminder once the day has an outcome.
	require.NoError(t, (&EvaluateDeadlineCmd{Goal: "g-chi", Date: "2026-03-02"}).Run(env.Ctx))
	require.NoError(t, (&EvaluateReminderCmd{Goal: "g-chi", Date: "2026-03-02"}).Run(env.Ctx))
	assert.Equal(t, 2, env.Notifier.Count())
}

func TestScheduleDefaultsToTodayInGoalZone(t *testing.T) {
	env := clitest.New(t)
	seedGoal(t, env, chicagoGoal())

	require.NoError(t, (&ScheduleCmd{Goal: "g-chi", Days: 2}).Run(env.Ctx))

	want := "g-chi  America/Chicago  daily\n" +
		"  2026-03-02 Mon  REMINDER  19:00 CST  2026-03-03T01:00:00Z\n" +
		"  2026-03-02 Mon  DEADLINE  20:00 CST  2026-03-03T02:00:00Z\n" +
		"  2026-03-03 Tue  REMINDER  19:00 CST  2026-03-04T01:00:00Z\n" +
		"  2026-03-03 Tue  DEADLINE  20:00 CST  2026-03-04T02:00:00Z\n"
	assert.Equal(t, want, env.Out.String())
}

func TestScheduleErrors(t *testing.T) {
	env := clitest.New(t)
	seedGoal(t, env, chicagoGoal())

	require.Error(t, (&ScheduleCmd{Goal: "missing", Days: 7}).Run(env.Ctx))
	require.Error(t, (&ScheduleCmd{Goal: "g-chi", Days: 0}).Run(env.Ctx))
}

func TestJobsStats(t *testing.T) {
	env := clitest.New(t)
	bg := context.Background()

	q, err := env.Ctx.Queue(bg)
	require.NoError(t, err)
	for _, date := range []string{"2026-03-01", "2026-03-02", "2026-03-03"} {
		_, err := q.Enqueue(bg, models.ScheduledJob{
			JobKey: models.JobKey{Kind: models.JobDeadline, GoalID: "g1", Date: date},
			FireAt: clitest.Now,
		})
		require.NoError(t, err)
	}
	require.NoError(t, q.Fail(bg, models.JobKey{Kind: models.JobDeadline, GoalID: "g1", Date: "2026-03-01"}, "boom"))

	require.NoError(t, (&JobsStatsCmd{}).Run(env.Ctx))

	out := env.Out.String()
	assert.Contains(t, out, "Queue backend: sql")
	assert.Regexp(t, `pending\s*│\s*2`, out)
	assert.Regexp(t, `failed\s*│\s*1`, out)
	assert.Regexp(t, `total\s*│\s*3`, out)
}
