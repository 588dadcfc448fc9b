package evaluator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/julianstephens/podcheck/internal/errors"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/notifier"
	"github.com/julianstephens/podcheck/internal/storage/sqlite"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifier.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n notifier.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		out = append(out, n.Data["event"])
	}
	return out
}

type harness struct {
	svc   *Service
	store *sqlite.Store
	notes *recordingNotifier
	mu    sync.Mutex
	now   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "podcheck.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })

	h := &harness{store: store, notes: &recordingNotifier{}}
	h.svc = New(store, h.notes, WithClock(h.clock))
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) set(t time.Time) {
	h.mu.Lock()
	h.now = t
	h.mu.Unlock()
}

var chicago = mustLocation("America/Chicago")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// at parses a wall time in Chicago.
func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, chicago)
	if err != nil {
		panic(err)
	}
	return t
}

func (h *harness) addGoal(t *testing.T, id string, freq models.Frequency) models.Goal {
	t.Helper()
	g := models.Goal{
		ID:           id,
		UserID:       "user-" + id,
		Title:        "Goal " + id,
		Frequency:    freq,
		ReminderTime: "18:00",
		DeadlineTime: "20:00",
		Timezone:     "America/Chicago",
	}
	require.NoError(t, h.store.AddGoal(context.Background(), g))
	return g
}

func (h *harness) completeOn(t *testing.T, goalID string, days ...string) {
	t.Helper()
	for _, d := range days {
		h.set(at(d + " 19:00"))
		res, err := h.svc.SubmitCheckIn(context.Background(), Submission{GoalID: goalID, Status: models.CheckInCompleted})
		require.NoError(t, err)
		require.Equal(t, OutcomeCreated, res.Outcome)
		require.Equal(t, d, res.CheckIn.Date)
	}
}

func (h *harness) goal(t *testing.T, id string) models.Goal {
	t.Helper()
	g, err := h.store.GetGoal(context.Background(), id)
	require.NoError(t, err)
	return g
}

func TestDeadlineWithoutCheckInRecordsMissed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())
	h.completeOn(t, "g-1", "2026-02-27", "2026-02-28", "2026-03-01")
	assert.Equal(t, 3, h.goal(t, "g-1").CurrentStreak)

	// 20:00 CST on March 2 is 02:00 UTC on March 3.
	h.set(time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC))
	require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-02"))

	ci, err := h.store.GetCheckIn(ctx, "g-1", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, models.CheckInMissed, ci.Status)

	g := h.goal(t, "g-1")
	assert.Equal(t, 0, g.CurrentStreak)
	assert.Equal(t, 3, g.LongestStreak)

	require.Len(t, h.notes.sent, 1)
	n := h.notes.sent[0]
	assert.Equal(t, "user-g-1", n.UserID)
	assert.Equal(t, "missed", n.Data["event"])
	assert.Equal(t, "g-1", n.Data["goal_id"])
	assert.Contains(t, n.Title, "Goal g-1")
}

func TestDeadlineAfterCheckInAt1900IsNoOp(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())
	h.completeOn(t, "g-1", "2026-03-02")

	h.set(at("2026-03-02 20:00"))
	require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-02"))

	ci, err := h.store.GetCheckIn(ctx, "g-1", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, models.CheckInCompleted, ci.Status)
	assert.Equal(t, 1, h.goal(t, "g-1").CurrentStreak)
	assert.Empty(t, h.notes.sent)
}

func TestDeadlineIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())
	h.set(at("2026-03-02 20:00"))

	for i := 0; i < 3; i++ {
		require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-02"))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-02"))
		}()
	}
	wg.Wait()

	history, err := h.store.ListCheckIns(ctx, "g-1", "", "")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Len(t, h.notes.sent, 1)
}

func TestConcurrentDeadlinesForFreshGoalNotifyOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())
	h.set(at("2026-03-02 20:00"))

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-02"))
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"missed"}, h.notes.events())
}

func TestMissedResetsStreakForEveryFrequency(t *testing.T) {
	tests := []struct {
		name string
		freq models.Frequency
		done []string
		miss string
	}{
		{name: "daily", freq: models.Daily(), done: []string{"2026-02-27", "2026-02-28"}, miss: "2026-03-01"},
		{name: "weekly", freq: models.Weekly(), done: []string{"2026-02-18", "2026-02-25"}, miss: "2026-03-02"},
		{name: "specific weekdays", freq: models.SpecificWeekdays(time.Monday, time.Wednesday), done: []string{"2026-02-23", "2026-02-25"}, miss: "2026-03-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			h.addGoal(t, "g-1", tt.freq)
			h.completeOn(t, "g-1", tt.done...)
			require.Equal(t, len(tt.done), h.goal(t, "g-1").CurrentStreak)

			h.set(at(tt.miss + " 20:00"))
			require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", tt.miss))

			g := h.goal(t, "g-1")
			assert.Equal(t, 0, g.CurrentStreak)
			assert.Equal(t, len(tt.done), g.LongestStreak)
		})
	}
}

func TestWeeklyMissedNoticeKeepsWeekOpen(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Weekly())
	h.completeOn(t, "g-1", "2026-02-25")

	h.set(at("2026-03-02 20:00"))
	require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-02"))
	require.Len(t, h.notes.sent, 1)
	n := h.notes.sent[0]
	assert.Equal(t, "missed", n.Data["event"])
	assert.Contains(t, n.Title, "this week")
	assert.NotContains(t, n.Body, "has been reset")
	assert.Equal(t, 0, h.goal(t, "g-1").CurrentStreak)

	// Completing later in the same week restores the run.
	h.completeOn(t, "g-1", "2026-03-03")
	assert.Equal(t, 2, h.goal(t, "g-1").CurrentStreak)

	h.set(at("2026-03-03 20:00"))
	require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-03"))
	assert.Len(t, h.notes.sent, 1)
}

func TestLateMissedBehindTodaysCompletionKeepsRestartedStreak(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())
	h.completeOn(t, "g-1", "2026-02-28", "2026-03-02")
	require.Equal(t, 1, h.goal(t, "g-1").CurrentStreak)

	// The March 1 deadline runs late, after March 2 was already completed.
	h.set(at("2026-03-02 20:30"))
	require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-01"))

	ci, err := h.store.GetCheckIn(ctx, "g-1", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, models.CheckInMissed, ci.Status)

	g := h.goal(t, "g-1")
	assert.Equal(t, 1, g.CurrentStreak, "the newest record is a completion")
	assert.Equal(t, 1, g.LongestStreak)
	assert.Equal(t, []string{"missed"}, h.notes.events())
}

func TestDeadlineNoOps(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.set(at("2026-03-03 20:00"))

	h.addGoal(t, "archived", models.Daily())
	require.NoError(t, h.store.ArchiveGoal(ctx, "archived", at("2026-03-01 09:00")))

	h.addGoal(t, "monwed", models.SpecificWeekdays(time.Monday, time.Wednesday))

	bad := models.Goal{ID: "bad-zone", UserID: "u", Title: "t", Frequency: models.Daily(), DeadlineTime: "20:00", Timezone: "Mars/Olympus_Mons"}
	require.NoError(t, h.store.AddGoal(ctx, bad))

	h.addGoal(t, "weekly", models.Weekly())
	h.completeOn(t, "weekly", "2026-03-02")
	h.set(at("2026-03-04 20:00"))

	for _, tc := range []struct{ goal, date string }{
		{"missing", "2026-03-03"},
		{"archived", "2026-03-03"},
		{"monwed", "2026-03-03"},
		{"bad-zone", "2026-03-03"},
		{"weekly", "2026-03-04"},
		{"monwed", "not-a-date"},
	} {
		require.NoError(t, h.svc.EvaluateDeadline(ctx, tc.goal, tc.date), tc.goal)
		_, err := h.store.GetCheckIn(ctx, tc.goal, tc.date)
		assert.ErrorIs(t, err, apperrors.ErrNotFound, tc.goal)
	}
	assert.Empty(t, h.notes.sent)
}

func TestNotifierFailureDoesNotRollBackMissed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notes.err = errors.New("push gateway down")
	h.addGoal(t, "g-1", models.Daily())
	h.set(at("2026-03-02 20:00"))

	require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-02"))

	ci, err := h.store.GetCheckIn(ctx, "g-1", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, models.CheckInMissed, ci.Status)
}

func TestReminder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())
	h.addGoal(t, "done", models.Daily())
	h.completeOn(t, "done", "2026-03-02")

	quiet := models.Goal{ID: "quiet", UserID: "u", Title: "t", Frequency: models.Daily(), DeadlineTime: "20:00", Timezone: "America/Chicago"}
	require.NoError(t, h.store.AddGoal(ctx, quiet))

	h.set(at("2026-03-02 18:00"))
	require.NoError(t, h.svc.EvaluateReminder(ctx, "g-1", "2026-03-02"))
	require.NoError(t, h.svc.EvaluateReminder(ctx, "done", "2026-03-02"))
	require.NoError(t, h.svc.EvaluateReminder(ctx, "quiet", "2026-03-02"))
	require.NoError(t, h.svc.EvaluateReminder(ctx, "missing", "2026-03-02"))

	require.Len(t, h.notes.sent, 1)
	assert.Equal(t, "reminder", h.notes.sent[0].Data["event"])
	assert.Contains(t, h.notes.sent[0].Body, "20:00")

	history, err := h.store.ListCheckIns(ctx, "g-1", "", "")
	require.NoError(t, err)
	assert.Empty(t, history, "reminders never write")
}

func TestBackfillConvertsMissedWithinWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())
	h.completeOn(t, "g-1", "2026-02-27", "2026-02-28", "2026-03-01")

	h.set(at("2026-03-02 20:00"))
	require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-02"))
	missed, err := h.store.GetCheckIn(ctx, "g-1", "2026-03-02")
	require.NoError(t, err)

	// Completed offline at 19:30, synced after midnight.
	offline := at("2026-03-02 19:30")
	h.set(at("2026-03-03 01:00"))
	res, err := h.svc.SubmitCheckIn(ctx, Submission{
		GoalID: "g-1", Status: models.CheckInCompleted, ProofRef: "photo-1", ClientTimestamp: &offline,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeConverted, res.Outcome)
	assert.Equal(t, missed.ID, res.CheckIn.ID)
	assert.Equal(t, "2026-03-02", res.CheckIn.Date)
	assert.Equal(t, models.CheckInCompleted, res.CheckIn.Status)
	assert.Equal(t, "photo-1", res.CheckIn.ProofRef)
	assert.Equal(t, 4, res.Goal.CurrentStreak)
	assert.Equal(t, 4, res.Goal.LongestStreak)

	history, err := h.store.ListCheckIns(ctx, "g-1", "", "")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestBackfillRejectedBeyondWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())

	h.set(at("2026-03-02 20:00"))
	require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-02"))

	now := at("2026-03-03 01:31")
	stale := now.Add(-6*time.Hour - time.Second)
	h.set(now)

	res, err := h.svc.SubmitCheckIn(ctx, Submission{GoalID: "g-1", Status: models.CheckInCompleted, ClientTimestamp: &stale})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "2026-03-03", res.CheckIn.Date, "server date is used")

	ci, err := h.store.GetCheckIn(ctx, "g-1", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, models.CheckInMissed, ci.Status, "yesterday stays missed")
}

func TestSubmissionDateWindowBoundary(t *testing.T) {
	h := newHarness(t)
	now := at("2026-03-03 01:00")
	h.set(now)

	exact := now.Add(-6 * time.Hour)
	past := exact.Add(-time.Nanosecond)
	ahead := now.Add(6 * time.Hour)

	assert.Equal(t, "2026-03-02", h.svc.SubmissionDate(&exact, chicago))
	assert.Equal(t, "2026-03-03", h.svc.SubmissionDate(&past, chicago))
	assert.Equal(t, "2026-03-03", h.svc.SubmissionDate(&ahead, chicago))
	assert.Equal(t, "2026-03-03", h.svc.SubmissionDate(nil, chicago))

	// A timestamp ahead of server time never moves the date forward.
	late := at("2026-03-02 23:00")
	h.set(late)
	tomorrow := late.Add(5 * time.Hour)
	assert.Equal(t, "2026-03-02", h.svc.SubmissionDate(&tomorrow, chicago))
}

func TestFutureTimestampCannotCompleteTomorrow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())

	now := at("2026-03-02 23:00")
	h.set(now)
	ahead := now.Add(5 * time.Hour)
	res, err := h.svc.SubmitCheckIn(ctx, Submission{GoalID: "g-1", Status: models.CheckInCompleted, ClientTimestamp: &ahead})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "2026-03-02", res.CheckIn.Date)

	h.set(at("2026-03-03 20:00"))
	require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-03"))
	ci, err := h.store.GetCheckIn(ctx, "g-1", "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, models.CheckInMissed, ci.Status)
	assert.Equal(t, []string{"missed"}, h.notes.events())
}

func TestSubmissionDateDependsOnGoalZone(t *testing.T) {
	h := newHarness(t)
	h.set(time.Date(2026, 3, 3, 4, 30, 0, 0, time.UTC))

	assert.Equal(t, "2026-03-02", h.svc.SubmissionDate(nil, chicago))
	assert.Equal(t, "2026-03-03", h.svc.SubmissionDate(nil, mustLocation("Asia/Tokyo")))
	assert.Equal(t, "2026-03-03", h.svc.SubmissionDate(nil, mustLocation("Europe/London")))
}

func TestSubmitCheckInValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.set(at("2026-03-02 12:00"))

	proof := models.Goal{ID: "proof", UserID: "u", Title: "t", Frequency: models.Daily(), Timezone: "America/Chicago", RequiresProof: true}
	require.NoError(t, h.store.AddGoal(ctx, proof))
	h.addGoal(t, "g-1", models.Daily())

	_, err := h.svc.SubmitCheckIn(ctx, Submission{GoalID: "g-1", Status: models.CheckInMissed})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = h.svc.SubmitCheckIn(ctx, Submission{GoalID: "proof", Status: models.CheckInCompleted})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.True(t, IsInvalidSubmission(err))

	res, err := h.svc.SubmitCheckIn(ctx, Submission{GoalID: "proof", Status: models.CheckInSkipped})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)

	_, err = h.svc.SubmitCheckIn(ctx, Submission{GoalID: "missing", Status: models.CheckInCompleted})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSubmitCheckInDuplicate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())
	h.completeOn(t, "g-1", "2026-03-02")

	res, err := h.svc.SubmitCheckIn(ctx, Submission{GoalID: "g-1", Status: models.CheckInSkipped})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, models.CheckInCompleted, res.CheckIn.Status)

	// A skip never converts a missed day.
	h.set(at("2026-03-03 20:00"))
	require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-03"))
	res, err = h.svc.SubmitCheckIn(ctx, Submission{GoalID: "g-1", Status: models.CheckInSkipped})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, models.CheckInMissed, res.CheckIn.Status)
}

func TestReconcileBackfill(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())
	h.set(at("2026-03-02 20:00"))
	require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", "2026-03-02"))

	res, err := h.svc.ReconcileBackfill(ctx, "2026-03-02", Submission{GoalID: "g-1", Comment: "forgot to sync"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConverted, res.Outcome)
	assert.Equal(t, "forgot to sync", res.CheckIn.Comment)
	assert.Equal(t, 1, res.Goal.CurrentStreak)

	res, err = h.svc.ReconcileBackfill(ctx, "2026-03-02", Submission{GoalID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)

	_, err = h.svc.ReconcileBackfill(ctx, "2026-03-02", Submission{GoalID: "g-1", Status: models.CheckInSkipped})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestReconcileBackfillHonoursWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addGoal(t, "g-1", models.Daily())
	for _, d := range []string{"2026-02-01", "2026-03-01", "2026-03-02"} {
		h.set(at(d + " 20:00"))
		require.NoError(t, h.svc.EvaluateDeadline(ctx, "g-1", d))
	}

	now := at("2026-03-03 01:00")
	h.set(now)
	stale := now.Add(-6*time.Hour - time.Minute)
	ahead := now.Add(time.Hour)
	inWindow := at("2026-03-02 19:30")

	tests := []struct {
		name string
		date string
		ts   *time.Time
	}{
		{name: "month old without timestamp", date: "2026-02-01"},
		{name: "yesterday without timestamp", date: "2026-03-02"},
		{name: "yesterday with stale timestamp", date: "2026-03-01", ts: &stale},
		{name: "timestamp for another day", date: "2026-03-01", ts: &inWindow},
		{name: "future timestamp", date: "2026-03-02", ts: &ahead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.ReconcileBackfill(ctx, tt.date, Submission{GoalID: "g-1", ClientTimestamp: tt.ts})
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}

	for _, d := range []string{"2026-02-01", "2026-03-01", "2026-03-02"} {
		ci, err := h.store.GetCheckIn(ctx, "g-1", d)
		require.NoError(t, err)
		assert.Equal(t, models.CheckInMissed, ci.Status, d)
	}

	res, err := h.svc.ReconcileBackfill(ctx, "2026-03-02", Submission{GoalID: "g-1", ClientTimestamp: &inWindow})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConverted, res.Outcome)
	assert.Equal(t, models.CheckInCompleted, res.CheckIn.Status)
}
