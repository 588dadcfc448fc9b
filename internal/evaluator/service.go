// Package evaluator decides, for one goal and one logical date, whether a
// deadline has been missed or a reminder is due, and reconciles user
// check-ins against those outcomes. Every entry point is safe to re-run.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/podcheck/internal/constants"
	apperrors "github.com/julianstephens/podcheck/internal/errors"
	"github.com/julianstephens/podcheck/internal/logger"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/notifier"
	"github.com/julianstephens/podcheck/internal/storage"
	"github.com/julianstephens/podcheck/internal/streak"
)

type Store interface {
	storage.GoalStore
	storage.CheckInStore
}

type Service struct {
	store          Store
	notifier       notifier.Notifier
	now            func() time.Time
	backfillWindow time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBackfillWindow sets how far a client timestamp may sit from server time
// and still decide the logical date of a check-in.
func WithBackfillWindow(d time.Duration) Option {
	return func(s *Service) { s.backfillWindow = d }
}

func New(store Store, n notifier.Notifier, opts ...Option) *Service {
	s := &Service{
		store:          store,
		notifier:       n,
		now:            time.Now,
		backfillWindow: constants.DefaultBackfillWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// recompute returns the streak function run inside the check-in transaction.
func (s *Service) recompute(loc *time.Location) storage.StreakFunc {
	return func(goal models.Goal, history []models.CheckIn) (int, int) {
		r := streak.Calculate(goal.Frequency, history, s.now().In(loc), goal.LongestStreak)
		return r.Current, r.Longest
	}
}

// loadActiveGoal returns ok=false when the goal is gone or archived.
func (s *Service) loadActiveGoal(ctx context.Context, goalID string, keyvals []any) (models.Goal, bool, error) {
	goal, err := s.store.GetGoal(ctx, goalID)
	if errors.Is(err, apperrors.ErrNotFound) {
		logger.Debug("goal not found, skipping", keyvals...)
		return models.Goal{}, false, nil
	}
	if err != nil {
		return models.Goal{}, false, fmt.Errorf("failed to load goal %s: %w", goalID, err)
	}
	if goal.IsArchived() {
		logger.Debug("goal archived, skipping", keyvals...)
		return models.Goal{}, false, nil
	}
	return goal, true, nil
}

// hasOutcome reports whether (goal, date) already has a record. For WEEKLY
// goals a completion earlier in the same ISO week also counts.
func (s *Service) hasOutcome(ctx context.Context, goal models.Goal, date string, day time.Time) (bool, error) {
	_, err := s.store.GetCheckIn(ctx, goal.ID, date)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return false, fmt.Errorf("failed to read check-in: %w", err)
	}
	if goal.Frequency.Kind != models.FrequencyWeekly {
		return false, nil
	}

	from := streak.WeekStart(day).Format(constants.DateFormat)
	week, err := s.store.ListCheckIns(ctx, goal.ID, from, date)
	if err != nil {
		return false, fmt.Errorf("failed to read week: %w", err)
	}
	for _, ci := range week {
		if ci.Status == models.CheckInCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) notify(ctx context.Context, goal models.Goal, event notifier.Event, date string) {
	n := notifier.Notification{
		UserID: goal.UserID,
		Data: map[string]string{
			"event":   string(event),
			"goal_id": goal.ID,
			"pod_id":  goal.PodID,
			"date":    date,
		},
	}
	switch event {
	case notifier.EventMissed:
		if goal.Frequency.Kind == models.FrequencyWeekly {
			// The week is still open; a later completion restores the streak.
			n.Title = "Not done yet this week: " + goal.Title
			n.Body = fmt.Sprintf("%q has no completion this week as of %s. Complete it before the week ends to keep your streak.", goal.Title, date)
			break
		}
		n.Title = "Missed: " + goal.Title
		n.Body = fmt.Sprintf("No check-in for %q on %s. Your streak has been reset.", goal.Title, date)
	case notifier.EventReminder:
		n.Title = "Reminder: " + goal.Title
		n.Body = fmt.Sprintf("Check in for %q before %s.", goal.Title, goal.Deadline())
	}

	if err := s.notifier.Notify(ctx, n); err != nil {
		logger.Warn("notification failed", "goal", goal.ID, "date", date, "event", event, "error", err)
	}
}
