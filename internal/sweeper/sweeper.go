// Package sweeper periodically walks every active goal and makes sure the
// jobs for its current logical date exist. Enqueueing is idempotent, so a
// sweep may run any number of times.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/podcheck/internal/constants"
	apperrors "github.com/julianstephens/podcheck/internal/errors"
	"github.com/julianstephens/podcheck/internal/logger"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/scheduler"
	"github.com/julianstephens/podcheck/internal/utils"
)

type GoalLister interface {
	ListGoals(ctx context.Context, includeArchived bool) ([]models.Goal, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, kind models.JobKind, goalID, date string, fireAt time.Time) (bool, error)
}

type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type Config struct {
	Interval      time.Duration
	LookbackDays  int
	JobRetention  time.Duration
	ReminderGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:      constants.DefaultSweepInterval,
		LookbackDays:  constants.DefaultLookbackDays,
		JobRetention:  constants.DefaultJobRetention,
		ReminderGrace: constants.DefaultNotificationGracePeriod,
	}
}

// Report summarizes one sweep.
type Report struct {
	Goals    int
	Enqueued int
	Skipped  int
	Errors   int
	Pruned   int64
}

type Sweeper struct {
	goals  GoalLister
	jobs   Enqueuer
	pruner Pruner
	cfg    Config
	now    func() time.Time
}

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithPruner enables removal of completed jobs older than the retention.
func WithPruner(p Pruner) Option {
	return func(s *Sweeper) { s.pruner = p }
}

func New(goals GoalLister, jobs Enqueuer, cfg Config, opts ...Option) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultSweepInterval
	}
	if cfg.LookbackDays < 0 {
		cfg.LookbackDays = 0
	}
	s := &Sweeper{goals: goals, jobs: jobs, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	var report Report

	goals, err := s.goals.ListGoals(ctx, false)
	if err != nil {
		return report, fmt.Errorf("failed to list goals: %w", err)
	}

	for _, goal := range goals {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Goals++
		n, err := s.ResyncGoal(ctx, goal)
		report.Enqueued += n
		switch {
		case apperrors.Is(err, apperrors.ErrInvalidTimezone):
			report.Skipped++
		case err != nil:
			report.Errors++
			logger.Error("failed to resync goal", "goal", goal.ID, "error", err)
		}
	}

	if s.pruner != nil && s.cfg.JobRetention > 0 {
		pruned, err := s.pruner.Prune(ctx, s.now().Add(-s.cfg.JobRetention))
		if err != nil {
			report.Errors++
			logger.Error("failed to prune jobs", "error", err)
		}
		report.Pruned = pruned
	}

	logger.Info("sweep complete",
		"goals", report.Goals,
		"enqueued", report.Enqueued,
		"skipped", report.Skipped,
		"errors", report.Errors,
		"pruned", report.Pruned,
	)
	return report, nil
}

// ResyncGoal enqueues the jobs goal needs for its current logical date, plus
// the deadlines of the lookback days, and returns how many were new. A goal
// with an unusable timezone is skipped with a warning and an
// ErrInvalidTimezone error.
func (s *Sweeper) ResyncGoal(ctx context.Context, goal models.Goal) (int, error) {
	if goal.IsArchived() {
		return 0, nil
	}
	loc, err := utils.LoadGoalLocation(goal.Timezone)
	if err != nil {
		logger.Warn("goal skipped", "goal", goal.ID, "error", err)
		return 0, err
	}

	now := s.now()
	today := utils.LogicalDate(now, loc)
	enqueued := 0

	for i := s.cfg.LookbackDays; i >= 0; i-- {
		date, err := utils.AddDays(today, -i)
		if err != nil {
			return enqueued, err
		}
		firings, err := scheduler.FiringsOn(goal, date)
		if err != nil {
			return enqueued, err
		}
		for _, f := range firings {
			if !s.wanted(goal, f, now, date == today) {
				continue
			}
			created, err := s.jobs.Enqueue(ctx, f.Kind, goal.ID, f.Date, f.FireAt)
			if err != nil {
				return enqueued, err
			}
			if created {
				enqueued++
			}
		}
	}
	return enqueued, nil
}

func (s *Sweeper) wanted(goal models.Goal, f scheduler.Firing, now time.Time, today bool) bool {
	kv := []any{"goal", goal.ID, "date", f.Date, "kind", f.Kind}

	if !goal.CreatedAt.IsZero() && !f.FireAt.After(goal.CreatedAt) {
		logger.Debug("fire time precedes goal creation", kv...)
		return false
	}
	if f.Kind != models.JobReminder {
		return true
	}
	if !today {
		return false
	}
	if now.Sub(f.FireAt) > s.cfg.ReminderGrace {
		logger.Debug("reminder is stale", kv...)
		return false
	}
	return true
}
