package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/julianstephens/podcheck/internal/errors"
	"github.com/julianstephens/podcheck/internal/logger"
	"github.com/julianstephens/podcheck/internal/models"
	"github.com/julianstephens/podcheck/internal/utils"
)

// Submission is a user-initiated check-in. MISSED is never accepted here.
type Submission struct {
	GoalID          string
	Status          models.CheckInStatus
	ProofRef        string
	Comment         string
	ClientTimestamp *time.Time
}

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeConverted Outcome = "converted"
	OutcomeDuplicate Outcome = "duplicate"
)

type Result struct {
	CheckIn models.CheckIn
	Outcome Outcome
	Goal    models.Goal
}

// SubmissionDate returns the logical date a submission applies to. A client
// timestamp decides the date only when it is at most the backfill window
// behind server time. Timestamps ahead of server time never do, so a day
// cannot be completed before it starts.
func (s *Service) SubmissionDate(ts *time.Time, loc *time.Location) string {
	now := s.now()
	if ts != nil && !ts.After(now) && now.Sub(*ts) <= s.backfillWindow {
		return utils.LogicalDate(*ts, loc)
	}
	return utils.LogicalDate(now, loc)
}

func (s *Service) SubmitCheckIn(ctx context.Context, sub Submission) (Result, error) {
	if sub.Status != models.CheckInCompleted && sub.Status != models.CheckInSkipped {
		return Result{}, fmt.Errorf("status %q cannot be submitted: %w", sub.Status, apperrors.ErrInvalidInput)
	}

	goal, loc, err := s.submissionGoal(ctx, sub)
	if err != nil {
		return Result{}, err
	}
	date := s.SubmissionDate(sub.ClientTimestamp, loc)
	kv := []any{"goal", goal.ID, "date", date, "status", sub.Status}

	ci := models.CheckIn{
		ID:              uuid.NewString(),
		GoalID:          goal.ID,
		Date:            date,
		Status:          sub.Status,
		ProofRef:        sub.ProofRef,
		Comment:         sub.Comment,
		ClientTimestamp: sub.ClientTimestamp,
	}
	inserted, updated, err := s.store.RecordCheckIn(ctx, ci, s.recompute(loc))
	if err != nil {
		return Result{}, err
	}
	if inserted {
		stored, err := s.store.GetCheckIn(ctx, goal.ID, date)
		if err != nil {
			return Result{}, err
		}
		logger.Info("check-in recorded", kv...)
		return Result{CheckIn: stored, Outcome: OutcomeCreated, Goal: updated}, nil
	}

	existing, err := s.store.GetCheckIn(ctx, goal.ID, date)
	if err != nil {
		return Result{}, err
	}
	if existing.Status == models.CheckInMissed && sub.Status == models.CheckInCompleted {
		return s.reconcile(ctx, goal, loc, ci)
	}

	logger.Debug("duplicate check-in", append(kv, "existing", existing.Status)...)
	return Result{CheckIn: existing, Outcome: OutcomeDuplicate, Goal: goal}, nil
}

// ReconcileBackfill converts the MISSED record at (goal, date) to COMPLETED in
// place and restores the streak. date must be the date SubmissionDate derives
// for the submission's client timestamp, so a miss older than the backfill
// window is rejected with ErrInvalidInput. Any other existing record is left
// alone and reported as a duplicate.
func (s *Service) ReconcileBackfill(ctx context.Context, date string, sub Submission) (Result, error) {
	if sub.Status == "" {
		sub.Status = models.CheckInCompleted
	}
	if sub.Status != models.CheckInCompleted {
		return Result{}, fmt.Errorf("only completions reconcile a missed day: %w", apperrors.ErrInvalidInput)
	}
	goal, loc, err := s.submissionGoal(ctx, sub)
	if err != nil {
		return Result{}, err
	}
	if accepted := s.SubmissionDate(sub.ClientTimestamp, loc); accepted != date {
		return Result{}, fmt.Errorf("%s is outside the backfill window, accepted date is %s: %w", date, accepted, apperrors.ErrInvalidInput)
	}
	return s.reconcile(ctx, goal, loc, models.CheckIn{
		GoalID:          goal.ID,
		Date:            date,
		Status:          models.CheckInCompleted,
		ProofRef:        sub.ProofRef,
		Comment:         sub.Comment,
		ClientTimestamp: sub.ClientTimestamp,
	})
}

func (s *Service) reconcile(ctx context.Context, goal models.Goal, loc *time.Location, ci models.CheckIn) (Result, error) {
	converted, updated, err := s.store.ConvertMissed(ctx, ci, s.recompute(loc))
	if err != nil {
		return Result{}, err
	}
	stored, err := s.store.GetCheckIn(ctx, goal.ID, ci.Date)
	if err != nil {
		return Result{}, err
	}
	if !converted {
		return Result{CheckIn: stored, Outcome: OutcomeDuplicate, Goal: goal}, nil
	}
	logger.Info("missed day backfilled", "goal", goal.ID, "date", ci.Date, "streak", updated.CurrentStreak)
	return Result{CheckIn: stored, Outcome: OutcomeConverted, Goal: updated}, nil
}

func (s *Service) submissionGoal(ctx context.Context, sub Submission) (models.Goal, *time.Location, error) {
	goal, err := s.store.GetGoal(ctx, sub.GoalID)
	if err != nil {
		return models.Goal{}, nil, err
	}
	if goal.IsArchived() {
		return models.Goal{}, nil, fmt.Errorf("goal %s is archived: %w", goal.ID, apperrors.ErrInvalidInput)
	}
	if goal.RequiresProof && sub.Status == models.CheckInCompleted && sub.ProofRef == "" {
		return models.Goal{}, nil, fmt.Errorf("goal %s requires proof: %w", goal.ID, apperrors.ErrInvalidInput)
	}
	loc, err := utils.LoadGoalLocation(goal.Timezone)
	if err != nil {
		return models.Goal{}, nil, err
	}
	return goal, loc, nil
}

// IsInvalidSubmission reports whether err was caused by the submission itself
// rather than by storage.
func IsInvalidSubmission(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrInvalidTimezone)
}
