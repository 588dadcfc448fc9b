package models

import (
	"fmt"
	"time"
)

type JobKind string

const (
	JobDeadline JobKind = "DEADLINE"
	JobReminder JobKind = "REMINDER"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// JobKey is the idempotency key of a scheduled job.
type JobKey struct {
	Kind   JobKind `json:"kind"`
	GoalID string  `json:"goal_id"`
	Date   string  `json:"date"`
}

func (k JobKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Kind, k.GoalID, k.Date)
}

// ScheduledJob is a pending delayed invocation of an evaluator.
// FireAt is computed once, at enqueue time.
type ScheduledJob struct {
	JobKey
	FireAt     time.Time `json:"fire_at"`
	Status     JobStatus `json:"status"`
	Attempts   int       `json:"attempts"`
	LeaseUntil time.Time `json:"lease_until,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
