package models

import "time"

type CheckInStatus string

const (
	CheckInCompleted CheckInStatus = "COMPLETED"
	CheckInMissed    CheckInStatus = "MISSED"
	CheckInSkipped   CheckInStatus = "SKIPPED"
)

func (s CheckInStatus) IsValid() bool {
	switch s {
	case CheckInCompleted, CheckInMissed, CheckInSkipped:
		return true
	default:
		return false
	}
}

// CheckIn is the outcome for exactly one (goal, logical date) pair.
type CheckIn struct {
	ID              string        `json:"id"`
	GoalID          string        `json:"goal_id"`
	Date            string        `json:"date"` // YYYY-MM-DD in the goal's timezone
	Status          CheckInStatus `json:"status"`
	ProofRef        string        `json:"proof_ref,omitempty"`
	Comment         string        `json:"comment,omitempty"`
	ClientTimestamp *time.Time    `json:"client_timestamp,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
