package models

import (
	"fmt"
	"time"

	"github.com/julianstephens/podcheck/internal/constants"
)

// Goal is one recurring commitment owned by one user inside one pod.
type Goal struct {
	ID            string     `json:"id"`
	PodID         string     `json:"pod_id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	Frequency     Frequency  `json:"frequency"`
	ReminderTime  string     `json:"reminder_time,omitempty"` // HH:MM format, optional
	DeadlineTime  string     `json:"deadline_time"`           // HH:MM format
	Timezone      string     `json:"timezone"`                // IANA zone, fixed at creation
	RequiresProof bool       `json:"requires_proof"`
	CurrentStreak int        `json:"current_streak"`
	LongestStreak int        `json:"longest_streak"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (g Goal) IsArchived() bool {
	return g.ArchivedAt != nil
}

func (g Goal) HasReminder() bool {
	return g.ReminderTime != ""
}

// Deadline returns the configured deadline, falling back to end of day.
func (g Goal) Deadline() string {
	if g.DeadlineTime == "" {
		return constants.DefaultDeadlineTime
	}
	return g.DeadlineTime
}

func (g *Goal) Validate() error {
	if g.Title == "" {
		return fmt.Errorf("goal title cannot be empty")
	}
	if g.UserID == "" {
		return fmt.Errorf("goal owner cannot be empty")
	}
	if err := g.Frequency.Validate(); err != nil {
		return err
	}
	if _, err := time.Parse(constants.TimeFormat, g.Deadline()); err != nil {
		return fmt.Errorf("invalid deadline time (expected HH:MM): %w", err)
	}
	if g.ReminderTime != "" {
		if _, err := time.Parse(constants.TimeFormat, g.ReminderTime); err != nil {
			return fmt.Errorf("invalid reminder time (expected HH:MM): %w", err)
		}
	}
	if g.Timezone == "" || g.Timezone == "Local" {
		return fmt.Errorf("goal timezone must be an explicit IANA zone")
	}
	if _, err := time.LoadLocation(g.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", g.Timezone, err)
	}
	return nil
}
