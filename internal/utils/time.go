package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/podcheck/internal/constants"
	apperrors "github.com/julianstephens/podcheck/internal/errors"
)

// LoadGoalLocation loads a goal's timezone. It never falls back to the server
// zone: an empty, "Local" or unknown zone is an error wrapping
// ErrInvalidTimezone.
func LoadGoalLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return nil, fmt.Errorf("%w: %q is not an explicit IANA zone", apperrors.ErrInvalidTimezone, timezone)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", apperrors.ErrInvalidTimezone, timezone, err)
	}
	return loc, nil
}

// LogicalDate returns the calendar date (YYYY-MM-DD) of instant t as observed in loc.
func LogicalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(constants.DateFormat)
}

// ParseTime parses a time string in the standard format (HH:MM).
func ParseTime(timeStr string) (time.Time, error) {
	return time.Parse(constants.TimeFormat, timeStr)
}

// ParseDateInLocation parses a date string (YYYY-MM-DD) in the specified timezone.
func ParseDateInLocation(dateStr string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, dateStr)
	if err != nil {
		return time.Time{}, err
	}
	// Return the date at midnight in the specified timezone
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// CombineDateAndTime combines a date string (YYYY-MM-DD) and time string (HH:MM)
// into a single time.Time in the specified timezone.
//
// A wall time inside a spring-forward gap moves forward by the size of the
// gap. An ambiguous fall-back time resolves to its first occurrence.
func CombineDateAndTime(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	date, err := time.Parse(constants.DateFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %w", err)
	}

	timeOfDay, err := ParseTime(timeStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time format: %w", err)
	}

	return resolveWallClock(date.Year(), date.Month(), date.Day(), timeOfDay.Hour(), timeOfDay.Minute(), loc), nil
}

// resolveWallClock pins down the instant for a local wall time. time.Date
// alone picks either side of a transition depending on the sign of the
// zone's offset.
func resolveWallClock(year int, month time.Month, day, hour, min int, loc *time.Location) time.Time {
	t := time.Date(year, month, day, hour, min, 0, 0, loc)
	_, before := t.Add(-12 * time.Hour).Zone()
	_, after := t.Add(12 * time.Hour).Zone()
	if before == after {
		return t
	}

	wall := time.Date(year, month, day, hour, min, 0, 0, time.UTC)
	var first time.Time
	for _, offset := range []int{before, after} {
		c := wall.Add(-time.Duration(offset) * time.Second).In(loc)
		if c.Day() != day || c.Hour() != hour || c.Minute() != min {
			continue
		}
		if first.IsZero() || c.Before(first) {
			first = c
		}
	}
	if !first.IsZero() {
		return first
	}

	// Nonexistent wall time: read it with the offset in force before the gap.
	return wall.Add(-time.Duration(before) * time.Second).In(loc)
}

// AddDays shifts a date string by n calendar days. Calendar arithmetic is done
// on a UTC midnight so DST transitions never skip or repeat a date.
func AddDays(dateStr string, n int) (string, error) {
	t, err := time.Parse(constants.DateFormat, dateStr)
	if err != nil {
		return "", fmt.Errorf("invalid date format: %w", err)
	}
	return t.AddDate(0, 0, n).Format(constants.DateFormat), nil
}
