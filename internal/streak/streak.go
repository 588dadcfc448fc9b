// Package streak computes a goal's current and longest streak from its
// check-in history.
package streak

import (
	"time"

	"github.com/julianstephens/podcheck/internal/constants"
	"github.com/julianstephens/podcheck/internal/models"
)

type Result struct {
	Current int
	Longest int
}

// Calculate walks the history backwards from today, the calendar date in the
// goal's timezone. Longest never drops below prevLongest.
//
// DAILY and SPECIFIC_WEEKDAYS goals are judged day by day over expected days
// only. WEEKLY goals are judged per ISO week. SKIPPED records neither extend
// nor break a streak, and a MISSED record as the most recent outcome always
// yields zero.
func Calculate(freq models.Frequency, history []models.CheckIn, today time.Time, prevLongest int) Result {
	day := civil(today)
	todayKey := day.Format(constants.DateFormat)

	byDate := make(map[string]models.CheckInStatus, len(history))
	var oldest, newest string
	for _, ci := range history {
		if ci.Date > todayKey {
			continue
		}
		byDate[ci.Date] = ci.Status
		if oldest == "" || ci.Date < oldest {
			oldest = ci.Date
		}
		if ci.Date > newest {
			newest = ci.Date
		}
	}

	current := 0
	if newest != "" && byDate[newest] != models.CheckInMissed {
		if freq.Kind == models.FrequencyWeekly {
			current = weekly(byDate, day, oldest)
		} else {
			current = daily(freq, byDate, day, oldest)
		}
	}

	return Result{Current: current, Longest: max(prevLongest, current)}
}

func daily(freq models.Frequency, byDate map[string]models.CheckInStatus, today time.Time, oldest string) int {
	todayKey := today.Format(constants.DateFormat)
	count := 0
	for d := today; d.Format(constants.DateFormat) >= oldest; d = d.AddDate(0, 0, -1) {
		if !freq.IsExpectedOn(d) {
			continue
		}
		key := d.Format(constants.DateFormat)
		status, ok := byDate[key]
		if !ok {
			// Today is not over yet.
			if key == todayKey {
				continue
			}
			return count
		}
		switch status {
		case models.CheckInCompleted:
			count++
		case models.CheckInSkipped:
		default:
			return count
		}
	}
	return count
}

func weekly(byDate map[string]models.CheckInStatus, today time.Time, oldest string) int {
	todayKey := today.Format(constants.DateFormat)
	count := 0
	start := WeekStart(today)
	for first := true; start.AddDate(0, 0, 6).Format(constants.DateFormat) >= oldest; first = false {
		completed, skipped, other := false, 0, 0
		for i := 0; i < 7; i++ {
			key := start.AddDate(0, 0, i).Format(constants.DateFormat)
			if key > todayKey {
				break
			}
			switch byDate[key] {
			case models.CheckInCompleted:
				completed = true
			case models.CheckInSkipped:
				skipped++
			case models.CheckInMissed:
				other++
			}
		}
		switch {
		case completed:
			count++
		case skipped > 0 && other == 0:
		case first && other == 0:
		default:
			return count
		}
		start = start.AddDate(0, 0, -7)
	}
	return count
}

// civil drops the clock and zone, keeping the calendar date. Stepping civil
// dates by AddDate never lands on a DST transition.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of t's ISO week, at t's clock and zone.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}
