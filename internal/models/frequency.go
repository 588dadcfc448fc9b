package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type FrequencyKind string

const (
	FrequencyDaily            FrequencyKind = "DAILY"
	FrequencyWeekly           FrequencyKind = "WEEKLY"
	FrequencySpecificWeekdays FrequencyKind = "SPECIFIC_WEEKDAYS"
)

// Frequency is the closed set of recurrence shapes a goal can have. Weekdays is
// only meaningful for FrequencySpecificWeekdays.
type Frequency struct {
	Kind     FrequencyKind  `json:"kind"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
}

func Daily() Frequency { return Frequency{Kind: FrequencyDaily} }
func Weekly() Frequency { return Frequency{Kind: FrequencyWeekly} }

// SpecificWeekdays returns a frequency expected only on the given weekdays.
// Duplicates are removed and the days are kept in Sunday-first order.
func SpecificWeekdays(days ...time.Weekday) Frequency {
	seen := make(map[time.Weekday]bool, len(days))
	var uniq []time.Weekday
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			uniq = append(uniq, d)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
	return Frequency{Kind: FrequencySpecificWeekdays, Weekdays: uniq}
}

// IsExpectedOn reports whether a check-in is expected on the given calendar
// date. WEEKLY goals treat every day as expected; their continuity is judged
// per week by the streak calculator.
func (f Frequency) IsExpectedOn(date time.Time) bool {
	switch f.Kind {
	case FrequencyDaily, FrequencyWeekly:
		return true
	case FrequencySpecificWeekdays:
		wd := date.Weekday()
		for _, d := range f.Weekdays {
			if d == wd {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (f Frequency) Validate() error {
	switch f.Kind {
	case FrequencyDaily, FrequencyWeekly:
		if len(f.Weekdays) > 0 {
			return fmt.Errorf("weekdays are only allowed for %s frequency", FrequencySpecificWeekdays)
		}
		return nil
	case FrequencySpecificWeekdays:
		if len(f.Weekdays) == 0 {
			return fmt.Errorf("weekdays must be specified for %s frequency", FrequencySpecificWeekdays)
		}
		for _, d := range f.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("invalid weekday: %d", d)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown frequency kind %q", f.Kind)
	}
}

// String renders the frequency in the form accepted by ParseFrequency.
func (f Frequency) String() string {
	switch f.Kind {
	case FrequencyDaily:
		return "daily"
	case FrequencyWeekly:
		return "weekly"
	case FrequencySpecificWeekdays:
		days := make([]string, len(f.Weekdays))
		for i, d := range f.Weekdays {
			days[i] = strings.ToLower(d.String()[:3])
		}
		return "weekdays:" + strings.Join(days, ",")
	default:
		return "unknown"
	}
}

var weekdayNames = map[string]time.Weekday{
	"sun":       time.Sunday,
	"sunday":    time.Sunday,
	"mon":       time.Monday,
	"monday":    time.Monday,
	"tue":       time.Tuesday,
	"tuesday":   time.Tuesday,
	"wed":       time.Wednesday,
	"wednesday": time.Wednesday,
	"thu":       time.Thursday,
	"thursday":  time.Thursday,
	"fri":       time.Friday,
	"friday":    time.Friday,
	"sat":       time.Saturday,
	"saturday":  time.Saturday,
}

// ParseFrequency parses "daily", "weekly" or "weekdays:mon,wed,fri".
// Weekdays may also be given as numbers (0=Sunday, 6=Saturday).
func ParseFrequency(s string) (Frequency, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "daily":
		return Daily(), nil
	case "weekly":
		return Weekly(), nil
	}

	list, ok := strings.CutPrefix(s, "weekdays:")
	if !ok {
		return Frequency{}, fmt.Errorf("invalid frequency: %q", s)
	}

	var days []time.Weekday
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if wd, ok := weekdayNames[part]; ok {
			days = append(days, wd)
			continue
		}
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 || num > 6 {
			return Frequency{}, fmt.Errorf("invalid weekday: %s", part)
		}
		days = append(days, time.Weekday(num))
	}

	f := SpecificWeekdays(days...)
	if err := f.Validate(); err != nil {
		return Frequency{}, err
	}
	return f, nil
}
