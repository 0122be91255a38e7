package clock

import (
	"strings"
	"time"
)

// Range selects the time window of an aggregate query.
type Range string

const (
	Today Range = "today"
	Week  Range = "week"
	All   Range = "all"
)

// week ranges look back a fixed seven days from now, not calendar days
const weekSpan = 7 * 24 * time.Hour

// ParseRange maps a query value onto a Range. Anything unrecognised,
// including the empty string, means All.
func ParseRange(value string) Range {
	switch Range(strings.ToLower(strings.TrimSpace(value))) {
	case Today:
		return Today
	case Week:
		return Week
	default:
		return All
	}
}

// Since returns the inclusive lower bound of the range at now, or nil when
// the range is unbounded.
func (r Range) Since(now time.Time) *Stamp {
	switch r {
	case Today:
		return FromTime(StartOfDay(now)).Ptr()
	case Week:
		return FromTime(now.Add(-weekSpan)).Ptr()
	default:
		return nil
	}
}

// PeriodKey buckets t for timeline series: "HH:00" for Today, the calendar
// date "YYYY-MM-DD" otherwise. Both forms sort correctly as strings.
func (r Range) PeriodKey(t time.Time) string {
	t = t.UTC()
	if r == Today {
		return t.Format("15") + ":00"
	}
	return t.Format(time.DateOnly)
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
