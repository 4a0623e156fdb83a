// Package timerange resolves symbolic reporting windows (day, week,
// month) into concrete half-open [start, end) intervals on the local
// calendar. Both the cash cut and the analytics aggregator resolve
// their ranges here so the two can never disagree about what "today"
// means.
package timerange

import (
	"fmt"
	"time"
)

const (
	Day   = "day"
	Week  = "week"
	Month = "month"
)

// Resolve maps a window name and an anchor instant to the calendar
// interval containing the anchor, computed in loc. Weeks start on
// Sunday. DST shifts are absorbed by the calendar math: a day is
// midnight to the next midnight, whatever its length in hours.
func Resolve(window string, anchor time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t := anchor.In(loc)

	switch window {
	case Day:
		start := StartOfDay(t, loc)
		return start, start.AddDate(0, 0, 1), nil
	case Week:
		day := StartOfDay(t, loc)
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return start, start.AddDate(0, 0, 7), nil
	case Month:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown window %q", window)
	}
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Contains reports whether instant falls inside [start, end).
func Contains(instant, start, end time.Time) bool {
	return !instant.Before(start) && instant.Before(end)
}
