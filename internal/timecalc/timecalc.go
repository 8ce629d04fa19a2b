package timecalc

import (
	"fmt"
	"time"
)

// RoundDuration rounds seconds to the nearest multiple of toMinutes minutes,
// half up. A nonzero duration that would round down to zero is bumped to one
// full rounding unit so short entries still log a minimum block of time.
// toMinutes <= 0 disables rounding.
func RoundDuration(seconds int64, toMinutes int) int64 {
	if toMinutes <= 0 {
		return seconds
	}
	unit := int64(toMinutes) * 60
	rounded := (seconds + unit/2) / unit * unit
	if rounded == 0 && seconds > 0 {
		rounded = unit
	}
	return rounded
}

// FormatDuration formats seconds as a human-readable string like "1h 40m" or "45m" or "30s".
func FormatDuration(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}

// GitLabDuration formats seconds in GitLab's human duration syntax, e.g.
// "1h 30m" or "45m". GitLab rejects zero durations, so anything below a
// minute renders as "1m".
func GitLabDuration(seconds int64) string {
	if seconds < 60 {
		return "1m"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

// IsWeekend reports whether t falls on Saturday or Sunday in loc.
// A nil loc means UTC.
func IsWeekend(t time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	wd := t.In(loc).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of the same day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// SyncWindow returns the [start, end] range covering daysBack full days up to
// and including the current day of now.
func SyncWindow(now time.Time, daysBack int) (time.Time, time.Time) {
	end := EndOfDay(now)
	start := StartOfDay(end.AddDate(0, 0, -daysBack))
	return start, end
}
