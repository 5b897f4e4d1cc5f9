package frame

import "time"

// DateLayout is the calendar date format used by the source files and reports.
const DateLayout = "2006-01-02"

// ParseDate parses a calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DayNumber returns the number of whole days since the Unix epoch for a UTC
// midnight date. It is the join key unit for date arithmetic.
func DayNumber(t time.Time) int64 {
	return t.UTC().Truncate(24*time.Hour).Unix() / 86400
}

// InWindow reports whether d lies in [from, to], both ends inclusive.
func InWindow(d, from, to time.Time) bool {
	return !d.Before(from) && !d.After(to)
}
