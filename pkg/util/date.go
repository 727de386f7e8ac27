package util

import (
	"strconv"
	"time"
)

// BusinessDateLayout is the wire format for business dates.
const BusinessDateLayout = "2006-01-02"

// BusinessDate returns the calendar date of t in the market's operating
// timezone, formatted as YYYY-MM-DD. Every component keying raw prices or
// report artifacts must derive dates through this function with the same
// location; mixing wall-clock UTC dates with market-local dates corrupts
// the cache keyspace.
func BusinessDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(BusinessDateLayout)
}

// ParseBusinessDate parses a YYYY-MM-DD date string into a midnight time
// in the given location.
func ParseBusinessDate(s string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(BusinessDateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}
