package store

import "time"

// TimeLayout matches the strftime format used by column DEFAULTs in the
// migrate package ('%Y-%m-%dT%H:%M:%fZ'): millisecond-precision UTC.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in TimeLayout for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp string back into a time.Time.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}
