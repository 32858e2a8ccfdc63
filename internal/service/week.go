package service

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// WeekStartOf truncates a timestamp to the Monday of its calendar week, UTC
// midnight. Weeks are keyed by this value everywhere.
func WeekStartOf(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekEndOf returns the Sunday of the week containing t, UTC midnight.
func WeekEndOf(t time.Time) time.Time {
	return WeekStartOf(t).AddDate(0, 0, 6)
}

// ISOWeekday maps a timestamp to the 1..7 day index used by timetable
// entries (1 = Monday).
func ISOWeekday(t time.Time) int {
	weekday := int(t.UTC().Weekday())
	if weekday == 0 {
		return 7
	}
	return weekday
}

// ParseDate parses a YYYY-MM-DD value into a UTC midnight timestamp.
func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return parsed.UTC(), nil
}
