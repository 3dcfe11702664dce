package core

import (
	"strings"
	"time"
)

const dateOnly = "2006-01-02"

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates, the
// latter interpreted as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidDate
}

// ParseDateEnd is ParseDate for the upper bound of an inclusive range: a
// plain YYYY-MM-DD date becomes the last millisecond of that day in loc.
func ParseDateEnd(s string, loc *time.Location) (time.Time, error) {
	t, err := ParseDate(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	if _, err := time.Parse(dateOnly, strings.TrimSpace(s)); err == nil {
		return t.AddDate(0, 0, 1).Add(-time.Millisecond), nil
	}
	return t, nil
}
