package service

import (
	"strings"
	"time"
)

// instantLayouts are tried in order.  Layouts without a zone are read in
// UTC; clients are expected to send offsets.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

const dayLayout = "2006-01-02"

// ParseInstant parses a booking timestamp and normalises it to UTC with
// whole-second precision, which every store can round-trip.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range instantLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ParseDay returns local midnight of the calendar day named by s in loc.
// A full timestamp is accepted too; only its date part (in loc) is used.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if d, err := time.ParseInLocation(dayLayout, s, loc); err == nil {
		return d, nil
	}
	t, err := ParseInstant(s)
	if err != nil {
		return time.Time{}, err
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}
