// Package testfixtures provides deterministic clocks, ids and bookings for
// tests across packages.
package testfixtures

import (
	"sync"
	"time"
)

// ReferenceTime is the default instant of a fixture clock:
// 2024-01-09 12:00:00 UTC, the day before the sample bookings.
func ReferenceTime() time.Time {
	return time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC)
}

// Clock is a controllable time source.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock set to start, or to ReferenceTime when start is
// the zero value.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}
