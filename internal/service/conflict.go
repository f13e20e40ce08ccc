package service

import (
	"time"

	"github.com/iliyamo/gym-booking/internal/model"
)

// Candidate is the part of a booking the conflict detector looks at.
type Candidate struct {
	ResourceID string
	StartTime  time.Time
	EndTime    time.Time
}

// Exclusion names the booking being edited so that it never conflicts with
// itself.  When SeriesID is set, every booking of that series (and the
// series root whose ID equals it) is skipped as well; that is only sound
// when the whole series moves in the same write.
type Exclusion struct {
	ID       string
	SeriesID string
}

func (e Exclusion) matches(b model.Booking) bool {
	for _, key := range [...]string{e.ID, e.SeriesID} {
		if key == "" {
			continue
		}
		if b.ID == key || b.Series() == key {
			return true
		}
	}
	return false
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// The relation is symmetric and touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FindConflicts returns every active booking on the candidate's resource
// whose interval overlaps the candidate, skipping excluded bookings.
func FindConflicts(existing []model.Booking, c Candidate, ex Exclusion) []model.Booking {
	var out []model.Booking
	for _, b := range existing {
		if !conflicts(b, c, ex) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// HasConflict is the boolean form of FindConflicts and stops at the first hit.
func HasConflict(existing []model.Booking, c Candidate, ex Exclusion) bool {
	for _, b := range existing {
		if conflicts(b, c, ex) {
			return true
		}
	}
	return false
}

func conflicts(b model.Booking, c Candidate, ex Exclusion) bool {
	if ex.matches(b) {
		return false
	}
	if b.ResourceID != c.ResourceID {
		return false
	}
	if !b.Status.Active() {
		return false
	}
	return Overlaps(c.StartTime, c.EndTime, b.StartTime, b.EndTime)
}
