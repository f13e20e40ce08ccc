package service

import (
	"sort"
	"time"

	"github.com/iliyamo/gym-booking/internal/model"
)

// Working window and stride of the availability generator.  They are fixed
// for every resource.
const (
	WorkdayStartHour   = 8
	WorkdayEndHour     = 22
	SlotStride         = 30 * time.Minute
	DefaultSlotMinutes = 60

	// MaxSlotMinutes is the longest slot that fits the working window.
	MaxSlotMinutes = (WorkdayEndHour - WorkdayStartHour) * 60
)

// DayBookings returns the active bookings of resourceID that start on the
// calendar day beginning at dayStart, sorted by start time.
func DayBookings(all []model.Booking, resourceID string, dayStart time.Time) []model.Booking {
	nextDay := dayStart.AddDate(0, 0, 1)
	var out []model.Booking
	for _, b := range all {
		if b.ResourceID != resourceID || !b.Status.Active() {
			continue
		}
		if b.StartTime.Before(dayStart) || !b.StartTime.Before(nextDay) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// GenerateSlots walks the working window of dayStart's date in SlotStride
// steps and emits every [cur, cur+duration) candidate that overlaps none of
// dayBookings.  Candidates ending after the window closes are not emitted.
// Consecutive free slots may overlap each other when duration > SlotStride.
func GenerateSlots(dayStart time.Time, duration time.Duration, dayBookings []model.Booking) []model.Slot {
	slots := []model.Slot{}
	if duration <= 0 {
		return slots
	}
	loc := dayStart.Location()
	y, m, d := dayStart.Date()
	open := time.Date(y, m, d, WorkdayStartHour, 0, 0, 0, loc)
	closing := time.Date(y, m, d, WorkdayEndHour, 0, 0, 0, loc)

	for cur := open; !cur.Add(duration).After(closing); cur = cur.Add(SlotStride) {
		end := cur.Add(duration)
		free := true
		for _, b := range dayBookings {
			if Overlaps(cur, end, b.StartTime, b.EndTime) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, model.Slot{StartTime: cur, EndTime: end, Available: true})
		}
	}
	return slots
}

// BookedSlots renders day bookings as occupied slots.
func BookedSlots(dayBookings []model.Booking) []model.Slot {
	out := make([]model.Slot, 0, len(dayBookings))
	for _, b := range dayBookings {
		out = append(out, model.Slot{
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Available: false,
			BookingID: b.ID,
			Title:     b.Title,
		})
	}
	return out
}
