package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-booking/internal/model"
	tf "github.com/iliyamo/gym-booking/internal/testfixtures"
)

func slotStarts(slots []model.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StartTime.Format("15:04"))
	}
	return out
}

func TestGenerateSlotsAroundOneBooking(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	all := []model.Booking{tf.Booking("b1", "r1", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z")}

	slots := GenerateSlots(day, time.Hour, DayBookings(all, "r1", day))
	starts := slotStarts(slots)

	// 27 candidates from 08:00 to 21:00, three of which intersect [10:00, 11:00).
	assert.Len(t, slots, 24)
	assert.Contains(t, starts, "08:00")
	assert.Contains(t, starts, "09:00")
	assert.Contains(t, starts, "11:00")
	assert.NotContains(t, starts, "09:30")
	assert.NotContains(t, starts, "10:00")
	assert.NotContains(t, starts, "10:30")

	first, last := slots[0], slots[len(slots)-1]
	assert.Equal(t, tf.At("2024-01-10T08:00:00Z"), first.StartTime)
	assert.Equal(t, tf.At("2024-01-10T09:00:00Z"), first.EndTime)
	assert.Equal(t, tf.At("2024-01-10T21:00:00Z"), last.StartTime)
	assert.Equal(t, tf.At("2024-01-10T22:00:00Z"), last.EndTime)
	for _, s := range slots {
		assert.True(t, s.Available)
		assert.Empty(t, s.BookingID)
	}
}

func TestGenerateSlotsStrideIsIndependentOfDuration(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	slots := GenerateSlots(day, 90*time.Minute, nil)
	require.NotEmpty(t, slots)
	assert.Equal(t, "08:00", slots[0].StartTime.Format("15:04"))
	assert.Equal(t, "08:30", slots[1].StartTime.Format("15:04"))
	assert.True(t, slots[1].StartTime.Before(slots[0].EndTime), "rolling windows overlap each other")
	assert.Equal(t, "20:30", slots[len(slots)-1].StartTime.Format("15:04"))

	assert.Empty(t, GenerateSlots(day, 15*time.Hour, nil), "longer than the working window")
	assert.NotNil(t, GenerateSlots(day, 0, nil))
}

func TestGenerateSlotsFullyBookedDay(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	all := []model.Booking{tf.Booking("all-day", "r1", "2024-01-10T07:00:00Z", "2024-01-10T23:00:00Z")}

	slots := GenerateSlots(day, 30*time.Minute, DayBookings(all, "r1", day))
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestGenerateSlotsInLocalTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, loc)

	slots := GenerateSlots(day, time.Hour, nil)
	require.NotEmpty(t, slots)
	assert.Equal(t, tf.At("2024-01-10T01:00:00Z"), slots[0].StartTime.UTC())
	assert.Equal(t, "08:00", slots[0].StartTime.Format("15:04"))
}

func TestDayBookings(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	all := []model.Booking{
		tf.Booking("late", "r1", "2024-01-10T18:00:00Z", "2024-01-10T19:00:00Z"),
		tf.Booking("early", "r1", "2024-01-10T09:00:00Z", "2024-01-10T10:00:00Z"),
		tf.Booking("yesterday", "r1", "2024-01-09T23:00:00Z", "2024-01-10T09:00:00Z"),
		tf.Booking("tomorrow", "r1", "2024-01-11T00:00:00Z", "2024-01-11T01:00:00Z"),
		tf.Booking("other", "r2", "2024-01-10T12:00:00Z", "2024-01-10T13:00:00Z"),
		tf.Cancelled(tf.Booking("cancelled", "r1", "2024-01-10T12:00:00Z", "2024-01-10T13:00:00Z")),
	}

	got := DayBookings(all, "r1", day)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].ID)
	assert.Equal(t, "late", got[1].ID)

	booked := BookedSlots(got)
	require.Len(t, booked, 2)
	assert.False(t, booked[0].Available)
	assert.Equal(t, "early", booked[0].BookingID)
	assert.Equal(t, "Session early", booked[0].Title)
}
