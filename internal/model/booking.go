package model

import "time"

// BookingStatus is the lifecycle state of a booking.  Cancelled bookings
// are retained for history but no longer occupy their resource.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusScheduled BookingStatus = "scheduled"
	StatusCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusScheduled, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether a booking in this status occupies its resource.
func (s BookingStatus) Active() bool { return s != StatusCancelled }

// Default values applied to optional fields when a booking is created.
const (
	DefaultType  = "session"
	DefaultColor = "#3B82F6"
)

// Booking reserves a resource (room, trainer, equipment) for the
// half-open interval [StartTime, EndTime).
//
// Fields:
//
//	ID          – unique identifier, immutable after creation.
//	SeriesID    – optional key shared by every booking of a recurring series.
//	Title       – required free text.
//	Description – optional free text, empty by default.
//	StartTime   – inclusive start of the interval (UTC).
//	EndTime     – exclusive end of the interval, strictly after StartTime.
//	ResourceID  – the bookable resource; conflicts are checked per resource.
//	MemberID    – owning member, nil for staff-blocked slots.
//	Type        – category tag, "session" by default.
//	Status      – confirmed, scheduled or cancelled.
//	Color       – presentation hint for calendars.
//	CreatedAt   – set on insert.
//	UpdatedAt   – refreshed on every update.
type Booking struct {
	ID          string        `json:"id"`
	SeriesID    *string       `json:"seriesId,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	ResourceID  string        `json:"resourceId"`
	MemberID    *string       `json:"memberId"`
	Type        string        `json:"type"`
	Status      BookingStatus `json:"status"`
	Color       string        `json:"color"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy so that stores never hand out shared pointers.
func (b Booking) Clone() Booking {
	out := b
	if b.SeriesID != nil {
		v := *b.SeriesID
		out.SeriesID = &v
	}
	if b.MemberID != nil {
		v := *b.MemberID
		out.MemberID = &v
	}
	return out
}

// Series returns the series key or "" when the booking is standalone.
func (b Booking) Series() string {
	if b.SeriesID == nil {
		return ""
	}
	return *b.SeriesID
}
