package model

import "time"

// Slot is a candidate window produced by the availability generator.  It is
// distinct from a Booking: free slots are never persisted.
//
// Fields:
//
//	StartTime – slot start.
//	EndTime   – slot end (StartTime + requested duration).
//	Available – true for a free candidate, false for an occupied window.
//	BookingID – set on booked slots, identifies the occupying booking.
//	Title     – set on booked slots, the occupying booking's title.
type Slot struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Available bool      `json:"available"`
	BookingID string    `json:"bookingId,omitempty"`
	Title     string    `json:"title,omitempty"`
}

// Availability is the result of an availability query for one resource
// on one calendar day.
type Availability struct {
	Date           string `json:"date"`
	ResourceID     string `json:"resourceId"`
	Duration       int    `json:"duration"`
	AvailableSlots []Slot `json:"availableSlots"`
	BookedSlots    []Slot `json:"bookedSlots"`
}
