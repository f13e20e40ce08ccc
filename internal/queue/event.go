// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/gym-booking/internal/model"
)

// Routing keys of booking lifecycle events on the bookings topic exchange.
const (
	EventBookingCreated   = "booking.created"
	EventBookingUpdated   = "booking.updated"
	EventBookingCancelled = "booking.cancelled"
)

// BookingEvent is published after a booking write is persisted.  It
// carries enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type BookingEvent struct {
	Type       string  `json:"type"`
	BookingID  string  `json:"booking_id"`
	SeriesID   *string `json:"series_id,omitempty"`
	ResourceID string  `json:"resource_id"`
	MemberID   *string `json:"member_id,omitempty"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	StartsAt   string  `json:"starts_at"`
	EndsAt     string  `json:"ends_at"`
	OccurredAt string  `json:"occurred_at"`
}

// NewBookingEvent builds the event of the given type for b.
func NewBookingEvent(eventType string, b model.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		SeriesID:   b.SeriesID,
		ResourceID: b.ResourceID,
		MemberID:   b.MemberID,
		Title:      b.Title,
		Status:     string(b.Status),
		StartsAt:   b.StartTime.UTC().Format(time.RFC3339),
		EndsAt:     b.EndTime.UTC().Format(time.RFC3339),
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}
