package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/gym-booking/internal/model"
)

// Validation and lookup failures surfaced by the booking service.  Handlers
// map each of them to a stable error code with errors.Is.
var (
	ErrInvalidTitle      = errors.New("title is required")
	ErrInvalidDates      = errors.New("startTime and endTime are required")
	ErrInvalidDateFormat = errors.New("invalid date format")
	ErrInvalidDateRange  = errors.New("endTime must be after startTime")
	ErrInvalidResource   = errors.New("resourceId is required")
	ErrInvalidStatus     = errors.New("status must be one of confirmed, scheduled, cancelled")
	ErrInvalidDate       = errors.New("date is required (YYYY-MM-DD)")
	ErrInvalidDuration   = errors.New("duration must be between 1 and 840 minutes")
	ErrInvalidSeries     = errors.New("seriesId is required")
	ErrInvalidShift      = errors.New("minutes must be a non-zero shift of at most one year")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrSeriesNotFound    = errors.New("series has no active bookings")
	ErrBookingConflict   = errors.New("booking conflicts with an existing booking")
)

// MaxShiftMinutes bounds ShiftSeries in either direction.
const MaxShiftMinutes = 366 * 24 * 60

// ConflictError reports the bookings a write would have overlapped.
// Conflicts is empty when the storage engine rejected the write itself.
type ConflictError struct {
	Conflicts []model.Booking
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return ErrBookingConflict.Error()
	}
	return fmt.Sprintf("%s (%d overlapping)", ErrBookingConflict.Error(), len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error { return ErrBookingConflict }
