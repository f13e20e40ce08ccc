package testfixtures

import (
	"time"

	"github.com/iliyamo/gym-booking/internal/model"
)

// At parses an RFC3339 instant and panics on malformed input.
func At(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

// Booking returns a confirmed booking of resourceID for [start, end).
func Booking(id, resourceID, start, end string) model.Booking {
	created := ReferenceTime()
	return model.Booking{
		ID:         id,
		Title:      "Session " + id,
		StartTime:  At(start),
		EndTime:    At(end),
		ResourceID: resourceID,
		Type:       model.DefaultType,
		Status:     model.StatusConfirmed,
		Color:      model.DefaultColor,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

// Cancelled returns b with status cancelled.
func Cancelled(b model.Booking) model.Booking {
	b.Status = model.StatusCancelled
	return b
}

// InSeries returns b tagged with seriesID.
func InSeries(b model.Booking, seriesID string) model.Booking {
	b.SeriesID = &seriesID
	return b
}

// Str returns a pointer to s.
func Str(s string) *string { return &s }
