package service

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/gym-booking/internal/model"
)

// Paging defaults for booking listings.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// StatusAll disables status filtering, so cancelled bookings are listed too.
const StatusAll = "all"

// ListQuery defines filters and pagination for listing bookings.
type ListQuery struct {
	ResourceID string
	MemberID   string
	Status     string // "" hides cancelled, StatusAll shows everything
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	Limit      int
}

// BookingPage is one page of a filtered, sorted listing.
type BookingPage struct {
	Bookings   []model.Booking `json:"bookings"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

// ParseListQuery reads resourceId, memberId, status, startDate, endDate,
// page and limit from query parameters.  A date-only endDate covers the
// whole day.  Page and limit fall back to defaults when absent or invalid.
func ParseListQuery(v url.Values, loc *time.Location) (ListQuery, error) {
	if loc == nil {
		loc = time.UTC
	}
	q := ListQuery{
		ResourceID: strings.TrimSpace(v.Get("resourceId")),
		MemberID:   strings.TrimSpace(v.Get("memberId")),
		Status:     strings.ToLower(strings.TrimSpace(v.Get("status"))),
	}
	if q.Status != "" && q.Status != StatusAll && !model.BookingStatus(q.Status).Valid() {
		return ListQuery{}, ErrInvalidStatus
	}
	if s := strings.TrimSpace(v.Get("startDate")); s != "" {
		t, err := parseBound(s, loc, false)
		if err != nil {
			return ListQuery{}, ErrInvalidDateFormat
		}
		q.StartDate = &t
	}
	if s := strings.TrimSpace(v.Get("endDate")); s != "" {
		t, err := parseBound(s, loc, true)
		if err != nil {
			return ListQuery{}, ErrInvalidDateFormat
		}
		q.EndDate = &t
	}

	q.Page, _ = strconv.Atoi(v.Get("page"))
	q.Limit, _ = strconv.Atoi(v.Get("limit"))
	return q.normalized(), nil
}

func parseBound(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if d, err := time.ParseInLocation(dayLayout, s, loc); err == nil {
		if endOfDay {
			return d.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
		}
		return d, nil
	}
	return ParseInstant(s)
}

func (q ListQuery) normalized() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	// Keep (Page-1)*Limit within int range; such a page is always empty.
	if maxPage := math.MaxInt / q.Limit; q.Page > maxPage {
		q.Page = maxPage
	}
	return q
}

// Matches reports whether b passes every filter in q.
func (q ListQuery) Matches(b model.Booking) bool {
	if q.ResourceID != "" && b.ResourceID != q.ResourceID {
		return false
	}
	if q.MemberID != "" && (b.MemberID == nil || *b.MemberID != q.MemberID) {
		return false
	}
	switch q.Status {
	case "":
		if !b.Status.Active() {
			return false
		}
	case StatusAll:
	default:
		if string(b.Status) != q.Status {
			return false
		}
	}
	if q.StartDate != nil && b.StartTime.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && b.EndTime.After(*q.EndDate) {
		return false
	}
	return true
}

// ApplyQuery filters all, sorts the survivors by start time (ties by ID)
// and cuts out the requested page.
func ApplyQuery(all []model.Booking, q ListQuery) BookingPage {
	q = q.normalized()
	matched := make([]model.Booking, 0, len(all))
	for _, b := range all {
		if q.Matches(b) {
			matched = append(matched, b)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].StartTime.Before(matched[j].StartTime)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	page := BookingPage{
		Bookings:   []model.Booking{},
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: (total + q.Limit - 1) / q.Limit,
	}
	offset := (q.Page - 1) * q.Limit
	if offset >= total {
		return page
	}
	end := offset + q.Limit
	if end > total {
		end = total
	}
	page.Bookings = matched[offset:end]
	return page
}
