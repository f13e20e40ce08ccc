package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-booking/internal/model"
	"github.com/iliyamo/gym-booking/internal/service"
)

// BookingHandler exposes the booking service over HTTP.
type BookingHandler struct {
	svc *service.BookingService
}

// NewBookingHandler panics when svc is nil.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	if svc == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{svc: svc}
}

// createBookingRequest is the POST body.  Unknown fields are rejected.
type createBookingRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	ResourceID  string  `json:"resourceId"`
	MemberID    *string `json:"memberId"`
	Type        *string `json:"type"`
	Status      *string `json:"status"`
	Color       *string `json:"color"`
	SeriesID    *string `json:"seriesId"`
}

// updateBookingRequest is the PUT/PATCH body.  Absent fields keep their
// value; memberId or seriesId set to "" clears it.
type updateBookingRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	StartTime   *string `json:"startTime"`
	EndTime     *string `json:"endTime"`
	ResourceID  *string `json:"resourceId"`
	MemberID    *string `json:"memberId"`
	Type        *string `json:"type"`
	Status      *string `json:"status"`
	Color       *string `json:"color"`
	SeriesID    *string `json:"seriesId"`
}

// shiftSeriesRequest is the body of POST /api/bookings/series/:seriesId/shift.
type shiftSeriesRequest struct {
	Minutes *int `json:"minutes"`
}

// seriesShiftResponse lists the bookings a series shift moved.
type seriesShiftResponse struct {
	SeriesID string          `json:"seriesId"`
	Bookings []model.Booking `json:"bookings"`
}

// maxBodyBytes caps booking request bodies.
const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("request body is empty")

// decodeStrict decodes exactly one JSON object into dst and rejects unknown
// fields and trailing data.
func decodeStrict(c echo.Context, dst any) error {
	dec := json.NewDecoder(io.LimitReader(c.Request().Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// List handles GET /api/bookings.
func (h *BookingHandler) List(c echo.Context) error {
	q, err := service.ParseListQuery(c.QueryParams(), h.svc.Location())
	if err != nil {
		return h.serviceError(c, err)
	}
	page, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		return h.serviceError(c, err)
	}
	return ok(c, http.StatusOK, page)
}

// Get handles GET /api/bookings/:id.  Cancelled bookings are returned too.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.serviceError(c, err)
	}
	return ok(c, http.StatusOK, b)
}

// Create handles POST /api/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	var body createBookingRequest
	if err := decodeStrict(c, &body); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body: "+err.Error())
	}
	b, err := h.svc.Create(c.Request().Context(), service.CreateInput{
		Title:       body.Title,
		Description: body.Description,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
		ResourceID:  body.ResourceID,
		MemberID:    body.MemberID,
		Type:        body.Type,
		Status:      body.Status,
		Color:       body.Color,
		SeriesID:    body.SeriesID,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return ok(c, http.StatusCreated, b)
}

// Update handles PUT and PATCH /api/bookings/:id.  Both are partial.
func (h *BookingHandler) Update(c echo.Context) error {
	var body updateBookingRequest
	if err := decodeStrict(c, &body); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body: "+err.Error())
	}
	b, err := h.svc.Update(c.Request().Context(), c.Param("id"), service.UpdateInput{
		Title:       body.Title,
		Description: body.Description,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
		ResourceID:  body.ResourceID,
		MemberID:    body.MemberID,
		Type:        body.Type,
		Status:      body.Status,
		Color:       body.Color,
		SeriesID:    body.SeriesID,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return ok(c, http.StatusOK, b)
}

// Cancel handles DELETE /api/bookings/:id.  The record is kept with status
// cancelled; repeating the call succeeds.
func (h *BookingHandler) Cancel(c echo.Context) error {
	b, err := h.svc.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, successResponse{Success: true, Message: "Booking cancelled", Data: b})
}

// ShiftSeries handles POST /api/bookings/series/:seriesId/shift.  Every
// active booking of the series moves by the same number of minutes, or
// none does.
func (h *BookingHandler) ShiftSeries(c echo.Context) error {
	var body shiftSeriesRequest
	if err := decodeStrict(c, &body); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body: "+err.Error())
	}
	if body.Minutes == nil {
		return fail(c, http.StatusBadRequest, "INVALID_SHIFT", service.ErrInvalidShift.Error())
	}
	moved, err := h.svc.ShiftSeries(c.Request().Context(), c.Param("seriesId"), *body.Minutes)
	if err != nil {
		return h.serviceError(c, err)
	}
	return ok(c, http.StatusOK, seriesShiftResponse{SeriesID: c.Param("seriesId"), Bookings: moved})
}

// Availability handles GET /api/bookings/resource/:resourceId/availability.
func (h *BookingHandler) Availability(c echo.Context) error {
	duration := service.DefaultSlotMinutes
	if raw := strings.TrimSpace(c.QueryParam("duration")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DURATION", service.ErrInvalidDuration.Error())
		}
		duration = n
	}
	a, err := h.svc.Availability(c.Request().Context(), c.Param("resourceId"), c.QueryParam("date"), duration)
	if err != nil {
		return h.serviceError(c, err)
	}
	return ok(c, http.StatusOK, a)
}

// errorCodes maps service sentinels to HTTP status and API error code.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrInvalidTitle, http.StatusBadRequest, "INVALID_TITLE"},
	{service.ErrInvalidDates, http.StatusBadRequest, "INVALID_DATES"},
	{service.ErrInvalidDateFormat, http.StatusBadRequest, "INVALID_DATE_FORMAT"},
	{service.ErrInvalidDateRange, http.StatusBadRequest, "INVALID_DATE_RANGE"},
	{service.ErrInvalidResource, http.StatusBadRequest, "INVALID_RESOURCE"},
	{service.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS"},
	{service.ErrInvalidDate, http.StatusBadRequest, "INVALID_DATE"},
	{service.ErrInvalidDuration, http.StatusBadRequest, "INVALID_DURATION"},
	{service.ErrInvalidSeries, http.StatusBadRequest, "INVALID_SERIES"},
	{service.ErrInvalidShift, http.StatusBadRequest, "INVALID_SHIFT"},
	{service.ErrBookingNotFound, http.StatusNotFound, "BOOKING_NOT_FOUND"},
	{service.ErrSeriesNotFound, http.StatusNotFound, "SERIES_NOT_FOUND"},
}

func (h *BookingHandler) serviceError(c echo.Context, err error) error {
	var conflict *service.ConflictError
	if errors.As(err, &conflict) {
		resp := conflictResponse{Conflicts: make([]conflictSummary, 0, len(conflict.Conflicts))}
		resp.Error.Code = "BOOKING_CONFLICT"
		resp.Error.Message = "Resource is already booked for the requested time"
		for _, b := range conflict.Conflicts {
			resp.Conflicts = append(resp.Conflicts, conflictSummary{
				ID:         b.ID,
				Title:      b.Title,
				ResourceID: b.ResourceID,
				StartTime:  b.StartTime.UTC().Format(time.RFC3339),
				EndTime:    b.EndTime.UTC().Format(time.RFC3339),
			})
		}
		return c.JSON(http.StatusConflict, resp)
	}
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return fail(c, m.status, m.code, err.Error())
		}
	}
	c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", fmt.Sprintf("unexpected error handling %s", c.Path()))
}
