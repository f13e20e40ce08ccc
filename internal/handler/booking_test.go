package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-booking/internal/handler"
	"github.com/iliyamo/gym-booking/internal/middleware"
	"github.com/iliyamo/gym-booking/internal/repository"
	"github.com/iliyamo/gym-booking/internal/router"
	"github.com/iliyamo/gym-booking/internal/service"
	tf "github.com/iliyamo/gym-booking/internal/testfixtures"
	"github.com/iliyamo/gym-booking/internal/utils"
)

const testSecret = "test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Conflicts []struct {
		ID string `json:"id"`
	} `json:"conflicts"`
}

type bookingJSON struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	ResourceID  string  `json:"resourceId"`
	MemberID    *string `json:"memberId"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	Color       string  `json:"color"`
}

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T) *api {
	t.Helper()
	logger := log.New("test")
	logger.SetOutput(io.Discard)

	svc := service.NewBookingService(repository.NewMemoryBookingRepo(),
		service.WithLogger(logger),
		service.WithClock(tf.NewClock(time.Time{}).Now),
		service.WithIDGenerator(tf.NewIDGenerator("bk").Next),
	)
	e := echo.New()
	e.Logger = logger
	e.HTTPErrorHandler = middleware.ErrorHandler
	router.RegisterRoutes(e)
	router.RegisterBookings(e, handler.NewBookingHandler(svc), router.BookingOptions{
		JWTSecret:  testSecret,
		WriteRoles: []string{"ADMIN", "STAFF", "TRAINER"},
	})
	return &api{t: t, e: e}
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, "user-1", role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func (a *api) do(method, path, role, body string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(a.t, role))
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeBooking(t *testing.T, raw json.RawMessage) bookingJSON {
	t.Helper()
	var b bookingJSON
	require.NoError(t, json.Unmarshal(raw, &b))
	return b
}

const firstBooking = `{"title":"PT with Sam","startTime":"2024-01-10T10:00Z","endTime":"2024-01-10T11:00Z","resourceId":"r1"}`

func TestCreateBooking(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(http.MethodPost, "/api/bookings", "STAFF", firstBooking)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	b := decodeBooking(t, env.Data)
	assert.Equal(t, "bk-1", b.ID)
	assert.Equal(t, "confirmed", b.Status)
	assert.Equal(t, "session", b.Type)
	assert.Equal(t, "#3B82F6", b.Color)
	assert.Equal(t, "2024-01-10T10:00:00Z", b.StartTime)
	assert.Equal(t, "2024-01-10T11:00:00Z", b.EndTime)
	assert.Nil(t, b.MemberID)
}

func TestCreateBookingConflict(t *testing.T) {
	a := newAPI(t)
	rec, _ := a.do(http.MethodPost, "/api/bookings", "STAFF", firstBooking)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := a.do(http.MethodPost, "/api/bookings", "TRAINER",
		`{"title":"Overlap","startTime":"2024-01-10T10:30Z","endTime":"2024-01-10T11:30Z","resourceId":"r1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BOOKING_CONFLICT", env.Error.Code)
	require.Len(t, env.Conflicts, 1)
	assert.Equal(t, "bk-1", env.Conflicts[0].ID)

	rec, _ = a.do(http.MethodPost, "/api/bookings", "ADMIN",
		`{"title":"Touching","startTime":"2024-01-10T11:00Z","endTime":"2024-01-10T12:00Z","resourceId":"r1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateBookingValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		code string
	}{
		{"missing title", `{"startTime":"2024-01-10T10:00Z","endTime":"2024-01-10T11:00Z","resourceId":"r1"}`, "INVALID_TITLE"},
		{"missing dates", `{"title":"x","resourceId":"r1"}`, "INVALID_DATES"},
		{"bad date", `{"title":"x","startTime":"tomorrow","endTime":"2024-01-10T11:00Z","resourceId":"r1"}`, "INVALID_DATE_FORMAT"},
		{"reversed range", `{"title":"x","startTime":"2024-01-10T11:00Z","endTime":"2024-01-10T10:00Z","resourceId":"r1"}`, "INVALID_DATE_RANGE"},
		{"missing resource", `{"title":"x","startTime":"2024-01-10T10:00Z","endTime":"2024-01-10T11:00Z"}`, "INVALID_RESOURCE"},
		{"bad status", `{"title":"x","startTime":"2024-01-10T10:00Z","endTime":"2024-01-10T11:00Z","resourceId":"r1","status":"done"}`, "INVALID_STATUS"},
		{"unknown field", `{"title":"x","startTime":"2024-01-10T10:00Z","endTime":"2024-01-10T11:00Z","resourceId":"r1","room":"a"}`, "INVALID_BODY"},
		{"wrong type", `{"title":42}`, "INVALID_BODY"},
		{"malformed json", `{"title":`, "INVALID_BODY"},
		{"trailing data", `{"title":"x"} {"title":"y"}`, "INVALID_BODY"},
		{"empty body", ``, "INVALID_BODY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newAPI(t)
			rec, env := a.do(http.MethodPost, "/api/bookings", "STAFF", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error, rec.Body.String())
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestAuthGates(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(http.MethodGet, "/api/bookings", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	a.e.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rec, env = a.do(http.MethodPost, "/api/bookings", "MEMBER", firstBooking)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec, _ = a.do(http.MethodGet, "/api/bookings", "MEMBER", "")
	assert.Equal(t, http.StatusOK, rec.Code, "members may read")
}

func TestCancelBooking(t *testing.T) {
	a := newAPI(t)
	_, env := a.do(http.MethodPost, "/api/bookings", "STAFF", firstBooking)
	id := decodeBooking(t, env.Data).ID

	rec, env := a.do(http.MethodDelete, "/api/bookings/"+id, "STAFF", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Message)
	assert.Equal(t, "cancelled", decodeBooking(t, env.Data).Status)

	rec, _ = a.do(http.MethodDelete, "/api/bookings/"+id, "STAFF", "")
	assert.Equal(t, http.StatusOK, rec.Code, "cancel is idempotent")

	rec, env = a.do(http.MethodGet, "/api/bookings/"+id, "MEMBER", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeBooking(t, env.Data).Status)

	var page struct {
		Bookings []bookingJSON `json:"bookings"`
		Total    int           `json:"total"`
	}
	_, env = a.do(http.MethodGet, "/api/bookings", "MEMBER", "")
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Bookings)
	assert.Equal(t, 0, page.Total)

	_, env = a.do(http.MethodGet, "/api/bookings?status=all", "MEMBER", "")
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Bookings, 1)

	rec, env = a.do(http.MethodDelete, "/api/bookings/missing", "STAFF", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BOOKING_NOT_FOUND", env.Error.Code)
}

func TestUpdateBooking(t *testing.T) {
	a := newAPI(t)
	_, env := a.do(http.MethodPost, "/api/bookings", "STAFF", firstBooking)
	id := decodeBooking(t, env.Data).ID
	_, _ = a.do(http.MethodPost, "/api/bookings", "STAFF",
		`{"title":"Later","startTime":"2024-01-10T12:00Z","endTime":"2024-01-10T13:00Z","resourceId":"r1"}`)

	rec, env := a.do(http.MethodPut, "/api/bookings/"+id, "STAFF", `{"title":"Renamed","memberId":"m-9"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decodeBooking(t, env.Data)
	assert.Equal(t, "Renamed", b.Title)
	require.NotNil(t, b.MemberID)
	assert.Equal(t, "m-9", *b.MemberID)
	assert.Equal(t, "2024-01-10T10:00:00Z", b.StartTime)

	rec, env = a.do(http.MethodPatch, "/api/bookings/"+id, "STAFF", `{"endTime":"2024-01-10T12:30:00Z"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BOOKING_CONFLICT", env.Error.Code)

	rec, _ = a.do(http.MethodPatch, "/api/bookings/"+id, "STAFF", `{"endTime":"2024-01-10T12:00:00Z"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = a.do(http.MethodPut, "/api/bookings/missing", "STAFF", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BOOKING_NOT_FOUND", env.Error.Code)

	rec, env = a.do(http.MethodPut, "/api/bookings/"+id, "STAFF", `{"id":"other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_BODY", env.Error.Code, "id is immutable")
}

func TestListBookings(t *testing.T) {
	a := newAPI(t)
	for _, body := range []string{
		`{"title":"b","startTime":"2024-01-10T12:00Z","endTime":"2024-01-10T13:00Z","resourceId":"r1","memberId":"m1"}`,
		`{"title":"a","startTime":"2024-01-10T08:00Z","endTime":"2024-01-10T09:00Z","resourceId":"r1"}`,
		`{"title":"c","startTime":"2024-01-11T08:00Z","endTime":"2024-01-11T09:00Z","resourceId":"r2"}`,
	} {
		rec, _ := a.do(http.MethodPost, "/api/bookings", "STAFF", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	var page struct {
		Bookings   []bookingJSON `json:"bookings"`
		Total      int           `json:"total"`
		Page       int           `json:"page"`
		Limit      int           `json:"limit"`
		TotalPages int           `json:"totalPages"`
	}
	rec, env := a.do(http.MethodGet, "/api/bookings?resourceId=r1&limit=1&page=2", "MEMBER", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Bookings, 1)
	assert.Equal(t, "b", page.Bookings[0].Title)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 1, page.Limit)
	assert.Equal(t, 2, page.TotalPages)

	_, env = a.do(http.MethodGet, "/api/bookings?memberId=m1", "MEMBER", "")
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Bookings, 1)
	assert.Equal(t, "b", page.Bookings[0].Title)

	_, env = a.do(http.MethodGet, "/api/bookings?startDate=2024-01-10&endDate=2024-01-10", "MEMBER", "")
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Bookings, 2)

	rec, env = a.do(http.MethodGet, "/api/bookings?status=pending", "MEMBER", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STATUS", env.Error.Code)

	rec, env = a.do(http.MethodGet, "/api/bookings?startDate=someday", "MEMBER", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DATE_FORMAT", env.Error.Code)

	rec, env = a.do(http.MethodGet, "/api/bookings?page=288230376151711745", "MEMBER", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Bookings)
	assert.Equal(t, 3, page.Total)
}

func TestAvailabilityEndpoint(t *testing.T) {
	a := newAPI(t)
	rec, _ := a.do(http.MethodPost, "/api/bookings", "STAFF", firstBooking)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := a.do(http.MethodGet, "/api/bookings/resource/r1/availability?date=2024-01-10", "MEMBER", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var av struct {
		Date           string `json:"date"`
		ResourceID     string `json:"resourceId"`
		Duration       int    `json:"duration"`
		AvailableSlots []struct {
			StartTime string `json:"startTime"`
			EndTime   string `json:"endTime"`
			Available bool   `json:"available"`
		} `json:"availableSlots"`
		BookedSlots []struct {
			BookingID string `json:"bookingId"`
			Title     string `json:"title"`
			Available bool   `json:"available"`
		} `json:"bookedSlots"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &av))
	assert.Equal(t, "2024-01-10", av.Date)
	assert.Equal(t, "r1", av.ResourceID)
	assert.Equal(t, 60, av.Duration)
	require.NotEmpty(t, av.AvailableSlots)
	assert.Equal(t, "2024-01-10T08:00:00Z", av.AvailableSlots[0].StartTime)
	assert.Equal(t, "2024-01-10T09:00:00Z", av.AvailableSlots[0].EndTime)
	assert.True(t, av.AvailableSlots[0].Available)
	require.Len(t, av.BookedSlots, 1)
	assert.Equal(t, "bk-1", av.BookedSlots[0].BookingID)
	assert.Equal(t, "PT with Sam", av.BookedSlots[0].Title)
	assert.False(t, av.BookedSlots[0].Available)

	rec, env = a.do(http.MethodGet, "/api/bookings/resource/r1/availability?date=2024-01-10&duration=30", "MEMBER", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &av))
	assert.Equal(t, 30, av.Duration)
	assert.Len(t, av.AvailableSlots, 26)

	rec, env = a.do(http.MethodGet, "/api/bookings/resource/r1/availability", "MEMBER", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DATE", env.Error.Code)

	rec, env = a.do(http.MethodGet, "/api/bookings/resource/r1/availability?date=2024-01-10&duration=abc", "MEMBER", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DURATION", env.Error.Code)

	rec, env = a.do(http.MethodGet, "/api/bookings/resource/r1/availability?date=2024-01-10&duration=-5", "MEMBER", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DURATION", env.Error.Code)

	rec, env = a.do(http.MethodGet, "/api/bookings/resource/r1/availability?date=2024-01-10&duration=9007199254741052", "MEMBER", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DURATION", env.Error.Code)

	rec, env = a.do(http.MethodGet, "/api/bookings/resource/r1/availability?date=2024-01-10&duration=900", "MEMBER", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DURATION", env.Error.Code)
}

func TestSeriesShiftEndpoint(t *testing.T) {
	a := newAPI(t)
	for _, body := range []string{
		`{"title":"Yoga","startTime":"2024-01-10T10:00Z","endTime":"2024-01-10T11:00Z","resourceId":"r1","seriesId":"yoga"}`,
		`{"title":"Yoga","startTime":"2024-01-17T10:00Z","endTime":"2024-01-17T11:00Z","resourceId":"r1","seriesId":"yoga"}`,
		`{"title":"Spin","startTime":"2024-01-17T12:00Z","endTime":"2024-01-17T13:00Z","resourceId":"r1"}`,
	} {
		rec, _ := a.do(http.MethodPost, "/api/bookings", "STAFF", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec, env := a.do(http.MethodPost, "/api/bookings/series/yoga/shift", "STAFF", `{"minutes":60}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var shifted struct {
		SeriesID string        `json:"seriesId"`
		Bookings []bookingJSON `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &shifted))
	assert.Equal(t, "yoga", shifted.SeriesID)
	require.Len(t, shifted.Bookings, 2)
	assert.Equal(t, "2024-01-10T11:00:00Z", shifted.Bookings[0].StartTime)
	assert.Equal(t, "2024-01-17T12:00:00Z", shifted.Bookings[1].EndTime)

	rec, env = a.do(http.MethodPost, "/api/bookings/series/yoga/shift", "STAFF", `{"minutes":30}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BOOKING_CONFLICT", env.Error.Code)
	require.Len(t, env.Conflicts, 1)
	assert.Equal(t, "bk-3", env.Conflicts[0].ID)

	rec, env = a.do(http.MethodPost, "/api/bookings/series/yoga/shift", "STAFF", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SHIFT", env.Error.Code)

	rec, env = a.do(http.MethodPost, "/api/bookings/series/pilates/shift", "STAFF", `{"minutes":30}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SERIES_NOT_FOUND", env.Error.Code)

	rec, env = a.do(http.MethodPost, "/api/bookings/series/yoga/shift", "MEMBER", `{"minutes":30}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestGetBookingNotFound(t *testing.T) {
	a := newAPI(t)
	rec, env := a.do(http.MethodGet, "/api/bookings/nope", "MEMBER", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BOOKING_NOT_FOUND", env.Error.Code)
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	a := newAPI(t)

	rec, _ := a.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec, env := a.do(http.MethodGet, "/api/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
