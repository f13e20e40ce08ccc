package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-booking/internal/middleware"
)

// successResponse wraps payloads returned by booking endpoints.
type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// conflictResponse is the 409 body; it lists the bookings that overlap.
type conflictResponse struct {
	middleware.ErrorEnvelope
	Conflicts []conflictSummary `json:"conflicts"`
}

type conflictSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ResourceID string `json:"resourceId"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, successResponse{Success: true, Data: data})
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, middleware.ErrorEnvelope{
		Success: false,
		Error:   middleware.ErrorBody{Code: code, Message: message},
	})
}
