package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorBody is the error half of the API envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope is written for every failed request.
type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

var statusCodes = map[int]string{
	http.StatusBadRequest:            "BAD_REQUEST",
	http.StatusUnauthorized:          "UNAUTHORIZED",
	http.StatusForbidden:             "FORBIDDEN",
	http.StatusNotFound:              "NOT_FOUND",
	http.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
	http.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
	http.StatusUnsupportedMediaType:  "UNSUPPORTED_MEDIA_TYPE",
	http.StatusTooManyRequests:       "TOO_MANY_REQUESTS",
	http.StatusServiceUnavailable:    "SERVICE_UNAVAILABLE",
}

// ErrorHandler renders errors that escape handlers (echo routing errors,
// auth rejections, panics recovered upstream) in the API envelope.
// Internal error details are logged, never returned.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := ErrorBody{Code: "INTERNAL_ERROR", Message: "internal server error"}

	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		if code, ok := statusCodes[status]; ok {
			body.Code = code
		}
		if m, ok := he.Message.(string); ok {
			body.Message = m
		} else {
			body.Message = http.StatusText(status)
		}
	}
	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, ErrorEnvelope{Success: false, Error: body})
}
