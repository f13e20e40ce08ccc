// Package router registers the HTTP routes of the booking API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-booking/internal/handler"
	"github.com/iliyamo/gym-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// BookingOptions carries what the booking routes need besides the handler.
type BookingOptions struct {
	JWTSecret  string
	WriteRoles []string
	// Extra middleware applied after authentication, e.g. the rate limiter
	// and the response cache.
	Middleware []echo.MiddlewareFunc
}

// RegisterBookings mounts the booking API under /api/bookings.  Every
// route requires a valid JWT; mutations additionally require one of
// opts.WriteRoles.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, opts BookingOptions) {
	mws := append([]echo.MiddlewareFunc{middleware.JWTAuth(opts.JWTSecret)}, opts.Middleware...)
	g := e.Group("/api/bookings", mws...)
	write := middleware.RequireRole(opts.WriteRoles...)

	g.GET("", h.List)
	g.GET("/resource/:resourceId/availability", h.Availability)
	g.GET("/:id", h.Get)

	g.POST("", h.Create, write)
	g.PUT("/:id", h.Update, write)
	g.PATCH("/:id", h.Update, write) // alias for clients that use PATCH
	g.DELETE("/:id", h.Cancel, write)
	g.POST("/series/:seriesId/shift", h.ShiftSeries, write)
}
