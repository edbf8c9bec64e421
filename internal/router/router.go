package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/handler"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/middleware"
)

// RegisterRoutes wires every endpoint of the service onto the Echo
// instance.  The optional identity middleware runs on all /v1 routes
// so authenticated customers get their bookings linked to their user
// id while guests proceed untouched.  The checkout-facing writes get
// a Redis-backed rate limit; the webhook does not, since the gateway
// controls its own retry budget and throttling it would only burn
// that budget.
func RegisterRoutes(e *echo.Echo, b *handler.BookingHandler, p *handler.PaymentHandler, s *handler.SeatHandler, rdb *redis.Client, jwtSecret string, ratePerMin int) {
    // Health check for load balancers and monitoring.
    e.GET("/healthz", handler.Health)

    v1 := e.Group("/v1")
    v1.Use(middleware.OptionalIdentity(jwtSecret))

    limited := v1.Group("")
    limited.Use(middleware.NewFixedWindow(rdb, ratePerMin))
    limited.POST("/bookings", b.Create)
    limited.POST("/payments/session", p.CreateSession)

    v1.GET("/bookings/:id", b.Get)
    v1.DELETE("/bookings/:id", b.Cancel)
    v1.GET("/bookings/:id/ticket.pdf", b.TicketPDF)

    v1.POST("/payments/webhook", p.Webhook)
    v1.POST("/payments/:id/refund", p.Refund)

    v1.GET("/trips/:id/seats", s.Map)
    v1.GET("/trips/:id/seats/stream", s.Stream)
}
