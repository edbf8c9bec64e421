package handler

import (
    "errors"
    "fmt"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/realtime"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/seatlock"
)

// Seat availability values returned by the map endpoint.
const (
    seatFree = "free"
    seatHeld = "held"
    seatSold = "sold"
)

// SeatHandler exposes the per-trip seat map and the realtime event
// stream.  Availability is derived, not stored: a seat is sold when a
// confirmed booking's seat row is active, held when a pending
// booking's row is active or a live Redis lock exists, free
// otherwise.  The stream is advisory; clients must still expect a
// 409 from booking creation.
type SeatHandler struct {
    TripRepo    *repository.TripRepo
    SeatRepo    *repository.SeatRepo
    BookingRepo *repository.BookingRepo
    Locks       *seatlock.Store
    Events      *realtime.Broadcaster
}

// NewSeatHandler constructs a SeatHandler.
func NewSeatHandler(trips *repository.TripRepo, seats *repository.SeatRepo, bookings *repository.BookingRepo, locks *seatlock.Store, events *realtime.Broadcaster) *SeatHandler {
    if trips == nil || seats == nil || bookings == nil || locks == nil {
        panic("nil dependency passed to NewSeatHandler")
    }
    return &SeatHandler{TripRepo: trips, SeatRepo: seats, BookingRepo: bookings, Locks: locks, Events: events}
}

// Map handles GET /v1/trips/:id/seats.
func (h *SeatHandler) Map(c echo.Context) error {
    tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || tripID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
    }
    ctx := c.Request().Context()
    trip, err := h.TripRepo.GetByID(ctx, tripID)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    seats, err := h.SeatRepo.ByBus(ctx, trip.BusID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    booked, err := h.BookingRepo.ActiveSeatIDs(ctx, tripID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }

    type seatStatus struct {
        SeatID     uint64 `json:"seat_id"`
        SeatNumber string `json:"seat_number"`
        Status     string `json:"status"`
    }
    items := make([]seatStatus, 0, len(seats))
    for _, s := range seats {
        st := seatFree
        switch booked[s.ID] {
        case model.BookingConfirmed:
            st = seatSold
        case model.BookingPendingPayment:
            st = seatHeld
        default:
            // No live booking; a draft elsewhere may still hold the
            // Redis lock between acquire and ledger commit.
            holder, err := h.Locks.Holder(ctx, tripID, s.ID)
            if err == nil && holder != "" {
                st = seatHeld
            }
        }
        items = append(items, seatStatus{SeatID: s.ID, SeatNumber: s.SeatNumber, Status: st})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "trip_id":     tripID,
        "price_cents": trip.PriceCents,
        "seats":       items,
    })
}

// Stream handles GET /v1/trips/:id/seats/stream, re-exposing the
// trip's Redis pub/sub channel as Server-Sent Events.  The connection
// stays open until the client disconnects.
func (h *SeatHandler) Stream(c echo.Context) error {
    tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || tripID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
    }
    ctx := c.Request().Context()
    if _, err := h.TripRepo.GetByID(ctx, tripID); err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    sub := h.Events.Subscribe(ctx, tripID)
    if sub == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "realtime feed unavailable"})
    }
    defer sub.Close()

    resp := c.Response()
    resp.Header().Set(echo.HeaderContentType, "text/event-stream")
    resp.Header().Set("Cache-Control", "no-cache")
    resp.Header().Set("Connection", "keep-alive")
    resp.WriteHeader(http.StatusOK)
    resp.Flush()

    ch := sub.Channel()
    for {
        select {
        case <-ctx.Done():
            return nil
        case msg, ok := <-ch:
            if !ok {
                return nil
            }
            if _, err := fmt.Fprintf(resp, "data: %s\n\n", msg.Payload); err != nil {
                return nil
            }
            resp.Flush()
        }
    }
}
