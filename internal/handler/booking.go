package handler

import (
    "bytes"
    "context"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/middleware"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/realtime"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/seatlock"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/ticket"
)

// BookingHandler owns the booking lifecycle endpoints.  Seat
// reservation is two-layered: the Redis lock is the fast-path guard
// that keeps concurrent customers off the same seat, and the
// (trip_id, seat_id, active) unique key in the ledger is the hard
// guard that holds even if the lock store failed.  Every ledger
// mutation runs inside a transaction owned here.
type BookingHandler struct {
    TripRepo    *repository.TripRepo
    BookingRepo *repository.BookingRepo
    Locks       *seatlock.Store
    Events      *realtime.Broadcaster
    Sessions    SessionVoider
    HoldWindow  time.Duration
}

// SessionVoider invalidates a dead booking's open payment sessions.
// Satisfied by *payment.SessionVoider.
type SessionVoider interface {
    VoidPending(ctx context.Context, bookingID uint64)
}

// NewBookingHandler constructs a BookingHandler.  All repositories
// and the lock store must be non-nil; sessions may be nil when no
// payment gateway is wired.
func NewBookingHandler(trips *repository.TripRepo, bookings *repository.BookingRepo, locks *seatlock.Store, events *realtime.Broadcaster, sessions SessionVoider, holdWindow time.Duration) *BookingHandler {
    if trips == nil || bookings == nil || locks == nil {
        panic("nil dependency passed to NewBookingHandler")
    }
    if holdWindow <= 0 {
        holdWindow = 15 * time.Minute
    }
    return &BookingHandler{TripRepo: trips, BookingRepo: bookings, Locks: locks, Events: events, Sessions: sessions, HoldWindow: holdWindow}
}

// createBookingRequest is the POST /v1/bookings body.
type createBookingRequest struct {
    TripID   uint64   `json:"trip_id"`
    RouteID  uint64   `json:"route_id"`
    SeatIDs  []uint64 `json:"seat_ids"`
    Customer struct {
        Name  string `json:"name"`
        Email string `json:"email"`
        Phone string `json:"phone"`
    } `json:"customer"`
}

// Create handles POST /v1/bookings.  It acquires a Redis lock per
// requested seat, then creates the booking and its seats in one
// ledger transaction.  If any seat is locked by someone else or
// already part of a live booking it returns 409 and releases every
// lock it took; the client picks different seats and retries.
func (h *BookingHandler) Create(c echo.Context) error {
    var body createBookingRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.TripID == 0 || len(body.SeatIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "trip_id and seat_ids are required"})
    }
    if body.Customer.Name == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer name is required"})
    }
    if body.Customer.Email == "" && body.Customer.Phone == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer email or phone is required"})
    }
    // deduplicate seat IDs to avoid double-locking one seat
    unique := make([]uint64, 0, len(body.SeatIDs))
    seen := make(map[uint64]struct{})
    for _, id := range body.SeatIDs {
        if id == 0 {
            continue
        }
        if _, ok := seen[id]; !ok {
            seen[id] = struct{}{}
            unique = append(unique, id)
        }
    }
    if len(unique) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "no valid seat IDs provided"})
    }

    ctx := c.Request().Context()
    trip, err := h.TripRepo.GetByID(ctx, body.TripID)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    now := time.Now().UTC()
    if trip.Status != model.TripScheduled || !trip.DepartsAfter(now) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "trip is not open for booking"})
    }
    if body.RouteID != 0 && body.RouteID != trip.RouteID {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "route does not match trip"})
    }

    // Expire stale pending bookings first so seats freed by the hold
    // window are sellable on this very request, not one sweep later.
    if err := h.expireStale(c, now); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cleanup expired bookings"})
    }

    token, err := seatlock.NewToken()
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate hold token"})
    }

    // Fast-path guard: one lock per seat, all-or-nothing. The lock
    // TTL equals the hold window, so an abandoned attempt frees the
    // seats by itself.
    acquired := make([]uint64, 0, len(unique))
    rollbackLocks := func() {
        for _, sid := range acquired {
            _, _ = h.Locks.Release(ctx, trip.ID, sid, token)
        }
    }
    for _, sid := range unique {
        ok, err := h.Locks.Acquire(ctx, trip.ID, sid, token, h.HoldWindow)
        if err != nil {
            rollbackLocks()
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "seat lock store unavailable"})
        }
        if !ok {
            rollbackLocks()
            return c.JSON(http.StatusConflict, echo.Map{
                "error":       "some seats are unavailable",
                "unavailable": []uint64{sid},
            })
        }
        acquired = append(acquired, sid)
    }

    booking, seats, err := h.createInLedger(c, trip, unique, body, token, now)
    if err != nil {
        rollbackLocks()
        if errors.Is(err, repository.ErrSeatTaken) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "some seats are already booked"})
        }
        if errors.Is(err, errSeatNotOnBus) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat does not belong to this trip's bus"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking"})
    }

    for _, sid := range unique {
        if h.Events != nil {
            h.Events.Publish(ctx, trip.ID, realtime.EventSeatLocked, sid)
        }
    }

    return c.JSON(http.StatusCreated, echo.Map{
        "booking_id":  booking.ID,
        "status":      booking.Status,
        "expires_at":  booking.ExpiresAt.Format(time.RFC3339),
        "price_cents": booking.PriceCents,
        "seats":       seats,
    })
}

// errSeatNotOnBus distinguishes a validation failure from a conflict.
var errSeatNotOnBus = errors.New("seat not on bus")

// createInLedger runs the booking-creation transaction: verify the
// seats belong to the trip's bus, then insert booking plus seats.
// All seats succeed or none do.
func (h *BookingHandler) createInLedger(c echo.Context, trip *model.Trip, seatIDs []uint64, body createBookingRequest, token string, now time.Time) (*model.Booking, []repository.BookedSeat, error) {
    ctx := c.Request().Context()
    tx, err := h.BookingRepo.DB().BeginTx(ctx, nil)
    if err != nil {
        return nil, nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    onBus, err := h.BookingRepo.SeatsOnBusTx(ctx, tx, trip.BusID, seatIDs)
    if err != nil {
        return nil, nil, err
    }
    if len(onBus) != len(seatIDs) {
        return nil, nil, errSeatNotOnBus
    }

    booking := &model.Booking{
        UserID:        middleware.UserID(c),
        TripID:        trip.ID,
        RouteID:       trip.RouteID,
        CustomerName:  body.Customer.Name,
        CustomerEmail: body.Customer.Email,
        CustomerPhone: body.Customer.Phone,
        PriceCents:    trip.PriceCents * uint32(len(seatIDs)),
        Status:        model.BookingPendingPayment,
        LockToken:     token,
        CreatedAt:     now,
        ExpiresAt:     now.Add(h.HoldWindow),
    }
    seatRows := make([]model.BookingSeat, 0, len(seatIDs))
    out := make([]repository.BookedSeat, 0, len(seatIDs))
    for _, sid := range seatIDs {
        code, err := ticket.NewCode()
        if err != nil {
            return nil, nil, err
        }
        seatRows = append(seatRows, model.BookingSeat{TripID: trip.ID, SeatID: sid, TicketCode: code})
        out = append(out, repository.BookedSeat{SeatID: sid, SeatNumber: onBus[sid], TicketCode: code})
    }
    if err := h.BookingRepo.CreateTx(ctx, tx, booking, seatRows); err != nil {
        return nil, nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, nil, err
    }
    committed = true
    return booking, out, nil
}

// expireStale runs the global expiry sweep inline, releasing the
// freed seats' locks and publishing unlock events.
func (h *BookingHandler) expireStale(c echo.Context, now time.Time) error {
    ctx := c.Request().Context()
    tx, err := h.BookingRepo.DB().BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    freed, err := h.BookingRepo.ExpireStalePendingTx(ctx, tx, now)
    if err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    expired := make(map[uint64]struct{})
    for _, f := range freed {
        expired[f.BookingID] = struct{}{}
        _, _ = h.Locks.Release(ctx, f.TripID, f.SeatID, f.LockToken)
        if h.Events != nil {
            h.Events.Publish(ctx, f.TripID, realtime.EventSeatUnlocked, f.SeatID)
        }
    }
    if h.Sessions != nil {
        for id := range expired {
            h.Sessions.VoidPending(ctx, id)
        }
    }
    return nil
}

// Get handles GET /v1/bookings/:id.  A pending booking past its hold
// window is lazily cancelled here, so readers never observe a
// pendingPayment booking that is actually dead.
func (h *BookingHandler) Get(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    ctx := c.Request().Context()
    b, err := h.BookingRepo.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if b.IsExpired(time.Now().UTC()) {
        if err := h.cancel(c, b); err != nil && !errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to expire booking"})
        }
        b.Status = model.BookingCancelled
    }
    seats, err := h.BookingRepo.SeatsByBooking(ctx, b.ID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "booking_id":  b.ID,
        "trip_id":     b.TripID,
        "route_id":    b.RouteID,
        "status":      b.Status,
        "price_cents": b.PriceCents,
        "expires_at":  b.ExpiresAt.Format(time.RFC3339),
        "seats":       seats,
    })
}

// Cancel handles DELETE /v1/bookings/:id.  Only pendingPayment
// bookings can be cancelled; confirmed tickets and already-cancelled
// bookings return 409.
func (h *BookingHandler) Cancel(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    ctx := c.Request().Context()
    b, err := h.BookingRepo.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if err := h.cancel(c, b); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not pending"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
    }
    return c.NoContent(http.StatusNoContent)
}

// cancel transitions one pending booking to cancelled and releases
// its seat locks.
func (h *BookingHandler) cancel(c echo.Context, b *model.Booking) error {
    ctx := c.Request().Context()
    tx, err := h.BookingRepo.DB().BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    seatIDs, err := h.BookingRepo.CancelTx(ctx, tx, b.ID)
    if err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    for _, sid := range seatIDs {
        _, _ = h.Locks.Release(ctx, b.TripID, sid, b.LockToken)
        if h.Events != nil {
            h.Events.Publish(ctx, b.TripID, realtime.EventSeatUnlocked, sid)
        }
    }
    // The booking is dead; any checkout session still open against it
    // must not be payable.
    if h.Sessions != nil {
        h.Sessions.VoidPending(ctx, b.ID)
    }
    return nil
}

// TicketPDF handles GET /v1/bookings/:id/ticket.pdf.  Only confirmed
// bookings have tickets; pending and cancelled ones return 409.
func (h *BookingHandler) TicketPDF(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    ctx := c.Request().Context()
    b, err := h.BookingRepo.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if b.Status != model.BookingConfirmed {
        return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not confirmed"})
    }
    trip, err := h.TripRepo.GetByID(ctx, b.TripID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    seats, err := h.BookingRepo.SeatsByBooking(ctx, b.ID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    var buf bytes.Buffer
    if err := ticket.RenderPDF(&buf, b, trip, seats); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to render ticket"})
    }
    return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}
