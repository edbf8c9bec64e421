package model

import "time"

// Booking status values.  A booking is born pendingPayment and ends
// in exactly one of the two terminal states: confirmed (paid) or
// cancelled (expired or explicitly abandoned).  A failed payment
// attempt does not transition the booking; it stays pendingPayment
// and may be retried until it expires.
const (
    BookingPendingPayment = "pending_payment"
    BookingConfirmed      = "confirmed"
    BookingCancelled      = "cancelled"
)

// Booking is the durable ledger record of a seat purchase attempt.
// Bookings are never physically deleted; they are a financial record.
// CustomerName/Email/Phone are a snapshot taken at creation, not a
// live reference to a user row, so guest checkout works the same way
// as an authenticated one.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – optional authenticated user (nil for guests).
//  TripID        – trip being booked.
//  RouteID       – route of the trip, denormalized for ticketing.
//  CustomerName  – contact snapshot.
//  CustomerEmail – contact snapshot (may be empty).
//  CustomerPhone – contact snapshot (may be empty).
//  PriceCents    – total price for all seats in the booking.
//  Status        – one of the Booking* constants above.
//  LockToken     – holder token of the Redis seat locks backing this
//                  booking; lets later lifecycle stages release the
//                  locks owner-checked.
//  CreatedAt     – creation timestamp (UTC).
//  ExpiresAt     – end of the payment hold window (UTC).
type Booking struct {
    ID            uint64    // bookings.id
    UserID        *uint64   // bookings.user_id (nullable)
    TripID        uint64    // bookings.trip_id
    RouteID       uint64    // bookings.route_id
    CustomerName  string    // bookings.customer_name
    CustomerEmail string    // bookings.customer_email
    CustomerPhone string    // bookings.customer_phone
    PriceCents    uint32    // bookings.price_cents
    Status        string    // bookings.status
    LockToken     string    // bookings.lock_token
    CreatedAt     time.Time // bookings.created_at
    ExpiresAt     time.Time // bookings.expires_at
}

// IsExpired reports whether a pendingPayment booking has outlived its
// hold window.  This is the pull-based twin of the Redis lock TTL:
// callers that read a pending booking must treat an expired one as
// cancelled even before the sweep job has run.
func (b *Booking) IsExpired(now time.Time) bool {
    return b.Status == BookingPendingPayment && !b.ExpiresAt.After(now)
}

// BookingSeat links a booking to one seat on the trip and carries the
// per-seat ticket code.  The Active column is 1 while the booking is
// live (pending or confirmed) and NULL once it is cancelled; a unique
// key over (trip_id, seat_id, active) is the authoritative guard
// against selling the same seat twice.
//
// Fields:
//  ID         – primary key identifier.
//  BookingID  – owning booking.
//  TripID     – trip, repeated here to carry the uniqueness guard.
//  SeatID     – seat sold.
//  TicketCode – per-seat code printed on the ticket.
//  Active     – nil once the booking is cancelled.
type BookingSeat struct {
    ID         uint64 // booking_seats.id
    BookingID  uint64 // booking_seats.booking_id
    TripID     uint64 // booking_seats.trip_id
    SeatID     uint64 // booking_seats.seat_id
    TicketCode string // booking_seats.ticket_code
    Active     *bool  // booking_seats.active (nullable)
}
