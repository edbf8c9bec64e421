package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
)

// mysqlDuplicateEntry is the server error number MySQL reports when an
// insert violates a unique key.
const mysqlDuplicateEntry = 1062

// BookingRepo provides data access to the bookings and booking_seats
// tables.  Booking rows are a financial record and are never deleted;
// cancellation flips the status and nulls booking_seats.active so the
// (trip_id, seat_id, active) unique key frees the seat for resale.
// All timestamps are UTC; callers must pass UTC instants.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// that span multiple repositories.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// SeatsOnBusTx verifies that every requested seat belongs to the given
// bus and returns seatID -> seatNumber for the ones that do.  Callers
// compare the map size against the request to detect foreign seats.
func (r *BookingRepo) SeatsOnBusTx(ctx context.Context, tx *sql.Tx, busID uint64, seatIDs []uint64) (map[uint64]string, error) {
    if len(seatIDs) == 0 {
        return map[uint64]string{}, nil
    }
    query := `SELECT id, seat_number FROM seats WHERE bus_id = ? AND id IN (`
    args := make([]interface{}, 0, len(seatIDs)+1)
    args = append(args, busID)
    for i, id := range seatIDs {
        if i > 0 {
            query += ","
        }
        query += "?"
        args = append(args, id)
    }
    query += ")"
    rows, err := tx.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    found := make(map[uint64]string, len(seatIDs))
    for rows.Next() {
        var id uint64
        var num string
        if err := rows.Scan(&id, &num); err != nil {
            return nil, err
        }
        found[id] = num
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return found, nil
}

// CreateTx inserts a booking and its seats in the provided transaction.
// The booking ID and each seat's BookingID are filled in on success.
// All seats succeed or none do: a duplicate-key violation on any seat
// row (another live booking already holds it) returns ErrSeatTaken and
// the caller rolls back, which also removes the booking row.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking, seats []model.BookingSeat) error {
    const ins = `INSERT INTO bookings
        (user_id, trip_id, route_id, customer_name, customer_email, customer_phone, price_cents, status, lock_token, created_at, expires_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, ins,
        nullableID(b.UserID), b.TripID, b.RouteID,
        b.CustomerName, b.CustomerEmail, b.CustomerPhone,
        b.PriceCents, b.Status, b.LockToken,
        b.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
        b.ExpiresAt.UTC().Format("2006-01-02 15:04:05"),
    )
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)

    if len(seats) == 0 {
        return nil
    }
    query := `INSERT INTO booking_seats (booking_id, trip_id, seat_id, ticket_code, active) VALUES `
    args := make([]interface{}, 0, len(seats)*4)
    for i := range seats {
        seats[i].BookingID = b.ID
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, 1)"
        args = append(args, seats[i].BookingID, seats[i].TripID, seats[i].SeatID, seats[i].TicketCode)
    }
    if _, err := tx.ExecContext(ctx, query, args...); err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
            return ErrSeatTaken
        }
        return err
    }
    return nil
}

// GetByID loads a single booking.  Returns ErrNotFound when no row exists.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
    const q = `SELECT id, user_id, trip_id, route_id, customer_name, customer_email, customer_phone,
                      price_cents, status, lock_token, created_at, expires_at
               FROM bookings WHERE id = ?`
    var b model.Booking
    var userID sql.NullInt64
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &b.ID, &userID, &b.TripID, &b.RouteID,
        &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
        &b.PriceCents, &b.Status, &b.LockToken, &b.CreatedAt, &b.ExpiresAt,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if userID.Valid {
        uid := uint64(userID.Int64)
        b.UserID = &uid
    }
    return &b, nil
}

// SeatsByBooking returns the seat rows of a booking together with the
// seat numbers, for ticket rendering and lock release.
func (r *BookingRepo) SeatsByBooking(ctx context.Context, bookingID uint64) ([]BookedSeat, error) {
    const q = `SELECT bs.seat_id, s.seat_number, bs.ticket_code
               FROM booking_seats bs JOIN seats s ON s.id = bs.seat_id
               WHERE bs.booking_id = ?
               ORDER BY s.seat_number`
    rows, err := r.db.QueryContext(ctx, q, bookingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []BookedSeat
    for rows.Next() {
        var s BookedSeat
        if err := rows.Scan(&s.SeatID, &s.SeatNumber, &s.TicketCode); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// BookedSeat is one seat of a booking as returned by SeatsByBooking.
type BookedSeat struct {
    SeatID     uint64 `json:"seat_id"`
    SeatNumber string `json:"seat_number"`
    TicketCode string `json:"ticket_code"`
}

// ConfirmTx transitions a booking from pendingPayment to confirmed.
// The status predicate makes the call safe under replayed webhooks:
// zero affected rows means the booking was not pending, and the caller
// decides whether that is a replay or a conflict.
func (r *BookingRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (bool, error) {
    const q = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
    res, err := tx.ExecContext(ctx, q, model.BookingConfirmed, bookingID, model.BookingPendingPayment)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// CancelTx cancels a pendingPayment booking and deactivates its seat
// rows, returning the seat IDs that were freed.  Used both for
// explicit cancellation and for lazy expiry of a single booking.
// Cancelling a booking that is no longer pending affects zero rows
// and returns ErrConflict so callers can distinguish the no-op.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]uint64, error) {
    const upd = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
    res, err := tx.ExecContext(ctx, upd, model.BookingCancelled, bookingID, model.BookingPendingPayment)
    if err != nil {
        return nil, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, err
    }
    if n == 0 {
        return nil, ErrConflict
    }
    rows, err := tx.QueryContext(ctx, `SELECT seat_id FROM booking_seats WHERE booking_id = ?`, bookingID)
    if err != nil {
        return nil, err
    }
    var seatIDs []uint64
    for rows.Next() {
        var sid uint64
        if scanErr := rows.Scan(&sid); scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        seatIDs = append(seatIDs, sid)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    if _, err := tx.ExecContext(ctx, `UPDATE booking_seats SET active = NULL WHERE booking_id = ?`, bookingID); err != nil {
        return nil, err
    }
    return seatIDs, nil
}

// ExpiredSeat identifies one seat freed by the expiry sweep, with
// enough context to release its lock and publish an unlock event.
type ExpiredSeat struct {
    BookingID uint64
    TripID    uint64
    SeatID    uint64
    LockToken string
}

// ExpireStalePendingTx cancels every pendingPayment booking whose hold
// window has passed and deactivates their seat rows.  It returns the
// freed seats so the caller can release the corresponding locks.  The
// sweep is idempotent: already-cancelled bookings do not match the
// status predicate, so re-running it is a no-op.
func (r *BookingRepo) ExpireStalePendingTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]ExpiredSeat, error) {
    const sel = `SELECT bs.booking_id, bs.trip_id, bs.seat_id, b.lock_token
                 FROM booking_seats bs JOIN bookings b ON b.id = bs.booking_id
                 WHERE b.status = ? AND b.expires_at < ?`
    cutoff := now.UTC()
    rows, err := tx.QueryContext(ctx, sel, model.BookingPendingPayment, cutoff)
    if err != nil {
        return nil, err
    }
    var freed []ExpiredSeat
    for rows.Next() {
        var e ExpiredSeat
        if scanErr := rows.Scan(&e.BookingID, &e.TripID, &e.SeatID, &e.LockToken); scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        freed = append(freed, e)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    if len(freed) == 0 {
        return []ExpiredSeat{}, nil
    }
    const deact = `UPDATE booking_seats bs JOIN bookings b ON b.id = bs.booking_id
                   SET bs.active = NULL
                   WHERE b.status = ? AND b.expires_at < ?`
    if _, err := tx.ExecContext(ctx, deact, model.BookingPendingPayment, cutoff); err != nil {
        return nil, err
    }
    const cancel = `UPDATE bookings SET status = ? WHERE status = ? AND expires_at < ?`
    if _, err := tx.ExecContext(ctx, cancel, model.BookingCancelled, model.BookingPendingPayment, cutoff); err != nil {
        return nil, err
    }
    return freed, nil
}

// ActiveSeatIDs returns the seat IDs referenced by live (pending or
// confirmed) bookings for a trip, used to derive seat availability.
func (r *BookingRepo) ActiveSeatIDs(ctx context.Context, tripID uint64) (map[uint64]string, error) {
    const q = `SELECT bs.seat_id, b.status
               FROM booking_seats bs JOIN bookings b ON b.id = bs.booking_id
               WHERE bs.trip_id = ? AND bs.active = 1`
    rows, err := r.db.QueryContext(ctx, q, tripID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make(map[uint64]string)
    for rows.Next() {
        var sid uint64
        var status string
        if err := rows.Scan(&sid, &status); err != nil {
            return nil, err
        }
        out[sid] = status
    }
    return out, rows.Err()
}

// nullableID converts an optional user ID into a driver-friendly value.
func nullableID(id *uint64) interface{} {
    if id == nil {
        return nil
    }
    return *id
}
