package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
)

// TripRepo provides read access to trips and the two conditional bulk
// updates used by the status job.  Trips are created and edited by the
// itinerary-authoring side of the system, which is not part of this
// service; nothing here inserts or deletes trip rows.
type TripRepo struct {
    db *sql.DB
}

// NewTripRepo returns a new TripRepo bound to the provided database.
func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// that span multiple repositories.
func (r *TripRepo) DB() *sql.DB { return r.db }

// GetByID loads a single trip.  Returns ErrNotFound when no row exists.
func (r *TripRepo) GetByID(ctx context.Context, id uint64) (*model.Trip, error) {
    const q = `SELECT id, bus_id, route_id, start_time, end_time, price_cents, status FROM trips WHERE id = ?`
    var t model.Trip
    err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.BusID, &t.RouteID, &t.StartTime, &t.EndTime, &t.PriceCents, &t.Status)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &t, nil
}

// AdvanceScheduledToOngoing moves every scheduled trip whose departure
// has passed (but whose arrival has not) to ongoing.  The status
// predicate makes the update idempotent: a trip already advanced by a
// previous tick matches zero rows.  Returns the number of rows moved.
func (r *TripRepo) AdvanceScheduledToOngoing(ctx context.Context, now time.Time) (int64, error) {
    const q = `UPDATE trips SET status = ? WHERE status = ? AND start_time <= ? AND end_time > ?`
    res, err := r.db.ExecContext(ctx, q, model.TripOngoing, model.TripScheduled, now.UTC(), now.UTC())
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// AdvanceOngoingToCompleted moves every ongoing trip whose arrival has
// passed to completed.  Cancelled trips are never touched because the
// predicate only matches ongoing rows.
func (r *TripRepo) AdvanceOngoingToCompleted(ctx context.Context, now time.Time) (int64, error) {
    const q = `UPDATE trips SET status = ? WHERE status = ? AND end_time <= ?`
    res, err := r.db.ExecContext(ctx, q, model.TripCompleted, model.TripOngoing, now.UTC())
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}
