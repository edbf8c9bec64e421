package repository

import (
    "context"
    "database/sql"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
)

// SeatRepo provides read access to the seats table.  Seat rows are
// created by bus administration, which is outside this service.
type SeatRepo struct {
    db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// ByBus lists every seat of a bus, ordered by seat number.
func (r *SeatRepo) ByBus(ctx context.Context, busID uint64) ([]model.Seat, error) {
    const q = `SELECT id, bus_id, seat_number FROM seats WHERE bus_id = ? ORDER BY seat_number`
    rows, err := r.db.QueryContext(ctx, q, busID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Seat
    for rows.Next() {
        var s model.Seat
        if err := rows.Scan(&s.ID, &s.BusID, &s.SeatNumber); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}
