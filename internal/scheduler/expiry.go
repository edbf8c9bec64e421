package scheduler

import (
    "context"
    "database/sql"
    "log"
    "time"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/realtime"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
)

// SeatLockReleaser releases a seat lock owner-checked.  Satisfied by
// *seatlock.Store.
type SeatLockReleaser interface {
    Release(ctx context.Context, tripID, seatID uint64, holder string) (bool, error)
}

// SeatEventPublisher emits advisory seat events.  Satisfied by
// *realtime.Broadcaster.
type SeatEventPublisher interface {
    Publish(ctx context.Context, tripID uint64, event string, seatID uint64)
}

// SessionVoider invalidates a dead booking's open payment sessions.
// Satisfied by *payment.SessionVoider.
type SessionVoider interface {
    VoidPending(ctx context.Context, bookingID uint64)
}

// ExpiryJob is the sweep behind the lazy hold window: it cancels
// pendingPayment bookings whose expires_at has passed, frees their
// seat rows, releases whatever locks are still owned by them, and
// publishes unlock events.  Redis TTL normally beats this job to the
// lock itself; the sweep is what keeps the ledger correct when it
// does not (for example after a lock-store failure).
type ExpiryJob struct {
    db       *sql.DB
    bookings *repository.BookingRepo
    locks    SeatLockReleaser
    events   SeatEventPublisher
    sessions SessionVoider
}

// NewExpiryJob constructs the job.  locks, events and sessions may be
// nil in tests; the ledger part runs regardless.
func NewExpiryJob(db *sql.DB, bookings *repository.BookingRepo, locks SeatLockReleaser, events SeatEventPublisher, sessions SessionVoider) *ExpiryJob {
    return &ExpiryJob{db: db, bookings: bookings, locks: locks, events: events, sessions: sessions}
}

// Run performs one sweep.  Idempotent: a booking cancelled by a
// previous tick no longer matches the status predicate.
func (j *ExpiryJob) Run(ctx context.Context, now time.Time) error {
    tx, err := j.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    freed, err := j.bookings.ExpireStalePendingTx(ctx, tx, now)
    if err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true

    if len(freed) == 0 {
        return nil
    }
    log.Printf("scheduler: expiry freed %d seat(s)", len(freed))
    expired := make(map[uint64]struct{})
    for _, f := range freed {
        expired[f.BookingID] = struct{}{}
        if j.locks != nil {
            // Owner-checked: if the lock already expired and a new
            // customer holds the seat, their lock is left alone.
            if _, err := j.locks.Release(ctx, f.TripID, f.SeatID, f.LockToken); err != nil {
                log.Printf("scheduler: release lock trip=%d seat=%d failed: %v", f.TripID, f.SeatID, err)
            }
        }
        if j.events != nil {
            j.events.Publish(ctx, f.TripID, realtime.EventSeatUnlocked, f.SeatID)
        }
    }
    if j.sessions != nil {
        // An expired booking may still have an open checkout session;
        // void it so the stale URL cannot collect money.
        for id := range expired {
            j.sessions.VoidPending(ctx, id)
        }
    }
    return nil
}
