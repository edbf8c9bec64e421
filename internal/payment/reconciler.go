package payment

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "log"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/notifier"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/realtime"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
)

// LockStore releases seat locks after a booking reaches a terminal
// state.  Satisfied by *seatlock.Store.
type LockStore interface {
    Release(ctx context.Context, tripID, seatID uint64, holder string) (bool, error)
}

// Publisher emits advisory seat events.  Satisfied by *realtime.Broadcaster.
type Publisher interface {
    Publish(ctx context.Context, tripID uint64, event string, seatID uint64)
}

// Notifier dispatches the confirmation message.  Satisfied by
// *notifier.Dispatcher.
type Notifier interface {
    DispatchConfirmation(ctx context.Context, rcpt notifier.Recipient, data map[string]string)
}

// Result is what HandleWebhook reports back to the HTTP layer.  It is
// used for acknowledgment only; callers must never mutate state based
// on it.
type Result struct {
    Status    string `json:"status"` // "successful" or "failed"
    BookingID uint64 `json:"booking_id"`
    OrderCode int64  `json:"order_code"`
    Replayed  bool   `json:"replayed"`
}

// Reconciler consumes gateway webhooks and applies them to the ledger
// at most once.  The only atomic region is the local Payment+Booking
// transaction; everything after its commit is best-effort and can
// never undo the financial transition.
type Reconciler struct {
    db       *sql.DB
    payments *repository.PaymentRepo
    bookings *repository.BookingRepo
    gateway  *Gateway
    locks    LockStore
    events   Publisher
    notify   Notifier
}

// NewReconciler constructs a Reconciler.  locks, events and notify
// drive post-commit side effects and must be non-nil.
func NewReconciler(db *sql.DB, payments *repository.PaymentRepo, bookings *repository.BookingRepo, gateway *Gateway, locks LockStore, events Publisher, notify Notifier) *Reconciler {
    if db == nil || payments == nil || bookings == nil || gateway == nil {
        panic("nil dependency passed to payment.NewReconciler")
    }
    return &Reconciler{db: db, payments: payments, bookings: bookings, gateway: gateway, locks: locks, events: events, notify: notify}
}

// HandleWebhook processes one raw webhook body.
//
// Phase 1 (must succeed or the whole webhook fails): authenticate,
// resolve the order code, and atomically settle Payment plus Booking.
// Phase 2 (after commit, individually caught): lock release, seat
// event, notifications.  Duplicate and out-of-order deliveries are
// cancelled by the replay check and by the conditional updates, so
// re-sending the same payload yields the same Result with no new side
// effects.
func (r *Reconciler) HandleWebhook(ctx context.Context, raw []byte) (*Result, error) {
    data, err := r.gateway.VerifyWebhook(raw)
    if err != nil {
        return nil, err
    }

    p, err := r.payments.GetByOrderCode(ctx, data.OrderCode)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, fmt.Errorf("%w: %d", ErrUnknownOrder, data.OrderCode)
    }
    if err != nil {
        return nil, err
    }

    target := model.PaymentFailed
    if data.Code == SuccessCode {
        target = model.PaymentSuccessful
    }

    // Replay check: an identical outcome has already been applied.
    if p.Status == target {
        return &Result{Status: target, BookingID: p.BookingID, OrderCode: p.OrderCode, Replayed: true}, nil
    }
    if p.Status != model.PaymentPending {
        // Terminal, but with the opposite outcome: the ledger and the
        // gateway disagree about money. Surface loudly, change nothing.
        log.Printf("reconciler: ALERT payment %d is %s but webhook reports %s (order %d)", p.ID, p.Status, target, p.OrderCode)
        return nil, fmt.Errorf("payment %d already settled as %s: %w", p.ID, p.Status, repository.ErrConflict)
    }

    confirmed, err := r.settle(ctx, p, target, data.PaymentLinkID)
    if err != nil {
        return nil, err
    }

    if target == model.PaymentSuccessful {
        if confirmed {
            r.sideEffects(ctx, p.BookingID)
        } else {
            // The payment settled but the booking was no longer
            // pending (expired, or confirmed by another attempt).
            // Money moved; the booking stays as it is and the case
            // goes to manual reconciliation.
            log.Printf("reconciler: ALERT successful payment %d (order %d) against non-pending booking %d", p.ID, p.OrderCode, p.BookingID)
        }
    }

    return &Result{Status: target, BookingID: p.BookingID, OrderCode: p.OrderCode}, nil
}

// settle runs the atomic Payment+Booking transition.  It reports
// whether the booking moved to confirmed in this call.
func (r *Reconciler) settle(ctx context.Context, p *model.Payment, target, gatewayTxnID string) (bool, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return false, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    settled, err := r.payments.SettleTx(ctx, tx, p.ID, target, gatewayTxnID)
    if err != nil {
        return false, err
    }
    if !settled {
        // A concurrent delivery won the race; its transaction applied
        // the outcome. Nothing to do here.
        return false, nil
    }

    confirmed := false
    if target == model.PaymentSuccessful {
        confirmed, err = r.bookings.ConfirmTx(ctx, tx, p.BookingID)
        if err != nil {
            return false, err
        }
    }

    if err := tx.Commit(); err != nil {
        return false, err
    }
    committed = true
    return confirmed, nil
}

// sideEffects runs the post-commit, best-effort tail of a successful
// confirmation.  Every step is independently caught: a dead Redis or
// broker must never look like a payment failure to the gateway.
func (r *Reconciler) sideEffects(ctx context.Context, bookingID uint64) {
    b, err := r.bookings.GetByID(ctx, bookingID)
    if err != nil {
        log.Printf("reconciler: load booking %d for side effects failed: %v", bookingID, err)
        return
    }
    seats, err := r.bookings.SeatsByBooking(ctx, bookingID)
    if err != nil {
        log.Printf("reconciler: load seats of booking %d failed: %v", bookingID, err)
        seats = nil
    }

    for _, s := range seats {
        // The seat is now permanently sold; the hold lock has done
        // its job. Release is owner-checked, so a lock that already
        // expired and was re-acquired elsewhere is left alone.
        if r.locks != nil {
            if _, err := r.locks.Release(ctx, b.TripID, s.SeatID, b.LockToken); err != nil {
                log.Printf("reconciler: release lock for seat %d on trip %d failed: %v", s.SeatID, b.TripID, err)
            }
        }
        if r.events != nil {
            r.events.Publish(ctx, b.TripID, realtime.EventSeatSold, s.SeatID)
        }
    }

    if r.notify != nil {
        data := map[string]string{
            "name":       b.CustomerName,
            "booking_id": fmt.Sprintf("%d", b.ID),
            "trip_id":    fmt.Sprintf("%d", b.TripID),
        }
        for _, s := range seats {
            data["seat_"+s.SeatNumber] = s.TicketCode
        }
        r.notify.DispatchConfirmation(ctx, notifier.Recipient{
            UserID:    b.UserID,
            BookingID: b.ID,
            Email:     b.CustomerEmail,
            Phone:     b.CustomerPhone,
        }, data)
    }
}
