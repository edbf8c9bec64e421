package payment

import (
    "context"
    "log"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
)

// SessionVoider invalidates the open checkout sessions of a booking
// that just died (explicit cancel or hold expiry).  Each pending
// Payment row is marked failed and its gateway session cancelled, so
// a customer holding a stale checkout URL cannot pay for a booking
// that no longer exists; without this, a late payment would land on a
// cancelled booking and force manual reconciliation.
type SessionVoider struct {
    payments *repository.PaymentRepo
    gateway  *Gateway
}

// NewSessionVoider constructs a SessionVoider.  payments must be
// non-nil; gateway may be nil in tests, in which case only the local
// rows are failed.
func NewSessionVoider(payments *repository.PaymentRepo, gateway *Gateway) *SessionVoider {
    if payments == nil {
        panic("nil payment repo passed to payment.NewSessionVoider")
    }
    return &SessionVoider{payments: payments, gateway: gateway}
}

// VoidPending fails every pending payment of the booking and cancels
// the corresponding gateway sessions.  The local row is failed first:
// if the gateway cancel then errors, the orphaned session can only
// produce a webhook against an already-failed payment, which the
// reconciler rejects.  Best-effort throughout; callers run this after
// their own transaction has committed and must not care about the
// outcome.
func (v *SessionVoider) VoidPending(ctx context.Context, bookingID uint64) {
    pending, err := v.payments.PendingByBooking(ctx, bookingID)
    if err != nil {
        log.Printf("payment: load pending payments of booking %d failed: %v", bookingID, err)
        return
    }
    for _, p := range pending {
        if err := v.payments.MarkFailed(ctx, p.ID); err != nil {
            log.Printf("payment: fail payment %d of booking %d failed: %v", p.ID, bookingID, err)
            continue
        }
        if v.gateway == nil {
            continue
        }
        if err := v.gateway.CancelSession(ctx, p.OrderCode, "booking cancelled"); err != nil {
            // The gateway session lingers until it expires on its
            // own; the failed local row already blocks settlement.
            log.Printf("payment: cancel gateway session %d failed: %v", p.OrderCode, err)
        }
    }
}
