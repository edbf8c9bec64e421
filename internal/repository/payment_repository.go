package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
)

// PaymentRepo provides data access to the payments table.  Payments
// are append-only in spirit: a failed attempt stays failed and a
// retry inserts a new row with a fresh order code.  Only the
// reconciler moves a payment out of pending.
type PaymentRepo struct {
    db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// that span multiple repositories.
func (r *PaymentRepo) DB() *sql.DB { return r.db }

// Create inserts a new pending payment attempt and fills in its ID.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
    const q = `INSERT INTO payments (booking_id, amount_cents, gateway, order_code, status, gateway_txn_id, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q,
        p.BookingID, p.AmountCents, p.Gateway, p.OrderCode, p.Status, p.GatewayTxnID,
        p.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
    )
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    p.ID = uint64(id)
    return nil
}

// GetByOrderCode resolves a webhook's order code to the payment (and
// therefore the booking) it belongs to.  Returns ErrNotFound for an
// unknown code, which the reconciler surfaces as a gateway/ledger
// desync rather than silently dropping.
func (r *PaymentRepo) GetByOrderCode(ctx context.Context, orderCode int64) (*model.Payment, error) {
    const q = `SELECT id, booking_id, amount_cents, gateway, order_code, status, gateway_txn_id, created_at
               FROM payments WHERE order_code = ? ORDER BY id DESC LIMIT 1`
    var p model.Payment
    err := r.db.QueryRowContext(ctx, q, orderCode).Scan(
        &p.ID, &p.BookingID, &p.AmountCents, &p.Gateway, &p.OrderCode, &p.Status, &p.GatewayTxnID, &p.CreatedAt,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &p, nil
}

// PendingByBooking lists a booking's pending payment attempts.  Used
// when a booking dies (cancel or expiry) to void the checkout
// sessions still open against it.
func (r *PaymentRepo) PendingByBooking(ctx context.Context, bookingID uint64) ([]model.Payment, error) {
    const q = `SELECT id, booking_id, amount_cents, gateway, order_code, status, gateway_txn_id, created_at
               FROM payments WHERE booking_id = ? AND status = ?`
    rows, err := r.db.QueryContext(ctx, q, bookingID, model.PaymentPending)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Payment
    for rows.Next() {
        var p model.Payment
        if err := rows.Scan(&p.ID, &p.BookingID, &p.AmountCents, &p.Gateway, &p.OrderCode, &p.Status, &p.GatewayTxnID, &p.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, p)
    }
    return out, rows.Err()
}

// PendingOrderCodeExists reports whether any pending payment already
// uses the given order code.  The generator redraws on collision so
// that orderCode -> bookingID stays a function while payments are
// pending.
func (r *PaymentRepo) PendingOrderCodeExists(ctx context.Context, orderCode int64) (bool, error) {
    const q = `SELECT EXISTS(SELECT 1 FROM payments WHERE order_code = ? AND status = ?)`
    var exists bool
    if err := r.db.QueryRowContext(ctx, q, orderCode, model.PaymentPending).Scan(&exists); err != nil {
        return false, err
    }
    return exists, nil
}

// SettleTx moves a pending payment to its terminal webhook outcome
// (successful or failed) and records the gateway transaction id.  The
// status predicate means a duplicate webhook that lost the race
// affects zero rows; the caller treats that as a replay.
func (r *PaymentRepo) SettleTx(ctx context.Context, tx *sql.Tx, paymentID uint64, status, gatewayTxnID string) (bool, error) {
    const q = `UPDATE payments SET status = ?, gateway_txn_id = ? WHERE id = ? AND status = ?`
    res, err := tx.ExecContext(ctx, q, status, gatewayTxnID, paymentID, model.PaymentPending)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// MarkFailed rolls a pending payment to failed outside any webhook,
// used when gateway session creation errors or times out so no row is
// left pending with no live session behind it.
func (r *PaymentRepo) MarkFailed(ctx context.Context, paymentID uint64) error {
    const q = `UPDATE payments SET status = ? WHERE id = ? AND status = ?`
    _, err := r.db.ExecContext(ctx, q, model.PaymentFailed, paymentID, model.PaymentPending)
    return err
}

// MarkRefunded records an explicit refund of a successful payment.
// This is the only legal transition out of successful.
func (r *PaymentRepo) MarkRefunded(ctx context.Context, paymentID uint64) error {
    const q = `UPDATE payments SET status = ? WHERE id = ? AND status = ?`
    res, err := r.db.ExecContext(ctx, q, model.PaymentRefunded, paymentID, model.PaymentSuccessful)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrConflict
    }
    return nil
}
