package model

import "time"

// Payment status values.  A payment never regresses out of
// successful; the only transition away from it is an explicit
// refund.  New payment attempts for the same booking create new
// rows rather than mutating a failed one.
const (
    PaymentPending    = "pending"
    PaymentSuccessful = "successful"
    PaymentFailed     = "failed"
    PaymentRefunded   = "refunded"
)

// MaxOrderCode bounds gateway order codes to the 53-bit integer
// range the gateway (and any JSON consumer) can represent exactly.
const MaxOrderCode int64 = 1 << 53

// Payment records one attempt to collect money for a booking through
// an external gateway.  OrderCode is the gateway-facing identifier
// the webhook uses to find its way back to the booking; while a
// payment is pending its order code must be unique among all pending
// payments, since the reconciler resolves orderCode -> bookingId.
//
// Fields:
//  ID            – primary key identifier.
//  BookingID     – booking this attempt pays for.
//  AmountCents   – amount charged; must equal the booking price.
//  Gateway       – gateway identifier (e.g. "payos").
//  OrderCode     – gateway-facing id, in [1, 2^53).
//  Status        – one of the Payment* constants above.
//  GatewayTxnID  – transaction id reported by the gateway webhook.
//  CreatedAt     – creation timestamp (UTC).
type Payment struct {
    ID           uint64    // payments.id
    BookingID    uint64    // payments.booking_id
    AmountCents  uint32    // payments.amount_cents
    Gateway      string    // payments.gateway
    OrderCode    int64     // payments.order_code
    Status       string    // payments.status
    GatewayTxnID string    // payments.gateway_txn_id
    CreatedAt    time.Time // payments.created_at
}
