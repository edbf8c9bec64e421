package handler

import (
    "errors"
    "io"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/payment"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
)

// maxWebhookBody bounds how much of a webhook request is read; real
// gateway payloads are well under a kilobyte.
const maxWebhookBody = 1 << 16

// PaymentHandler owns the payment session endpoint and the inbound
// webhook.  Session creation talks to the external gateway with a
// bounded timeout; the webhook is handed to the reconciler, which is
// the only code allowed to settle payments.
type PaymentHandler struct {
    BookingRepo *repository.BookingRepo
    PaymentRepo *repository.PaymentRepo
    Gateway     *payment.Gateway
    Reconciler  *payment.Reconciler
}

// NewPaymentHandler constructs a PaymentHandler.  All dependencies
// must be non-nil.
func NewPaymentHandler(bookings *repository.BookingRepo, payments *repository.PaymentRepo, gw *payment.Gateway, rec *payment.Reconciler) *PaymentHandler {
    if bookings == nil || payments == nil || gw == nil || rec == nil {
        panic("nil dependency passed to NewPaymentHandler")
    }
    return &PaymentHandler{BookingRepo: bookings, PaymentRepo: payments, Gateway: gw, Reconciler: rec}
}

// CreateSession handles POST /v1/payments/session.  It creates a
// pending Payment row with a fresh order code and registers a hosted
// checkout session at the gateway.  A gateway error or timeout rolls
// the Payment to failed so no row is left pending with no live
// session behind it; the customer can simply request a new session.
func (h *PaymentHandler) CreateSession(c echo.Context) error {
    var body struct {
        BookingID uint64 `json:"booking_id"`
    }
    if err := c.Bind(&body); err != nil || body.BookingID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id is required"})
    }
    ctx := c.Request().Context()
    b, err := h.BookingRepo.GetByID(ctx, body.BookingID)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    now := time.Now().UTC()
    if b.Status != model.BookingPendingPayment || b.IsExpired(now) {
        return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not awaiting payment"})
    }

    orderCode, err := payment.NewOrderCode(ctx, h.PaymentRepo.PendingOrderCodeExists)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to allocate order code"})
    }
    p := &model.Payment{
        BookingID:   b.ID,
        AmountCents: b.PriceCents,
        Gateway:     payment.GatewayName,
        OrderCode:   orderCode,
        Status:      model.PaymentPending,
        CreatedAt:   now,
    }
    if err := h.PaymentRepo.Create(ctx, p); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create payment"})
    }

    sess, err := h.Gateway.CreateSession(ctx, orderCode, b.PriceCents, ticketDescription(b), payment.Buyer{
        Name:  b.CustomerName,
        Email: b.CustomerEmail,
        Phone: b.CustomerPhone,
    })
    if err != nil {
        // transient-external: fail the local row, let the user retry.
        if mfErr := h.PaymentRepo.MarkFailed(ctx, p.ID); mfErr != nil {
            c.Logger().Errorf("mark payment %d failed: %v", p.ID, mfErr)
        }
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
    }

    return c.JSON(http.StatusCreated, echo.Map{
        "order_code":   sess.OrderCode,
        "checkout_url": sess.CheckoutURL,
        "qr_code":      sess.QRCode,
        "amount_cents": b.PriceCents,
    })
}

// ticketDescription is the statement line shown on the checkout page.
func ticketDescription(b *model.Booking) string {
    return "Bus ticket booking #" + strconv.FormatUint(b.ID, 10)
}

// Refund handles POST /v1/payments/:id/refund.  It records that a
// refund was issued for a successful payment, typically the follow-up
// to a reconciliation alert where money arrived for an already-dead
// booking.  The transfer itself happens out of band at the gateway;
// this only keeps the ledger honest about it.  Any payment not in
// successful returns 409.
func (h *PaymentHandler) Refund(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
    }
    if err := h.PaymentRepo.MarkRefunded(c.Request().Context(), id); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "payment is not successful"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record refund"})
    }
    return c.NoContent(http.StatusNoContent)
}

// Webhook handles POST /v1/payments/webhook.  The gateway retries on
// non-200 responses, so idempotent replays must answer 200; only
// genuinely unprocessable payloads surface an error status for
// operational alerting.
func (h *PaymentHandler) Webhook(c echo.Context) error {
    raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
    }
    res, err := h.Reconciler.HandleWebhook(c.Request().Context(), raw)
    if err != nil {
        switch {
        case errors.Is(err, payment.ErrBadSignature):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "signature verification failed"})
        case errors.Is(err, payment.ErrUnknownOrder):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown order code"})
        case errors.Is(err, repository.ErrConflict):
            return c.JSON(http.StatusConflict, echo.Map{"error": "payment already settled with a different outcome"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to process webhook"})
        }
    }
    return c.JSON(http.StatusOK, res)
}
