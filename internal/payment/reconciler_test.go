package payment

import (
    "context"
    "errors"
    "fmt"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/notifier"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
)

type fakeLocks struct {
    released [][3]interface{}
}

func (f *fakeLocks) Release(ctx context.Context, tripID, seatID uint64, holder string) (bool, error) {
    f.released = append(f.released, [3]interface{}{tripID, seatID, holder})
    return true, nil
}

type fakeEvents struct {
    published []string
}

func (f *fakeEvents) Publish(ctx context.Context, tripID uint64, event string, seatID uint64) {
    f.published = append(f.published, fmt.Sprintf("%d/%s/%d", tripID, event, seatID))
}

type fakeNotify struct {
    recipients []notifier.Recipient
}

func (f *fakeNotify) DispatchConfirmation(ctx context.Context, rcpt notifier.Recipient, data map[string]string) {
    f.recipients = append(f.recipients, rcpt)
}

type reconcilerFixture struct {
    rec    *Reconciler
    mock   sqlmock.Sqlmock
    locks  *fakeLocks
    events *fakeEvents
    notify *fakeNotify
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
    t.Helper()
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    t.Cleanup(func() { db.Close() })
    f := &reconcilerFixture{
        mock:   mock,
        locks:  &fakeLocks{},
        events: &fakeEvents{},
        notify: &fakeNotify{},
    }
    g := NewGateway(Config{ChecksumKey: "test-checksum-key"})
    f.rec = NewReconciler(db, repository.NewPaymentRepo(db), repository.NewBookingRepo(db), g, f.locks, f.events, f.notify)
    return f
}

// signedWebhook wraps a data object in a webhook envelope with a valid
// signature for the fixture's checksum key.
func signedWebhook(t *testing.T, data string) []byte {
    t.Helper()
    g := NewGateway(Config{ChecksumKey: "test-checksum-key"})
    sig, err := g.SignWebhookData([]byte(data))
    if err != nil {
        t.Fatalf("sign webhook data: %v", err)
    }
    return []byte(fmt.Sprintf(`{"code":"00","desc":"ok","data":%s,"signature":"%s"}`, data, sig))
}

func paymentRow(status string) *sqlmock.Rows {
    return sqlmock.NewRows([]string{
        "id", "booking_id", "amount_cents", "gateway", "order_code", "status", "gateway_txn_id", "created_at",
    }).AddRow(7, 42, 250000, GatewayName, 123456, status, "", time.Now())
}

func TestHandleWebhookSuccessConfirmsBookingAndDispatches(t *testing.T) {
    f := newReconcilerFixture(t)

    f.mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_code").
        WithArgs(int64(123456)).
        WillReturnRows(paymentRow("pending"))
    f.mock.ExpectBegin()
    f.mock.ExpectExec("UPDATE payments SET status").
        WithArgs("successful", "pl_abc", uint64(7), "pending").
        WillReturnResult(sqlmock.NewResult(0, 1))
    f.mock.ExpectExec("UPDATE bookings SET status").
        WithArgs("confirmed", uint64(42), "pending_payment").
        WillReturnResult(sqlmock.NewResult(0, 1))
    f.mock.ExpectCommit()

    // Post-commit side effects read the booking and its seats.
    f.mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
        WithArgs(uint64(42)).
        WillReturnRows(sqlmock.NewRows([]string{
            "id", "user_id", "trip_id", "route_id", "customer_name", "customer_email", "customer_phone",
            "price_cents", "status", "lock_token", "created_at", "expires_at",
        }).AddRow(42, nil, 9, 3, "Alice", "alice@example.com", "", 250000, "confirmed", "tok1", time.Now(), time.Now()))
    f.mock.ExpectQuery("SELECT bs.seat_id, s.seat_number").
        WithArgs(uint64(42)).
        WillReturnRows(sqlmock.NewRows([]string{"seat_id", "seat_number", "ticket_code"}).
            AddRow(11, "A1", "CODE1").
            AddRow(12, "A2", "CODE2"))

    body := signedWebhook(t, `{"orderCode":123456,"amount":250000,"code":"00","paymentLinkId":"pl_abc"}`)
    res, err := f.rec.HandleWebhook(context.Background(), body)
    if err != nil {
        t.Fatalf("HandleWebhook: %v", err)
    }
    if res.Status != "successful" || res.BookingID != 42 || res.Replayed {
        t.Fatalf("unexpected result: %+v", res)
    }
    if len(f.locks.released) != 2 {
        t.Fatalf("expected 2 lock releases, got %d", len(f.locks.released))
    }
    if f.locks.released[0] != [3]interface{}{uint64(9), uint64(11), "tok1"} {
        t.Fatalf("unexpected release args: %v", f.locks.released[0])
    }
    if len(f.events.published) != 2 || f.events.published[0] != "9/SEAT_SOLD/11" {
        t.Fatalf("unexpected seat events: %v", f.events.published)
    }
    if len(f.notify.recipients) != 1 || f.notify.recipients[0].BookingID != 42 {
        t.Fatalf("expected one confirmation dispatch for booking 42, got %v", f.notify.recipients)
    }
    if err := f.mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestHandleWebhookReplaySameOutcomeIsNoOp(t *testing.T) {
    f := newReconcilerFixture(t)

    f.mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_code").
        WithArgs(int64(123456)).
        WillReturnRows(paymentRow("successful"))

    body := signedWebhook(t, `{"orderCode":123456,"amount":250000,"code":"00","paymentLinkId":"pl_abc"}`)
    res, err := f.rec.HandleWebhook(context.Background(), body)
    if err != nil {
        t.Fatalf("HandleWebhook: %v", err)
    }
    if !res.Replayed || res.Status != "successful" {
        t.Fatalf("expected replayed successful result, got %+v", res)
    }
    if len(f.notify.recipients) != 0 || len(f.locks.released) != 0 {
        t.Fatalf("replay must not repeat side effects")
    }
    if err := f.mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestHandleWebhookOppositeTerminalOutcomeConflicts(t *testing.T) {
    f := newReconcilerFixture(t)

    f.mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_code").
        WithArgs(int64(123456)).
        WillReturnRows(paymentRow("failed"))

    body := signedWebhook(t, `{"orderCode":123456,"amount":250000,"code":"00","paymentLinkId":"pl_abc"}`)
    if _, err := f.rec.HandleWebhook(context.Background(), body); !errors.Is(err, repository.ErrConflict) {
        t.Fatalf("expected ErrConflict, got %v", err)
    }
}

func TestHandleWebhookFailureLeavesBookingPending(t *testing.T) {
    f := newReconcilerFixture(t)

    f.mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_code").
        WithArgs(int64(123456)).
        WillReturnRows(paymentRow("pending"))
    f.mock.ExpectBegin()
    f.mock.ExpectExec("UPDATE payments SET status").
        WithArgs("failed", "pl_abc", uint64(7), "pending").
        WillReturnResult(sqlmock.NewResult(0, 1))
    // No bookings update: the booking stays pending and may retry.
    f.mock.ExpectCommit()

    body := signedWebhook(t, `{"orderCode":123456,"amount":250000,"code":"01","paymentLinkId":"pl_abc"}`)
    res, err := f.rec.HandleWebhook(context.Background(), body)
    if err != nil {
        t.Fatalf("HandleWebhook: %v", err)
    }
    if res.Status != "failed" || res.Replayed {
        t.Fatalf("unexpected result: %+v", res)
    }
    if len(f.notify.recipients) != 0 {
        t.Fatalf("failed webhook must not dispatch confirmations")
    }
    if err := f.mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestHandleWebhookSuccessAgainstNonPendingBookingKeepsPayment(t *testing.T) {
    f := newReconcilerFixture(t)

    f.mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_code").
        WithArgs(int64(123456)).
        WillReturnRows(paymentRow("pending"))
    f.mock.ExpectBegin()
    f.mock.ExpectExec("UPDATE payments SET status").
        WithArgs("successful", "pl_abc", uint64(7), "pending").
        WillReturnResult(sqlmock.NewResult(0, 1))
    // The booking expired in the meantime; the conditional update
    // matches nothing, but the payment commit still stands.
    f.mock.ExpectExec("UPDATE bookings SET status").
        WithArgs("confirmed", uint64(42), "pending_payment").
        WillReturnResult(sqlmock.NewResult(0, 0))
    f.mock.ExpectCommit()

    body := signedWebhook(t, `{"orderCode":123456,"amount":250000,"code":"00","paymentLinkId":"pl_abc"}`)
    res, err := f.rec.HandleWebhook(context.Background(), body)
    if err != nil {
        t.Fatalf("HandleWebhook: %v", err)
    }
    if res.Status != "successful" {
        t.Fatalf("unexpected result: %+v", res)
    }
    if len(f.notify.recipients) != 0 || len(f.locks.released) != 0 {
        t.Fatalf("non-confirmed booking must not trigger side effects")
    }
    if err := f.mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestHandleWebhookUnknownOrderCode(t *testing.T) {
    f := newReconcilerFixture(t)

    f.mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_code").
        WithArgs(int64(999)).
        WillReturnRows(sqlmock.NewRows([]string{"id"}))

    body := signedWebhook(t, `{"orderCode":999,"amount":1,"code":"00"}`)
    if _, err := f.rec.HandleWebhook(context.Background(), body); !errors.Is(err, ErrUnknownOrder) {
        t.Fatalf("expected ErrUnknownOrder, got %v", err)
    }
}

func TestHandleWebhookLostSettleRaceRollsBack(t *testing.T) {
    f := newReconcilerFixture(t)

    f.mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_code").
        WithArgs(int64(123456)).
        WillReturnRows(paymentRow("pending"))
    f.mock.ExpectBegin()
    f.mock.ExpectExec("UPDATE payments SET status").
        WithArgs("successful", "pl_abc", uint64(7), "pending").
        WillReturnResult(sqlmock.NewResult(0, 0))
    f.mock.ExpectRollback()

    body := signedWebhook(t, `{"orderCode":123456,"amount":250000,"code":"00","paymentLinkId":"pl_abc"}`)
    res, err := f.rec.HandleWebhook(context.Background(), body)
    if err != nil {
        t.Fatalf("HandleWebhook: %v", err)
    }
    if res.Status != "successful" {
        t.Fatalf("unexpected result: %+v", res)
    }
    if len(f.notify.recipients) != 0 {
        t.Fatalf("lost race must not dispatch confirmations")
    }
    if err := f.mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}
