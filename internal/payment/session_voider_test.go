package payment

import (
    "context"
    "fmt"
    "net/http"
    "net/http/httptest"
    "sync"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
)

func pendingPaymentRows(orderCodes ...int64) *sqlmock.Rows {
    rows := sqlmock.NewRows([]string{
        "id", "booking_id", "amount_cents", "gateway", "order_code", "status", "gateway_txn_id", "created_at",
    })
    for i, code := range orderCodes {
        rows.AddRow(uint64(7+i), 42, 250000, GatewayName, code, "pending", "", time.Now())
    }
    return rows
}

func TestVoidPendingFailsRowsAndCancelsGatewaySessions(t *testing.T) {
    var mu sync.Mutex
    var cancelled []string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        mu.Lock()
        cancelled = append(cancelled, r.URL.Path)
        mu.Unlock()
        fmt.Fprint(w, `{"code":"00","desc":"ok","data":{}}`)
    }))
    defer srv.Close()

    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    defer db.Close()

    mock.ExpectQuery("SELECT (.+) FROM payments WHERE booking_id").
        WithArgs(uint64(42), "pending").
        WillReturnRows(pendingPaymentRows(111, 222))
    mock.ExpectExec("UPDATE payments SET status").
        WithArgs("failed", uint64(7), "pending").
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec("UPDATE payments SET status").
        WithArgs("failed", uint64(8), "pending").
        WillReturnResult(sqlmock.NewResult(0, 1))

    gw := NewGateway(Config{BaseURL: srv.URL, ChecksumKey: "k"})
    v := NewSessionVoider(repository.NewPaymentRepo(db), gw)
    v.VoidPending(context.Background(), 42)

    mu.Lock()
    defer mu.Unlock()
    if len(cancelled) != 2 {
        t.Fatalf("expected 2 gateway cancels, got %v", cancelled)
    }
    if cancelled[0] != "/v2/payment-requests/111/cancel" || cancelled[1] != "/v2/payment-requests/222/cancel" {
        t.Fatalf("unexpected cancel paths: %v", cancelled)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestVoidPendingGatewayFailureStillFailsLocalRows(t *testing.T) {
    // The gateway rejects the cancel; the local rows must be failed
    // anyway so the sessions cannot settle.
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        fmt.Fprint(w, `{"code":"99","desc":"not found","data":{}}`)
    }))
    defer srv.Close()

    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    defer db.Close()

    mock.ExpectQuery("SELECT (.+) FROM payments WHERE booking_id").
        WithArgs(uint64(42), "pending").
        WillReturnRows(pendingPaymentRows(111))
    mock.ExpectExec("UPDATE payments SET status").
        WithArgs("failed", uint64(7), "pending").
        WillReturnResult(sqlmock.NewResult(0, 1))

    gw := NewGateway(Config{BaseURL: srv.URL, ChecksumKey: "k"})
    v := NewSessionVoider(repository.NewPaymentRepo(db), gw)
    v.VoidPending(context.Background(), 42)

    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestVoidPendingNoPendingPaymentsIsNoOp(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    defer db.Close()

    mock.ExpectQuery("SELECT (.+) FROM payments WHERE booking_id").
        WithArgs(uint64(42), "pending").
        WillReturnRows(pendingPaymentRows())

    v := NewSessionVoider(repository.NewPaymentRepo(db), nil)
    v.VoidPending(context.Background(), 42)

    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}
