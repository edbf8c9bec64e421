package scheduler

import (
    "context"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
)

func TestTripStatusRunsCompletionPassFirst(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    defer db.Close()
    now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

    // Order matters: ongoing->completed before scheduled->ongoing, so
    // a short trip still spends at least one tick as ongoing.
    mock.ExpectExec("UPDATE trips SET status").
        WithArgs("completed", "ongoing", now).
        WillReturnResult(sqlmock.NewResult(0, 2))
    mock.ExpectExec("UPDATE trips SET status").
        WithArgs("ongoing", "scheduled", now, now).
        WillReturnResult(sqlmock.NewResult(0, 1))

    job := NewTripStatusJob(repository.NewTripRepo(db))
    if err := job.Run(context.Background(), now); err != nil {
        t.Fatalf("Run: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestTripStatusStableStateIsNoOp(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    defer db.Close()
    now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

    mock.ExpectExec("UPDATE trips SET status").
        WithArgs("completed", "ongoing", now).
        WillReturnResult(sqlmock.NewResult(0, 0))
    mock.ExpectExec("UPDATE trips SET status").
        WithArgs("ongoing", "scheduled", now, now).
        WillReturnResult(sqlmock.NewResult(0, 0))

    job := NewTripStatusJob(repository.NewTripRepo(db))
    if err := job.Run(context.Background(), now); err != nil {
        t.Fatalf("Run: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}
