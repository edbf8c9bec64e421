package scheduler

import (
    "context"
    "fmt"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
)

type recordingLocks struct {
    released []string
}

func (r *recordingLocks) Release(ctx context.Context, tripID, seatID uint64, holder string) (bool, error) {
    r.released = append(r.released, fmt.Sprintf("%d/%d/%s", tripID, seatID, holder))
    return true, nil
}

type recordingEvents struct {
    published []string
}

func (r *recordingEvents) Publish(ctx context.Context, tripID uint64, event string, seatID uint64) {
    r.published = append(r.published, fmt.Sprintf("%d/%s/%d", tripID, event, seatID))
}

type recordingVoider struct {
    voided []uint64
}

func (r *recordingVoider) VoidPending(ctx context.Context, bookingID uint64) {
    r.voided = append(r.voided, bookingID)
}

func TestExpirySweepFreesSeatsAndReleasesLocks(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    defer db.Close()
    now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

    mock.ExpectBegin()
    mock.ExpectQuery("SELECT bs.booking_id, bs.trip_id, bs.seat_id").
        WithArgs("pending_payment", now).
        WillReturnRows(sqlmock.NewRows([]string{"booking_id", "trip_id", "seat_id", "lock_token"}).
            AddRow(5, 9, 11, "tok1").
            AddRow(5, 9, 12, "tok1"))
    mock.ExpectExec("UPDATE booking_seats bs JOIN bookings").
        WithArgs("pending_payment", now).
        WillReturnResult(sqlmock.NewResult(0, 2))
    mock.ExpectExec("UPDATE bookings SET status").
        WithArgs("cancelled", "pending_payment", now).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    locks := &recordingLocks{}
    events := &recordingEvents{}
    sessions := &recordingVoider{}
    job := NewExpiryJob(db, repository.NewBookingRepo(db), locks, events, sessions)
    if err := job.Run(context.Background(), now); err != nil {
        t.Fatalf("Run: %v", err)
    }
    if len(locks.released) != 2 || locks.released[0] != "9/11/tok1" {
        t.Fatalf("unexpected releases: %v", locks.released)
    }
    if len(events.published) != 2 || events.published[1] != "9/SEAT_UNLOCKED/12" {
        t.Fatalf("unexpected events: %v", events.published)
    }
    // Both freed seats belong to booking 5: its sessions are voided
    // once, not per seat.
    if len(sessions.voided) != 1 || sessions.voided[0] != 5 {
        t.Fatalf("expected payment sessions of booking 5 voided once, got %v", sessions.voided)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestExpirySweepNothingStaleIsNoOp(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock: %v", err)
    }
    defer db.Close()
    now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

    mock.ExpectBegin()
    mock.ExpectQuery("SELECT bs.booking_id, bs.trip_id, bs.seat_id").
        WithArgs("pending_payment", now).
        WillReturnRows(sqlmock.NewRows([]string{"booking_id", "trip_id", "seat_id", "lock_token"}))
    mock.ExpectCommit()

    locks := &recordingLocks{}
    sessions := &recordingVoider{}
    job := NewExpiryJob(db, repository.NewBookingRepo(db), locks, &recordingEvents{}, sessions)
    if err := job.Run(context.Background(), now); err != nil {
        t.Fatalf("Run: %v", err)
    }
    if len(locks.released) != 0 {
        t.Fatalf("no seats were freed, nothing should be released")
    }
    if len(sessions.voided) != 0 {
        t.Fatalf("no bookings expired, no sessions should be voided")
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}
