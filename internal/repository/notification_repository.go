package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
)

// NotificationRepo provides data access to the notifications and
// notification_preferences tables.  Rows are written by dispatch
// attempts and purged by the cleanup job after the retention window.
type NotificationRepo struct {
    db *sql.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to the
// provided database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Insert records one delivery attempt and fills in the row ID.
func (r *NotificationRepo) Insert(ctx context.Context, n *model.Notification) error {
    const q = `INSERT INTO notifications (user_id, booking_id, type, template, status, sent_at, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    var sentAt interface{}
    if n.SentAt != nil {
        sentAt = n.SentAt.UTC().Format("2006-01-02 15:04:05")
    }
    res, err := r.db.ExecContext(ctx, q,
        nullableID(n.UserID), n.BookingID, n.Type, n.Template, n.Status, sentAt,
        n.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
    )
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    n.ID = uint64(id)
    return nil
}

// ReminderTarget is one confirmed booking due a departure reminder.
type ReminderTarget struct {
    BookingID     uint64
    UserID        *uint64
    CustomerName  string
    CustomerEmail string
    CustomerPhone string
    TripID        uint64
    StartTime     time.Time
}

// DueForReminder selects confirmed bookings whose trip departs within
// the given window and for which no sent reminder row exists yet.
// The NOT EXISTS clause is the idempotency guard: the hourly sweep may
// re-scan the same booking on every tick until departure, and this
// predicate suppresses every scan after the first successful send.
func (r *NotificationRepo) DueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]ReminderTarget, error) {
    const q = `SELECT b.id, b.user_id, b.customer_name, b.customer_email, b.customer_phone, b.trip_id, t.start_time
               FROM bookings b JOIN trips t ON t.id = b.trip_id
               WHERE b.status = ? AND t.start_time > ? AND t.start_time <= ?
                 AND NOT EXISTS (
                     SELECT 1 FROM notifications n
                     WHERE n.booking_id = b.id AND n.template = ? AND n.status = ?
                 )`
    rows, err := r.db.QueryContext(ctx, q,
        model.BookingConfirmed, now.UTC(), now.UTC().Add(window),
        model.TemplateReminder, model.NotificationSent,
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []ReminderTarget
    for rows.Next() {
        var t ReminderTarget
        var userID sql.NullInt64
        if err := rows.Scan(&t.BookingID, &userID, &t.CustomerName, &t.CustomerEmail, &t.CustomerPhone, &t.TripID, &t.StartTime); err != nil {
            return nil, err
        }
        if userID.Valid {
            uid := uint64(userID.Int64)
            t.UserID = &uid
        }
        out = append(out, t)
    }
    return out, rows.Err()
}

// PurgeSentBefore deletes sent notifications created before the
// cutoff and returns how many rows were removed.  Pending and failed
// rows are kept for operational inspection.
func (r *NotificationRepo) PurgeSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
    const q = `DELETE FROM notifications WHERE status = ? AND created_at < ?`
    res, err := r.db.ExecContext(ctx, q, model.NotificationSent, cutoff.UTC())
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// PreferencesByUser loads a user's explicit channel preferences.  A
// missing (channel, template) row means the channel is enabled, so an
// empty slice is the common case.
func (r *NotificationRepo) PreferencesByUser(ctx context.Context, userID uint64) ([]model.ChannelPreference, error) {
    const q = `SELECT user_id, channel, template, enabled FROM notification_preferences WHERE user_id = ?`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.ChannelPreference
    for rows.Next() {
        var p model.ChannelPreference
        if err := rows.Scan(&p.UserID, &p.Channel, &p.Template, &p.Enabled); err != nil {
            return nil, err
        }
        out = append(out, p)
    }
    return out, rows.Err()
}
