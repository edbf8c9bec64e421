package notifier

import (
    "context"
    "fmt"
    "log"
    "time"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
)

// ReminderWindow is how far ahead of departure the reminder job
// looks for confirmed bookings.
const ReminderWindow = 24 * time.Hour

// RetentionWindow is how long sent notification rows are kept before
// the cleanup job purges them.
const RetentionWindow = 30 * 24 * time.Hour

// Store is the persistence the dispatcher needs.  It is satisfied by
// *repository.NotificationRepo; tests substitute fakes so sweeps can
// be exercised without a database.
type Store interface {
    Insert(ctx context.Context, n *model.Notification) error
    DueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]repository.ReminderTarget, error)
    PurgeSentBefore(ctx context.Context, cutoff time.Time) (int64, error)
    PreferencesByUser(ctx context.Context, userID uint64) ([]model.ChannelPreference, error)
}

// Dispatcher fans a notification out to the enabled channels of its
// recipient and records every attempt.  One row is written per
// attempted channel; a channel with no recipient address or a
// disabled preference is skipped silently.
type Dispatcher struct {
    store Store
    email Sender
    sms   Sender
}

// New constructs a Dispatcher.  All dependencies must be non-nil.
func New(store Store, email, sms Sender) *Dispatcher {
    if store == nil || email == nil || sms == nil {
        panic("nil dependency passed to notifier.New")
    }
    return &Dispatcher{store: store, email: email, sms: sms}
}

// Recipient describes who a notification is for, independent of which
// flow produced it.
type Recipient struct {
    UserID    *uint64
    BookingID uint64
    Email     string
    Phone     string
}

// DispatchConfirmation sends the booking-confirmed message on every
// enabled channel.  Called by the payment reconciler strictly after
// its transaction has committed; nothing here can fail in a way that
// affects the booking, and a failure on one channel never prevents
// the attempt on the other.
func (d *Dispatcher) DispatchConfirmation(ctx context.Context, rcpt Recipient, data map[string]string) {
    d.dispatch(ctx, rcpt, model.TemplateConfirmation, data)
}

// SendReminders is the hourly job body: it finds confirmed bookings
// departing within ReminderWindow that have no sent reminder yet and
// dispatches the reminder to each.  One booking's failure is logged
// and never aborts the rest of the batch.
func (d *Dispatcher) SendReminders(ctx context.Context, now time.Time) error {
    targets, err := d.store.DueForReminder(ctx, now, ReminderWindow)
    if err != nil {
        return fmt.Errorf("load reminder targets: %w", err)
    }
    for _, t := range targets {
        rcpt := Recipient{UserID: t.UserID, BookingID: t.BookingID, Email: t.CustomerEmail, Phone: t.CustomerPhone}
        data := map[string]string{
            "name":       t.CustomerName,
            "booking_id": fmt.Sprintf("%d", t.BookingID),
            "trip_id":    fmt.Sprintf("%d", t.TripID),
            "departs_at": t.StartTime.UTC().Format(time.RFC3339),
        }
        d.dispatch(ctx, rcpt, model.TemplateReminder, data)
    }
    return nil
}

// Cleanup is the daily job body: it purges sent notification rows
// older than RetentionWindow and returns how many were removed.
func (d *Dispatcher) Cleanup(ctx context.Context, now time.Time) (int64, error) {
    return d.store.PurgeSentBefore(ctx, now.Add(-RetentionWindow))
}

// dispatch attempts each channel independently and records one
// notification row per attempt.
func (d *Dispatcher) dispatch(ctx context.Context, rcpt Recipient, template string, data map[string]string) {
    if rcpt.Email != "" && d.allowed(ctx, rcpt.UserID, model.ChannelEmail, template) {
        d.attempt(ctx, rcpt, model.ChannelEmail, template, rcpt.Email, data)
    }
    if rcpt.Phone != "" && d.allowed(ctx, rcpt.UserID, model.ChannelSMS, template) {
        d.attempt(ctx, rcpt, model.ChannelSMS, template, rcpt.Phone, data)
    }
}

// attempt performs a single send and writes its outcome row.  Failing
// to write the row is logged but not fatal: for the reminder template
// it only means the guard query may redeliver on the next tick, which
// the provider side tolerates.
func (d *Dispatcher) attempt(ctx context.Context, rcpt Recipient, channel, template, address string, data map[string]string) {
    sender := d.email
    if channel == model.ChannelSMS {
        sender = d.sms
    }
    now := time.Now().UTC()
    row := &model.Notification{
        UserID:    rcpt.UserID,
        BookingID: rcpt.BookingID,
        Type:      channel,
        Template:  template,
        Status:    model.NotificationSent,
        SentAt:    &now,
        CreatedAt: now,
    }
    if err := sender.Send(ctx, address, template, data); err != nil {
        log.Printf("notifier: %s %s to booking %d failed: %v", channel, template, rcpt.BookingID, err)
        row.Status = model.NotificationFailed
        row.SentAt = nil
    }
    if err := d.store.Insert(ctx, row); err != nil {
        log.Printf("notifier: record %s %s for booking %d failed: %v", channel, template, rcpt.BookingID, err)
    }
}

// allowed evaluates the recipient's channel preference for a template.
// No recorded preference means enabled; guests have no user row, so
// they are always enabled.  A lookup error fails open: missing a
// notification is worse than sending one against a stale preference.
func (d *Dispatcher) allowed(ctx context.Context, userID *uint64, channel, template string) bool {
    if userID == nil {
        return true
    }
    prefs, err := d.store.PreferencesByUser(ctx, *userID)
    if err != nil {
        log.Printf("notifier: preference lookup for user %d failed: %v", *userID, err)
        return true
    }
    for _, p := range prefs {
        if p.Channel == channel && p.Template == template {
            return p.Enabled
        }
    }
    return true
}
