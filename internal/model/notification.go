package model

import "time"

// Notification channels.
const (
    ChannelEmail = "email"
    ChannelSMS   = "sms"
)

// Notification templates.
const (
    TemplateConfirmation = "confirmation"
    TemplateReminder     = "reminder"
    TemplateDelay        = "delay"
    TemplateCancellation = "cancellation"
    TemplateOTP          = "otp"
)

// Notification delivery status values.
const (
    NotificationPending = "pending"
    NotificationSent    = "sent"
    NotificationFailed  = "failed"
)

// Notification records one delivery attempt on one channel.  For
// one-shot templates such as the departure reminder, the existence of
// a sent row for (booking, template) is the idempotency guard that
// stops the hourly sweep from sending again.  Rows older than the
// retention window are purged by the cleanup job.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – recipient user, if known (nil for guest bookings).
//  BookingID – booking the notification concerns.
//  Type      – delivery channel (ChannelEmail or ChannelSMS).
//  Template  – message template (Template* constants).
//  Status    – delivery outcome.
//  SentAt    – when delivery succeeded (nil otherwise).
//  CreatedAt – creation timestamp (UTC).
type Notification struct {
    ID        uint64     // notifications.id
    UserID    *uint64    // notifications.user_id (nullable)
    BookingID uint64     // notifications.booking_id
    Type      string     // notifications.type
    Template  string     // notifications.template
    Status    string     // notifications.status
    SentAt    *time.Time // notifications.sent_at (nullable)
    CreatedAt time.Time  // notifications.created_at
}

// ChannelPreference is one row of a user's notification settings: a
// (channel, template) pair that is explicitly enabled or disabled.
// Absence of a row means the channel is enabled, so a user with no
// recorded preferences receives everything.
type ChannelPreference struct {
    UserID   uint64 // notification_preferences.user_id
    Channel  string // notification_preferences.channel
    Template string // notification_preferences.template
    Enabled  bool   // notification_preferences.enabled
}
