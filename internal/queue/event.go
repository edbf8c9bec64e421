// Package queue defines message payloads exchanged over the message
// broker and the background consumer that delivers them.
package queue

// DispatchQueueName is the durable queue notification sends travel on.
const DispatchQueueName = "notify.dispatch"

// NotificationEvent is published for every notification send.  It
// carries everything the provider end needs to render and deliver the
// message without querying the primary database.
type NotificationEvent struct {
    Channel   string            `json:"channel"`  // "email" or "sms"
    Recipient string            `json:"recipient"`
    Template  string            `json:"template"` // confirmation, reminder, ...
    Data      map[string]string `json:"data"`     // template variables
    QueuedAt  string            `json:"queued_at"`
}
