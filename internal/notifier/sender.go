// Package notifier implements the notification send contract and the
// dispatcher that decides who gets which message on which channel.
// Sends are best-effort by design: every failure is caught, recorded
// on the notification row and logged, and never propagates into the
// financial flow that triggered it.
package notifier

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/queue"
)

// Sender delivers one message to one recipient.  An error return is a
// classified failure; implementations must never panic into the caller.
type Sender interface {
    Send(ctx context.Context, recipient, template string, data map[string]string) error
}

// AMQPSender publishes notification events to the durable
// notify.dispatch queue, where the provider-side consumer picks them
// up.  Publishing is the "send" of the contract here: once the broker
// has accepted a persistent message, delivery is the consumer's
// problem.  Each publish dials its own short-lived connection; the
// broker is local and the volume is low, so pooling is not worth the
// failure modes it brings.
type AMQPSender struct {
    url     string
    channel string // "email" or "sms"
}

// NewAMQPSender returns a sender for the given channel ("email"/"sms").
func NewAMQPSender(url, channel string) *AMQPSender {
    return &AMQPSender{url: url, channel: channel}
}

// Send publishes one notification event.  Any broker error is
// returned to the dispatcher, which records the attempt as failed.
func (s *AMQPSender) Send(ctx context.Context, recipient, template string, data map[string]string) error {
    conn, err := amqp.Dial(s.url)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(queue.DispatchQueueName, true, false, false, false, nil); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(queue.NotificationEvent{
        Channel:   s.channel,
        Recipient: recipient,
        Template:  template,
        Data:      data,
        QueuedAt:  time.Now().UTC().Format(time.RFC3339),
    })
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    if err := ch.PublishWithContext(ctx,
        "",                      // default exchange
        queue.DispatchQueueName, // routing key = queue name
        false,                   // mandatory
        false,                   // immediate
        pub,
    ); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}
