// Package realtime publishes seat lock/unlock/sold events to a
// per-trip Redis pub/sub channel so seat maps can update without
// polling.  The feed is advisory only: correctness never depends on a
// subscriber receiving an event, so publish errors are logged and
// swallowed.
package realtime

import (
    "context"
    "encoding/json"
    "fmt"
    "log"

    "github.com/redis/go-redis/v9"
)

// Seat event names carried on the trip channel.
const (
    EventSeatLocked   = "SEAT_LOCKED"
    EventSeatUnlocked = "SEAT_UNLOCKED"
    EventSeatSold     = "SEAT_SOLD"
)

// SeatEvent is the JSON message published for every seat transition.
type SeatEvent struct {
    Event string        `json:"event"`
    Data  SeatEventData `json:"data"`
}

// SeatEventData identifies the seat the event concerns.
type SeatEventData struct {
    SeatID uint64 `json:"seat_id"`
}

// Broadcaster publishes seat events over Redis pub/sub.  A nil Redis
// client disables broadcasting entirely; every publish becomes a
// no-op, mirroring how the rest of the service degrades when Redis
// is unavailable for non-correctness features.
type Broadcaster struct {
    rdb *redis.Client
}

// New returns a Broadcaster.  rdb may be nil to disable the feed.
func New(rdb *redis.Client) *Broadcaster { return &Broadcaster{rdb: rdb} }

// Channel returns the pub/sub channel name for a trip.
func Channel(tripID uint64) string {
    return fmt.Sprintf("trip:%d:seats", tripID)
}

// Publish sends one seat event on the trip channel.  Failures are
// logged and ignored; the caller's transaction has already committed
// and must not care.
func (b *Broadcaster) Publish(ctx context.Context, tripID uint64, event string, seatID uint64) {
    if b.rdb == nil {
        return
    }
    body, err := json.Marshal(SeatEvent{Event: event, Data: SeatEventData{SeatID: seatID}})
    if err != nil {
        log.Printf("realtime: marshal seat event failed: %v", err)
        return
    }
    if err := b.rdb.Publish(ctx, Channel(tripID), body).Err(); err != nil {
        log.Printf("realtime: publish to %s failed: %v", Channel(tripID), err)
    }
}

// Subscribe opens a subscription to a trip's seat channel.  The caller
// owns the returned PubSub and must Close it.  Returns nil when
// broadcasting is disabled.
func (b *Broadcaster) Subscribe(ctx context.Context, tripID uint64) *redis.PubSub {
    if b.rdb == nil {
        return nil
    }
    return b.rdb.Subscribe(ctx, Channel(tripID))
}
