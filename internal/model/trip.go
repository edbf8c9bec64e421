package model

import "time"

// Trip status values.  Status only moves forward in time
// (scheduled -> ongoing -> completed); the single exception is a
// manual cancellation of a trip that has not yet departed.
const (
    TripScheduled = "scheduled"
    TripOngoing   = "ongoing"
    TripCompleted = "completed"
    TripCancelled = "cancelled"
)

// Trip represents a single departure of a bus along a route.  Trips
// are created by itinerary authoring, which is outside this service;
// here they are only read for booking validation and advanced by the
// time-based status job.
//
// Fields:
//  ID        – primary key identifier.
//  BusID     – bus serving this trip.
//  RouteID   – route the trip runs on.
//  StartTime  – scheduled departure (UTC); always before EndTime.
//  EndTime    – scheduled arrival (UTC).
//  PriceCents – per-seat fare for this trip.
//  Status     – one of the Trip* constants above.
type Trip struct {
    ID         uint64    // trips.id
    BusID      uint64    // trips.bus_id
    RouteID    uint64    // trips.route_id
    StartTime  time.Time // trips.start_time
    EndTime    time.Time // trips.end_time
    PriceCents uint32    // trips.price_cents
    Status     string    // trips.status
}

// DepartsAfter reports whether the trip has not yet departed at the
// given instant.  Booking creation rejects trips already underway.
func (t *Trip) DepartsAfter(now time.Time) bool {
    return t.StartTime.After(now)
}
