package model

import (
    "testing"
    "time"
)

func TestIsExpiredOnlyAppliesToPendingBookings(t *testing.T) {
    now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
    cases := []struct {
        name      string
        status    string
        expiresAt time.Time
        want      bool
    }{
        {"pending inside window", BookingPendingPayment, now.Add(time.Minute), false},
        {"pending at the boundary", BookingPendingPayment, now, true},
        {"pending past window", BookingPendingPayment, now.Add(-time.Minute), true},
        {"confirmed never expires", BookingConfirmed, now.Add(-time.Hour), false},
        {"cancelled never expires", BookingCancelled, now.Add(-time.Hour), false},
    }
    for _, tc := range cases {
        b := Booking{Status: tc.status, ExpiresAt: tc.expiresAt}
        if got := b.IsExpired(now); got != tc.want {
            t.Fatalf("%s: IsExpired = %v, want %v", tc.name, got, tc.want)
        }
    }
}
