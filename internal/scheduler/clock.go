// Package scheduler runs the background automatons (trip status,
// booking expiry, reminders, cleanup) on fixed periods.  Time is an
// injected dependency so tests drive ticks with a fake clock instead
// of sleeping.
package scheduler

import "time"

// Clock supplies the current time to periodic tasks.
type Clock interface {
    Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// RealClock returns the wall clock, in UTC.
func RealClock() Clock { return realClock{} }
