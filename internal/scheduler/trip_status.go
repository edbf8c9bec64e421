package scheduler

import (
    "context"
    "log"
    "time"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
)

// TripStatusJob advances trip status along wall-clock time:
// scheduled trips whose departure has passed become ongoing, ongoing
// trips whose arrival has passed become completed.  Both updates are
// conditional on the current status, so running the job twice in a
// row (or concurrently on two instances) produces no double
// transition, and cancelled trips are never touched.
type TripStatusJob struct {
    trips *repository.TripRepo
}

// NewTripStatusJob constructs the job.
func NewTripStatusJob(trips *repository.TripRepo) *TripStatusJob {
    return &TripStatusJob{trips: trips}
}

// Run performs one tick.  The ongoing->completed pass runs first so a
// trip whose entire duration fits inside one tick still takes two
// ticks to complete, preserving the scheduled->ongoing->completed
// order for observers.
func (j *TripStatusJob) Run(ctx context.Context, now time.Time) error {
    completed, err := j.trips.AdvanceOngoingToCompleted(ctx, now)
    if err != nil {
        return err
    }
    started, err := j.trips.AdvanceScheduledToOngoing(ctx, now)
    if err != nil {
        return err
    }
    if started > 0 || completed > 0 {
        log.Printf("scheduler: trip-status moved %d to ongoing, %d to completed", started, completed)
    }
    return nil
}
