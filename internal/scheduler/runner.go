package scheduler

import (
    "context"
    "log"
    "time"
)

// Task is one periodic unit of work.  The runner passes in the
// current time so tasks never read the wall clock themselves.
type Task func(ctx context.Context, now time.Time) error

// Runner executes a named task on a fixed period.  A failing tick is
// logged and the next tick runs normally; the jobs themselves are
// written so overlap with live traffic is benign (their updates are
// conditional on current state), so the runner needs no locking.
type Runner struct {
    name  string
    every time.Duration
    clock Clock
    task  Task
}

// NewRunner constructs a Runner.  every must be positive.
func NewRunner(name string, every time.Duration, clock Clock, task Task) *Runner {
    if every <= 0 {
        panic("scheduler: non-positive interval for " + name)
    }
    if clock == nil {
        clock = RealClock()
    }
    return &Runner{name: name, every: every, clock: clock, task: task}
}

// Start runs the loop until the context is cancelled.  It ticks once
// immediately so a restarted process catches up without waiting a
// full period.
func (r *Runner) Start(ctx context.Context) {
    r.RunOnce(ctx)
    ticker := time.NewTicker(r.every)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            r.RunOnce(ctx)
        }
    }
}

// RunOnce executes a single tick with the clock's current time.
// Exposed so tests can advance a fake clock and call ticks directly.
func (r *Runner) RunOnce(ctx context.Context) {
    if err := r.task(ctx, r.clock.Now()); err != nil {
        log.Printf("scheduler: %s tick failed: %v", r.name, err)
    }
}
