// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrSeatTaken indicates that a seat is already part of a
// live booking for the trip, while ErrConflict signals that a
// conditional state transition matched zero rows because the row is
// no longer in the expected state.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update cannot be
// performed because of conflicting state, such as confirming a
// booking that has already been cancelled. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrSeatTaken is returned when booking creation violates the
// (trip_id, seat_id, active) uniqueness guard: another live booking
// already references one of the requested seats. The client should
// retry with a different seat.
var ErrSeatTaken = errors.New("seat already taken")
