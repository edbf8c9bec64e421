package model

// Seat is a physical seat on a bus.  Seat identity is per bus, not
// per trip: the same seat row is sold independently for every trip
// the bus serves.  Seats are immutable once created.
//
// Fields:
//  ID         – primary key identifier.
//  BusID      – bus the seat belongs to.
//  SeatNumber – label printed on tickets (e.g. "A1").
type Seat struct {
    ID         uint64 // seats.id
    BusID      uint64 // seats.bus_id
    SeatNumber string // seats.seat_number
}
