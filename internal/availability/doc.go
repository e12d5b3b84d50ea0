// Package availability decides whether a dental appointment can be booked.
//
// Everything here is a pure function of its arguments: callers load the
// provider's working hours and the day's appointments from storage and pass
// them in on every call. Nothing is cached and nothing is locked, so a positive
// answer is not a reservation. Writers must serialize per provider (see
// internal/redis) or rely on the store's exclusion constraints.
//
// All intervals are half-open, [start, end).
package availability
