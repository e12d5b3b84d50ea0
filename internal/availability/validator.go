package availability

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInterval     = errors.New("invalid appointment interval")
	ErrOutsideWorkingHours = errors.New("outside provider working hours")
	ErrSchedulingConflict  = errors.New("scheduling conflict")
)

// ConflictError carries the bookings that block a request.
type ConflictError struct {
	Conflicts []Appointment
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s at %s", c.ID, c.Start.Format("15:04")))
	}
	return fmt.Sprintf("%s: conflicts with %s", ErrSchedulingConflict, strings.Join(parts, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrSchedulingConflict }

type Outcome string

const (
	Accepted                    Outcome = "accepted"
	RejectedInvalidInterval     Outcome = "rejected_invalid_interval"
	RejectedOutsideWorkingHours Outcome = "rejected_outside_working_hours"
	RejectedConflict            Outcome = "rejected_conflict"
)

type BookingRequest struct {
	ProviderID           uuid.UUID
	ResourceID           *uuid.UUID
	Start                time.Time
	End                  time.Time
	ExcludeAppointmentID *uuid.UUID
}

func (r BookingRequest) Interval() Interval {
	return Interval{Start: r.Start, End: r.End}
}

func (r BookingRequest) query() Query {
	return Query{
		ProviderID:           r.ProviderID,
		ResourceID:           r.ResourceID,
		Interval:             r.Interval(),
		ExcludeAppointmentID: r.ExcludeAppointmentID,
	}
}

// BookingContext is the caller-supplied snapshot a request is judged against.
type BookingContext struct {
	WorkingHours WorkingHours
	Appointments []Appointment
}

// Decision is the result of ValidateBooking. Conflicts is set only for
// RejectedConflict.
type Decision struct {
	Outcome   Outcome
	Reason    string
	Conflicts []Appointment
}

func (d Decision) Accepted() bool {
	return d.Outcome == Accepted
}

// Err returns nil for an accepted booking and the matching error otherwise.
func (d Decision) Err() error {
	switch d.Outcome {
	case Accepted:
		return nil
	case RejectedInvalidInterval:
		return fmt.Errorf("%w: %s", ErrInvalidInterval, d.Reason)
	case RejectedOutsideWorkingHours:
		return fmt.Errorf("%w: %s", ErrOutsideWorkingHours, d.Reason)
	case RejectedConflict:
		return &ConflictError{Conflicts: d.Conflicts}
	}
	return fmt.Errorf("unknown booking outcome %q", d.Outcome)
}

// ValidateBooking checks, in order, that the interval is well formed, that it
// falls inside the provider's hours for that weekday and outside the break,
// and that no blocking appointment of the provider or resource overlaps it.
func (p Policy) ValidateBooking(req BookingRequest, bc BookingContext) Decision {
	iv := req.Interval()
	switch {
	case !iv.Valid():
		return Decision{Outcome: RejectedInvalidInterval, Reason: "start must be before end"}
	case iv.Duration() > p.maxDuration():
		return Decision{
			Outcome: RejectedInvalidInterval,
			Reason:  fmt.Sprintf("duration %s exceeds maximum %s", iv.Duration(), p.maxDuration()),
		}
	}

	win, ok := bc.WorkingHours.On(req.Start)
	if !ok {
		return Decision{
			Outcome: RejectedOutsideWorkingHours,
			Reason:  fmt.Sprintf("provider does not work on %s", req.Start.Weekday()),
		}
	}
	if !win.Open.Contains(iv) {
		return Decision{
			Outcome: RejectedOutsideWorkingHours,
			Reason: fmt.Sprintf("requested %s-%s is outside %s-%s",
				iv.Start.Format("15:04"), iv.End.Format("15:04"),
				win.Open.Start.Format("15:04"), win.Open.End.Format("15:04")),
		}
	}
	if win.Break != nil && win.Break.Overlaps(iv) {
		return Decision{
			Outcome: RejectedOutsideWorkingHours,
			Reason: fmt.Sprintf("requested time overlaps break %s-%s",
				win.Break.Start.Format("15:04"), win.Break.End.Format("15:04")),
		}
	}

	if conflicts := FindConflicts(req.query(), bc.Appointments); len(conflicts) > 0 {
		return Decision{
			Outcome:   RejectedConflict,
			Reason:    fmt.Sprintf("%d overlapping appointment(s)", len(conflicts)),
			Conflicts: conflicts,
		}
	}
	return Decision{Outcome: Accepted}
}

// Alternatives lists up to limit free slots on the requested day with the
// requested duration, rounded up to whole minutes. When the request names a
// resource, slots that would clash on that resource are dropped. limit <= 0
// means no limit.
func (p Policy) Alternatives(req BookingRequest, bc BookingContext, limit int) []Slot {
	iv := req.Interval()
	if !iv.Valid() {
		return nil
	}
	minutes := int(math.Ceil(iv.Duration().Minutes()))

	q := req.query()
	existing := bc.Appointments
	if req.ExcludeAppointmentID != nil {
		existing = make([]Appointment, 0, len(bc.Appointments))
		for _, a := range bc.Appointments {
			if a.ID != *req.ExcludeAppointmentID {
				existing = append(existing, a)
			}
		}
	}

	hours := bc.WorkingHours
	hours.ProviderID = req.ProviderID

	var out []Slot
	for s := range p.GenerateSlots(hours, req.Start, existing, minutes) {
		q.Interval = s.Interval()
		if req.ResourceID != nil && !IsAvailable(q, existing) {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
