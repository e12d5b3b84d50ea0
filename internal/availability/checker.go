package availability

import "github.com/google/uuid"

// Query describes a proposed booking to be checked against existing ones.
type Query struct {
	// ProviderID selects whose bookings compete. uuid.Nil means the caller
	// already narrowed the list, so every blocking appointment competes.
	ProviderID uuid.UUID
	ResourceID *uuid.UUID
	Interval   Interval

	// ExcludeAppointmentID is the appointment being edited; it never
	// conflicts with itself.
	ExcludeAppointmentID *uuid.UUID
}

func (q Query) competesWith(a Appointment) bool {
	if q.ExcludeAppointmentID != nil && a.ID == *q.ExcludeAppointmentID {
		return false
	}
	if !a.Status.Blocking() {
		return false
	}
	if q.ProviderID == uuid.Nil || a.ProviderID == q.ProviderID {
		return true
	}
	return q.ResourceID != nil && a.UsesResource(*q.ResourceID)
}

// FindConflicts returns the appointments, in input order, that block the
// queried interval for the provider or, when set, the resource. An empty
// result means the interval is free.
func FindConflicts(q Query, appointments []Appointment) []Appointment {
	var conflicts []Appointment
	for _, a := range appointments {
		if !q.competesWith(a) {
			continue
		}
		if a.Interval().Overlaps(q.Interval) {
			conflicts = append(conflicts, a)
		}
	}
	return conflicts
}

func IsAvailable(q Query, appointments []Appointment) bool {
	for _, a := range appointments {
		if q.competesWith(a) && a.Interval().Overlaps(q.Interval) {
			return false
		}
	}
	return true
}
