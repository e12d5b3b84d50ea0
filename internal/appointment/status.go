package appointment

import "github.com/hackgods/dental-availability/internal/availability"

var nextStatus = map[availability.Status]availability.Status{
	availability.StatusScheduled:  availability.StatusConfirmed,
	availability.StatusConfirmed:  availability.StatusCheckedIn,
	availability.StatusCheckedIn:  availability.StatusInProgress,
	availability.StatusInProgress: availability.StatusCompleted,
}

// Terminal statuses accept no further transitions.
func Terminal(s availability.Status) bool {
	switch s {
	case availability.StatusCompleted, availability.StatusCancelled, availability.StatusNoShow:
		return true
	}
	return false
}

// CanTransition reports whether an appointment may move from one status to
// another: one step along scheduled → confirmed → checked_in → in_progress →
// completed, or to cancelled/no_show from any non-terminal status.
func CanTransition(from, to availability.Status) bool {
	if Terminal(from) || !to.Valid() {
		return false
	}
	if to == availability.StatusCancelled || to == availability.StatusNoShow {
		return true
	}
	return nextStatus[from] == to
}

// Reschedulable reports whether the appointment's time may still change.
func Reschedulable(s availability.Status) bool {
	return s == availability.StatusScheduled || s == availability.StatusConfirmed
}
