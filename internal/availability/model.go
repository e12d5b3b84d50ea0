package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Blocking reports whether an appointment in this status occupies its time.
// Cancelled and no-show appointments free the slot.
func (s Status) Blocking() bool {
	return s != StatusCancelled && s != StatusNoShow
}

type ResourceType string

const (
	ResourceChair     ResourceType = "chair"
	ResourceOperatory ResourceType = "operatory"
	ResourceEquipment ResourceType = "equipment"
	ResourceRoom      ResourceType = "room"
)

func (t ResourceType) Valid() bool {
	switch t {
	case ResourceChair, ResourceOperatory, ResourceEquipment, ResourceRoom:
		return true
	}
	return false
}

type Resource struct {
	ID        uuid.UUID
	Type      ResourceType
	Name      string
	Available bool
}

type Appointment struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	ResourceID *uuid.UUID
	PatientID  uuid.UUID
	Start      time.Time
	End        time.Time
	Status     Status
}

func (a Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.End}
}

// UsesResource reports whether the appointment holds resource id.
func (a Appointment) UsesResource(id uuid.UUID) bool {
	return a.ResourceID != nil && *a.ResourceID == id
}

// Slot is a bookable candidate produced by the slot generator.
type Slot struct {
	ProviderID uuid.UUID
	Start      time.Time
	End        time.Time
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

var ErrInvalidWorkingHours = errors.New("invalid working hours")

// DayHours is one weekday of a provider's template.
type DayHours struct {
	Open  ClockRange  `json:"open" yaml:"open"`
	Break *ClockRange `json:"break,omitempty" yaml:"break,omitempty"`
}

func (d DayHours) validate() error {
	if d.Open.Start < 0 || d.Open.End > minutesPerDay || d.Open.Start >= d.Open.End {
		return fmt.Errorf("open %s-%s must satisfy start < end", d.Open.Start, d.Open.End)
	}
	if d.Break == nil {
		return nil
	}
	b := *d.Break
	if b.Start >= b.End || b.Start < d.Open.Start || b.End > d.Open.End {
		return fmt.Errorf("break %s-%s must lie within open %s-%s", b.Start, b.End, d.Open.Start, d.Open.End)
	}
	return nil
}

// WorkingHours is a provider's weekly template. A weekday absent from Days
// is a day off.
type WorkingHours struct {
	ProviderID uuid.UUID
	Days       map[time.Weekday]DayHours
}

func (w WorkingHours) Validate() error {
	for day, hours := range w.Days {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: unknown weekday %d", ErrInvalidWorkingHours, day)
		}
		if err := hours.validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidWorkingHours, day, err)
		}
	}
	return nil
}

// DayWindow is a weekday template anchored to a concrete date.
type DayWindow struct {
	Open  Interval
	Break *Interval
}

// On returns the window for the calendar day of date, in date's location.
func (w WorkingHours) On(date time.Time) (DayWindow, bool) {
	hours, ok := w.Days[date.Weekday()]
	if !ok {
		return DayWindow{}, false
	}
	win := DayWindow{Open: hours.Open.On(date)}
	if hours.Break != nil {
		b := hours.Break.On(date)
		win.Break = &b
	}
	return win, true
}

// Admits reports whether iv lies inside the open window and clear of the break.
func (d DayWindow) Admits(iv Interval) bool {
	if !d.Open.Contains(iv) {
		return false
	}
	return d.Break == nil || !d.Break.Overlaps(iv)
}
