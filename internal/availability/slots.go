package availability

import (
	"iter"
	"time"
)

const (
	DefaultSlotStep    = 15 * time.Minute
	DefaultMaxDuration = 8 * time.Hour
)

// Policy holds the tunables shared by slot generation and booking validation.
type Policy struct {
	SlotStep    time.Duration
	MaxDuration time.Duration
}

func DefaultPolicy() Policy {
	return Policy{SlotStep: DefaultSlotStep, MaxDuration: DefaultMaxDuration}
}

func (p Policy) step() time.Duration {
	if p.SlotStep <= 0 {
		return DefaultSlotStep
	}
	return p.SlotStep
}

func (p Policy) maxDuration() time.Duration {
	if p.MaxDuration <= 0 {
		return DefaultMaxDuration
	}
	return p.MaxDuration
}

// GenerateSlots yields, in ascending order, every candidate of
// durationMinutes that starts on a SlotStep boundary from the provider's
// opening time on date, ends by closing time, stays clear of the break and
// does not overlap a blocking appointment of the provider.
//
// existing should already be narrowed to the provider and day; appointments
// of other providers are ignored. When hours.ProviderID is uuid.Nil every
// blocking appointment in existing counts. The sequence can be ranged over
// repeatedly.
func (p Policy) GenerateSlots(hours WorkingHours, date time.Time, existing []Appointment, durationMinutes int) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if durationMinutes <= 0 {
			return
		}
		win, ok := hours.On(date)
		if !ok {
			return
		}

		duration := time.Duration(durationMinutes) * time.Minute
		q := Query{ProviderID: hours.ProviderID}
		for t := win.Open.Start; !t.Add(duration).After(win.Open.End); t = t.Add(p.step()) {
			q.Interval = NewInterval(t, duration)
			if win.Break != nil && win.Break.Overlaps(q.Interval) {
				continue
			}
			if !IsAvailable(q, existing) {
				continue
			}
			if !yield(Slot{ProviderID: hours.ProviderID, Start: q.Interval.Start, End: q.Interval.End}) {
				return
			}
		}
	}
}
