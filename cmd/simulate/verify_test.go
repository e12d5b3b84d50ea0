package main

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-availability/internal/availability"
)

func TestOverlapViolations(t *testing.T) {
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	at := func(clock string) time.Time { return availability.MustClock(clock).On(day) }
	providerA, providerB, chair := uuid.New(), uuid.New(), uuid.New()

	appts := []availability.Appointment{
		{ID: uuid.New(), ProviderID: providerA, Start: at("09:00"), End: at("10:00"), Status: availability.StatusScheduled},
		{ID: uuid.New(), ProviderID: providerA, Start: at("10:00"), End: at("11:00"), Status: availability.StatusScheduled},
		{ID: uuid.New(), ProviderID: providerB, ResourceID: &chair, Start: at("09:30"), End: at("10:30"), Status: availability.StatusConfirmed},
	}
	if got := overlapViolations(appts); len(got) != 0 {
		t.Fatalf("expected no violations, got %v", got)
	}

	appts = append(appts, availability.Appointment{
		ID: uuid.New(), ProviderID: providerA, ResourceID: &chair, Start: at("10:15"), End: at("10:45"), Status: availability.StatusScheduled,
	})
	// Clashes with providerA's 10:00 booking and with the chair at 09:30.
	if got := overlapViolations(appts); len(got) != 2 {
		t.Fatalf("expected 2 violations, got %v", got)
	}
}

func TestNextWeekday(t *testing.T) {
	saturday := time.Date(2026, 10, 17, 15, 4, 0, 0, time.UTC)
	got := nextWeekday(saturday, time.Monday)
	if want := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}

	monday := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	if got := nextWeekday(monday, time.Monday); got.Day() != 26 {
		t.Errorf("expected the following Monday, got %s", got)
	}
}
