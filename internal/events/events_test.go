package events

import (
	"context"
	"testing"
)

func TestSubject(t *testing.T) {
	cases := map[string]string{
		AppointmentBooked:        "dental.appointments.booked",
		AppointmentRescheduled:   "dental.appointments.rescheduled",
		AppointmentStatusChanged: "dental.appointments.status_changed",
	}
	for in, want := range cases {
		if got := Subject(in); got != want {
			t.Errorf("Subject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), Event{Type: AppointmentBooked}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
