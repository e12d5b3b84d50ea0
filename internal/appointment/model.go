package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-availability/internal/availability"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is the stored record; the embedded value is what the
// availability checks see.
type Appointment struct {
	availability.Appointment
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type BookRequest struct {
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	ResourceID *uuid.UUID
	Start      time.Time
	End        time.Time
	Notes      *string
}

// RescheduleRequest moves an appointment. A nil ResourceID keeps the
// current resource.
type RescheduleRequest struct {
	Start      time.Time
	End        time.Time
	ResourceID *uuid.UUID
}
