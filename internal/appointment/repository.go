package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-availability/internal/availability"
)

var (
	ErrPatientNotFound        = errors.New("patient not found")
	ErrProviderNotFound       = errors.New("provider not found")
	ErrResourceNotFound       = errors.New("resource not found")
	ErrAppointmentNotFound    = errors.New("appointment not found")
	ErrOverlappingAppointment = errors.New("appointment overlaps an existing booking")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetResourceByID(ctx context.Context, id uuid.UUID) (*availability.Resource, error)

	// GetWorkingHours returns the provider's weekly template; a provider
	// with no rows gets an empty template.
	GetWorkingHours(ctx context.Context, providerID uuid.UUID) (availability.WorkingHours, error)

	// For conflict checks: blocking appointments of the provider, or holding
	// the resource when given, that overlap window.
	ListBlockingAppointments(ctx context.Context, providerID uuid.UUID, resourceID *uuid.UUID, window availability.Interval) ([]availability.Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID, window availability.Interval) ([]Appointment, error)

	// Creation and updates. Writes that would overlap a blocking booking
	// fail with ErrOverlappingAppointment.
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, start, end time.Time, resourceID *uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to availability.Status) (*Appointment, error)

	// No-show worker
	FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
