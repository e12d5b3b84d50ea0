package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-availability/internal/appointment"
	"github.com/hackgods/dental-availability/internal/availability"
)

// Service is the part of appointment.Service the HTTP layer uses.
type Service interface {
	BookAppointment(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, req appointment.RescheduleRequest) (*appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to availability.Status) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListProviderDay(ctx context.Context, providerID uuid.UUID, date time.Time) ([]appointment.Appointment, error)
	CheckAvailability(ctx context.Context, req availability.BookingRequest) (availability.Decision, []availability.Slot, error)
	AvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time, durationMinutes int) ([]availability.Slot, error)
	Location() *time.Location
}

type RouterConfig struct {
	Service Service
	Checks  []DependencyCheck
	Metrics *Metrics
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	logger := cfg.Logger.With().Str("component", "http").Logger()

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(metrics.Middleware)

	// Health and metrics
	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Availability
	r.Get("/providers/{id}/slots", providerSlotsHandler(cfg.Service, logger))
	r.Get("/providers/{id}/appointments", providerAppointmentsHandler(cfg.Service, logger))
	r.Post("/availability/check", checkAvailabilityHandler(cfg.Service, metrics, logger))

	// Appointments
	r.Post("/appointments", bookAppointmentHandler(cfg.Service, metrics, logger))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service, logger))
	r.Put("/appointments/{id}/schedule", rescheduleAppointmentHandler(cfg.Service, metrics, logger))
	r.Post("/appointments/{id}/status", updateStatusHandler(cfg.Service, logger))

	return r
}
