package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-availability/internal/availability"
	"github.com/hackgods/dental-availability/internal/config"
	"github.com/hackgods/dental-availability/internal/events"
	redisclient "github.com/hackgods/dental-availability/internal/redis"
)

// maxAlternatives caps the slots suggested with a conflict.
const maxAlternatives = 5

var (
	ErrBookingInProgress       = errors.New("provider schedule is being updated, please retry")
	ErrResourceUnavailable     = errors.New("resource is not available for booking")
	ErrInvalidStatus           = errors.New("unknown appointment status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNotReschedulable        = errors.New("appointment can no longer be rescheduled")
	ErrNoLocker                = errors.New("service has no schedule locker")
)

// noLocker backs a Service that only runs status sweeps. Booking and
// rescheduling through it fail instead of writing unserialized.
type noLocker struct{}

func (noLocker) WithLock(context.Context, []string, func(context.Context) error) error {
	return ErrNoLocker
}

// RejectionError is returned when the booking validator turns a request
// down. It unwraps to the availability error for the outcome, so
// errors.Is(err, availability.ErrSchedulingConflict) works.
type RejectionError struct {
	Decision     availability.Decision
	Alternatives []availability.Slot
}

func (e *RejectionError) Error() string {
	return e.Decision.Err().Error()
}

func (e *RejectionError) Unwrap() error {
	return e.Decision.Err()
}

type Service struct {
	repo        Repository
	locker      redisclient.Locker
	publisher   events.Publisher
	policy      availability.Policy
	noShowGrace time.Duration
	loc         *time.Location
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService builds the appointment service. A nil locker is allowed for
// processes that never book, such as the no-show worker.
func NewService(repo Repository, locker redisclient.Locker, publisher events.Publisher, cfg config.Config, logger zerolog.Logger) *Service {
	if locker == nil {
		locker = noLocker{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:        repo,
		locker:      locker,
		publisher:   publisher,
		policy:      cfg.Policy(),
		noShowGrace: cfg.NoShowGrace,
		loc:         loc,
		logger:      logger.With().Str("component", "appointment_service").Logger(),
		now:         time.Now,
	}
}

// Location is the clinic-local zone used for weekdays and working hours.
func (s *Service) Location() *time.Location {
	return s.loc
}

// snapshot loads what the validator needs to judge an interval starting on
// the day of start.
func (s *Service) snapshot(ctx context.Context, providerID uuid.UUID, resourceID *uuid.UUID, start, end time.Time) (availability.BookingContext, error) {
	hours, err := s.repo.GetWorkingHours(ctx, providerID)
	if err != nil {
		return availability.BookingContext{}, fmt.Errorf("load working hours: %w", err)
	}

	window := dayWindow(start)
	if end.After(window.End) {
		window.End = end
	}
	appts, err := s.repo.ListBlockingAppointments(ctx, providerID, resourceID, window)
	if err != nil {
		return availability.BookingContext{}, fmt.Errorf("load appointments: %w", err)
	}

	return availability.BookingContext{WorkingHours: hours, Appointments: appts}, nil
}

func dayWindow(t time.Time) availability.Interval {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return availability.Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

func lockKeys(providerID uuid.UUID, resourceID *uuid.UUID) []string {
	keys := []string{redisclient.ProviderKey(providerID)}
	if resourceID != nil {
		keys = append(keys, redisclient.ResourceKey(*resourceID))
	}
	return keys
}

func (s *Service) checkResource(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	res, err := s.repo.GetResourceByID(ctx, *id)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return err
		}
		return fmt.Errorf("load resource: %w", err)
	}
	if !res.Available {
		return ErrResourceUnavailable
	}
	return nil
}

// validate runs the booking validator and, on a conflict, attaches
// alternative slots for the same day and duration.
func (s *Service) validate(req availability.BookingRequest, bc availability.BookingContext) error {
	decision := s.policy.ValidateBooking(req, bc)
	if decision.Accepted() {
		return nil
	}
	rej := &RejectionError{Decision: decision}
	if decision.Outcome == availability.RejectedConflict {
		rej.Alternatives = s.policy.Alternatives(req, bc, maxAlternatives)
	}
	return rej
}

// CheckAvailability evaluates a booking without writing anything. The
// answer is advisory; only BookAppointment and RescheduleAppointment hold
// the schedule lock. A resource that is missing or out of service fails
// with the same error a booking would.
func (s *Service) CheckAvailability(ctx context.Context, req availability.BookingRequest) (availability.Decision, []availability.Slot, error) {
	if err := s.checkResource(ctx, req.ResourceID); err != nil {
		return availability.Decision{}, nil, err
	}

	req.Start = req.Start.In(s.loc)
	req.End = req.End.In(s.loc)

	bc, err := s.snapshot(ctx, req.ProviderID, req.ResourceID, req.Start, req.End)
	if err != nil {
		return availability.Decision{}, nil, err
	}
	decision := s.policy.ValidateBooking(req, bc)
	var alternatives []availability.Slot
	if decision.Outcome == availability.RejectedConflict {
		alternatives = s.policy.Alternatives(req, bc, maxAlternatives)
	}
	return decision, alternatives, nil
}

// AvailableSlots lists the free slots of durationMinutes for a provider on
// the calendar day of date.
func (s *Service) AvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time, durationMinutes int) ([]availability.Slot, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	date = date.In(s.loc)
	bc, err := s.snapshot(ctx, providerID, nil, date, date)
	if err != nil {
		return nil, err
	}
	return slices.Collect(s.policy.GenerateSlots(bc.WorkingHours, date, bc.Appointments, durationMinutes)), nil
}

// BookAppointment validates and stores a new appointment. The provider (and
// resource) lock makes the read-validate-write sequence atomic across
// replicas; the store's exclusion constraints back it up.
func (s *Service) BookAppointment(ctx context.Context, in BookRequest) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetProviderByID(ctx, in.ProviderID); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if err := s.checkResource(ctx, in.ResourceID); err != nil {
		return nil, err
	}

	req := availability.BookingRequest{
		ProviderID: in.ProviderID,
		ResourceID: in.ResourceID,
		Start:      in.Start.In(s.loc),
		End:        in.End.In(s.loc),
	}

	var created *Appointment
	err := s.locker.WithLock(ctx, lockKeys(in.ProviderID, in.ResourceID), func(lockCtx context.Context) error {
		bc, err := s.snapshot(lockCtx, req.ProviderID, req.ResourceID, req.Start, req.End)
		if err != nil {
			return err
		}
		if err := s.validate(req, bc); err != nil {
			return err
		}

		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			Appointment: availability.Appointment{
				ID:         uuid.New(),
				ProviderID: req.ProviderID,
				ResourceID: req.ResourceID,
				PatientID:  in.PatientID,
				Start:      req.Start,
				End:        req.End,
				Status:     availability.StatusScheduled,
			},
			Notes: in.Notes,
		})
		if err != nil {
			if errors.Is(err, ErrOverlappingAppointment) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
		return nil, err
	}

	s.recordEvent(ctx, created, events.AppointmentBooked, map[string]any{
		"patient_id": created.PatientID.String(),
		"start":      created.Start,
		"end":        created.End,
	})
	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("provider_id", created.ProviderID.String()).
		Time("start", created.Start).
		Msg("appointment booked")

	return created, nil
}

// RescheduleAppointment moves an appointment to a new interval, validating
// it as if it were new but ignoring its own current booking.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, in RescheduleRequest) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !Reschedulable(appt.Status) {
		return nil, ErrNotReschedulable
	}

	resourceID := appt.ResourceID
	if in.ResourceID != nil {
		resourceID = in.ResourceID
		if err := s.checkResource(ctx, resourceID); err != nil {
			return nil, err
		}
	}

	req := availability.BookingRequest{
		ProviderID:           appt.ProviderID,
		ResourceID:           resourceID,
		Start:                in.Start.In(s.loc),
		End:                  in.End.In(s.loc),
		ExcludeAppointmentID: &appt.ID,
	}

	var updated *Appointment
	err = s.locker.WithLock(ctx, lockKeys(req.ProviderID, req.ResourceID), func(lockCtx context.Context) error {
		bc, err := s.snapshot(lockCtx, req.ProviderID, req.ResourceID, req.Start, req.End)
		if err != nil {
			return err
		}
		if err := s.validate(req, bc); err != nil {
			return err
		}

		moved, err := s.repo.RescheduleAppointment(lockCtx, appt.ID, req.Start, req.End, req.ResourceID)
		if err != nil {
			switch {
			case errors.Is(err, ErrAppointmentNotFound):
				// status changed since we loaded it
				return ErrNotReschedulable
			case errors.Is(err, ErrOverlappingAppointment):
				return err
			}
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		updated = moved
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
		return nil, err
	}

	s.recordEvent(ctx, updated, events.AppointmentRescheduled, map[string]any{
		"previous_start": appt.Start,
		"previous_end":   appt.End,
		"start":          updated.Start,
		"end":            updated.End,
	})

	return updated, nil
}

// UpdateStatus applies one lifecycle transition. Status changes never make
// a free interval busy, so no schedule lock is taken.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to availability.Status) (*Appointment, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, appt.Status, to)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidStatusTransition)
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.recordEvent(ctx, updated, events.AppointmentStatusChanged, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
	})

	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListProviderDay returns every appointment of the provider on the calendar
// day of date, cancelled ones included.
func (s *Service) ListProviderDay(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	appts, err := s.repo.ListAppointmentsByProvider(ctx, providerID, dayWindow(date.In(s.loc)))
	if err != nil {
		return nil, fmt.Errorf("list provider appointments: %w", err)
	}
	return appts, nil
}

// MarkNoShows is intended to be called by the worker periodically. It moves
// scheduled or confirmed appointments that ended more than the grace period
// ago to no_show, which frees their interval.
func (s *Service) MarkNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.noShowGrace)
	overdue, err := s.repo.FindOverdue(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	marked := 0
	for _, appt := range overdue {
		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, availability.StatusNoShow)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to mark no-show")
			}
			continue
		}
		marked++
		s.recordEvent(ctx, updated, events.AppointmentStatusChanged, map[string]any{
			"from":   string(appt.Status),
			"to":     string(availability.StatusNoShow),
			"reason": "worker",
		})
	}

	return marked, nil
}

// recordEvent writes the audit row and announces the change. Failures are
// logged, never returned: the appointment write already succeeded.
func (s *Service) recordEvent(ctx context.Context, appt *Appointment, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appt.ID
	now := s.now()

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     now,
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Str("appointment_id", apptID.String()).Msg("failed to insert event log")
	}

	if err := s.publisher.Publish(ctx, events.Event{
		Type:          eventType,
		AppointmentID: apptID,
		ProviderID:    appt.ProviderID,
		Payload:       payload,
		OccurredAt:    now,
	}); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("appointment_id", apptID.String()).Msg("failed to publish event")
	}
}
