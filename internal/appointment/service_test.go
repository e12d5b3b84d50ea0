package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-availability/internal/availability"
	"github.com/hackgods/dental-availability/internal/config"
	"github.com/hackgods/dental-availability/internal/events"
	redisclient "github.com/hackgods/dental-availability/internal/redis"
)

// 2026-10-19 is a Monday.
var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func at(day time.Time, clock string) time.Time {
	return availability.MustClock(clock).On(day)
}

// memRepo is an in-memory Repository. Like the Postgres schema, it refuses
// blocking appointments that overlap on provider or resource.
type memRepo struct {
	mu        sync.Mutex
	patients  map[uuid.UUID]*Patient
	providers map[uuid.UUID]*Provider
	resources map[uuid.UUID]*availability.Resource
	hours     map[uuid.UUID]availability.WorkingHours
	appts     map[uuid.UUID]*Appointment
	events    []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients:  map[uuid.UUID]*Patient{},
		providers: map[uuid.UUID]*Provider{},
		resources: map[uuid.UUID]*availability.Resource{},
		hours:     map[uuid.UUID]availability.WorkingHours{},
		appts:     map[uuid.UUID]*Appointment{},
	}
}

func (r *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (r *memRepo) GetProviderByID(_ context.Context, id uuid.UUID) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return p, nil
}

func (r *memRepo) GetResourceByID(_ context.Context, id uuid.UUID) (*availability.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[id]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return res, nil
}

func (r *memRepo) GetWorkingHours(_ context.Context, providerID uuid.UUID) (availability.WorkingHours, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hours[providerID]; ok {
		return h, nil
	}
	return availability.WorkingHours{ProviderID: providerID}, nil
}

func (r *memRepo) ListBlockingAppointments(_ context.Context, providerID uuid.UUID, resourceID *uuid.UUID, window availability.Interval) ([]availability.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []availability.Appointment
	for _, a := range r.appts {
		if !a.Status.Blocking() || !a.Interval().Overlaps(window) {
			continue
		}
		if a.ProviderID == providerID || (resourceID != nil && a.UsesResource(*resourceID)) {
			out = append(out, a.Appointment)
		}
	}
	return out, nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) ListAppointmentsByProvider(_ context.Context, providerID uuid.UUID, window availability.Interval) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appts {
		if a.ProviderID == providerID && a.Interval().Overlaps(window) {
			out = append(out, *a)
		}
	}
	return out, nil
}

// overlapsLocked mimics the exclusion constraints.
func (r *memRepo) overlapsLocked(a *Appointment) bool {
	if !a.Status.Blocking() {
		return false
	}
	for _, other := range r.appts {
		if other.ID == a.ID || !other.Status.Blocking() || !other.Interval().Overlaps(a.Interval()) {
			continue
		}
		if other.ProviderID == a.ProviderID {
			return true
		}
		if a.ResourceID != nil && other.UsesResource(*a.ResourceID) {
			return true
		}
	}
	return false
}

func (r *memRepo) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overlapsLocked(a) {
		return nil, ErrOverlappingAppointment
	}
	cp := *a
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.appts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memRepo) RescheduleAppointment(_ context.Context, id uuid.UUID, start, end time.Time, resourceID *uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || !Reschedulable(a.Status) {
		return nil, ErrAppointmentNotFound
	}
	moved := *a
	moved.Start, moved.End, moved.ResourceID = start, end, resourceID
	if r.overlapsLocked(&moved) {
		return nil, ErrOverlappingAppointment
	}
	r.appts[id] = &moved
	out := moved
	return &out, nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to availability.Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	out := *a
	return &out, nil
}

func (r *memRepo) FindOverdue(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appts {
		if Reschedulable(a.Status) && a.End.Before(cutoff) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

// mutexLocker serializes every critical section, like a single Redis lock
// that callers wait on.
type mutexLocker struct {
	mu   sync.Mutex
	busy bool
}

func (l *mutexLocker) WithLock(ctx context.Context, _ []string, fn func(context.Context) error) error {
	if l.busy {
		return redisclient.ErrLockNotAcquired
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type fixture struct {
	svc       *Service
	repo      *memRepo
	locker    *mutexLocker
	publisher *recordingPublisher
	provider  uuid.UUID
	patient   uuid.UUID
	chair     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMemRepo()
	f := &fixture{
		repo:      repo,
		locker:    &mutexLocker{},
		publisher: &recordingPublisher{},
		provider:  uuid.New(),
		patient:   uuid.New(),
		chair:     uuid.New(),
	}
	repo.providers[f.provider] = &Provider{ID: f.provider, Name: "Dr. Molar"}
	repo.patients[f.patient] = &Patient{ID: f.patient, Name: "Pat Ient"}
	repo.resources[f.chair] = &availability.Resource{ID: f.chair, Type: availability.ResourceChair, Name: "Chair 1", Available: true}

	day := availability.DayHours{
		Open:  availability.ClockRange{Start: availability.MustClock("08:00"), End: availability.MustClock("17:00")},
		Break: &availability.ClockRange{Start: availability.MustClock("12:00"), End: availability.MustClock("13:00")},
	}
	hours := availability.WorkingHours{ProviderID: f.provider, Days: map[time.Weekday]availability.DayHours{}}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		hours.Days[wd] = day
	}
	repo.hours[f.provider] = hours

	cfg := config.Config{
		SlotStep:    15 * time.Minute,
		MaxDuration: 8 * time.Hour,
		NoShowGrace: 30 * time.Minute,
		Location:    time.UTC,
	}
	f.svc = NewService(repo, f.locker, f.publisher, cfg, zerolog.Nop())
	return f
}

func (f *fixture) book(t *testing.T, start, end string) *Appointment {
	t.Helper()
	appt, err := f.svc.BookAppointment(context.Background(), BookRequest{
		ProviderID: f.provider,
		PatientID:  f.patient,
		Start:      at(monday, start),
		End:        at(monday, end),
	})
	if err != nil {
		t.Fatalf("book %s-%s: %v", start, end, err)
	}
	return appt
}

func TestBookAppointment_Success(t *testing.T) {
	f := newFixture(t)

	appt := f.book(t, "09:00", "10:00")

	if appt.Status != availability.StatusScheduled {
		t.Errorf("expected scheduled, got %s", appt.Status)
	}
	if !appt.Start.Equal(at(monday, "09:00")) || !appt.End.Equal(at(monday, "10:00")) {
		t.Errorf("unexpected interval %s", appt.Interval())
	}
	if got := f.repo.eventTypes(); len(got) != 1 || got[0] != events.AppointmentBooked {
		t.Errorf("expected one booked event log, got %v", got)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].AppointmentID != appt.ID {
		t.Errorf("expected booked event to be published, got %+v", f.publisher.events)
	}
}

func TestBookAppointment_ConflictSuggestsAlternatives(t *testing.T) {
	f := newFixture(t)
	existing := f.book(t, "09:00", "10:00")

	_, err := f.svc.BookAppointment(context.Background(), BookRequest{
		ProviderID: f.provider,
		PatientID:  f.patient,
		Start:      at(monday, "09:30"),
		End:        at(monday, "10:30"),
	})

	if !errors.Is(err, availability.ErrSchedulingConflict) {
		t.Fatalf("expected scheduling conflict, got %v", err)
	}
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *RejectionError, got %T", err)
	}
	if len(rej.Decision.Conflicts) != 1 || rej.Decision.Conflicts[0].ID != existing.ID {
		t.Errorf("expected conflict with %s, got %+v", existing.ID, rej.Decision.Conflicts)
	}
	if len(rej.Alternatives) == 0 || len(rej.Alternatives) > maxAlternatives {
		t.Fatalf("expected 1..%d alternatives, got %d", maxAlternatives, len(rej.Alternatives))
	}
	for _, s := range rej.Alternatives {
		if s.Interval().Overlaps(existing.Interval()) {
			t.Errorf("alternative %s overlaps the existing booking", s.Interval())
		}
		if s.End.Sub(s.Start) != time.Hour {
			t.Errorf("alternative %s has the wrong length", s.Interval())
		}
	}
}

func TestBookAppointment_Rejections(t *testing.T) {
	f := newFixture(t)
	saturday := monday.AddDate(0, 0, 5)

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  error
	}{
		{"end before start", at(monday, "10:00"), at(monday, "09:00"), availability.ErrInvalidInterval},
		{"before opening", at(monday, "07:30"), at(monday, "08:30"), availability.ErrOutsideWorkingHours},
		{"over lunch", at(monday, "11:30"), at(monday, "12:30"), availability.ErrOutsideWorkingHours},
		{"closed day", at(saturday, "09:00"), at(saturday, "10:00"), availability.ErrOutsideWorkingHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.BookAppointment(context.Background(), BookRequest{
				ProviderID: f.provider,
				PatientID:  f.patient,
				Start:      tt.start,
				End:        tt.end,
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if got := f.repo.eventTypes(); len(got) != 0 {
		t.Errorf("rejected bookings must not log events, got %v", got)
	}
}

func TestBookAppointment_UnknownEntities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := BookRequest{
		ProviderID: f.provider,
		PatientID:  f.patient,
		Start:      at(monday, "09:00"),
		End:        at(monday, "10:00"),
	}

	req := base
	req.PatientID = uuid.New()
	if _, err := f.svc.BookAppointment(ctx, req); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}

	req = base
	req.ProviderID = uuid.New()
	if _, err := f.svc.BookAppointment(ctx, req); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}

	req = base
	missing := uuid.New()
	req.ResourceID = &missing
	if _, err := f.svc.BookAppointment(ctx, req); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}

	f.repo.resources[f.chair].Available = false
	req = base
	req.ResourceID = &f.chair
	if _, err := f.svc.BookAppointment(ctx, req); !errors.Is(err, ErrResourceUnavailable) {
		t.Errorf("expected ErrResourceUnavailable, got %v", err)
	}
}

func TestBookAppointment_ResourceSharedAcrossProviders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := uuid.New()
	f.repo.providers[other] = &Provider{ID: other, Name: "Dr. Canine"}
	hours := f.repo.hours[f.provider]
	hours.ProviderID = other
	f.repo.hours[other] = hours

	if _, err := f.svc.BookAppointment(ctx, BookRequest{
		ProviderID: f.provider, PatientID: f.patient, ResourceID: &f.chair,
		Start: at(monday, "09:00"), End: at(monday, "10:00"),
	}); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, err := f.svc.BookAppointment(ctx, BookRequest{
		ProviderID: other, PatientID: f.patient, ResourceID: &f.chair,
		Start: at(monday, "09:30"), End: at(monday, "10:00"),
	})
	if !errors.Is(err, availability.ErrSchedulingConflict) {
		t.Fatalf("expected chair conflict, got %v", err)
	}

	if _, err := f.svc.BookAppointment(ctx, BookRequest{
		ProviderID: other, PatientID: f.patient,
		Start: at(monday, "09:30"), End: at(monday, "10:00"),
	}); err != nil {
		t.Fatalf("other provider without the chair should be free: %v", err)
	}
}

func TestBookAppointment_LockBusy(t *testing.T) {
	f := newFixture(t)
	f.locker.busy = true

	_, err := f.svc.BookAppointment(context.Background(), BookRequest{
		ProviderID: f.provider,
		PatientID:  f.patient,
		Start:      at(monday, "09:00"),
		End:        at(monday, "10:00"),
	})
	if !errors.Is(err, ErrBookingInProgress) {
		t.Fatalf("expected ErrBookingInProgress, got %v", err)
	}
}

func TestBookAppointment_ConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.BookAppointment(context.Background(), BookRequest{
				ProviderID: f.provider,
				PatientID:  f.patient,
				Start:      at(monday, "14:00"),
				End:        at(monday, "14:45"),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, availability.ErrSchedulingConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", workers-1, successes, conflicts)
	}
}

func TestRescheduleAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "09:00", "10:00")
	f.book(t, "11:00", "12:00")

	// Overlapping its own current interval is fine.
	moved, err := f.svc.RescheduleAppointment(ctx, appt.ID, RescheduleRequest{
		Start: at(monday, "09:30"),
		End:   at(monday, "10:30"),
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !moved.Start.Equal(at(monday, "09:30")) {
		t.Errorf("expected 09:30 start, got %s", moved.Start)
	}

	_, err = f.svc.RescheduleAppointment(ctx, appt.ID, RescheduleRequest{
		Start: at(monday, "10:30"),
		End:   at(monday, "11:30"),
	})
	if !errors.Is(err, availability.ErrSchedulingConflict) {
		t.Fatalf("expected conflict with the 11:00 booking, got %v", err)
	}

	types := f.repo.eventTypes()
	if types[len(types)-1] != events.AppointmentRescheduled {
		t.Errorf("expected last event to be a reschedule, got %v", types)
	}
}

func TestRescheduleAppointment_NotReschedulable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "09:00", "10:00")

	if _, err := f.svc.UpdateStatus(ctx, appt.ID, availability.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := f.svc.RescheduleAppointment(ctx, appt.ID, RescheduleRequest{
		Start: at(monday, "13:00"),
		End:   at(monday, "14:00"),
	})
	if !errors.Is(err, ErrNotReschedulable) {
		t.Fatalf("expected ErrNotReschedulable, got %v", err)
	}

	if _, err := f.svc.RescheduleAppointment(ctx, uuid.New(), RescheduleRequest{}); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "09:00", "10:00")

	if _, err := f.svc.UpdateStatus(ctx, appt.ID, availability.StatusCompleted); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected invalid transition scheduled->completed, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, appt.ID, "teleported"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	for _, next := range []availability.Status{
		availability.StatusConfirmed,
		availability.StatusCheckedIn,
		availability.StatusInProgress,
		availability.StatusCompleted,
	} {
		updated, err := f.svc.UpdateStatus(ctx, appt.ID, next)
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("expected %s, got %s", next, updated.Status)
		}
	}

	if _, err := f.svc.UpdateStatus(ctx, appt.ID, availability.StatusCancelled); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("completed is terminal, got %v", err)
	}
}

func TestUpdateStatus_CancelFreesInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "09:00", "10:00")

	if _, err := f.svc.UpdateStatus(ctx, appt.ID, availability.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.book(t, "09:00", "10:00")

	day, err := f.svc.ListProviderDay(ctx, f.provider, monday)
	if err != nil {
		t.Fatalf("list day: %v", err)
	}
	if len(day) != 2 {
		t.Fatalf("expected cancelled and new appointment in the day list, got %d", len(day))
	}
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := f.book(t, "09:00", "10:00")

	decision, alts, err := f.svc.CheckAvailability(ctx, availability.BookingRequest{
		ProviderID: f.provider,
		Start:      at(monday, "09:15"),
		End:        at(monday, "09:45"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if decision.Outcome != availability.RejectedConflict {
		t.Fatalf("expected conflict, got %s", decision.Outcome)
	}
	if len(alts) == 0 {
		t.Error("expected alternatives with a conflict")
	}

	decision, _, err = f.svc.CheckAvailability(ctx, availability.BookingRequest{
		ProviderID:           f.provider,
		Start:                at(monday, "09:15"),
		End:                  at(monday, "09:45"),
		ExcludeAppointmentID: &existing.ID,
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !decision.Accepted() {
		t.Fatalf("expected acceptance when excluding the booking, got %s", decision.Outcome)
	}

	if got := f.repo.eventTypes(); len(got) != 1 {
		t.Errorf("checking availability must not write, got events %v", got)
	}
}

func TestCheckAvailability_ResourceGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	broken := uuid.New()
	f.repo.resources[broken] = &availability.Resource{ID: broken, Type: availability.ResourceEquipment, Name: "Panoramic X-ray"}
	missing := uuid.New()

	tests := []struct {
		name     string
		resource uuid.UUID
		want     error
	}{
		{"out of service", broken, ErrResourceUnavailable},
		{"unknown", missing, ErrResourceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := availability.BookingRequest{
				ProviderID: f.provider,
				ResourceID: &tt.resource,
				Start:      at(monday, "09:00"),
				End:        at(monday, "09:30"),
			}
			decision, _, err := f.svc.CheckAvailability(ctx, req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v from check, got outcome=%q err=%v", tt.want, decision.Outcome, err)
			}

			_, err = f.svc.BookAppointment(ctx, BookRequest{
				ProviderID: req.ProviderID,
				PatientID:  f.patient,
				ResourceID: req.ResourceID,
				Start:      req.Start,
				End:        req.End,
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("check and book disagree: book returned %v", err)
			}
		})
	}

	decision, _, err := f.svc.CheckAvailability(ctx, availability.BookingRequest{
		ProviderID: f.provider,
		ResourceID: &f.chair,
		Start:      at(monday, "09:00"),
		End:        at(monday, "09:30"),
	})
	if err != nil || !decision.Accepted() {
		t.Fatalf("expected an available chair to be accepted, got %q, %v", decision.Outcome, err)
	}
}

func TestNewService_WithoutLocker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	early := f.book(t, "08:00", "09:00")

	cfg := config.Config{NoShowGrace: 30 * time.Minute, Location: time.UTC}
	sweeper := NewService(f.repo, nil, nil, cfg, zerolog.Nop())
	sweeper.now = func() time.Time { return at(monday, "12:00") }

	n, err := sweeper.MarkNoShows(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one no-show without a locker, got %d, %v", n, err)
	}
	got, _ := sweeper.GetAppointment(ctx, early.ID)
	if got.Status != availability.StatusNoShow {
		t.Errorf("expected no_show, got %s", got.Status)
	}

	_, err = sweeper.BookAppointment(ctx, BookRequest{
		ProviderID: f.provider,
		PatientID:  f.patient,
		Start:      at(monday, "14:00"),
		End:        at(monday, "14:30"),
	})
	if !errors.Is(err, ErrNoLocker) {
		t.Fatalf("expected ErrNoLocker when booking without a locker, got %v", err)
	}
}

func TestAvailableSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, "08:00", "12:00")
	f.book(t, "13:00", "16:00")

	slots, err := f.svc.AvailableSlots(ctx, f.provider, monday, 30)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	want := []string{"16:00", "16:15", "16:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i, s := range slots {
		if !s.Start.Equal(at(monday, want[i])) {
			t.Errorf("slot %d: expected %s, got %s", i, want[i], s.Start.Format("15:04"))
		}
	}

	if _, err := f.svc.AvailableSlots(ctx, uuid.New(), monday, 30); !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestMarkNoShows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	early := f.book(t, "08:00", "09:00")
	late := f.book(t, "15:00", "16:00")
	done := f.book(t, "10:00", "11:00")
	for _, s := range []availability.Status{availability.StatusConfirmed, availability.StatusCheckedIn} {
		if _, err := f.svc.UpdateStatus(ctx, done.ID, s); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}

	f.svc.now = func() time.Time { return at(monday, "12:00") }

	n, err := f.svc.MarkNoShows(ctx)
	if err != nil {
		t.Fatalf("mark no-shows: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 no-show, got %d", n)
	}

	got, _ := f.svc.GetAppointment(ctx, early.ID)
	if got.Status != availability.StatusNoShow {
		t.Errorf("expected early appointment to be no_show, got %s", got.Status)
	}
	got, _ = f.svc.GetAppointment(ctx, late.ID)
	if got.Status != availability.StatusScheduled {
		t.Errorf("expected later appointment untouched, got %s", got.Status)
	}
	got, _ = f.svc.GetAppointment(ctx, done.ID)
	if got.Status != availability.StatusCheckedIn {
		t.Errorf("checked-in appointment must not be marked, got %s", got.Status)
	}
}
