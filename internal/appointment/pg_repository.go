package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/dental-availability/internal/availability"
)

// SQLSTATE exclusion_violation, raised by the no-overlap constraints.
const pgExclusionViolation = "23P01"

const appointmentColumns = `id, provider_id, resource_id, patient_id, start_time, end_time, status, notes, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.ResourceID,
		&a.PatientID,
		&a.Start,
		&a.End,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// mapWriteError turns a violated no-overlap constraint into
// ErrOverlappingAppointment.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return fmt.Errorf("%w: %s", ErrOverlappingAppointment, pgErr.ConstraintName)
	}
	return err
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetResourceByID(ctx context.Context, id uuid.UUID) (*availability.Resource, error) {
	var res availability.Resource
	err := r.pool.QueryRow(ctx, `
		SELECT id, type, name, available
		FROM resources
		WHERE id = $1
	`, id).Scan(&res.ID, &res.Type, &res.Name, &res.Available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (r *PgRepository) GetWorkingHours(ctx context.Context, providerID uuid.UUID) (availability.WorkingHours, error) {
	hours := availability.WorkingHours{
		ProviderID: providerID,
		Days:       make(map[time.Weekday]availability.DayHours),
	}

	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute, break_start_minute, break_end_minute
		FROM working_hours
		WHERE provider_id = $1
	`, providerID)
	if err != nil {
		return hours, fmt.Errorf("query working hours: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			weekday, start, end  int16
			breakStart, breakEnd *int16
		)
		if err := rows.Scan(&weekday, &start, &end, &breakStart, &breakEnd); err != nil {
			return hours, err
		}
		day := availability.DayHours{
			Open: availability.ClockRange{Start: availability.Clock(start), End: availability.Clock(end)},
		}
		if breakStart != nil && breakEnd != nil {
			day.Break = &availability.ClockRange{Start: availability.Clock(*breakStart), End: availability.Clock(*breakEnd)}
		}
		hours.Days[time.Weekday(weekday)] = day
	}
	if err := rows.Err(); err != nil {
		return hours, err
	}

	return hours, nil
}

func (r *PgRepository) ListBlockingAppointments(ctx context.Context, providerID uuid.UUID, resourceID *uuid.UUID, window availability.Interval) ([]availability.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE (provider_id = $1 OR ($2::uuid IS NOT NULL AND resource_id = $2))
		  AND start_time < $4
		  AND end_time > $3
		  AND status NOT IN ('cancelled', 'no_show')
		ORDER BY start_time
	`, providerID, resourceID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("query blocking appointments: %w", err)
	}

	records, err := collectAppointments(rows)
	if err != nil {
		return nil, err
	}

	result := make([]availability.Appointment, 0, len(records))
	for _, a := range records {
		result = append(result, a.Appointment)
	}
	return result, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID, window availability.Interval) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, providerID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("query provider appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, provider_id, resource_id, patient_id, start_time, end_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns,
		id, a.ProviderID, a.ResourceID, a.PatientID, a.Start, a.End, a.Status, a.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

func (r *PgRepository) RescheduleAppointment(ctx context.Context, id uuid.UUID, start, end time.Time, resourceID *uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time = $3,
		    resource_id = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('scheduled', 'confirmed')
		RETURNING `+appointmentColumns,
		id, start, end, resourceID)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return updated, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to availability.Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('scheduled', 'confirmed')
		  AND end_time < $1
		ORDER BY end_time
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// Ping lets readiness checks probe the store without a raw pool.
func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
