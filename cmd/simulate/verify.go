package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/dental-availability/internal/availability"
)

// findOverlaps reloads every blocking appointment of the target day and
// reports pairs that share a provider or resource while overlapping.
func findOverlaps(ctx context.Context, pool *pgxpool.Pool, day availability.Interval) ([]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, provider_id, resource_id, start_time, end_time, status
		FROM appointments
		WHERE start_time < $2 AND end_time > $1
		  AND status NOT IN ('cancelled', 'no_show')
		ORDER BY start_time
	`, day.Start, day.End)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	defer rows.Close()

	var appts []availability.Appointment
	for rows.Next() {
		var a availability.Appointment
		if err := rows.Scan(&a.ID, &a.ProviderID, &a.ResourceID, &a.Start, &a.End, &a.Status); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return overlapViolations(appts), nil
}

func overlapViolations(appts []availability.Appointment) []string {
	var out []string
	for i, a := range appts {
		q := availability.Query{
			ProviderID:           a.ProviderID,
			ResourceID:           a.ResourceID,
			Interval:             a.Interval(),
			ExcludeAppointmentID: &a.ID,
		}
		// Only look forward so each pair is reported once.
		for _, c := range availability.FindConflicts(q, appts[i+1:]) {
			out = append(out, fmt.Sprintf("%s %s overlaps %s %s", short(a.ID), a.Interval(), short(c.ID), c.Interval()))
		}
	}
	return out
}

func short(id uuid.UUID) string {
	return id.String()[:8]
}
