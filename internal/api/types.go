package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-availability/internal/appointment"
	"github.com/hackgods/dental-availability/internal/availability"
)

// Timestamps are RFC 3339. A value without an offset ("2026-10-19T09:00") is
// read as clinic-local time.
type BookAppointmentRequest struct {
	ProviderID string  `json:"provider_id"`
	PatientID  string  `json:"patient_id"`
	ResourceID *string `json:"resource_id,omitempty"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Notes      *string `json:"notes,omitempty"`
}

type RescheduleAppointmentRequest struct {
	Start      string  `json:"start"`
	End        string  `json:"end"`
	ResourceID *string `json:"resource_id,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CheckAvailabilityRequest struct {
	ProviderID           string  `json:"provider_id"`
	ResourceID           *string `json:"resource_id,omitempty"`
	Start                string  `json:"start"`
	End                  string  `json:"end"`
	ExcludeAppointmentID *string `json:"exclude_appointment_id,omitempty"`
}

type AppointmentResponse struct {
	ID         uuid.UUID  `json:"id"`
	ProviderID uuid.UUID  `json:"provider_id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	ResourceID *uuid.UUID `json:"resource_id,omitempty"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	Status     string     `json:"status"`
	Notes      *string    `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type SlotsResponse struct {
	ProviderID      uuid.UUID      `json:"provider_id"`
	Date            string         `json:"date"`
	DurationMinutes int            `json:"duration_minutes"`
	Slots           []SlotResponse `json:"slots"`
}

type ConflictResponse struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	ProviderID    uuid.UUID  `json:"provider_id"`
	ResourceID    *uuid.UUID `json:"resource_id,omitempty"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Status        string     `json:"status"`
}

type DecisionResponse struct {
	Available    bool               `json:"available"`
	Outcome      string             `json:"outcome"`
	Reason       string             `json:"reason,omitempty"`
	Conflicts    []ConflictResponse `json:"conflicts,omitempty"`
	Alternatives []SlotResponse     `json:"alternatives,omitempty"`
}

type ErrorResponse struct {
	Error        string             `json:"error"`
	Details      string             `json:"details,omitempty"`
	Conflicts    []ConflictResponse `json:"conflicts,omitempty"`
	Alternatives []SlotResponse     `json:"alternatives,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		ProviderID: a.ProviderID,
		PatientID:  a.PatientID,
		ResourceID: a.ResourceID,
		Start:      a.Start,
		End:        a.End,
		Status:     string(a.Status),
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func toSlotResponses(slots []availability.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Start: s.Start, End: s.End})
	}
	return out
}

func toConflictResponses(appts []availability.Appointment) []ConflictResponse {
	if len(appts) == 0 {
		return nil
	}
	out := make([]ConflictResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, ConflictResponse{
			AppointmentID: a.ID,
			ProviderID:    a.ProviderID,
			ResourceID:    a.ResourceID,
			Start:         a.Start,
			End:           a.End,
			Status:        string(a.Status),
		})
	}
	return out
}

var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

func parseTimestamp(field, raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", field)
}

func parseOptionalUUID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a valid UUID", field)
	}
	return &id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
