package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-availability/internal/appointment"
	"github.com/hackgods/dental-availability/internal/availability"
)

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func bookAppointmentHandler(svc Service, m *Metrics, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		resourceID, err := parseOptionalUUID("resource_id", req.ResourceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_resource_id", err.Error())
			return
		}
		start, err := parseTimestamp("start", req.Start, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", err.Error())
			return
		}
		end, err := parseTimestamp("end", req.End, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", err.Error())
			return
		}

		appt, err := svc.BookAppointment(r.Context(), appointment.BookRequest{
			ProviderID: providerID,
			PatientID:  patientID,
			ResourceID: resourceID,
			Start:      start,
			End:        end,
			Notes:      req.Notes,
		})
		recordOutcome(m, "book", err)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc Service, m *Metrics, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		resourceID, err := parseOptionalUUID("resource_id", req.ResourceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_resource_id", err.Error())
			return
		}
		start, err := parseTimestamp("start", req.Start, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", err.Error())
			return
		}
		end, err := parseTimestamp("end", req.End, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", err.Error())
			return
		}

		appt, err := svc.RescheduleAppointment(r.Context(), id, appointment.RescheduleRequest{
			Start:      start,
			End:        end,
			ResourceID: resourceID,
		})
		recordOutcome(m, "reschedule", err)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateStatusHandler(svc Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, availability.Status(req.Status))
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func checkAvailabilityHandler(svc Service, m *Metrics, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckAvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}
		resourceID, err := parseOptionalUUID("resource_id", req.ResourceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_resource_id", err.Error())
			return
		}
		excludeID, err := parseOptionalUUID("exclude_appointment_id", req.ExcludeAppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_exclude_appointment_id", err.Error())
			return
		}
		start, err := parseTimestamp("start", req.Start, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", err.Error())
			return
		}
		end, err := parseTimestamp("end", req.End, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", err.Error())
			return
		}

		decision, alternatives, err := svc.CheckAvailability(r.Context(), availability.BookingRequest{
			ProviderID:           providerID,
			ResourceID:           resourceID,
			Start:                start,
			End:                  end,
			ExcludeAppointmentID: excludeID,
		})
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		m.observeDecision("check", string(decision.Outcome))

		writeJSON(w, http.StatusOK, DecisionResponse{
			Available:    decision.Accepted(),
			Outcome:      string(decision.Outcome),
			Reason:       decision.Reason,
			Conflicts:    toConflictResponses(decision.Conflicts),
			Alternatives: toSlotResponses(alternatives),
		})
	}
}

func providerSlotsHandler(svc Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}
		date, err := time.ParseInLocation(time.DateOnly, r.URL.Query().Get("date"), svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		minutes, err := strconv.Atoi(r.URL.Query().Get("duration"))
		if err != nil || minutes <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), providerID, date, minutes)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			ProviderID:      providerID,
			Date:            date.Format(time.DateOnly),
			DurationMinutes: minutes,
			Slots:           toSlotResponses(slots),
		})
	}
}

func providerAppointmentsHandler(svc Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}
		date, err := time.ParseInLocation(time.DateOnly, r.URL.Query().Get("date"), svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appts, err := svc.ListProviderDay(r.Context(), providerID, date)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func recordOutcome(m *Metrics, operation string, err error) {
	var rej *appointment.RejectionError
	switch {
	case err == nil:
		m.observeDecision(operation, string(availability.Accepted))
	case errors.As(err, &rej):
		m.observeDecision(operation, string(rej.Decision.Outcome))
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var rej *appointment.RejectionError
	if errors.As(err, &rej) {
		status := http.StatusUnprocessableEntity
		code := string(rej.Decision.Outcome)
		if rej.Decision.Outcome == availability.RejectedConflict {
			status = http.StatusConflict
			code = "scheduling_conflict"
		}
		writeJSON(w, status, ErrorResponse{
			Error:        code,
			Details:      rej.Decision.Reason,
			Conflicts:    toConflictResponses(rej.Decision.Conflicts),
			Alternatives: toSlotResponses(rej.Alternatives),
		})
		return
	}

	switch {
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, appointment.ErrResourceNotFound):
		writeError(w, http.StatusNotFound, "resource_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrResourceUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "resource_unavailable", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrNotReschedulable):
		writeError(w, http.StatusConflict, "not_reschedulable", err.Error())
	case errors.Is(err, appointment.ErrOverlappingAppointment):
		writeError(w, http.StatusConflict, "scheduling_conflict", err.Error())
	case errors.Is(err, appointment.ErrBookingInProgress):
		writeError(w, http.StatusConflict, "booking_in_progress", "provider schedule is being updated, please retry shortly")
	default:
		logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
