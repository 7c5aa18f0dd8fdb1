package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/appointment"
)

func createAppointmentHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		patientID, ok := optionalUUID(w, req.PatientID, "invalid_patient_id", "patientId must be a valid UUID")
		if !ok {
			return
		}
		doctorID, ok := optionalUUID(w, req.DoctorID, "invalid_doctor_id", "doctorId must be a valid UUID")
		if !ok {
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.CreateInput{
			PatientID: patientID,
			DoctorID:  doctorID,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Status:    appointment.AppointmentStatus(req.Status),
			Notes:     req.Notes,
		})
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, appt)
	}
}

func getAppointmentHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func listAppointmentsHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.ListFilter

		for _, p := range []struct {
			key string
			dst **uuid.UUID
		}{{"doctorId", &f.DoctorID}, {"patientId", &f.PatientID}} {
			if v := q.Get(p.key); v != "" {
				id, err := uuid.Parse(v)
				if err != nil {
					writeFieldError(w, p.key, "must be a valid UUID")
					return
				}
				*p.dst = &id
			}
		}

		if v := q.Get("status"); v != "" {
			status := appointment.AppointmentStatus(v)
			if !status.Valid() {
				writeFieldError(w, "status", "must be one of [pending confirmed cancelled completed]")
				return
			}
			f.Status = &status
		}

		for _, p := range []struct {
			key string
			dst **time.Time
		}{{"from", &f.From}, {"to", &f.To}} {
			if v := q.Get(p.key); v != "" {
				t, err := time.Parse(time.RFC3339, v)
				if err != nil {
					writeFieldError(w, p.key, "must be an RFC3339 timestamp")
					return
				}
				*p.dst = &t
			}
		}

		var ok bool
		if f.Page, f.Limit, ok = pagination(w, r); !ok {
			return
		}

		items, total, f, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, ListResponse[appointment.Appointment]{
			Items: items,
			Total: total,
			Page:  f.Page,
			Limit: f.Limit,
		})
	}
}

func rescheduleAppointmentHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req RescheduleAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.RescheduleAppointment(r.Context(), id, appointment.RescheduleInput{
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Notes:     req.Notes,
		})
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func confirmAppointmentHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.ConfirmAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func cancelAppointmentHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		// body is optional
		var req CancelAppointmentRequest
		if err := jsonDecoder(r).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id, req.Reason)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func completeAppointmentHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.CompleteAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

// Helpers

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID leaves an empty string as uuid.Nil so the service reports it
// as a missing field.
func optionalUUID(w http.ResponseWriter, raw, code, msg string) (uuid.UUID, bool) {
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, code, msg)
		return uuid.Nil, false
	}
	return id, true
}

func pagination(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		key string
		dst *int
	}{{"page", &page}, {"limit", &limit}} {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeFieldError(w, p.key, "must be an integer")
				return 0, 0, false
			}
			*p.dst = n
		}
	}
	return page, limit, true
}
