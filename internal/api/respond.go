package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/appointment"
	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/scheduling"
	"github.com/hackgods/clinic-availability/internal/validate"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeFieldError(w http.ResponseWriter, field, details string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Details: details, Field: field})
}

// handleServiceError maps domain errors to HTTP responses. Anything not
// recognised is logged and reported as an opaque 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		verr *validate.Error
		rej  *scheduling.RejectedError
	)
	switch {
	case errors.As(err, &verr):
		writeFieldError(w, verr.Field, verr.Message)
	case errors.As(err, &rej):
		writeError(w, http.StatusConflict, strings.ToLower(string(rej.Decision.Code)), rej.Decision.Message)
	case errors.Is(err, availability.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile_not_found", err.Error())
	case errors.Is(err, availability.ErrEmptyPatch):
		writeError(w, http.StatusBadRequest, "empty_patch", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// maxBodyBytes bounds request bodies; profiles are the largest.
const maxBodyBytes = 1 << 20

func jsonDecoder(r *http.Request) *json.Decoder {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := jsonDecoder(r).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}
