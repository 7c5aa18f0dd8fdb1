package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/scheduling"
)

func listProfilesHandler(svc AvailabilityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, ok := pagination(w, r)
		if !ok {
			return
		}

		items, total, f, err := svc.List(r.Context(), availability.ListFilter{Page: page, Limit: limit})
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, ListResponse[availability.Profile]{
			Items: items,
			Total: total,
			Page:  f.Page,
			Limit: f.Limit,
		})
	}
}

func getProfileHandler(svc AvailabilityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		p, err := svc.GetProfile(r.Context(), doctorID)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

func upsertProfileHandler(svc AvailabilityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		var in availability.ProfileInput
		if !decodeJSON(w, r, &in) {
			return
		}

		p, err := svc.Upsert(r.Context(), doctorID, in)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

func patchProfileHandler(svc AvailabilityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		var patch availability.ProfilePatch
		if !decodeJSON(w, r, &patch) {
			return
		}

		p, err := svc.Patch(r.Context(), doctorID, patch)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

func deleteProfileHandler(svc AvailabilityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		deleted, err := svc.Delete(r.Context(), doctorID)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, DeleteProfileResponse{Deleted: deleted})
	}
}

func slotsHandler(engine SlotEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		q := scheduling.SlotQuery{DoctorID: doctorID}
		params := r.URL.Query()

		for _, p := range []struct {
			key string
			dst *time.Time
		}{{"from", &q.From}, {"to", &q.To}} {
			v := params.Get(p.key)
			if v == "" {
				writeFieldError(w, p.key, "is required")
				return
			}
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeFieldError(w, p.key, "must be an RFC3339 timestamp")
				return
			}
			*p.dst = t
		}

		if v := params.Get("slotSizeMinutes"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeFieldError(w, "slotSizeMinutes", "must be an integer")
				return
			}
			q.SlotSizeMinutes = &n
		}

		res, err := engine.ComputeSlots(r.Context(), q)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

// evaluateHandler answers whether a booking would be accepted without
// making it.
func evaluateHandler(engine SlotEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		var req EvaluateBookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		d, err := engine.EvaluateBooking(r.Context(), doctorID, req.StartTime, req.EndTime)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, d)
	}
}

func doctorIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
