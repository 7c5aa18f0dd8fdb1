package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hackgods/clinic-availability/internal/appointment"
	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/metrics"
	"github.com/hackgods/clinic-availability/internal/scheduling"
)

type AvailabilityService interface {
	Upsert(ctx context.Context, doctorID uuid.UUID, in availability.ProfileInput) (*availability.Profile, error)
	Patch(ctx context.Context, doctorID uuid.UUID, patch availability.ProfilePatch) (*availability.Profile, error)
	GetProfile(ctx context.Context, doctorID uuid.UUID) (*availability.Profile, error)
	Delete(ctx context.Context, doctorID uuid.UUID) (bool, error)
	List(ctx context.Context, f availability.ListFilter) ([]availability.Profile, int, availability.ListFilter, error)
}

type SlotEngine interface {
	ComputeSlots(ctx context.Context, q scheduling.SlotQuery) (*scheduling.SlotResult, error)
	EvaluateBooking(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (scheduling.Decision, error)
}

type AppointmentService interface {
	CreateAppointment(ctx context.Context, in appointment.CreateInput) (*appointment.Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, in appointment.RescheduleInput) (*appointment.Appointment, error)
	ConfirmAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error)
	CompleteAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, int, appointment.ListFilter, error)
}

type RouterConfig struct {
	Availability AvailabilityService
	Engine       SlotEngine
	Appointments AppointmentService
	Health       *HealthHandler
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer // nil hides /metrics
	Auth         *Authenticator      // nil disables auth
	Limiter      *rate.Limiter       // nil disables rate limiting
	Logger       *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	logger := cfg.Logger

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(MetricsMiddleware(cfg.Metrics))

	// Health endpoints
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(RateLimitMiddleware(cfg.Limiter))
		}

		// Availability endpoints
		r.Get("/availability", listProfilesHandler(cfg.Availability, logger))
		r.Route("/availability/{doctorID}", func(r chi.Router) {
			r.Get("/", getProfileHandler(cfg.Availability, logger))
			r.Get("/slots", slotsHandler(cfg.Engine, logger))
			r.Post("/evaluate", evaluateHandler(cfg.Engine, logger))

			r.Group(func(r chi.Router) {
				r.Use(cfg.Auth.RequireDoctor)
				r.Put("/", upsertProfileHandler(cfg.Availability, logger))
				r.Patch("/", patchProfileHandler(cfg.Availability, logger))
				r.Delete("/", deleteProfileHandler(cfg.Availability, logger))
			})
		})

		// Appointment endpoints
		r.Post("/appointments", createAppointmentHandler(cfg.Appointments, logger))
		r.Get("/appointments", listAppointmentsHandler(cfg.Appointments, logger))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments, logger))
		r.Put("/appointments/{id}", rescheduleAppointmentHandler(cfg.Appointments, logger))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Appointments, logger))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments, logger))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Appointments, logger))
	})

	return r
}
