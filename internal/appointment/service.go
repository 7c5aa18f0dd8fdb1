package appointment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/metrics"
	redisclient "github.com/hackgods/clinic-availability/internal/redis"
	"github.com/hackgods/clinic-availability/internal/scheduling"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
)

const defaultCancellationReason = "Cancelled by requester"

var ErrInvalidStatusTransition = errors.New("invalid status transition")

// Guard is the part of the scheduling engine the service needs.
type Guard interface {
	EvaluateBooking(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (scheduling.Decision, error)
	EvaluateReschedule(ctx context.Context, doctorID, appointmentID uuid.UUID, start, end time.Time) (scheduling.Decision, error)
}

type Service struct {
	repo    Repository
	guard   Guard
	locker  redisclient.Locker
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(repo Repository, guard Guard, locker redisclient.Locker, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		guard:   guard,
		locker:  locker,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateAppointment books [StartTime, EndTime) with the doctor.
// The guard runs under a per-doctor lock when one can be had; the unique
// index on (doctor_id, start_time) catches whatever slips past both.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (*Appointment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	start, end := in.StartTime.UTC(), in.EndTime.UTC()

	var created *Appointment

	err := s.withDoctorLock(ctx, in.DoctorID, func(lockCtx context.Context) error {
		d, err := s.guard.EvaluateBooking(lockCtx, in.DoctorID, start, end)
		if err != nil {
			return fmt.Errorf("evaluate booking: %w", err)
		}
		if !d.Accepted {
			if d.Code == scheduling.RejectOverlap {
				s.metrics.BookingConflicts.WithLabelValues("guard").Inc()
			}
			return d.Err()
		}

		code, err := newConfirmationCode()
		if err != nil {
			return err
		}

		appt, err := s.repo.CreateAppointment(lockCtx, Appointment{
			ID:               uuid.New(),
			PatientID:        in.PatientID,
			DoctorID:         in.DoctorID,
			Date:             availability.DayStart(start),
			StartTime:        start,
			EndTime:          end,
			Status:           status,
			Notes:            in.Notes,
			ConfirmationCode: code,
		})
		if err != nil {
			return s.mapConflict(err, "create appointment")
		}

		created = appt
		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"doctor_id":  in.DoctorID.String(),
			"patient_id": in.PatientID.String(),
			"start_time": start,
			"end_time":   end,
			"status":     status,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment created",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", created.DoctorID.String()),
		zap.Time("start", created.StartTime),
		zap.String("status", string(created.Status)),
	)
	return created, nil
}

// RescheduleAppointment moves an active appointment, re-running the guard
// with the appointment itself excluded from the busy set.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, in RescheduleInput) (*Appointment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	start, end := in.StartTime.UTC(), in.EndTime.UTC()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, s.wrapLoad(err)
	}
	if appt.Status.IsTerminal() {
		return nil, ErrInvalidStatusTransition
	}

	var updated *Appointment

	err = s.withDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		d, err := s.guard.EvaluateReschedule(lockCtx, appt.DoctorID, appt.ID, start, end)
		if err != nil {
			return fmt.Errorf("evaluate reschedule: %w", err)
		}
		if !d.Accepted {
			if d.Code == scheduling.RejectOverlap {
				s.metrics.BookingConflicts.WithLabelValues("guard").Inc()
			}
			return d.Err()
		}

		moved, err := s.repo.RescheduleAppointment(lockCtx, appt.ID, start, end, in.Notes)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// went terminal between the read and the write
				return ErrInvalidStatusTransition
			}
			return s.mapConflict(err, "reschedule appointment")
		}

		updated = moved
		s.logEvent(lockCtx, appt.ID, EventAppointmentRescheduled, map[string]any{
			"from_start": appt.StartTime,
			"from_end":   appt.EndTime,
			"to_start":   start,
			"to_end":     end,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ConfirmAppointment moves a pending appointment to confirmed. Confirming a
// confirmed appointment returns it unchanged.
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, s.wrapLoad(err)
	}

	switch appt.Status {
	case StatusConfirmed:
		return appt, nil
	case StatusPending:
	default:
		return nil, ErrInvalidStatusTransition
	}

	updated, changed, err := s.transition(ctx, appt.ID, []AppointmentStatus{StatusPending}, StatusConfirmed, nil)
	if err != nil || !changed {
		return updated, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})
	return updated, nil
}

// CancelAppointment releases the appointment's time. Cancelling twice is a
// no-op that keeps the first reason.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, s.wrapLoad(err)
	}

	switch appt.Status {
	case StatusCancelled:
		return appt, nil
	case StatusCompleted:
		return nil, ErrInvalidStatusTransition
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultCancellationReason
	}

	updated, changed, err := s.transition(ctx, appt.ID, ActiveStatuses, StatusCancelled, &reason)
	if err != nil || !changed {
		return updated, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"reason": reason,
	})
	return updated, nil
}

// CompleteAppointment marks a confirmed appointment as held.
func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, s.wrapLoad(err)
	}

	switch appt.Status {
	case StatusCompleted:
		return appt, nil
	case StatusConfirmed:
	default:
		return nil, ErrInvalidStatusTransition
	}

	updated, changed, err := s.transition(ctx, appt.ID, []AppointmentStatus{StatusConfirmed}, StatusCompleted, nil)
	if err != nil || !changed {
		return updated, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{"reason": "manual"})
	return updated, nil
}

// CompleteElapsed is called by the worker periodically. It completes
// confirmed appointments that ended more than grace ago and returns how many
// it moved.
func (s *Service) CompleteElapsed(ctx context.Context, grace time.Duration, batch int) (int, error) {
	cutoff := s.now().Add(-grace)
	candidates, err := s.repo.FindElapsedConfirmed(ctx, cutoff, batch)
	if err != nil {
		return 0, fmt.Errorf("find elapsed appointments: %w", err)
	}

	done := 0
	for _, appt := range candidates {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, []AppointmentStatus{StatusConfirmed}, StatusCompleted, nil)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.logger.Warn("failed to complete appointment",
					zap.String("appointment_id", appt.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}
		done++
		s.metrics.AppointmentTransitions.WithLabelValues(string(StatusCompleted)).Inc()
		s.logEvent(ctx, appt.ID, EventAppointmentCompleted, map[string]any{"reason": "worker"})
	}

	return done, nil
}

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, s.wrapLoad(err)
	}
	return appt, nil
}

func (s *Service) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, int, ListFilter, error) {
	f = f.normalize()
	items, total, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, 0, f, fmt.Errorf("list appointments: %w", err)
	}
	return items, total, f, nil
}

// withDoctorLock runs fn holding the doctor's lock. If the lock cannot be
// had, fn runs anyway and the unique index is the only serialization point.
func (s *Service) withDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	entered := false
	err := s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		entered = true
		return fn(lockCtx)
	})
	if entered {
		return err
	}

	var reason string
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		reason = "timeout"
	case errors.Is(err, redisclient.ErrLockUnavailable):
		reason = "unavailable"
	default:
		return err
	}

	s.metrics.LockFallbacks.WithLabelValues(reason).Inc()
	s.logger.Warn("booking without doctor lock",
		zap.String("doctor_id", doctorID.String()),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return fn(ctx)
}

// mapConflict turns a unique index violation into the same rejection the
// guard gives for an overlap.
func (s *Service) mapConflict(err error, op string) error {
	if errors.Is(err, ErrSlotAlreadyBooked) {
		s.metrics.BookingConflicts.WithLabelValues("store").Inc()
		return scheduling.Reject(scheduling.RejectOverlap).Err()
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) wrapLoad(err error) error {
	if errors.Is(err, ErrAppointmentNotFound) {
		return err
	}
	return fmt.Errorf("load appointment: %w", err)
}

// transition applies a conditional status update. When the row moved between
// the read and the write, it is re-read: already at the target status is a
// no-op (changed is false), anything else is an invalid transition.
func (s *Service) transition(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus, reason *string) (*Appointment, bool, error) {
	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, from, to, reason)
	if err == nil {
		s.metrics.AppointmentTransitions.WithLabelValues(string(to)).Inc()
		return updated, true, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, false, fmt.Errorf("update appointment status: %w", err)
	}

	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, false, s.wrapLoad(err)
	}
	if current.Status == to {
		return current, false, nil
	}
	return nil, false, ErrInvalidStatusTransition
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}

func newConfirmationCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate confirmation code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
