package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/interval"
	"github.com/hackgods/clinic-availability/internal/validate"
)

// RejectCode says why the guard refused a booking.
type RejectCode string

const (
	RejectOverlap        RejectCode = "OVERLAP"
	RejectNoAvailability RejectCode = "NO_AVAILABILITY"
	RejectOutsideWindow  RejectCode = "OUTSIDE_WINDOW"
)

var rejectMessages = map[RejectCode]string{
	RejectOverlap:        "slot already booked",
	RejectNoAvailability: "no availability configured",
	RejectOutsideWindow:  "outside available windows",
}

// Decision is the guard's verdict on a proposed booking.
type Decision struct {
	Accepted bool       `json:"accepted"`
	Code     RejectCode `json:"code,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// Accept is the decision for a bookable interval.
func Accept() Decision {
	return Decision{Accepted: true}
}

// Reject builds a refusal with the standard message for code.
func Reject(code RejectCode) Decision {
	return Decision{Code: code, Message: rejectMessages[code]}
}

// RejectedError carries a rejecting Decision through an error return.
type RejectedError struct {
	Decision Decision
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("booking rejected: %s", e.Decision.Message)
}

// Err returns nil for an accepting decision and *RejectedError otherwise.
func (d Decision) Err() error {
	if d.Accepted {
		return nil
	}
	return &RejectedError{Decision: d}
}

// IsRejected reports whether err is a guard rejection with the given code.
func IsRejected(err error, code RejectCode) bool {
	var rej *RejectedError
	return errors.As(err, &rej) && rej.Decision.Code == code
}

// EvaluateBooking decides whether [start, end) may be booked with the doctor.
func (e *Engine) EvaluateBooking(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (Decision, error) {
	return e.evaluate(ctx, doctorID, start, end, uuid.Nil)
}

// EvaluateReschedule is EvaluateBooking for moving an existing appointment;
// the appointment itself is neither an overlap nor busy time.
func (e *Engine) EvaluateReschedule(ctx context.Context, doctorID, appointmentID uuid.UUID, start, end time.Time) (Decision, error) {
	return e.evaluate(ctx, doctorID, start, end, appointmentID)
}

func (e *Engine) evaluate(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) (Decision, error) {
	if start.IsZero() {
		return Decision{}, validate.Field("startTime", "is required")
	}
	if !end.After(start) {
		return Decision{}, validate.Field("endTime", "must be after startTime")
	}
	proposed := interval.Interval{Start: start.UTC(), End: end.UTC()}

	d, err := e.decide(ctx, doctorID, proposed, exclude)
	if err != nil {
		return Decision{}, err
	}

	result := "accepted"
	if !d.Accepted {
		result = string(d.Code)
	}
	e.metrics.BookingDecisions.WithLabelValues(result).Inc()
	e.logger.Debug("booking evaluated",
		zap.String("doctor_id", doctorID.String()),
		zap.Time("start", proposed.Start),
		zap.Time("end", proposed.End),
		zap.String("result", result),
	)
	return d, nil
}

func (e *Engine) decide(ctx context.Context, doctorID uuid.UUID, proposed interval.Interval, exclude uuid.UUID) (Decision, error) {
	overlapping, err := e.bookings.ActiveIntervals(ctx, doctorID, proposed.Start, proposed.End, exclude)
	if err != nil {
		return Decision{}, fmt.Errorf("check overlapping appointments: %w", err)
	}
	if len(overlapping) > 0 {
		return Reject(RejectOverlap), nil
	}

	p, err := e.profiles.GetProfile(ctx, doctorID)
	if err != nil {
		if errors.Is(err, availability.ErrProfileNotFound) {
			return Reject(RejectNoAvailability), nil
		}
		return Decision{}, fmt.Errorf("load profile: %w", err)
	}

	day := availability.DayBounds(proposed.Start)
	free, err := e.freeWindows(ctx, p, availability.BuildDayWindows(*p, day.Start), day.Start, day.End, exclude)
	if err != nil {
		return Decision{}, err
	}

	padded := interval.ExpandByBuffer(proposed, p.Buffer())
	for _, w := range free {
		if interval.Contains(w, padded) {
			return Accept(), nil
		}
	}
	return Reject(RejectOutsideWindow), nil
}
