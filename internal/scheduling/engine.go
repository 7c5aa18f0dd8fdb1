// Package scheduling joins availability profiles with existing bookings to
// list free slots and to decide whether a proposed appointment may be booked.
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
	"github.com/hackgods/clinic-availability/internal/metrics"
	"github.com/hackgods/clinic-availability/internal/validate"
)

// MaxQueryRange bounds a single slot query.
const MaxQueryRange = 92 * 24 * time.Hour

// ProfileSource reads availability profiles. GetProfile must hit the store;
// LookupProfile may serve a recently cached copy.
type ProfileSource interface {
	GetProfile(ctx context.Context, doctorID uuid.UUID) (*availability.Profile, error)
	LookupProfile(ctx context.Context, doctorID uuid.UUID) (*availability.Profile, error)
}

// BookingSource lists the intervals of a doctor's active (pending or
// confirmed) appointments that intersect [from, to). The appointment with id
// exclude is skipped; uuid.Nil skips nothing.
type BookingSource interface {
	ActiveIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]interval.Interval, error)
}

// Engine answers slot queries and runs the booking guard.
type Engine struct {
	profiles ProfileSource
	bookings BookingSource
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewEngine wires the engine to its profile and appointment stores.
func NewEngine(profiles ProfileSource, bookings BookingSource, m *metrics.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		profiles: profiles,
		bookings: bookings,
		metrics:  m,
		logger:   logger,
	}
}

// SlotQuery asks for the free slots of one doctor in [From, To).
type SlotQuery struct {
	DoctorID        uuid.UUID
	From            time.Time
	To              time.Time
	SlotSizeMinutes *int
}

func (q SlotQuery) validate() error {
	if q.From.IsZero() {
		return validate.Field("from", "is required")
	}
	if q.To.IsZero() {
		return validate.Field("to", "is required")
	}
	if !q.To.After(q.From) {
		return validate.Field("to", "must be after from")
	}
	if q.To.Sub(q.From) > MaxQueryRange {
		return validate.Field("to", "range must not exceed %d days", int(MaxQueryRange/(24*time.Hour)))
	}
	if q.SlotSizeMinutes != nil {
		v := *q.SlotSizeMinutes
		if v < availability.MinSlotSizeMinutes || v > availability.MaxSlotSizeMinutes {
			return validate.Field("slotSizeMinutes", "must be between %d and %d",
				availability.MinSlotSizeMinutes, availability.MaxSlotSizeMinutes)
		}
	}
	return nil
}

// SlotResult is the answer to a SlotQuery. SlotSizeMinutes is nil when the
// doctor has no availability profile.
type SlotResult struct {
	SlotSizeMinutes *int                `json:"slotSizeMinutes"`
	Slots           []interval.Interval `json:"slots"`
}

// ComputeSlots lists the free slots for a doctor. A doctor without a profile
// has no slots; that is not an error.
func (e *Engine) ComputeSlots(ctx context.Context, q SlotQuery) (*SlotResult, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	from, to := q.From.UTC(), q.To.UTC()

	start := time.Now()
	defer func() {
		e.metrics.SlotQueryLatency.Observe(time.Since(start).Seconds())
	}()

	p, err := e.profiles.LookupProfile(ctx, q.DoctorID)
	if err != nil {
		if errors.Is(err, availability.ErrProfileNotFound) {
			return &SlotResult{Slots: []interval.Interval{}}, nil
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	size := p.SlotSizeMinutesOrDefault()
	if q.SlotSizeMinutes != nil {
		size = *q.SlotSizeMinutes
	}

	free, err := e.freeWindows(ctx, p, availability.BuildCandidateWindows(*p, from, to), from, to, uuid.Nil)
	if err != nil {
		return nil, err
	}

	slots := availability.GenerateSlots(free, time.Duration(size)*time.Minute)
	if slots == nil {
		slots = []interval.Interval{}
	}
	e.metrics.SlotsReturned.Observe(float64(len(slots)))

	return &SlotResult{SlotSizeMinutes: &size, Slots: slots}, nil
}

func (e *Engine) freeWindows(ctx context.Context, p *availability.Profile, candidates []interval.Interval, from, to time.Time, exclude uuid.UUID) ([]interval.Interval, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	busy, err := AssembleBusy(ctx, e.bookings, p, from, to, exclude)
	if err != nil {
		return nil, err
	}
	return interval.Subtract(candidates, busy), nil
}
