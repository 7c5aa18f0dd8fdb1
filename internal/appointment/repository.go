package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-availability/internal/interval"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotAlreadyBooked is returned by writes that hit the unique index on
	// (doctor_id, start_time) for active appointments.
	ErrSlotAlreadyBooked = errors.New("time slot already booked")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, int, error)

	// For conflict checks and busy sets
	ActiveIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]interval.Interval, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, start, end time.Time, notes *string) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus, reason *string) (*Appointment, error)

	// Completion worker
	FindElapsedConfirmed(ctx context.Context, endedBefore time.Time, limit int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
