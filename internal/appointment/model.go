package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-availability/internal/validate"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// ActiveStatuses occupy calendar time.
var ActiveStatuses = []AppointmentStatus{StatusPending, StatusConfirmed}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func (s AppointmentStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Appointment struct {
	ID                 uuid.UUID         `json:"id"`
	PatientID          uuid.UUID         `json:"patientId"`
	DoctorID           uuid.UUID         `json:"doctorId"`
	Date               time.Time         `json:"date"`
	StartTime          time.Time         `json:"startTime"`
	EndTime            time.Time         `json:"endTime"`
	Status             AppointmentStatus `json:"status"`
	Notes              *string           `json:"notes,omitempty"`
	ConfirmationCode   string            `json:"confirmationCode"`
	CancellationReason *string           `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// CreateInput is a booking request. Status defaults to pending.
type CreateInput struct {
	PatientID uuid.UUID         `json:"patientId"`
	DoctorID  uuid.UUID         `json:"doctorId"`
	StartTime time.Time         `json:"startTime" validate:"required"`
	EndTime   time.Time         `json:"endTime" validate:"required,gtfield=StartTime"`
	Status    AppointmentStatus `json:"status" validate:"omitempty,oneof=pending confirmed"`
	Notes     *string           `json:"notes" validate:"omitempty,max=1000"`
}

func (in CreateInput) Validate() error {
	if in.PatientID == uuid.Nil {
		return validate.Field("patientId", "is required")
	}
	if in.DoctorID == uuid.Nil {
		return validate.Field("doctorId", "is required")
	}
	return validate.Struct(in)
}

// RescheduleInput moves an appointment. Notes, when set, replace the old ones.
type RescheduleInput struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	Notes     *string   `json:"notes" validate:"omitempty,max=1000"`
}

func (in RescheduleInput) Validate() error {
	return validate.Struct(in)
}

type ListFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    *AppointmentStatus
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

func (f ListFilter) normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20 // default
	}
	if f.Limit > 100 {
		f.Limit = 100 // max
	}
	return f
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
