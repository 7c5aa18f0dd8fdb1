package api

import (
	"time"
)

type CreateAppointmentRequest struct {
	PatientID string    `json:"patientId"`
	DoctorID  string    `json:"doctorId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Status    string    `json:"status,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
}

type RescheduleAppointmentRequest struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Notes     *string   `json:"notes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type EvaluateBookingRequest struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type DeleteProfileResponse struct {
	Deleted bool `json:"deleted"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}
