package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/directory"
)

type CreateAppointmentRequest struct {
	DoctorID         string  `json:"doctorId"`
	ScheduledInstant string  `json:"scheduledInstant"`
	Notes            *string `json:"notes,omitempty"`
	Symptoms         *string `json:"symptoms,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type UpdateScheduleRequest struct {
	Timeslots       string   `json:"timeslots"`
	ConsultationFee *float64 `json:"consultationFee,omitempty"`
	Specialization  *string  `json:"specialization,omitempty"`
}

type DoctorStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

type AppointmentResponse struct {
	ID               uuid.UUID `json:"id"`
	PatientID        uuid.UUID `json:"patientId"`
	DoctorID         uuid.UUID `json:"doctorId"`
	ScheduledInstant time.Time `json:"scheduledInstant"`
	Notes            *string   `json:"notes,omitempty"`
	Symptoms         *string   `json:"symptoms,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
	Skip         int                   `json:"skip"`
	Limit        int                   `json:"limit"`
}

type AvailabilityResponse struct {
	DoctorID            uuid.UUID `json:"doctorId"`
	AppointmentDatetime time.Time `json:"appointmentDatetime"`
	IsAvailable         bool      `json:"isAvailable"`
}

type DoctorResponse struct {
	ID              uuid.UUID `json:"id"`
	FullName        *string   `json:"fullName,omitempty"`
	IsActive        bool      `json:"isActive"`
	Specialization  *string   `json:"specialization,omitempty"`
	ConsultationFee *float64  `json:"consultationFee,omitempty"`
}

type ListDoctorsResponse struct {
	Doctors []DoctorResponse `json:"doctors"`
	Total   int              `json:"total"`
	Skip    int              `json:"skip"`
	Limit   int              `json:"limit"`
}

type ScheduleResponse struct {
	DoctorResponse
	Timeslots []string `json:"timeslots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		PatientID:        a.PatientID,
		DoctorID:         a.DoctorID,
		ScheduledInstant: a.ScheduledAt,
		Notes:            a.Notes,
		Symptoms:         a.Symptoms,
		Status:           string(a.Status),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func toDoctorResponse(d *directory.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:              d.ID,
		FullName:        d.FullName,
		IsActive:        d.IsActive,
		Specialization:  d.Specialization,
		ConsultationFee: d.ConsultationFee,
	}
}

func toScheduleResponse(s *directory.Schedule) ScheduleResponse {
	slots := make([]string, len(s.Intervals))
	for i, iv := range s.Intervals {
		slots[i] = iv.String()
	}
	return ScheduleResponse{DoctorResponse: toDoctorResponse(s.Doctor), Timeslots: slots}
}
