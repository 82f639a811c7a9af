package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
	"github.com/hackgods/doctor-appointment-booking/internal/directory"
)

var (
	ErrAppointmentNotFound   = apperr.New(apperr.KindNotFound, "appointment_not_found", "appointment not found")
	ErrPatientsOnly          = apperr.New(apperr.KindAuthorization, "patients_only", "only patients can book appointments")
	ErrDoctorsOnly           = apperr.New(apperr.KindAuthorization, "doctors_only", "only doctors can update appointment status")
	ErrPastAppointment       = apperr.New(apperr.KindValidation, "past_appointment", "appointment cannot be scheduled in the past")
	ErrOutsideBusinessHours  = apperr.New(apperr.KindValidation, "outside_business_hours", "appointment must be within business hours")
	ErrInvalidStatus         = apperr.New(apperr.KindValidation, "invalid_status", "unknown appointment status")
	ErrInvalidQuery          = apperr.New(apperr.KindValidation, "invalid_query", "invalid appointment query")
	ErrDoctorUnavailable     = apperr.New(apperr.KindConflict, "doctor_unavailable", "doctor is not available at this time")
	ErrNotCancelable         = apperr.New(apperr.KindState, "not_cancelable", "appointment not found or cannot be cancelled")
	ErrBackToPending         = apperr.New(apperr.KindState, "back_to_pending", "appointment cannot be moved back to pending")
	ErrStatusChangedMeantime = apperr.New(apperr.KindState, "status_changed", "appointment status changed concurrently, please retry")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Conflict detection outside the create transaction (availability endpoint)
	CountActiveInWindow(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, error)

	ListAppointments(ctx context.Context, q Query) ([]Appointment, int, error)

	// UpdateAppointmentStatus sets the status only while the row is in one of
	// the from statuses; otherwise ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to Status, from []Status) (*Appointment, error)

	// Reminder worker
	FindByStatusBetween(ctx context.Context, status Status, from, to time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error

	// WithDoctorTx runs fn in a single transaction. Reading the doctor through
	// the TxRepository locks the doctor row until the transaction ends.
	WithDoctorTx(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository is the transactional view used for check-then-insert.
type TxRepository interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
	CountActiveInWindow(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, error)
	CreateAppointment(ctx context.Context, patientID uuid.UUID, req CreateRequest) (*Appointment, error)
	InsertEvent(ctx context.Context, ev EventLog) error
}
