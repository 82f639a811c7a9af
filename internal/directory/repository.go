package directory

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
)

var (
	ErrUserNotFound   = apperr.New(apperr.KindNotFound, "user_not_found", "user not found")
	ErrDoctorNotFound = apperr.New(apperr.KindNotFound, "doctor_not_found", "doctor not found")
)

// Repository is the user directory backing store.
type Repository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// GetDoctor returns ErrDoctorNotFound for unknown ids and non-doctor users.
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// ListDoctors returns one page of doctors ordered by name, and the total
	// number matching the filter.
	ListDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, int, error)

	UpdateSchedule(ctx context.Context, doctorID uuid.UUID, timeslots string, fee *float64, specialization *string) (*Doctor, error)
	SetActive(ctx context.Context, doctorID uuid.UUID, active bool) (*Doctor, error)
}
