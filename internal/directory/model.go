package directory

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID              uuid.UUID
	Email           string
	FullName        *string
	Role            Role
	IsActive        bool
	Specialization  *string
	ConsultationFee *float64
	// Timeslots is the comma separated working interval list as stored.
	Timeslots *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Doctor is the availability profile of a user with the doctor role.
type Doctor struct {
	ID              uuid.UUID
	FullName        *string
	IsActive        bool
	Specialization  *string
	ConsultationFee *float64
	Timeslots       *string
}

// DoctorProfile projects a doctor user onto its availability profile.
func DoctorProfile(u *User) *Doctor {
	return &Doctor{
		ID:              u.ID,
		FullName:        u.FullName,
		IsActive:        u.IsActive,
		Specialization:  u.Specialization,
		ConsultationFee: u.ConsultationFee,
		Timeslots:       u.Timeslots,
	}
}

// RawTimeslots returns the stored interval list, or "" when none is declared.
func (d *Doctor) RawTimeslots() string {
	if d.Timeslots == nil {
		return ""
	}
	return *d.Timeslots
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
