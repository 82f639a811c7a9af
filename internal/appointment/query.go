package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
	"github.com/hackgods/doctor-appointment-booking/internal/directory"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var ErrUnknownRole = apperr.New(apperr.KindAuthorization, "unknown_role", "role cannot list appointments")

// Filter holds the optional list criteria supplied by the caller. Set fields
// are AND-combined.
type Filter struct {
	Status    *Status
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	// Start and End bound the scheduled instant, both inclusive.
	Start  *time.Time
	End    *time.Time
	Search string
	Skip   int
	Limit  int
}

// Query is a Filter with the caller's visibility scope applied and
// pagination normalized.
type Query struct {
	Filter
	ScopePatientID *uuid.UUID
	ScopeDoctorID  *uuid.UUID
}

// Matches reports whether a satisfies every criterion of the query,
// ignoring pagination.
func (q Query) Matches(a *Appointment) bool {
	if q.ScopePatientID != nil && a.PatientID != *q.ScopePatientID {
		return false
	}
	if q.ScopeDoctorID != nil && a.DoctorID != *q.ScopeDoctorID {
		return false
	}
	if q.Status != nil && a.Status != *q.Status {
		return false
	}
	if q.DoctorID != nil && a.DoctorID != *q.DoctorID {
		return false
	}
	if q.PatientID != nil && a.PatientID != *q.PatientID {
		return false
	}
	if q.Start != nil && a.ScheduledAt.Before(*q.Start) {
		return false
	}
	if q.End != nil && a.ScheduledAt.After(*q.End) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !containsFold(a.Notes, needle) && !containsFold(a.Symptoms, needle) {
			return false
		}
	}
	return true
}

func containsFold(s *string, lowerNeedle string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), lowerNeedle)
}

// View scopes appointment access for one role.
type View interface {
	BuildQuery(f Filter) Query
	CanSee(a *Appointment) bool
}

type patientView struct{ id uuid.UUID }

func (v patientView) BuildQuery(f Filter) Query {
	return Query{Filter: normalize(f), ScopePatientID: &v.id}
}

func (v patientView) CanSee(a *Appointment) bool { return a.PatientID == v.id }

type doctorView struct{ id uuid.UUID }

func (v doctorView) BuildQuery(f Filter) Query {
	return Query{Filter: normalize(f), ScopeDoctorID: &v.id}
}

func (v doctorView) CanSee(a *Appointment) bool { return a.DoctorID == v.id }

type adminView struct{}

func (adminView) BuildQuery(f Filter) Query { return Query{Filter: normalize(f)} }

func (adminView) CanSee(*Appointment) bool { return true }

func ViewFor(actor directory.Actor) (View, error) {
	switch actor.Role {
	case directory.RolePatient:
		return patientView{id: actor.ID}, nil
	case directory.RoleDoctor:
		return doctorView{id: actor.ID}, nil
	case directory.RoleAdmin:
		return adminView{}, nil
	}
	return nil, ErrUnknownRole
}

func normalize(f Filter) Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Validate rejects filters that cannot match by construction.
func (f Filter) Validate() error {
	if f.Status != nil && !f.Status.Valid() {
		return ErrInvalidStatus.Withf("unknown appointment status %q", *f.Status)
	}
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return ErrInvalidQuery.Withf("start %s is after end %s", f.Start.Format(time.RFC3339), f.End.Format(time.RFC3339))
	}
	return nil
}

// Page is one page of a listing plus the unpaginated total.
type Page struct {
	Appointments []Appointment
	Total        int
	Skip         int
	Limit        int
}
