// Package availability decides whether a doctor can take an appointment at a
// given instant.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/clock"
	"github.com/hackgods/doctor-appointment-booking/internal/directory"
	"github.com/hackgods/doctor-appointment-booking/internal/timeslot"
)

// DoctorLookup resolves a doctor's availability profile.
type DoctorLookup interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
}

// ConflictFinder counts pending or confirmed appointments for a doctor whose
// scheduled instant lies in the closed range [from, to].
type ConflictFinder interface {
	CountActiveInWindow(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, error)
}

type Policy struct {
	Hours clock.BusinessHours
	// Location is used to read the time of day of an instant. Nil keeps the
	// offset the instant was given in.
	Location *time.Location
	// ConflictWindow is the distance on each side of an instant inside which
	// another booking conflicts.
	ConflictWindow time.Duration
	// AllowUnscheduled makes doctors without declared intervals bookable at
	// any time.
	AllowUnscheduled bool
}

func DefaultPolicy() Policy {
	return Policy{
		Hours:            clock.DefaultBusinessHours,
		ConflictWindow:   59 * time.Minute,
		AllowUnscheduled: true,
	}
}

type Reason string

const (
	ReasonAvailable       Reason = "available"
	ReasonDoctorNotFound  Reason = "doctor_not_found"
	ReasonDoctorInactive  Reason = "doctor_inactive"
	ReasonNoSchedule      Reason = "no_schedule"
	ReasonOutsideSchedule Reason = "outside_schedule"
	ReasonConflict        Reason = "conflicting_appointment"
)

type Engine struct {
	doctors  DoctorLookup
	bookings ConflictFinder
	parser   timeslot.Parser
	policy   Policy
	log      zerolog.Logger
}

func NewEngine(doctors DoctorLookup, bookings ConflictFinder, policy Policy, log zerolog.Logger) *Engine {
	return &Engine{
		doctors:  doctors,
		bookings: bookings,
		parser:   timeslot.NewParser(policy.Hours),
		policy:   policy,
		log:      log,
	}
}

// Bind returns a copy of the engine reading through the given stores,
// typically a transaction that will also perform the insert.
func (e *Engine) Bind(doctors DoctorLookup, bookings ConflictFinder) *Engine {
	bound := *e
	bound.doctors = doctors
	bound.bookings = bookings
	return &bound
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// IsAvailable reports whether the doctor can be booked at the instant.
// Errors are infrastructure failures only.
func (e *Engine) IsAvailable(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	reason, err := e.Check(ctx, doctorID, at)
	if err != nil {
		return false, err
	}
	return reason == ReasonAvailable, nil
}

// Check runs eligibility, schedule containment and the conflict check in
// that order and reports the first failing one.
func (e *Engine) Check(ctx context.Context, doctorID uuid.UUID, at time.Time) (Reason, error) {
	doc, err := e.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return ReasonDoctorNotFound, nil
		}
		return "", fmt.Errorf("load doctor: %w", err)
	}
	if !doc.IsActive {
		return ReasonDoctorInactive, nil
	}

	if reason := e.scheduleReason(doc, at); reason != ReasonAvailable {
		return reason, nil
	}

	from, to := clock.Window(at, e.policy.ConflictWindow)
	n, err := e.bookings.CountActiveInWindow(ctx, doctorID, from, to)
	if err != nil {
		return "", fmt.Errorf("count conflicting appointments: %w", err)
	}
	if n > 0 {
		return ReasonConflict, nil
	}

	return ReasonAvailable, nil
}

func (e *Engine) scheduleReason(doc *directory.Doctor, at time.Time) Reason {
	intervals, err := e.parser.Parse(doc.RawTimeslots())
	if err != nil {
		e.log.Warn().
			Err(err).
			Str("doctor_id", doc.ID.String()).
			Msg("stored timeslots do not parse, treating doctor as unavailable")
		return ReasonOutsideSchedule
	}

	if len(intervals) == 0 {
		if e.policy.AllowUnscheduled {
			return ReasonAvailable
		}
		return ReasonNoSchedule
	}

	if !timeslot.Contains(timeslot.Merge(intervals), clock.OfInstant(at, e.policy.Location)) {
		return ReasonOutsideSchedule
	}
	return ReasonAvailable
}
