package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
	"github.com/hackgods/doctor-appointment-booking/internal/timeslot"
)

var (
	ErrNotScheduleOwner = apperr.New(apperr.KindAuthorization, "not_schedule_owner", "only the doctor can update their own schedule")
	ErrAdminsOnly       = apperr.New(apperr.KindAuthorization, "admins_only", "admins only")
	ErrEmptySchedule    = apperr.New(apperr.KindValidation, "empty_schedule", "at least one timeslot must be provided")
	ErrInvalidFee       = apperr.New(apperr.KindValidation, "invalid_consultation_fee", "consultation fee must not be negative")
)

type ScheduleUpdate struct {
	Timeslots       string
	ConsultationFee *float64
	Specialization  *string
}

// Schedule is the public view of a doctor's availability profile.
type Schedule struct {
	Doctor    *Doctor
	Intervals []timeslot.Interval
}

type Service struct {
	repo   Repository
	parser timeslot.Parser
	log    zerolog.Logger
}

func NewService(repo Repository, parser timeslot.Parser, log zerolog.Logger) *Service {
	return &Service{repo: repo, parser: parser, log: log}
}

// Authenticate resolves an actor id to an active user.
func (s *Service) Authenticate(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUserNotFound.Withf("user %s is inactive", id)
	}
	return u, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetUserByEmail(ctx, email)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctor(ctx, id)
}

// ListDoctors pages through the doctor directory. Inactive doctors are only
// listed for admins who ask for them.
func (s *Service) ListDoctors(ctx context.Context, actor Actor, f DoctorFilter) (*DoctorPage, error) {
	f = f.normalize()
	if actor.Role != RoleAdmin {
		f.IncludeInactive = false
	}

	doctors, total, err := s.repo.ListDoctors(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return &DoctorPage{Doctors: doctors, Total: total, Skip: f.Skip, Limit: f.Limit}, nil
}

// Schedule returns the doctor's declared intervals. A stored value that no
// longer parses is reported as an empty schedule.
func (s *Service) Schedule(ctx context.Context, doctorID uuid.UUID) (*Schedule, error) {
	doc, err := s.repo.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	intervals, err := s.parser.Parse(doc.RawTimeslots())
	if err != nil {
		s.log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("stored timeslots do not parse")
		intervals = nil
	}
	return &Schedule{Doctor: doc, Intervals: intervals}, nil
}

// UpdateSchedule replaces the doctor's working intervals wholesale. Only the
// doctor may change their own schedule.
func (s *Service) UpdateSchedule(ctx context.Context, actor Actor, doctorID uuid.UUID, upd ScheduleUpdate) (*Schedule, error) {
	if actor.Role != RoleDoctor || actor.ID != doctorID {
		return nil, ErrNotScheduleOwner
	}
	if upd.ConsultationFee != nil && *upd.ConsultationFee < 0 {
		return nil, ErrInvalidFee
	}

	intervals, err := s.parser.Parse(upd.Timeslots)
	if err != nil {
		return nil, err
	}
	if len(intervals) == 0 {
		return nil, ErrEmptySchedule
	}

	doc, err := s.repo.UpdateSchedule(ctx, doctorID, timeslot.Format(intervals), upd.ConsultationFee, upd.Specialization)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Str("timeslots", doc.RawTimeslots()).
		Msg("doctor schedule updated")

	return &Schedule{Doctor: doc, Intervals: intervals}, nil
}

// SetDoctorActive toggles a doctor's availability for booking. Admin only.
func (s *Service) SetDoctorActive(ctx context.Context, actor Actor, doctorID uuid.UUID, active bool) (*Doctor, error) {
	if actor.Role != RoleAdmin {
		return nil, ErrAdminsOnly
	}

	doc, err := s.repo.SetActive(ctx, doctorID, active)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("set doctor active: %w", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Bool("active", active).
		Str("admin_id", actor.ID.String()).
		Msg("doctor activation changed")

	return doc, nil
}
