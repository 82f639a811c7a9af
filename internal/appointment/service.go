package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/availability"
	"github.com/hackgods/doctor-appointment-booking/internal/clock"
	"github.com/hackgods/doctor-appointment-booking/internal/directory"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentCancelled     = "APPOINTMENT_CANCELLED"
)

type Service struct {
	repo   Repository
	engine *availability.Engine
	locker redisclient.Locker
	clock  clock.Clock
	log    zerolog.Logger
}

func NewService(repo Repository, engine *availability.Engine, locker redisclient.Locker, clk clock.Clock, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
		locker: locker,
		clock:  clk,
		log:    log,
	}
}

// Create books a pending appointment for the calling patient.
// Creations for one doctor are serialized by the distributed lock and by the
// doctor row lock taken inside the transaction, so the availability check
// and the insert cannot interleave with another booking for the same doctor.
func (s *Service) Create(ctx context.Context, actor directory.Actor, req CreateRequest) (*Appointment, error) {
	if actor.Role != directory.RolePatient {
		return nil, ErrPatientsOnly
	}

	now := s.clock.Now()
	if req.ScheduledAt.Before(now) {
		return nil, ErrPastAppointment
	}

	policy := s.engine.Policy()
	if !policy.Hours.ContainsInstant(req.ScheduledAt, policy.Location) {
		return nil, ErrOutsideBusinessHours.Withf("appointment must be between %s and %s", policy.Hours.Open, policy.Hours.Close)
	}

	var created *Appointment

	book := func(lockCtx context.Context) error {
		return s.repo.WithDoctorTx(lockCtx, req.DoctorID, func(txCtx context.Context, tx TxRepository) error {
			reason, err := s.engine.Bind(tx, tx).Check(txCtx, req.DoctorID, req.ScheduledAt)
			if err != nil {
				return fmt.Errorf("check availability: %w", err)
			}
			if reason != availability.ReasonAvailable {
				s.log.Info().
					Str("doctor_id", req.DoctorID.String()).
					Str("patient_id", actor.ID.String()).
					Time("scheduled_at", req.ScheduledAt).
					Str("reason", string(reason)).
					Msg("booking rejected")
				return ErrDoctorUnavailable
			}

			appt, err := tx.CreateAppointment(txCtx, actor.ID, req)
			if err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}

			ev := s.newEvent(appt.ID, EventAppointmentCreated, map[string]any{
				"doctor_id":    req.DoctorID.String(),
				"patient_id":   actor.ID.String(),
				"scheduled_at": req.ScheduledAt,
			})
			if err := tx.InsertEvent(txCtx, ev); err != nil {
				return err
			}

			created = appt
			return nil
		})
	}

	err := s.locker.WithDoctorLock(ctx, req.DoctorID, book)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		// the doctor row lock inside the tx still serializes the booking
		s.log.Warn().
			Str("doctor_id", req.DoctorID.String()).
			Msg("doctor lock wait expired, booking under row lock only")
		err = book(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Str("patient_id", created.PatientID.String()).
		Time("scheduled_at", created.ScheduledAt).
		Msg("appointment created")

	return created, nil
}

// UpdateStatus lets the owning doctor set any status except moving an
// appointment back to pending.
func (s *Service) UpdateStatus(ctx context.Context, actor directory.Actor, id uuid.UUID, to Status) (*Appointment, error) {
	if actor.Role != directory.RoleDoctor {
		return nil, ErrDoctorsOnly
	}
	if !to.Valid() {
		return nil, ErrInvalidStatus.Withf("unknown appointment status %q", to)
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.DoctorID != actor.ID {
		return nil, ErrAppointmentNotFound
	}

	from := appt.Status
	if to == StatusPending && from != StatusPending {
		return nil, ErrBackToPending
	}
	if from.Terminal() || (from == StatusPending && to == StatusCompleted) {
		s.log.Warn().
			Str("appointment_id", id.String()).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("unusual status transition")
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, to, []Status{from})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrStatusChangedMeantime
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentStatusChanged, map[string]any{
		"from":      from,
		"to":        to,
		"doctor_id": actor.ID.String(),
	})

	return updated, nil
}

// Cancel moves a pending or confirmed appointment to cancelled. The owning
// patient, the owning doctor and admins may cancel.
func (s *Service) Cancel(ctx context.Context, actor directory.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrNotCancelable
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !canCancel(actor, appt) || !appt.Status.Active() {
		return nil, ErrNotCancelable
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusCancelled, ActiveStatuses)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrNotCancelable
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentCancelled, map[string]any{
		"from":       appt.Status,
		"actor_id":   actor.ID.String(),
		"actor_role": actor.Role,
	})

	return updated, nil
}

func canCancel(actor directory.Actor, appt *Appointment) bool {
	switch actor.Role {
	case directory.RoleAdmin:
		return true
	case directory.RolePatient:
		return appt.PatientID == actor.ID
	case directory.RoleDoctor:
		return appt.DoctorID == actor.ID
	}
	return false
}

// Get returns a single appointment visible to the actor.
func (s *Service) Get(ctx context.Context, actor directory.Actor, id uuid.UUID) (*Appointment, error) {
	view, err := ViewFor(actor)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if !view.CanSee(appt) {
		return nil, ErrAppointmentNotFound
	}
	return appt, nil
}

// List returns one page of the appointments visible to the actor.
func (s *Service) List(ctx context.Context, actor directory.Actor, f Filter) (*Page, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	view, err := ViewFor(actor)
	if err != nil {
		return nil, err
	}

	q := view.BuildQuery(f)
	appointments, total, err := s.repo.ListAppointments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if appointments == nil {
		appointments = []Appointment{}
	}

	return &Page{
		Appointments: appointments,
		Total:        total,
		Skip:         q.Skip,
		Limit:        q.Limit,
	}, nil
}

// CheckAvailability answers the public availability query without booking.
func (s *Service) CheckAvailability(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	return s.engine.IsAvailable(ctx, doctorID, at)
}

func (s *Service) newEvent(appointmentID uuid.UUID, eventType string, payload map[string]any) EventLog {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID
	return EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	ev := s.newEvent(appointmentID, eventType, payload)
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().
			Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
