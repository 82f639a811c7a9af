// Package reminder schedules and handles next-day reminders for confirmed
// appointments. Delivery only logs; sending is handled elsewhere.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
)

const TypeAppointmentReminder = "appointment:reminder"

type Payload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
}

func taskID(appointmentID uuid.UUID) string {
	return "reminder:" + appointmentID.String()
}

// NewReminderTask builds the task for one appointment. The task id is derived
// from the appointment so repeated sweeps cannot queue it twice while the
// task is retained.
func NewReminderTask(p Payload, fireAt time.Time, retention time.Duration) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeAppointmentReminder, b)
	opts := []asynq.Option{
		asynq.TaskID(taskID(p.AppointmentID)),
		asynq.ProcessAt(fireAt),
		asynq.Retention(retention),
		asynq.MaxRetry(3),
	}
	return task, opts, nil
}

// Lookup loads the current state of an appointment when its reminder fires.
type Lookup interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

// Notifier delivers a reminder to the patient.
type Notifier interface {
	Notify(ctx context.Context, p Payload) error
}

type logNotifier struct {
	log zerolog.Logger
}

// LogNotifier only logs the reminder.
func LogNotifier(log zerolog.Logger) Notifier {
	return logNotifier{log: log}
}

func (n logNotifier) Notify(_ context.Context, p Payload) error {
	n.log.Info().
		Str("appointment_id", p.AppointmentID.String()).
		Str("patient_id", p.PatientID.String()).
		Str("doctor_id", p.DoctorID.String()).
		Time("scheduled_at", p.ScheduledAt).
		Msg("appointment reminder due")
	return nil
}

// HandleReminder processes reminder tasks. The appointment is reloaded first:
// one that was cancelled, completed or rescheduled after the task was queued
// gets no reminder.
func HandleReminder(lookup Lookup, notifier Notifier, log zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p Payload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Error().Err(err).Str("type", task.Type()).Msg("invalid reminder payload")
			return fmt.Errorf("decode reminder payload: %w: %w", err, asynq.SkipRetry)
		}

		appt, err := lookup.GetAppointmentByID(ctx, p.AppointmentID)
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			log.Info().Str("appointment_id", p.AppointmentID.String()).Msg("reminder skipped, appointment gone")
			return nil
		}
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}

		if appt.Status != appointment.StatusConfirmed || !appt.ScheduledAt.Equal(p.ScheduledAt) {
			log.Info().
				Str("appointment_id", p.AppointmentID.String()).
				Str("status", string(appt.Status)).
				Msg("reminder skipped, appointment changed")
			return nil
		}

		return notifier.Notify(ctx, p)
	}
}

// NewServeMux routes reminder task types to their handlers.
func NewServeMux(lookup Lookup, notifier Notifier, log zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeAppointmentReminder, HandleReminder(lookup, notifier, log))
	return mux
}
