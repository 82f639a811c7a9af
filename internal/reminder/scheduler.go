package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/clock"
)

// Source lists appointments by status in a half-open range [from, to).
type Source interface {
	FindByStatusBetween(ctx context.Context, status appointment.Status, from, to time.Time) ([]appointment.Appointment, error)
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Scheduler struct {
	source   Source
	enqueuer Enqueuer
	clock    clock.Clock
	lead     time.Duration
	interval time.Duration
	log      zerolog.Logger
}

func NewScheduler(source Source, enqueuer Enqueuer, clk clock.Clock, lead, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		source:   source,
		enqueuer: enqueuer,
		clock:    clk,
		lead:     lead,
		interval: interval,
		log:      log,
	}
}

// RunOnce enqueues a reminder for every confirmed appointment starting
// within the next lead+interval, firing lead before the appointment or
// immediately when that moment has passed. It returns the number of newly
// queued reminders.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.clock.Now()
	horizon := now.Add(s.lead + s.interval)

	due, err := s.source.FindByStatusBetween(ctx, appointment.StatusConfirmed, now, horizon)
	if err != nil {
		return 0, fmt.Errorf("find confirmed appointments: %w", err)
	}

	queued := 0
	for _, a := range due {
		fireAt := a.ScheduledAt.Add(-s.lead)
		if fireAt.Before(now) {
			fireAt = now
		}

		task, opts, err := NewReminderTask(Payload{
			AppointmentID: a.ID,
			PatientID:     a.PatientID,
			DoctorID:      a.DoctorID,
			ScheduledAt:   a.ScheduledAt,
		}, fireAt, s.lead+s.interval)
		if err != nil {
			return queued, fmt.Errorf("build reminder task: %w", err)
		}

		if _, err := s.enqueuer.EnqueueContext(ctx, task, opts...); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to enqueue reminder")
			continue
		}
		queued++
	}

	return queued, nil
}

// Run sweeps once at startup and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("shutdown signal received, stopping reminder scheduler")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := s.RunOnce(runCtx)
	if err != nil {
		s.log.Error().Err(err).Msg("reminder sweep failed")
		return
	}
	s.log.Info().Int("queued", n).Dur("took", time.Since(start)).Msg("reminder sweep complete")
}
