package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/clock"
	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/logging"
	"github.com/hackgods/doctor-appointment-booking/internal/reminder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("", "info")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("component", "reminder-worker").Logger()
	logger.Info().
		Dur("interval", cfg.ReminderInterval).
		Dur("lead_time", cfg.ReminderLeadTime).
		Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns, cfg.DBMinConns)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to Postgres")

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	}

	client := asynq.NewClient(redisOpts)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing task client")
		}
	}()

	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"default": 1,
		},
	})
	repo := appointment.NewPgRepository(pool)

	if err := srv.Start(reminder.NewServeMux(repo, reminder.LogNotifier(logger), logger)); err != nil {
		logger.Error().Err(err).Msg("failed to start task server")
		os.Exit(1)
	}

	scheduler := reminder.NewScheduler(repo, client, clock.System, cfg.ReminderLeadTime, cfg.ReminderInterval, logger)

	scheduler.Run(rootCtx)

	logger.Info().Msg("stopping task server")
	srv.Shutdown()
}
