package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/directory"
	"github.com/hackgods/doctor-appointment-booking/internal/logging"
)

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// shifts are the working interval lists handed out to seeded doctors. The
// empty entry leaves a doctor without a declared schedule.
var shifts = []string{
	"08:00-12:00,14:00-18:00",
	"09:00-13:00",
	"13:00-18:00",
	"08:00-18:00",
	"10:00-12:00,15:00-17:30",
	"",
}

func main() {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with fake doctors and patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctors, _ := cmd.Flags().GetInt("doctors")
			patients, _ := cmd.Flags().GetInt("patients")
			return run(doctors, patients)
		},
	}
	cmd.Flags().Int("doctors", 100, "Number of doctors to create")
	cmd.Flags().Int("patients", 9000, "Number of patients to create")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(doctors, patients int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("component", "seed").Logger()
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedAdmin(context.Background(), pool, logger); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := seedDoctors(context.Background(), pool, doctors, logger); err != nil {
		return fmt.Errorf("seed doctors: %w", err)
	}
	if err := seedPatients(context.Background(), pool, patients, logger); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}

	logger.Info().Msg("seed complete")
	return nil
}

const insertUser = `
	INSERT INTO users (id, email, full_name, role, is_active, specialization, consultation_fee, available_timeslots)
	VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7)
	ON CONFLICT DO NOTHING
`

// seedEmail keeps generated addresses unique across runs.
func seedEmail(role directory.Role, i int) string {
	local := strings.ToLower(gofakeit.Username())
	return fmt.Sprintf("%s.%s%d@%s", local, role, i, gofakeit.DomainName())
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	name := "Clinic Admin"
	_, err := pool.Exec(ctx, insertUser, uuid.New(), "admin@clinic.local", &name, string(directory.RoleAdmin), nil, nil, nil)
	if err != nil {
		return err
	}
	logger.Info().Str("email", "admin@clinic.local").Msg("admin seeded")
	return nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding doctors")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		name := "Dr. " + gofakeit.Name()
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]
		fee := float64(gofakeit.Number(3, 20) * 100)

		var slots *string
		if shift := shifts[gofakeit.Number(0, len(shifts)-1)]; shift != "" {
			slots = &shift
		}

		_, err := tx.Exec(ctx, insertUser, uuid.New(), seedEmail(directory.RoleDoctor, i), &name, string(directory.RoleDoctor), &spec, &fee, slots)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			name := gofakeit.Name()

			_, err := tx.Exec(ctx, insertUser, uuid.New(), seedEmail(directory.RolePatient, i), &name, string(directory.RolePatient), nil, nil, nil)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("seeded", end).Int("total", count).Msg("patients progress")
	}

	logger.Info().Msg("patients seeded")
	return nil
}
