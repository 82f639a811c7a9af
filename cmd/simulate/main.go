package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/hackgods/doctor-appointment-booking/internal/api"
	"github.com/hackgods/doctor-appointment-booking/internal/clock"
	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ConfirmRatio float64
	ReadRatio    float64
	PatientLimit int
	DoctorLimit  int
	// HorizonDays bounds how far ahead bookings are placed.
	HorizonDays int
	// Burst is the number of simultaneous requests fired at a single doctor
	// and instant before the mixed workload starts. Zero skips it.
	Burst int
}

type member struct {
	ID    uuid.UUID
	Token string
}

type booked struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
}

type DataPool struct {
	Patients  []member
	Doctors   map[uuid.UUID]member
	doctorIDs []uuid.UUID

	mu           sync.RWMutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

func (dp *DataPool) RandomDoctor(rng *rand.Rand) member {
	return dp.Doctors[dp.doctorIDs[rng.Intn(len(dp.doctorIDs))]]
}

func (dp *DataPool) RandomPatient(rng *rand.Rand) member {
	return dp.Patients[rng.Intn(len(dp.Patients))]
}

type OperationMetrics struct {
	Total       int64
	Success     int64
	Conflict    int64
	RateLimited int64
	Error       int64
	Latencies   []time.Duration
	mu          sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status == http.StatusTooManyRequests:
		atomic.AddInt64(&om.RateLimited, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Burst        OperationMetrics
	Booking      OperationMetrics
	Confirm      OperationMetrics
	ReadByID     OperationMetrics
	ListOwn      OperationMetrics
	Availability OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	hours   clock.BusinessHours
	loc     *time.Location
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev", "info")
		bootLog.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("component", "simulate").Logger()

	simCfg := loadSimConfig()
	if err := validateConfig(simCfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", simCfg.Duration).
		Int("workers", simCfg.Workers).
		Float64("booking", simCfg.BookingRatio).
		Float64("confirm", simCfg.ConfirmRatio).
		Float64("read", simCfg.ReadRatio).
		Int("burst", simCfg.Burst).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, simCfg, []byte(cfg.JWTSecret))
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("patients", len(dataPool.Patients)).Int("doctors", len(dataPool.Doctors)).Msg("data pool loaded")

	hours, err := cfg.BusinessHours()
	if err != nil {
		logger.Fatal().Err(err).Msg("business hours")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("clinic timezone")
	}
	if loc == nil {
		loc = time.UTC
	}

	sim := &Simulator{
		config: simCfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		hours:  hours,
		loc:    loc,
		log:    logger,
	}

	if simCfg.Burst > 0 {
		sim.RunBurst()
	}
	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	v := viper.New()
	v.SetEnvPrefix("SIM")
	v.AutomaticEnv()

	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("DURATION", 30*time.Second)
	v.SetDefault("WORKERS", 10)
	v.SetDefault("BOOKING_RATIO", 0.5)
	v.SetDefault("CONFIRM_RATIO", 0.2)
	v.SetDefault("READ_RATIO", 0.3)
	v.SetDefault("PATIENT_LIMIT", 4000)
	v.SetDefault("DOCTOR_LIMIT", 100)
	v.SetDefault("HORIZON_DAYS", 14)
	v.SetDefault("BURST", 50)

	cfg := SimConfig{
		APIBaseURL:   v.GetString("API_BASE_URL"),
		Duration:     v.GetDuration("DURATION"),
		Workers:      v.GetInt("WORKERS"),
		BookingRatio: v.GetFloat64("BOOKING_RATIO"),
		ConfirmRatio: v.GetFloat64("CONFIRM_RATIO"),
		ReadRatio:    v.GetFloat64("READ_RATIO"),
		PatientLimit: v.GetInt("PATIENT_LIMIT"),
		DoctorLimit:  v.GetInt("DOCTOR_LIMIT"),
		HorizonDays:  v.GetInt("HORIZON_DAYS"),
		Burst:        v.GetInt("BURST"),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HorizonDays <= 0 {
		return fmt.Errorf("SIM_HORIZON_DAYS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig, secret []byte) (*DataPool, error) {
	dataPool := &DataPool{Doctors: make(map[uuid.UUID]member)}

	patients, err := loadMembers(ctx, pool, "patient", cfg.PatientLimit, secret)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dataPool.Patients = patients

	doctors, err := loadMembers(ctx, pool, "doctor", cfg.DoctorLimit, secret)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for _, d := range doctors {
		dataPool.Doctors[d.ID] = d
		dataPool.doctorIDs = append(dataPool.doctorIDs, d.ID)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded")
	}

	return dataPool, nil
}

func loadMembers(ctx context.Context, pool *pgxpool.Pool, role string, limit int, secret []byte) ([]member, error) {
	rows, err := pool.Query(ctx, `
		SELECT id FROM users WHERE role = $1 AND is_active LIMIT $2
	`, role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []member
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		token, err := api.IssueToken(secret, id, 2*time.Hour)
		if err != nil {
			return nil, err
		}
		out = append(out, member{ID: id, Token: token})
	}
	return out, rows.Err()
}

// randomInstant picks a whole hour inside business hours within the horizon.
// Whole hours keep the instant space small so bookings collide.
func (s *Simulator) randomInstant(rng *rand.Rand) time.Time {
	day := time.Now().In(s.loc).AddDate(0, 0, 1+rng.Intn(s.config.HorizonDays))
	openHour := int(time.Duration(s.hours.Open) / time.Hour)
	closeHour := int(time.Duration(s.hours.Close) / time.Hour)
	hour := openHour + rng.Intn(closeHour-openHour+1)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, s.loc)
}

// RunBurst fires Burst simultaneous bookings at one doctor and instant. At
// most one of them may succeed.
func (s *Simulator) RunBurst() {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	doctor := s.pool.RandomDoctor(rng)
	at := s.randomInstant(rng)

	s.log.Info().Str("doctor_id", doctor.ID.String()).Time("at", at).Int("requests", s.config.Burst).Msg("starting burst")

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < s.config.Burst; i++ {
		patient := s.pool.RandomPatient(rng)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s.book(context.Background(), &s.metrics.Burst, patient, doctor.ID, at)
		}()
	}
	close(start)
	wg.Wait()

	if n := atomic.LoadInt64(&s.metrics.Burst.Success); n > 1 {
		s.log.Error().Int64("successes", n).Msg("double booking detected")
	} else {
		s.log.Info().Int64("successes", n).Int64("conflicts", atomic.LoadInt64(&s.metrics.Burst.Conflict)).Msg("burst complete")
	}
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListOwn(ctx, rng)
				case 2:
					s.doAvailability(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctor := s.pool.RandomDoctor(rng)
	s.book(ctx, &s.metrics.Booking, s.pool.RandomPatient(rng), doctor.ID, s.randomInstant(rng))
}

func (s *Simulator) book(ctx context.Context, om *OperationMetrics, patient member, doctorID uuid.UUID, at time.Time) {
	var resp struct {
		ID uuid.UUID `json:"id"`
	}
	status, latency := s.call(ctx, http.MethodPost, "/api/v1/appointments", patient.Token, map[string]string{
		"doctorId":         doctorID.String(),
		"scheduledInstant": at.Format(time.RFC3339),
	}, &resp)
	om.Record(latency, status)

	if status == http.StatusCreated && resp.ID != uuid.Nil {
		s.pool.AddAppointment(booked{ID: resp.ID, DoctorID: doctorID})
	}
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	doctor := s.pool.Doctors[appt.DoctorID]

	status, latency := s.call(ctx, http.MethodPatch, "/api/v1/appointments/"+appt.ID.String()+"/status", doctor.Token,
		map[string]string{"status": "confirmed"}, nil)
	s.metrics.Confirm.Record(latency, status)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	doctor := s.pool.Doctors[appt.DoctorID]

	status, latency := s.call(ctx, http.MethodGet, "/api/v1/appointments/"+appt.ID.String(), doctor.Token, nil, nil)
	s.metrics.ReadByID.Record(latency, status)
}

func (s *Simulator) doListOwn(ctx context.Context, rng *rand.Rand) {
	patient := s.pool.RandomPatient(rng)
	status, latency := s.call(ctx, http.MethodGet, "/api/v1/appointments?limit=20", patient.Token, nil, nil)
	s.metrics.ListOwn.Record(latency, status)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	doctor := s.pool.RandomDoctor(rng)
	patient := s.pool.RandomPatient(rng)
	path := fmt.Sprintf("/api/v1/doctors/%s/availability?appointmentDatetime=%s",
		doctor.ID, url.QueryEscape(s.randomInstant(rng).Format(time.RFC3339)))

	status, latency := s.call(ctx, http.MethodGet, path, patient.Token, nil, nil)
	s.metrics.Availability.Record(latency, status)
}

// call returns the HTTP status, or 0 when the request failed outright.
func (s *Simulator) call(ctx context.Context, method, path, token string, body, out any) (int, time.Duration) {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, latency
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Burst (same doctor, same instant)", &s.metrics.Burst)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List own", &s.metrics.ListOwn)
	printOperationReport("Availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	limited := atomic.LoadInt64(&om.RateLimited)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if limited > 0 {
		fmt.Printf("  Rate limited: %d (%.1f%%)\n", limited, pct(limited))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
