package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Appointments AppointmentService
	Directory    DirectoryService
	Health       *HealthHandler
	JWTSecret    []byte
	// BookingRatePerMinute limits appointment creation per actor; 0 disables.
	BookingRatePerMinute float64
	Logger               zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	h := NewHandler(cfg.Appointments, cfg.Directory, cfg.Logger)
	limiter := NewActorRateLimiter(cfg.BookingRatePerMinute)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret, cfg.Directory, cfg.Logger))

		r.Route("/appointments", func(r chi.Router) {
			r.With(limiter.Middleware).Post("/", h.createAppointment)
			r.Get("/", h.listAppointments)
			r.Get("/{id}", h.getAppointment)
			r.Patch("/{id}/status", h.updateAppointmentStatus)
			r.Delete("/{id}", h.cancelAppointment)
		})

		r.Get("/doctors", h.listDoctors)
		r.Route("/doctors/{id}", func(r chi.Router) {
			r.Get("/availability", h.doctorAvailability)
			r.Get("/schedule", h.getSchedule)
			r.Put("/schedule", h.updateSchedule)
		})

		r.Patch("/admin/doctors/{id}/status", h.setDoctorStatus)
	})

	return r
}
