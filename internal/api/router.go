package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-portal-scheduling/internal/appointment"
	"github.com/hackgods/hospital-portal-scheduling/internal/receipt"
)

type RouterConfig struct {
	Service  *appointment.Service
	Renderer receipt.Renderer
	JWT      JWTConfig
	Location *time.Location
	Logger   zerolog.Logger
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Renderer == nil {
		cfg.Renderer = receipt.NewTextRenderer()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWT))

		// Appointment endpoints
		r.Route("/appointments", func(r chi.Router) {
			r.Get("/doctors/{doctor_id}/appointments", dayScheduleHandler(cfg.Service))
			r.Post("/book", bookAppointmentHandler(cfg.Service))
			r.Get("/history", historyHandler(cfg.Service))
			r.Get("/all", listAppointmentsHandler(cfg.Service, cfg.Location))
			r.Get("/{id}", getAppointmentHandler(cfg.Service))
			r.Delete("/{id}/cancel", cancelAppointmentHandler(cfg.Service))
			r.Patch("/{id}/status", updateStatusHandler(cfg.Service))
			r.Get("/{id}/receipt", receiptHandler(cfg.Service, cfg.Renderer))
		})

		// Availability windows
		r.Put("/availability/hospitals/{hospital_id}/doctors/{doctor_id}", setAvailabilityHandler(cfg.Service))
		r.Get("/availability/hospitals/{hospital_id}/doctors/{doctor_id}", getAvailabilityHandler(cfg.Service))

		// Payments
		r.Post("/payments", createPaymentHandler(cfg.Service))
		r.Get("/payments/appointments/{id}", getPaymentHandler(cfg.Service))
	})

	return r
}
