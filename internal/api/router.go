package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinic-booking/internal/booking"
)

type RouterConfig struct {
	Service   *booking.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret []byte
	TokenTTL  time.Duration
	Env       string
	Version   string
	Logger    zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability is browsable without a token.
	r.Get("/availability/slots", listSlotsHandler(cfg.Service))
	r.Get("/availability/dates", listAvailableDatesHandler(cfg.Service))

	// Dev-only token issuance for the seeded actors.
	if cfg.Env == "dev" {
		r.Post("/auth/token", issueTokenHandler(cfg.JWTSecret, cfg.TokenTTL))
	}

	// Everything else requires an authenticated actor; the booking service
	// enforces what each role may do.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Post("/appointments", createAppointmentHandler(cfg.Service))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/no-show", markNoShowHandler(cfg.Service))

		r.Route("/admin", func(r chi.Router) {
			r.Get("/schedule", getScheduleHandler(cfg.Service))
			r.Put("/schedule", replaceScheduleHandler(cfg.Service))
			r.Get("/vacations", listVacationsHandler(cfg.Service))
			r.Post("/vacations", createVacationHandler(cfg.Service))
			r.Delete("/vacations/{id}", deleteVacationHandler(cfg.Service))
			r.Get("/settings", getSettingsHandler(cfg.Service))
			r.Put("/settings", updateSettingsHandler(cfg.Service))
		})
	})

	return r
}
