package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medilink/appointment-engine/internal/appointment"
	"github.com/medilink/appointment-engine/internal/availability"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       *zap.Logger
	Env          string
	Version      string
	HorizonDays  int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/doctors/{doctorID}/availability", availabilityHandler(cfg.Availability, cfg.HorizonDays))
	r.Get("/doctors/{doctorID}/availability/summary", availabilitySummaryHandler(cfg.Availability, cfg.HorizonDays))
	r.Get("/doctors/{doctorID}/appointments", listDoctorDayAppointmentsHandler(cfg.Appointments))

	r.Post("/appointments", commitAppointmentHandler(cfg.Appointments, cfg.Availability))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments, cfg.Availability))

	r.Get("/patients/{patientID}/appointments", listPatientAppointmentsHandler(cfg.Appointments))

	return r
}
