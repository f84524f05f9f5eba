package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/medsched/clinic-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Booking  *scheduling.BookingEngine
	Resolver *scheduling.SlotResolver
	Schedule *scheduling.ScheduleManager
	ClinicTZ *time.Location
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	loc := cfg.ClinicTZ
	if loc == nil {
		loc = time.UTC
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/physicians/{physicianID}", func(r chi.Router) {
		r.Get("/slots", resolveSlotsHandler(cfg.Resolver, loc))
		r.Get("/appointments", listPhysicianAppointmentsHandler(cfg.Booking, loc))

		r.Route("/availability", func(r chi.Router) {
			r.Get("/", listAvailabilityHandler(cfg.Schedule))
			r.Post("/", addAvailabilityHandler(cfg.Schedule))
			r.Put("/{availabilityID}", updateAvailabilityHandler(cfg.Schedule))
			r.Delete("/{availabilityID}", removeAvailabilityHandler(cfg.Schedule))
		})

		r.Route("/blocks", func(r chi.Router) {
			r.Get("/", listBlocksHandler(cfg.Schedule))
			r.Post("/", addBlockHandler(cfg.Schedule))
			r.Put("/{blockID}", updateBlockHandler(cfg.Schedule))
			r.Delete("/{blockID}", removeBlockHandler(cfg.Schedule))
		})
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Booking))
		r.Get("/{appointmentID}", getAppointmentHandler(cfg.Booking))

		// Status transitions are explicit action sub-resources, never a
		// generic status PUT.
		r.Post("/{appointmentID}/confirm", transitionHandler(func(req *http.Request, id uuid.UUID) (*scheduling.Appointment, error) {
			return cfg.Booking.Confirm(req.Context(), id)
		}))
		r.Post("/{appointmentID}/cancel", cancelAppointmentHandler(cfg.Booking))
		r.Post("/{appointmentID}/complete", transitionHandler(func(req *http.Request, id uuid.UUID) (*scheduling.Appointment, error) {
			return cfg.Booking.MarkCompleted(req.Context(), id)
		}))
		r.Post("/{appointmentID}/no-show", transitionHandler(func(req *http.Request, id uuid.UUID) (*scheduling.Appointment, error) {
			return cfg.Booking.MarkNoShow(req.Context(), id)
		}))

		r.Delete("/{appointmentID}", adminDeleteAppointmentHandler(cfg.Booking))
	})

	r.Get("/patients/{patientID}/appointments", listPatientAppointmentsHandler(cfg.Booking, loc))

	return r
}
