package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/workshop-scheduling/internal/auth"
)

type RouterConfig struct {
	Service    AppointmentService
	Principals PrincipalLoader
	Tokens     *auth.TokenManager
	Policy     *auth.Policy
	Postgres   Pinger
	Redis      Pinger
	Logger     *slog.Logger
	Env        string
	Version    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Policy == nil {
		cfg.Policy = auth.DefaultPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	log := cfg.Logger

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service
	allow := func(op auth.Operation) func(http.Handler) http.Handler {
		return Authorize(cfg.Policy, op)
	}

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Tokens, cfg.Principals, log))

		r.With(allow(auth.OpCreateOwnAppointment)).Post("/appointments", createAppointmentHandler(svc, log))
		r.With(allow(auth.OpCreateAppointmentForAny)).Post("/appointments/for-client", createForClientHandler(svc, log))
		r.With(allow(auth.OpUpdateAppointmentStatus)).Patch("/appointments/{id}/status", updateStatusHandler(svc, log))
		r.With(allow(auth.OpRecordWorkItem)).Post("/appointments/{id}/work-items", recordWorkItemHandler(svc, log))

		r.With(allow(auth.OpViewOwnAppointments)).Get("/appointments/mine", listHandler(svc.ListOwnAppointments, log))
		r.With(allow(auth.OpViewAssignedAppointments)).Get("/appointments/assigned", listHandler(svc.ListAssignedAppointments, log))
		r.With(allow(auth.OpViewAllAppointments)).Get("/appointments", searchHandler(svc, log))
		r.With(allow(auth.OpViewAvailability)).Get("/availability", availabilityHandler(svc, log))
	})

	return r
}
