package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hackgods/rehab-care-coordination/internal/analytics"
	"github.com/hackgods/rehab-care-coordination/internal/appointment"
	"github.com/hackgods/rehab-care-coordination/internal/clinical"
	"github.com/hackgods/rehab-care-coordination/internal/metrics"
)

type RouterConfig struct {
	Booking    *appointment.Service
	Aggregator *analytics.Aggregator
	Reports    *analytics.ReportBuilder
	Alerts     *analytics.AlertEngine
	Overview   *analytics.Overview
	Recorder   *clinical.Recorder
	Health     *HealthHandler
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/slots", func(r chi.Router) {
		r.Post("/", createSlotHandler(cfg.Booking))
		r.Get("/", listOpenSlotsHandler(cfg.Booking))
		r.Post("/{id}/book", bookSlotHandler(cfg.Booking))
	})

	r.Route("/patients/{id}", func(r chi.Router) {
		r.Get("/adherence/{kind}", adherenceHandler(cfg.Aggregator))
		r.Get("/progress-report", progressReportHandler(cfg.Reports))
		r.Get("/health-trends", healthTrendsHandler(cfg.Reports))
		r.Get("/alerts", alertsHandler(cfg.Alerts))
		r.Get("/overview", overviewHandler(cfg.Overview))

		r.Post("/progress", recordSnapshotHandler(cfg.Recorder))
		r.Post("/adherence/{kind}", recordAdherenceHandler(cfg.Recorder))
	})

	return r
}
