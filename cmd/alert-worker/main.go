package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/rehab-care-coordination/internal/analytics"
	"github.com/hackgods/rehab-care-coordination/internal/clinical"
	"github.com/hackgods/rehab-care-coordination/internal/config"
	"github.com/hackgods/rehab-care-coordination/internal/db"
	"github.com/hackgods/rehab-care-coordination/internal/logger"
	"github.com/hackgods/rehab-care-coordination/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info", "alert-worker")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel, "alert-worker")
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("lookback", cfg.WorkerLookback).
		Msg("alert worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN,
		db.WithMaxConns(cfg.PostgresMaxConns), db.WithApplicationName("alert-worker"))
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	store := clinical.NewPgStore(pgPool)
	engine, err := analytics.NewAlertEngine(store, analytics.ThresholdsFromConfig(cfg.Alerts),
		analytics.WithLogger(log), analytics.WithMetrics(metrics.New("rehab_worker")))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid alert thresholds")
	}

	w := &worker{store: store, engine: engine, lookback: cfg.WorkerLookback, log: log}

	// Run once at startup
	w.runOnce(rootCtx)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping alert worker")
			return
		case <-ticker.C:
			w.runOnce(rootCtx)
		}
	}
}

type worker struct {
	store    clinical.Store
	engine   *analytics.AlertEngine
	lookback time.Duration
	log      zerolog.Logger
}

// runOnce evaluates the alert rules for every patient with activity inside
// the lookback and logs what fires. One patient failing does not stop the run.
func (w *worker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	patients, err := w.store.ActivePatients(runCtx, start.Add(-w.lookback))
	if err != nil {
		w.log.Error().Err(err).Msg("list active patients")
		return
	}

	var raised, failed int
	for _, id := range patients {
		alerts, err := w.engine.GeneratePredictiveAlerts(runCtx, id)
		if err != nil {
			failed++
			w.log.Error().Err(err).Str("patient_id", id.String()).Msg("alert evaluation failed")
			if runCtx.Err() != nil {
				break
			}
			continue
		}
		for _, a := range alerts {
			raised++
			w.log.Warn().
				Str("patient_id", id.String()).
				Str("rule", a.Rule).
				Str("severity", string(a.Severity)).
				Msg(a.Message)
		}
	}

	w.log.Info().
		Int("patients", len(patients)).
		Int("alerts", raised).
		Int("failed", failed).
		Dur("took", time.Since(start)).
		Msg("alert run complete")
}
