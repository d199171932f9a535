package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/rehab-care-coordination/internal/analytics"
	"github.com/hackgods/rehab-care-coordination/internal/api"
	"github.com/hackgods/rehab-care-coordination/internal/appointment"
	"github.com/hackgods/rehab-care-coordination/internal/clinical"
	"github.com/hackgods/rehab-care-coordination/internal/config"
	"github.com/hackgods/rehab-care-coordination/internal/db"
	"github.com/hackgods/rehab-care-coordination/internal/logger"
	"github.com/hackgods/rehab-care-coordination/internal/metrics"
	redisclient "github.com/hackgods/rehab-care-coordination/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info", "api-server")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel, "api-server")
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("version", version).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN,
		db.WithMaxConns(cfg.PostgresMaxConns), db.WithApplicationName("api-server"))
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	applied, err := db.Migrate(rootCtx, pgPool)
	if err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}
	log.Info().Int("applied", applied).Msg("schema up to date")

	// Redis is optional: without it bookings rely on the row lock alone and
	// analytics are computed on every request.
	var (
		rdb    *redis.Client
		locker redisclient.Locker
		cache  *redisclient.AnalyticsCache
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, continuing without slot lock and analytics cache")
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Error().Err(err).Msg("error closing redis")
				}
			}()
			locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait)
			if cfg.AnalyticsCacheTTL > 0 {
				cache = redisclient.NewAnalyticsCache(rdb, cfg.AnalyticsCacheTTL)
			}
			log.Info().Msg("connected to Redis")
		}
	}

	m := metrics.New("rehab")
	store := clinical.NewPgStore(pgPool)

	opts := []analytics.Option{analytics.WithLogger(log), analytics.WithMetrics(m)}
	var invalidator clinical.Invalidator
	if cache != nil {
		opts = append(opts, analytics.WithCache(cache))
		invalidator = cache
	}

	engine, err := analytics.NewAlertEngine(store, analytics.ThresholdsFromConfig(cfg.Alerts), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid alert thresholds")
	}
	aggregator := analytics.NewAggregator(store, opts...)
	reports := analytics.NewReportBuilder(store, opts...)

	deps := []api.Dependency{{Name: "postgres", Check: pgPool.Ping}}
	if rdb != nil {
		deps = append(deps, api.Dependency{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			Optional: true,
		})
	}

	router := api.NewRouter(api.RouterConfig{
		Booking:    appointment.NewService(appointment.NewPgRepository(pgPool), locker, cfg, log, m),
		Aggregator: aggregator,
		Reports:    reports,
		Alerts:     engine,
		Overview:   analytics.NewOverview(aggregator, reports, engine),
		Recorder:   clinical.NewRecorder(store, invalidator, log),
		Health:     api.NewHealthHandler(cfg.Env, version, deps...),
		Metrics:    m,
		Logger:     log,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	shutdown(log, srv, cfg.ShutdownTimeout)
}

func shutdown(log zerolog.Logger, srv *http.Server, timeout time.Duration) {
	log.Info().Dur("timeout", timeout).Msg("shutting down api-server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return
	}
	log.Info().Msg("api-server stopped")
}
