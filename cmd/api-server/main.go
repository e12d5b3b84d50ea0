package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/dental-availability/internal/api"
	"github.com/hackgods/dental-availability/internal/appointment"
	"github.com/hackgods/dental-availability/internal/config"
	"github.com/hackgods/dental-availability/internal/db"
	"github.com/hackgods/dental-availability/internal/events"
	"github.com/hackgods/dental-availability/internal/logging"
	redisclient "github.com/hackgods/dental-availability/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.Setup("prod", "")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.Setup(cfg.Env, cfg.LogLevel).With().Str("service", "api-server").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("clinic_tz", cfg.Location.String()).
		Dur("slot_step", cfg.SlotStep).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	if err == nil {
		err = db.Migrate(pgCtx, pgPool)
	}
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres setup error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:       cfg.RedisAddr,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		PoolSize:   cfg.RedisPoolSize,
		ClientName: "dental-api",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	repo := appointment.NewPgRepository(pgPool)
	checks := []api.DependencyCheck{
		{Name: "postgres", Critical: true, Ping: repo.Ping},
		{Name: "redis", Critical: true, Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		nc, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			// Bookings still work without event fan-out.
			logger.Error().Err(err).Msg("nats unavailable, events will not be published")
		} else {
			defer func() {
				if err := nc.Close(); err != nil {
					logger.Error().Err(err).Msg("error draining nats")
				}
			}()
			publisher = nc
			checks = append(checks, api.DependencyCheck{
				Name: "nats",
				Ping: func(context.Context) error { return nc.Ping() },
			})
		}
	}

	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	svc := appointment.NewService(repo, locker, publisher, cfg, logger)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service: svc,
			Checks:  checks,
			Metrics: api.NewMetrics(),
			Logger:  logger,
			Env:     cfg.Env,
			Version: version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	shutdown(srv, cfg.ShutdownTimeout, logger)
}

func shutdown(srv *http.Server, timeout time.Duration, logger zerolog.Logger) {
	logger.Info().Msg("shutting down api-server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	logger.Info().Msg("api-server stopped")
}
