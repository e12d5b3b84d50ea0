package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/dental-availability/internal/appointment"
	"github.com/hackgods/dental-availability/internal/config"
	"github.com/hackgods/dental-availability/internal/db"
	"github.com/hackgods/dental-availability/internal/events"
	"github.com/hackgods/dental-availability/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.Setup("prod", "")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.Setup(cfg.Env, cfg.LogLevel).With().Str("service", "noshow-worker").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("grace", cfg.NoShowGrace).
		Msg("noshow-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		nc, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error().Err(err).Msg("nats unavailable, events will not be published")
		} else {
			defer nc.Close()
			publisher = nc
		}
	}

	// Status sweeps take no schedule lock, so the worker runs without Redis.
	repo := appointment.NewPgRepository(pgPool)
	svc := appointment.NewService(repo, nil, publisher, cfg, logger)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping noshow-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	marked, err := svc.MarkNoShows(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("no-show run error")
		return
	}
	logger.Info().Int("marked", marked).Dur("took", time.Since(start)).Msg("no-show run complete")
}
