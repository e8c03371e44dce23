package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TaskPulse/internal/bus"
	"TaskPulse/internal/config"
	"TaskPulse/internal/db"
	"TaskPulse/internal/logging"
	"TaskPulse/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.New("scheduler")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()

	if err := bus.Ping(ctx, cfg.RedisAddr); err != nil {
		log.Fatal().Err(err).Msg("broker unreachable")
	}

	publisher := bus.NewPublisher(cfg.RedisAddr)
	defer publisher.Close()

	log.Info().Dur("interval", cfg.SchedulerInterval).Msg("scheduler starting")
	s := scheduler.New(scheduler.DBStore{DB: pool}, publisher, cfg.SchedulerInterval, log)
	s.Start(ctx)
}
