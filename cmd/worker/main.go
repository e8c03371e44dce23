package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TaskPulse/internal/apiclient"
	"TaskPulse/internal/bus"
	"TaskPulse/internal/config"
	"TaskPulse/internal/db"
	"TaskPulse/internal/events"
	"TaskPulse/internal/logging"
	"TaskPulse/internal/push"
	"TaskPulse/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.New("worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		log.Fatal().Msg("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set")
	}

	if err := bus.Ping(ctx, cfg.RedisAddr); err != nil {
		log.Fatal().Err(err).Msg("broker unreachable")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()

	sender := push.NewSender(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		VAPIDSubject:    cfg.VAPIDSubject,
	})
	client := apiclient.New(cfg.BackendURL, cfg.ServiceToken)

	w := worker.New(worker.DBProber{DB: pool}, client, sender, log)

	srv := bus.NewServer(cfg.RedisAddr, cfg.WorkerConcurrency, log)
	srv.Subscribe(events.TopicReminders, w.HandleReminder)
	srv.Subscribe(events.TopicTaskEvents, w.HandleTaskEvent)

	log.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
}
