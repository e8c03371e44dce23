// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	MigrationsPath string
	RedisAddr      string

	JWTSecret    string
	ServiceToken string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// BackendURL is the server's base URL for the worker's service calls,
	// e.g. "http://server:8080".
	BackendURL string

	SchedulerInterval time.Duration
	WorkerConcurrency int
}

// Load reads the environment. DATABASE_URL and REDIS_ADDR are required;
// everything else has a default or may be empty until the feature needing
// it is exercised.
func Load() (Config, error) {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := Config{
		Port:           getenv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: getenv("MIGRATIONS_PATH", "internal/db/migrations"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		ServiceToken: os.Getenv("SERVICE_TOKEN"),

		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubject:    os.Getenv("VAPID_SUBJECT"),

		BackendURL: getenv("BACKEND_URL", "http://localhost:8080"),

		SchedulerInterval: getenvDuration("SCHEDULER_INTERVAL", time.Minute),
		WorkerConcurrency: 10,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("REDIS_ADDR environment variable not set")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
