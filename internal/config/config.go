package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the process configuration, read from the environment.
type Config struct {
	DatabaseURL string
	Port        int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWKSURL   string

	BillingWebhookSecret string

	GuestAttempts int
	SessionTTL    time.Duration

	LogLevel  string
	LogFormat string

	SchedulerEnabled bool
}

// Load reads an optional .env file and then the environment. Variables already set
// in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a getenv function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:          strings.TrimSpace(getenv("DATABASE_URL")),
		Port:                 8080,
		RedisAddr:            "localhost:6379",
		RedisPassword:        getenv("REDIS_PASSWORD"),
		JWTSecret:            getenv("JWT_SECRET"),
		JWKSURL:              strings.TrimSpace(getenv("JWKS_URL")),
		BillingWebhookSecret: getenv("BILLING_WEBHOOK_SECRET"),
		GuestAttempts:        3,
		SessionTTL:           24 * time.Hour,
		LogLevel:             getenv("LOG_LEVEL"),
		LogFormat:            getenv("LOG_FORMAT"),
		SchedulerEnabled:     true,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
		return nil, fmt.Errorf("one of JWT_SECRET or JWKS_URL is required")
	}

	if addr := strings.TrimSpace(getenv("REDIS_ADDR")); addr != "" {
		cfg.RedisAddr = addr
	}

	var err error
	if cfg.Port, err = intVar(getenv, "PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = intVar(getenv, "REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.GuestAttempts, err = intVar(getenv, "GUEST_ATTEMPTS", cfg.GuestAttempts); err != nil {
		return nil, err
	}
	if cfg.GuestAttempts < 0 {
		return nil, fmt.Errorf("GUEST_ATTEMPTS must not be negative")
	}

	if v := strings.TrimSpace(getenv("SESSION_TTL")); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("invalid SESSION_TTL %q", v)
		}
		cfg.SessionTTL = ttl
	}

	if v := strings.TrimSpace(getenv("SCHEDULER_ENABLED")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SCHEDULER_ENABLED %q", v)
		}
		cfg.SchedulerEnabled = enabled
	}

	return cfg, nil
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return n, nil
}
