package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	RedisURL    string
	DatabaseURL string
	SQLitePath  string

	// Shared secrets
	SigningSecret string // base64, signs queue envelopes and client frames
	JWTSecret     string // verifies session access tokens

	// Pipeline tuning
	WorkerLimit   int
	PresenceTTL   time.Duration
	IdleTimeout   time.Duration
	MaxFrameBytes int64
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		RedisURL:      os.Getenv("REDIS_URL"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    os.Getenv("SQLITE_PATH"),
		SigningSecret: os.Getenv("SIGNING_SECRET"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		WorkerLimit:   getEnvInt("WORKER_LIMIT", 64),
		PresenceTTL:   getEnvDuration("PRESENCE_TTL", 6*time.Minute),
		IdleTimeout:   getEnvDuration("IDLE_TIMEOUT", 6*time.Minute),
		MaxFrameBytes: int64(getEnvInt("MAX_FRAME_BYTES", 8*1024)),
	}

	// In production, require the broker and both secrets
	if cfg.Env == "production" {
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.SigningSecret == "" {
			panic("SIGNING_SECRET is required in production")
		}
		if cfg.JWTSecret == "" {
			panic("JWT_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
