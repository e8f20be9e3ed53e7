package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration. Timer durations are deliberately
// absent: they are fixed constants in the room package, not knobs.
type Config struct {
	Port           string
	Env            string
	AllowedOrigins []string
	// DatabaseURL enables the session log when set. Empty means the
	// server runs fully in memory.
	DatabaseURL string
	// RejectionEvents switches refused commands (non-host timer control,
	// commands sent outside a room) from silent no-ops to explicit error
	// events scoped to the offending connection.
	RejectionEvents bool
}

// Load reads configuration from the environment, with a best-effort .env
// load for local development.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "3001"),
		Env:             getEnv("ENV", "development"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RejectionEvents: getEnv("REJECTION_EVENTS", "false") == "true",
	}

	for _, origin := range strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	return cfg
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
