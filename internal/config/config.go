// Package config handles loading and validating configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Roster sources.
const (
	RosterStatic    = "static"
	RosterSynthetic = "synthetic"
	RosterGraphQL   = "graphql"
)

// Clearing modes (mirrored by the engine).
const (
	ClearingDirect = "direct"
	ClearingBook   = "book"
)

// Config holds all configuration values for the market simulation service.
type Config struct {
	// HTTP host
	Port int

	// Turn loop; zero disables automatic stepping (turns via POST only).
	TurnInterval time.Duration

	// Event store
	DBPath string

	// Roster
	RosterSource       string
	GraphQLURL         string
	SyntheticSeed      int64
	SyntheticCountries int

	// Upstream event publishing; empty disables it.
	EventsURL string

	// Simulation
	ResourceKind string
	OfferTTL     int
	ClearingMode string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables with fallback to a
// .env file. Priority order: environment variables > .env file > defaults.
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found).
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnvInt("PORT", 8100),
		TurnInterval:       time.Duration(getEnvInt("TURN_INTERVAL_SECONDS", 0)) * time.Second,
		DBPath:             getEnv("DB_PATH", "./data/simulation.db"),
		RosterSource:       getEnv("ROSTER_SOURCE", RosterStatic),
		GraphQLURL:         getEnv("GRAPHQL_URL", "http://localhost:8000/graphql"),
		SyntheticSeed:      int64(getEnvInt("SYNTHETIC_SEED", 42)),
		SyntheticCountries: getEnvInt("SYNTHETIC_COUNTRIES", 6),
		EventsURL:          getEnv("EVENTS_URL", ""),
		ResourceKind:       getEnv("RESOURCE_KIND", "oil"),
		OfferTTL:           getEnvInt("OFFER_TTL_TURNS", 3),
		ClearingMode:       getEnv("CLEARING_MODE", ClearingDirect),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	switch c.RosterSource {
	case RosterStatic, RosterSynthetic, RosterGraphQL:
	default:
		return fmt.Errorf("ROSTER_SOURCE must be %q, %q or %q", RosterStatic, RosterSynthetic, RosterGraphQL)
	}

	if c.RosterSource == RosterGraphQL && c.GraphQLURL == "" {
		return fmt.Errorf("GRAPHQL_URL is required when ROSTER_SOURCE is %q", RosterGraphQL)
	}

	if c.SyntheticCountries < 1 {
		return fmt.Errorf("SYNTHETIC_COUNTRIES must be at least 1")
	}

	if c.ResourceKind == "" {
		return fmt.Errorf("RESOURCE_KIND must not be empty")
	}

	if c.OfferTTL < 1 {
		return fmt.Errorf("OFFER_TTL_TURNS must be at least 1")
	}

	switch c.ClearingMode {
	case ClearingDirect, ClearingBook:
	default:
		return fmt.Errorf("CLEARING_MODE must be %q or %q", ClearingDirect, ClearingBook)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a
// default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
