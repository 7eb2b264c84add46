package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction      bool
	ProdOrigins       string
	HTTPAddr          string
	DBDSN             string
	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	HoldDuration      time.Duration
	HoldMaxDuration   time.Duration
	SweepInterval     time.Duration
	SweepBatchSize    int
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	cfg := &Config{}

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	appEnvStr := getEnv("APP_ENV", "dev")
	cfg.IsProduction = appEnvStr == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Database DSN is required
	cfg.DBDSN = os.Getenv("DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}

	// JWT secret is required for validating tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// JWT access token TTL, parse as time.Duration (e.g. "15m", "1h").
	ttlStr := getEnv("JWT_ACCESS_TOKEN_TTL", "15m")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TOKEN_TTL: %w", err)
	}
	cfg.JWTAccessTokenTTL = ttl

	// Minutes a new hold stays active before expiring (default: 10)
	holdMinutes, err := getEnvAsInt("HOLD_DURATION_MINUTES", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid HOLD_DURATION_MINUTES: %w", err)
	}
	if holdMinutes < 1 {
		return nil, fmt.Errorf("HOLD_DURATION_MINUTES must be at least 1")
	}
	cfg.HoldDuration = time.Duration(holdMinutes) * time.Minute

	// Ceiling on total hold lifetime including extensions (default: 30)
	maxMinutes, err := getEnvAsInt("HOLD_MAX_DURATION_MINUTES", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid HOLD_MAX_DURATION_MINUTES: %w", err)
	}
	if maxMinutes < holdMinutes {
		return nil, fmt.Errorf("HOLD_MAX_DURATION_MINUTES must not be below HOLD_DURATION_MINUTES")
	}
	cfg.HoldMaxDuration = time.Duration(maxMinutes) * time.Minute

	// How often the expiry sweeper runs (default: 5m)
	sweepStr := getEnv("SWEEP_INTERVAL", "5m")
	sweepInterval, err := time.ParseDuration(sweepStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}
	cfg.SweepInterval = sweepInterval

	// Max holds flipped per sweep batch (default: 500)
	cfg.SweepBatchSize, err = getEnvAsInt("SWEEP_BATCH_SIZE", 500)
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_BATCH_SIZE: %w", err)
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		// Return 0 and a wrapped error to provide context
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}
