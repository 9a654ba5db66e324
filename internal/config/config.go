// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir string // Base directory for the sqlite databases (always absolute)
	Port    int
	DevMode bool

	LogLevel string

	// TrackerAPIBaseURL is the managed backend serving transactions, cards
	// and preferences (the engine is a thin client of it).
	TrackerAPIBaseURL string
	// TrackerAPIToken is sent as a bearer token on every backend request.
	TrackerAPIToken string

	// RateSourceURL is the third-party exchange rate endpoint
	// (returns rates quoted against USD).
	RateSourceURL string

	// SettingsDebounce is the rolling quiet window before pending settings
	// changes are flushed to the backend.
	SettingsDebounce time.Duration
	// SettingsInitTimeout bounds the remote preferences fetch on first load.
	SettingsInitTimeout time.Duration

	// CardsTTL / SumsTTL tune the resource caches; preferences are cached
	// until explicitly invalidated.
	CardsTTL time.Duration
	SumsTTL  time.Duration

	// ReconcileInterval bounds optimistic-delta drift: a full refetch of
	// balances happens at least this often.
	ReconcileInterval time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("WALLET_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".wallet-engine")
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory to absolute path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	port, err := getEnvInt("WALLET_PORT", 8090)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                port,
		DevMode:             getEnv("WALLET_DEV_MODE", "") == "1",
		LogLevel:            getEnv("WALLET_LOG_LEVEL", "info"),
		TrackerAPIBaseURL:   getEnv("WALLET_API_BASE_URL", "http://localhost:3000"),
		TrackerAPIToken:     getEnv("WALLET_API_TOKEN", ""),
		RateSourceURL:       getEnv("WALLET_RATE_SOURCE_URL", "https://api.exchangerate-api.com/v4/latest/USD"),
		SettingsDebounce:    getEnvDuration("WALLET_SETTINGS_DEBOUNCE", 2*time.Second),
		SettingsInitTimeout: getEnvDuration("WALLET_SETTINGS_INIT_TIMEOUT", 5*time.Second),
		CardsTTL:            getEnvDuration("WALLET_CARDS_TTL", 30*time.Second),
		SumsTTL:             getEnvDuration("WALLET_SUMS_TTL", 5*time.Second),
		ReconcileInterval:   getEnvDuration("WALLET_RECONCILE_INTERVAL", 5*time.Minute),
	}

	return cfg, nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

// getEnvDuration retrieves a duration environment variable with a fallback
// default. Values use Go duration syntax ("2s", "5m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
