// Package config loads the execution engine's runtime configuration
// from the environment, the same getEnv-with-fallback idiom the
// original bot config used.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the execution engine and its reference
// venue adapter. All fields have sane defaults; only the venue URL and
// Telegram credentials are operationally required, and Telegram is
// optional (the ops notifier is simply not wired if absent).
type Config struct {
	Debug bool

	// Engine (spec.md §5)
	CommandTimeout time.Duration

	// Persistence retry policy (spec.md §7)
	PersistenceRetryAttempts  int
	PersistenceRetryBaseDelay time.Duration

	// DatabaseDSN selects the store backend: a "postgres://..." URL picks
	// sqlstore's Postgres driver, anything else is treated as a SQLite
	// file path. Leave empty to run against an in-process memstore.
	DatabaseDSN string

	// DefaultWindowLength is a trailing duration L for the windowed
	// min/max tracker (spec.md §4.6). cmd/engine builds no tracker, so
	// nothing in this module reads it, and there is no per-symbol
	// override.
	DefaultWindowLength time.Duration

	// Reference venue websocket adapter
	VenueWSURL string

	// Telegram ops notifier (optional)
	TelegramToken  string
	TelegramChatID int64
}

// Load builds a Config from the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		CommandTimeout: getEnvDuration("COMMAND_TIMEOUT", 5*time.Second),

		PersistenceRetryAttempts:  getEnvInt("PERSISTENCE_RETRY_ATTEMPTS", 3),
		PersistenceRetryBaseDelay: getEnvDuration("PERSISTENCE_RETRY_BASE_DELAY", 50*time.Millisecond),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		DefaultWindowLength: getEnvDuration("DEFAULT_WINDOW_LENGTH", 60*time.Second),

		VenueWSURL: getEnv("VENUE_WS_URL", "ws://localhost:8080/venue"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
