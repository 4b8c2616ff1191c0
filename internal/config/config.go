package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AnalyzerConfig holds connection settings for the academic analyzer,
// the remote mark store tutorial results are pushed to.
type AnalyzerConfig struct {
	BaseURL        string
	DetailTimeout  time.Duration
	UpdateTimeout  time.Duration
	StatusTimeout  time.Duration
	DefaultTeacher string
}

// EventsConfig holds event publishing settings
type EventsConfig struct {
	Transport    string // "kafka" or "channel"
	KafkaBrokers []string
	KafkaTopic   string
}

// Config holds application configuration
type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	DatabaseURL string
	RedisURL    string

	Analyzer AnalyzerConfig
	Events   EventsConfig

	// Cron spec for the periodic resync of unsynced tutorial marks
	ResyncSchedule string
	ResyncBatch    int
}

// LoadConfig reads configuration from the environment, with .env support
// for local development.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env is optional outside local development
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		Analyzer: AnalyzerConfig{
			BaseURL:        getEnv("ANALYZER_BASE_URL", "http://localhost:9090"),
			DetailTimeout:  getEnvDuration("ANALYZER_DETAIL_TIMEOUT", 5*time.Second),
			UpdateTimeout:  getEnvDuration("ANALYZER_UPDATE_TIMEOUT", 10*time.Second),
			StatusTimeout:  getEnvDuration("ANALYZER_STATUS_TIMEOUT", 5*time.Second),
			DefaultTeacher: getEnv("ANALYZER_DEFAULT_TEACHER_DOMAIN", "psgtech.ac.in"),
		},

		Events: EventsConfig{
			Transport:    getEnv("EVENTS_TRANSPORT", "channel"),
			KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "quiz-events"),
		},

		ResyncSchedule: getEnv("RESYNC_SCHEDULE", "*/15 * * * *"),
		ResyncBatch:    getEnvInt("RESYNC_BATCH", 100),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Events.Transport == "kafka" && len(cfg.Events.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS is required when EVENTS_TRANSPORT=kafka")
	}

	return cfg, nil
}

// RegistryConfig holds configuration for the marks registry service
type RegistryConfig struct {
	Port        string
	Environment string
	LogLevel    slog.Level
	DatabaseURL string
}

// LoadRegistryConfig reads configuration for the marks registry binary
func LoadRegistryConfig() (*RegistryConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &RegistryConfig{
		Port:        getEnv("REGISTRY_PORT", "9090"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DatabaseURL: getEnv("REGISTRY_DATABASE_URL", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("REGISTRY_DATABASE_URL is required")
	}

	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
