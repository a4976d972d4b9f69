package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Month filter modes.
const (
	MonthFilterMonth     = "month"
	MonthFilterYearMonth = "year_month"
)

type Config struct {
	// HTTP Server
	Port string

	// Ledger
	DBPath           string
	StrictCategories bool
	StrictIDs        bool
	MonthFilterMode  string

	// Presentation
	ThresholdsFile string

	// Read cache
	CacheTTL  time.Duration
	CacheSize int

	// AMQP change notifications, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DBPath:           getEnv("LEDGER_DB_PATH", "./data/expenses.db"),
		StrictCategories: getEnvBool("LEDGER_STRICT_CATEGORIES", false),
		StrictIDs:        getEnvBool("LEDGER_STRICT_IDS", false),
		MonthFilterMode:  getEnv("LEDGER_MONTH_FILTER", MonthFilterMonth),

		ThresholdsFile: getEnv("THRESHOLDS_FILE", ""),

		CacheTTL:  getEnvDuration("CACHE_TTL", 30*time.Second),
		CacheSize: getEnvInt("CACHE_SIZE", 64),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errors = append(errors, "ledger database path cannot be empty")
	} else {
		dir := filepath.Dir(c.DBPath)
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			errors = append(errors, fmt.Sprintf("ledger database directory '%s' is not a directory", dir))
		}
	}

	if c.MonthFilterMode != MonthFilterMonth && c.MonthFilterMode != MonthFilterYearMonth {
		errors = append(errors, fmt.Sprintf("invalid month filter mode '%s': must be '%s' or '%s'",
			c.MonthFilterMode, MonthFilterMonth, MonthFilterYearMonth))
	}

	if c.ThresholdsFile != "" {
		if _, err := os.Stat(c.ThresholdsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("thresholds file does not exist: %s", c.ThresholdsFile))
		}
	}

	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	} else if c.CacheTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at most 1 hour", c.CacheTTL))
	}
	if c.CacheSize < 1 || c.CacheSize > 10000 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be between 1 and 10000", c.CacheSize))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// YearAwareMonthFilter reports whether month filters should pin the year.
func (c *Config) YearAwareMonthFilter() bool {
	return c.MonthFilterMode == MonthFilterYearMonth
}

// ParseLogLevel maps debug/info/warn/error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
