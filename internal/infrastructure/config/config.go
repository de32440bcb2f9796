package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

type Config struct {
	DBDriver string
	DBDSN    string

	ServerPort string
	ServerHost string
	LogLevel   string

	JisiluBaseURL string
	JisiluCookie  string

	UpdateInterval  time.Duration
	UpdateStartHour int
	UpdateEndHour   int
	UpdateOnStart   bool
}

func Load() (*Config, error) {
	driver := getEnvOrDefault("DB_DRIVER", DBDriverSQLite)
	if driver != DBDriverSQLite && driver != DBDriverPostgres {
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s (supported: sqlite, postgres)", driver)
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		if driver == DBDriverPostgres {
			return nil, fmt.Errorf("DB_DSN environment variable is required for the postgres driver")
		}
		dsn = "cb_data.db"
	}

	interval, err := time.ParseDuration(getEnvOrDefault("UPDATE_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPDATE_INTERVAL: %w", err)
	}

	startHour, err := getEnvHour("UPDATE_START_HOUR", 8)
	if err != nil {
		return nil, err
	}
	endHour, err := getEnvHour("UPDATE_END_HOUR", 18)
	if err != nil {
		return nil, err
	}
	// Equal hours are a valid one-hour window; the scheduler treats both
	// boundaries as inclusive.
	if startHour > endHour {
		return nil, fmt.Errorf("UPDATE_START_HOUR (%d) must not be after UPDATE_END_HOUR (%d)", startHour, endHour)
	}

	return &Config{
		DBDriver:        driver,
		DBDSN:           dsn,
		ServerPort:      getEnvOrDefault("SERVER_PORT", "8080"),
		ServerHost:      getEnvOrDefault("SERVER_HOST", "localhost"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		JisiluBaseURL:   os.Getenv("JISILU_BASE_URL"),
		JisiluCookie:    os.Getenv("JISILU_COOKIE"),
		UpdateInterval:  interval,
		UpdateStartHour: startHour,
		UpdateEndHour:   endHour,
		UpdateOnStart:   getEnvOrDefault("UPDATE_ON_START", "false") == "true",
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvHour(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	h, err := strconv.Atoi(raw)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid %s: %s", key, raw)
	}
	return h, nil
}
