package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything the server reads from the environment.
type Config struct {
	DatabaseURL string

	MaxConns       int32
	ConnectRetries int
	ConnectBackoff time.Duration
	AcquireTimeout time.Duration

	PageSize int
	AdminIDs map[int64]bool

	Port      string
	JWTSecret string
	RedisAddr string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can supply their own environment.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		DatabaseURL: getenv("DATABASE_URL"),
		Port:        getenv("PORT"),
		JWTSecret:   getenv("JWT_SECRET"),
		RedisAddr:   getenv("REDIS_ADDR"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			getenv("DB_USER"),
			getenv("DB_PASSWORD"),
			getenv("DB_HOST"),
			getenv("DB_PORT"),
			getenv("DB_NAME"),
		)
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	maxConns, err := intVar(getenv, "DB_MAX_CONNS", 3)
	if err != nil {
		return Config{}, err
	}
	if maxConns < 1 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", maxConns)
	}
	cfg.MaxConns = int32(maxConns)

	if cfg.ConnectRetries, err = intVar(getenv, "DB_CONNECT_RETRIES", 5); err != nil {
		return Config{}, err
	}
	if cfg.ConnectRetries < 1 {
		return Config{}, fmt.Errorf("DB_CONNECT_RETRIES must be at least 1, got %d", cfg.ConnectRetries)
	}
	if cfg.ConnectBackoff, err = durationVar(getenv, "DB_CONNECT_BACKOFF", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.AcquireTimeout, err = durationVar(getenv, "DB_ACQUIRE_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PageSize, err = intVar(getenv, "LIST_PAGE_SIZE", 10); err != nil {
		return Config{}, err
	}
	if cfg.PageSize < 1 {
		return Config{}, fmt.Errorf("LIST_PAGE_SIZE must be at least 1, got %d", cfg.PageSize)
	}
	if cfg.AdminIDs, err = ParseAdminIDs(getenv("ADMIN_IDS")); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ParseAdminIDs parses a comma separated list of numeric user ids.
func ParseAdminIDs(raw string) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids[id] = true
	}
	return ids, nil
}

func intVar(getenv func(string) string, key string, def int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// durationVar accepts Go durations ("500ms") or a bare number of seconds.
func durationVar(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	var d time.Duration
	if secs, err := strconv.Atoi(raw); err == nil {
		d = time.Duration(secs) * time.Second
	} else if d, err = time.ParseDuration(raw); err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
