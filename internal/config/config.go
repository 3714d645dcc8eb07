// Package config loads application configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers understood by STORAGE_DRIVER.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all runtime configuration values.
type Config struct {
	Port          string
	StorageDriver string
	CORSOrigins   []string

	DB    DBConfig
	Redis RedisConfig
	Queue QueueConfig
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// DSN returns URL when set, otherwise a libpq-compatible keyword string.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig configures the optional list cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// QueueConfig configures booking notifications. An empty URL disables them.
type QueueConfig struct {
	URL       string
	QueueName string
}

// Enabled reports whether a broker URL was configured.
func (c QueueConfig) Enabled() bool { return c.URL != "" }

// Load reads a .env file from the working directory if present, then builds
// a Config from the environment. Variables already set in the environment
// win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: failed to load .env: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StoragePostgres)),
		CORSOrigins:   parseCSV(getEnv("CORS_ORIGINS", "*")),
		DB: DBConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "tickets"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     redisAddr(),
			Password: os.Getenv("REDIS_PASSWORD"),
			Prefix:   getEnv("CACHE_PREFIX", "tickets"),
		},
		Queue: QueueConfig{
			URL:       os.Getenv("RABBITMQ_URL"),
			QueueName: getEnv("BOOKING_QUEUE", "booking.confirmed"),
		},
	}

	switch cfg.StorageDriver {
	case StoragePostgres, StorageMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	var err error
	if cfg.DB.MaxConns, err = envInt32("DB_MAX_CONNS", 20); err != nil {
		return Config{}, err
	}
	if cfg.DB.MinConns, err = envInt32("DB_MIN_CONNS", 2); err != nil {
		return Config{}, err
	}
	if cfg.DB.MinConns > cfg.DB.MaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", cfg.DB.MinConns, cfg.DB.MaxConns)
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		cfg.Redis.DB = n
	}

	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.Redis.TTL = ttl

	return cfg, nil
}

// redisAddr prefers REDIS_HOST/REDIS_PORT and falls back to REDIS_ADDR.
func redisAddr() string {
	host := os.Getenv("REDIS_HOST")
	if host != "" {
		return host + ":" + getEnv("REDIS_PORT", "6379")
	}
	return os.Getenv("REDIS_ADDR")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt32(key string, fallback int32) (int32, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	return int32(n), nil
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
