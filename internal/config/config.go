// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"commerce_backend/pkg/utils"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DBConfig holds the PostgreSQL connection settings and pool limits.
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	SchemaPath      string // Applied on startup when set
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type Config struct {
	Port               string
	StoreDriver        string
	DB                 DBConfig
	CORSAllowedOrigins []string
	JWTSecret          string
	KafkaBrokers       []string // Empty means order events are only logged
	KafkaOrderTopic    string
}

// Load reads the configuration, applying the same defaults as local development.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        utils.Getenv("PORT", "8080"),
		StoreDriver: strings.ToLower(utils.Getenv("STORE_DRIVER", DriverPostgres)),
		DB: DBConfig{
			Host:       utils.Getenv("DB_HOST", "localhost"),
			Port:       utils.Getenv("DB_PORT", "5432"),
			User:       utils.Getenv("DB_USER", "postgres"),
			Password:   utils.Getenv("DB_PASSWORD", "postgres"),
			Name:       utils.Getenv("DB_NAME", "commerce"),
			SSLMode:    utils.Getenv("DB_SSLMODE", "disable"),
			SchemaPath: utils.Getenv("DB_SCHEMA_PATH", ""),
		},
		CORSAllowedOrigins: splitList(utils.Getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		JWTSecret:          utils.Getenv("JWT_SECRET", ""),
		KafkaBrokers:       splitList(utils.Getenv("KAFKA_BROKERS", "")),
		KafkaOrderTopic:    utils.Getenv("KAFKA_ORDER_TOPIC", "order-events"),
	}

	var err error
	if cfg.DB.MaxOpenConns, err = intEnv("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DB.MaxIdleConns, err = intEnv("DB_MAX_IDLE_CONNS", 25); err != nil {
		return nil, err
	}
	lifetime, err := time.ParseDuration(utils.Getenv("DB_CONN_MAX_LIFETIME", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	cfg.DB.ConnMaxLifetime = lifetime

	switch cfg.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", cfg.StoreDriver, DriverPostgres, DriverMemory)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	return cfg, nil
}

func intEnv(key string, fallback int) (int, error) {
	n, err := strconv.Atoi(utils.Getenv(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
