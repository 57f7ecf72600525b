package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTPAddr                   string
	MetricsAddr                string
	StoreBackend               string
	PostgresDSN                string
	RedisAddr                  string
	KafkaBrokers               []string
	NotificationsTopic         string
	JWTSecret                  string
	SeedFile                   string
	RegistrationInitialBalance decimal.Decimal
	ServiceName                string
	LogLevel                   slog.Level
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment and defaults", "error", err)
	}

	cfg := &Config{
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		MetricsAddr:        getenv("METRICS_ADDR", ":9090"),
		StoreBackend:       strings.ToLower(getenv("STORE_BACKEND", BackendMemory)),
		PostgresDSN:        getenv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=alkewallet sslmode=disable"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		NotificationsTopic: getenv("NOTIFICATIONS_TOPIC", "wallet-notifications"),
		JWTSecret:          getenv("JWT_SECRET", "supersecret"),
		SeedFile:           os.Getenv("SEED_FILE"),
		ServiceName:        getenv("OTEL_SERVICE_NAME", "alkewallet"),
		LogLevel:           slog.LevelInfo,
	}

	if brokers := os.Getenv("KAFKA_BROKER"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		slog.Warn("unknown store backend, falling back to memory", "backend", cfg.StoreBackend)
		cfg.StoreBackend = BackendMemory
	}

	cfg.RegistrationInitialBalance = decimal.Zero
	if raw := os.Getenv("REGISTRATION_INITIAL_BALANCE"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			slog.Warn("invalid REGISTRATION_INITIAL_BALANCE, using 0", "value", raw, "error", err)
		} else {
			cfg.RegistrationInitialBalance = v
		}
	}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			slog.Warn("invalid LOG_LEVEL, using info", "value", raw)
			cfg.LogLevel = slog.LevelInfo
		}
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"metrics_addr", cfg.MetricsAddr,
		"store_backend", cfg.StoreBackend,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"seed_file", cfg.SeedFile)
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
