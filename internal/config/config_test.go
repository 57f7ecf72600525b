package config

import (
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "STORE_BACKEND", "KAFKA_BROKER", "REDIS_ADDR", "REGISTRATION_INITIAL_BALANCE", "LOG_LEVEL", "SEED_FILE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.RedisAddr)
	assert.True(t, cfg.RegistrationInitialBalance.IsZero())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "wallet-notifications", cfg.NotificationsTopic)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("KAFKA_BROKER", "k1:9092, k2:9092")
	t.Setenv("REGISTRATION_INITIAL_BALANCE", "2500.50")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, decimal.RequireFromString("2500.50").Equal(cfg.RegistrationInitialBalance))
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")
	t.Setenv("REGISTRATION_INITIAL_BALANCE", "-10")

	cfg := Load()
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.True(t, cfg.RegistrationInitialBalance.IsZero())
}
