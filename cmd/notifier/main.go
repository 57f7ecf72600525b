package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alkewallet/wallet-core/internal/config"
	"github.com/alkewallet/wallet-core/internal/infrastructure/kafka"
	"github.com/alkewallet/wallet-core/internal/infrastructure/redis"
	"github.com/alkewallet/wallet-core/internal/notify"
	"github.com/alkewallet/wallet-core/internal/observability"
)

const groupID = "alkewallet-notifier"

// lastNotificationTTL bounds how long the latest notification of a user
// stays readable.
const lastNotificationTTL = 24 * time.Hour

func main() {
	cfg := config.Load()
	shutdown := observability.Setup(cfg.ServiceName+"-notifier", "", cfg.LogLevel)
	defer shutdown(context.Background())

	if len(cfg.KafkaBrokers) == 0 {
		slog.Error("KAFKA_BROKER is required for the notifier")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient redis.RedisClient
	if cfg.RedisAddr != "" {
		client, err := redis.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		redisClient = client
		defer client.Close()
	}

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.NotificationsTopic, groupID)
	defer consumer.Close()

	slog.Info("notifier started", "topic", cfg.NotificationsTopic, "brokers", cfg.KafkaBrokers)
	if err := consumer.Consume(ctx, handle(redisClient)); err != nil {
		slog.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("notifier stopped")
}

func handle(redisClient redis.RedisClient) kafka.Handler {
	return func(ctx context.Context, key, value []byte) error {
		n, err := notify.Decode(value)
		if err != nil {
			return err
		}
		slog.Info("notification delivered",
			"user_id", n.UserID,
			"level", n.Level,
			"title", n.Title,
			"message", n.Message,
			"reference", n.Reference)
		if redisClient == nil {
			return nil
		}
		if err := redisClient.Set(ctx, fmt.Sprintf("notifications:%s:last", n.UserID), string(value), lastNotificationTTL); err != nil {
			return fmt.Errorf("failed to store notification: %w", err)
		}
		return nil
	}
}
