// Package notify delivers human-readable outcome messages. Delivery is
// fire-and-forget: callers log failures and carry on.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alkewallet/wallet-core/internal/infrastructure/kafka"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Notification struct {
	UserID    string    `json:"user_id"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// KafkaNotifier publishes notifications keyed by user id.
type KafkaNotifier struct {
	producer kafka.KafkaProducer
}

func NewKafkaNotifier(producer kafka.KafkaProducer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return k.producer.Send(ctx, n.UserID, payload)
}

// LogNotifier only writes notifications to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	slog.Info("notification", "user_id", n.UserID, "level", n.Level, "title", n.Title, "message", n.Message, "reference", n.Reference)
	return nil
}

// Decode parses a notification published by KafkaNotifier.
func Decode(value []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(value, &n); err != nil {
		return Notification{}, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	return n, nil
}
