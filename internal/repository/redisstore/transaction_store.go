package redisstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alkewallet/wallet-core/internal/infrastructure/redis"
	"github.com/alkewallet/wallet-core/internal/models"
	pkgerrors "github.com/alkewallet/wallet-core/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultKey    = "alkeWallet_transactions"
	SchemaVersion = 1
)

type envelope struct {
	Version int                        `json:"version"`
	Records []models.TransactionRecord `json:"records"`
}

// TransactionStore keeps the whole log as one JSON value under a single key.
// Unversioned flat lists written by older clients are still readable.
type TransactionStore struct {
	client redis.RedisClient
	key    string
}

func NewTransactionStore(client redis.RedisClient, key string) *TransactionStore {
	if key == "" {
		key = DefaultKey
	}
	return &TransactionStore{client: client, key: key}
}

func (s *TransactionStore) LoadAll(ctx context.Context) ([]models.TransactionRecord, error) {
	ctx, span := otel.Tracer("redis-transaction-store").Start(ctx, "LoadAll")
	defer span.End()

	raw, err := s.client.Get(ctx, s.key)
	if stderrors.Is(err, redis.ErrKeyNotFound) {
		return []models.TransactionRecord{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		slog.Error("failed to read transaction log", "key", s.key, "error", err)
		return nil, fmt.Errorf("failed to read transaction log: %w", err)
	}

	records, err := decode(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		slog.Error("failed to decode transaction log", "key", s.key, "error", err)
		return nil, err
	}
	return records, nil
}

func (s *TransactionStore) SaveAll(ctx context.Context, records []models.TransactionRecord) error {
	ctx, span := otel.Tracer("redis-transaction-store").Start(ctx, "SaveAll")
	defer span.End()

	if records == nil {
		records = []models.TransactionRecord{}
	}
	data, err := json.Marshal(envelope{Version: SchemaVersion, Records: records})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to encode transaction log: %w", err)
	}
	if err := s.client.Set(ctx, s.key, string(data), 0); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "set failed")
		slog.Error("failed to write transaction log", "key", s.key, "count", len(records), "error", err)
		return fmt.Errorf("failed to write transaction log: %w", err)
	}
	return nil
}

func decode(raw string) ([]models.TransactionRecord, error) {
	if strings.HasPrefix(strings.TrimSpace(raw), "[") {
		var records []models.TransactionRecord
		if err := json.Unmarshal([]byte(raw), &records); err != nil {
			return nil, fmt.Errorf("failed to decode legacy transaction log: %w", err)
		}
		return records, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("failed to decode transaction log: %w", err)
	}
	if env.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: %d", pkgerrors.ErrUnsupportedSchema, env.Version)
	}
	if env.Records == nil {
		env.Records = []models.TransactionRecord{}
	}
	return env.Records, nil
}
