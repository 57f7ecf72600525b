package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alkewallet/wallet-core/internal/infrastructure/redis"
	redismocks "github.com/alkewallet/wallet-core/internal/infrastructure/redis/mocks"
	"github.com/alkewallet/wallet-core/internal/models"
	pkgerrors "github.com/alkewallet/wallet-core/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []models.TransactionRecord {
	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return []models.TransactionRecord{
		{
			ID: "t2", UserID: "u1", Details: models.TransferDetails{CounterpartyID: "u2", CounterpartyName: "Maria Gonzalez"},
			Description: "Transfer to Maria Gonzalez", Amount: decimal.NewFromInt(-15500), Status: models.StatusCompleted, Timestamp: ts,
		},
		{
			ID: "t1", UserID: "u1", Details: models.DepositDetails{Method: models.MethodCard},
			Description: "Card deposit", Amount: decimal.RequireFromString("10000.25"), Status: models.StatusCompleted, Timestamp: ts.Add(-time.Hour),
		},
	}
}

func TestTransactionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := redis.NewMemoryClient()
	store := NewTransactionStore(client, "")

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, store.SaveAll(ctx, sampleRecords()))

	raw, err := client.Get(ctx, DefaultKey)
	require.NoError(t, err)
	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.JSONEq(t, "1", string(env["version"]))

	loaded, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "t2", loaded[0].ID)
	assert.Equal(t, models.TransferDetails{CounterpartyID: "u2", CounterpartyName: "Maria Gonzalez"}, loaded[0].Details)
	assert.True(t, decimal.RequireFromString("10000.25").Equal(loaded[1].Amount))
}

func TestTransactionStore_LegacyFlatList(t *testing.T) {
	ctx := context.Background()
	client := redis.NewMemoryClient()
	legacy := `[{"id":"t1","userId":"u1","type":"transfer","description":"Transferencia a Maria","amount":-2000,"status":"completed","timestamp":"2025-01-10T10:00:00Z","recipient":"Maria Gonzalez","recipientCounterpartyId":"u2"}]`
	require.NoError(t, client.Set(ctx, DefaultKey, legacy, 0))

	records, err := NewTransactionStore(client, DefaultKey).LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	cp, ok := records[0].Counterparty()
	require.True(t, ok)
	assert.Equal(t, "u2", cp.CounterpartyID)
	assert.True(t, decimal.NewFromInt(-2000).Equal(records[0].Amount))
}

func TestTransactionStore_BrowserWalletLog(t *testing.T) {
	ctx := context.Background()
	client := redis.NewMemoryClient()
	legacy := `[
		{"id":"tx_001","userId":"juan.perez@email.com","date":"2025-12-22","time":"14:30:00","type":"deposit",
		 "description":"Sucursal Central","amount":50000.00,"status":"completed","timestamp":1766413800000},
		{"id":"tx_002","userId":"juan.perez@email.com","date":"2025-12-21","time":"09:15:00","type":"transfer",
		 "description":"Transferencia a María González","recipient":"María González",
		 "recipientEmail":"maria.gonzalez@email.com","amount":-15500.00,"status":"completed","timestamp":1766308500000},
		{"id":"tx_003","userId":"juan.perez@email.com","date":"2025-12-20","time":"16:45:00","type":"deposit",
		 "description":"ATM Plaza Central","amount":25000.00,"status":"completed"}
	]`
	require.NoError(t, client.Set(ctx, DefaultKey, legacy, 0))

	records, err := NewTransactionStore(client, DefaultKey).LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, time.Date(2025, 12, 22, 14, 30, 0, 0, time.UTC), records[0].Timestamp)
	assert.Equal(t, models.KindDeposit, records[0].Kind())

	cp, ok := records[1].Counterparty()
	require.True(t, ok)
	assert.Equal(t, "maria.gonzalez@email.com", cp.CounterpartyID)
	assert.Equal(t, "María González", cp.CounterpartyName)
	assert.Equal(t, time.UnixMilli(1766308500000).UTC(), records[1].Timestamp)
	assert.True(t, decimal.NewFromInt(-15500).Equal(records[1].Amount))

	assert.Equal(t, time.Date(2025, 12, 20, 16, 45, 0, 0, time.UTC), records[2].Timestamp)

	// saving upgrades the log to the versioned envelope
	store := NewTransactionStore(client, DefaultKey)
	require.NoError(t, store.SaveAll(ctx, records))
	reloaded, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded, 3)
	assert.True(t, records[1].Timestamp.Equal(reloaded[1].Timestamp))
}

func TestTransactionStore_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported version", func(t *testing.T) {
		client := redis.NewMemoryClient()
		require.NoError(t, client.Set(ctx, DefaultKey, `{"version":2,"records":[]}`, 0))
		_, err := NewTransactionStore(client, DefaultKey).LoadAll(ctx)
		assert.ErrorIs(t, err, pkgerrors.ErrUnsupportedSchema)
	})

	t.Run("malformed value", func(t *testing.T) {
		client := redis.NewMemoryClient()
		require.NoError(t, client.Set(ctx, DefaultKey, `{not json`, 0))
		_, err := NewTransactionStore(client, DefaultKey).LoadAll(ctx)
		assert.Error(t, err)
	})

	t.Run("write failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		client := redismocks.NewMockRedisClient(ctrl)
		client.EXPECT().Set(gomock.Any(), "wallet", gomock.Any(), time.Duration(0)).Return(errors.New("READONLY"))

		err := NewTransactionStore(client, "wallet").SaveAll(ctx, sampleRecords())
		assert.ErrorContains(t, err, "failed to write transaction log")
	})

	t.Run("read failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		client := redismocks.NewMockRedisClient(ctrl)
		client.EXPECT().Get(gomock.Any(), "wallet").Return("", errors.New("i/o timeout"))

		records, err := NewTransactionStore(client, "wallet").LoadAll(ctx)
		assert.Nil(t, records)
		assert.Error(t, err)
	})
}
