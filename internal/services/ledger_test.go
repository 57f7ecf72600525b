package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alkewallet/wallet-core/internal/infrastructure/redis"
	redismocks "github.com/alkewallet/wallet-core/internal/infrastructure/redis/mocks"
	"github.com/alkewallet/wallet-core/internal/models"
	"github.com/alkewallet/wallet-core/internal/repository/memory"
	repositorymocks "github.com/alkewallet/wallet-core/internal/repository/mocks"
	pkgerrors "github.com/alkewallet/wallet-core/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return baseTime }
}

func deposit(userID string, amount string) models.RecordInput {
	return models.RecordInput{
		UserID:      userID,
		Details:     models.DepositDetails{Method: models.MethodBank},
		Description: "Bank transfer deposit",
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestLedger_AppendGeneratesFields(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()
	ledger, err := NewLedger(ctx, store, WithClock(fixedClock()))
	require.NoError(t, err)

	rec, err := ledger.Append(ctx, deposit("u1", "10000"))
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, baseTime, rec.Timestamp)
	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.Equal(t, models.KindDeposit, rec.Kind())

	stored, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Equal(t, rec.ID, stored[0].ID)
}

func TestLedger_AppendInsertsAtHead(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewLedger(ctx, memory.NewTransactionStore())
	require.NoError(t, err)

	first, err := ledger.Append(ctx, deposit("u1", "1000"))
	require.NoError(t, err)
	second, err := ledger.Append(ctx, deposit("u2", "2000"))
	require.NoError(t, err)

	records := ledger.Records(ctx)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, first.ID, records[1].ID)
}

func TestLedger_AppendRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewLedger(ctx, memory.NewTransactionStore())
	require.NoError(t, err)

	t.Run("missing user", func(t *testing.T) {
		_, err := ledger.Append(ctx, deposit("", "1000"))
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
	})

	t.Run("missing details", func(t *testing.T) {
		_, err := ledger.Append(ctx, models.RecordInput{UserID: "u1", Amount: decimal.NewFromInt(5)})
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
	})

	t.Run("movement with transfer kind", func(t *testing.T) {
		in := deposit("u1", "1000")
		in.Details = models.Movement(models.KindTransfer)
		_, err := ledger.Append(ctx, in)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransactionKind)
	})

	t.Run("unknown status", func(t *testing.T) {
		in := deposit("u1", "1000")
		in.Status = "reversed"
		_, err := ledger.Append(ctx, in)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidStatus)
	})

	t.Run("reused id", func(t *testing.T) {
		in := deposit("u1", "1000")
		in.ID = "tx-1"
		_, err := ledger.Append(ctx, in)
		require.NoError(t, err)
		_, err = ledger.Append(ctx, in)
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
	})

	assert.Len(t, ledger.Records(ctx), 1)
}

func TestLedger_HistoryOrdering(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewLedger(ctx, memory.NewTransactionStore())
	require.NoError(t, err)

	older := deposit("u1", "1000")
	older.Timestamp = baseTime.Add(-time.Hour)
	tieA := deposit("u1", "2000")
	tieA.Timestamp = baseTime
	tieB := deposit("u1", "3000")
	tieB.Timestamp = baseTime
	other := deposit("u2", "4000")
	other.Timestamp = baseTime.Add(time.Hour)

	// appended out of chronological order on purpose
	for _, in := range []models.RecordInput{tieA, older, tieB, other} {
		_, err := ledger.Append(ctx, in)
		require.NoError(t, err)
	}

	history := ledger.History(ctx, "u1", 0)
	require.Len(t, history, 3)
	assert.True(t, history[0].Amount.Equal(decimal.NewFromInt(3000)), "tie appended last comes first")
	assert.True(t, history[1].Amount.Equal(decimal.NewFromInt(2000)))
	assert.True(t, history[2].Amount.Equal(decimal.NewFromInt(1000)))

	limited := ledger.History(ctx, "u1", 2)
	assert.Len(t, limited, 2)

	assert.Empty(t, ledger.History(ctx, "nobody", 0))
}

func TestLedger_ComputeBalance(t *testing.T) {
	ctx := context.Background()
	ledger, err := NewLedger(ctx, memory.NewTransactionStore())
	require.NoError(t, err)

	initial := decimal.RequireFromString("173249.50")
	assert.True(t, initial.Equal(ledger.ComputeBalance(ctx, "u1", initial)))

	_, err = ledger.Append(ctx, deposit("u1", "10000"))
	require.NoError(t, err)
	withdrawal := deposit("u1", "-2500.25")
	withdrawal.Details = models.Movement(models.KindWithdrawal)
	_, err = ledger.Append(ctx, withdrawal)
	require.NoError(t, err)

	want := decimal.RequireFromString("180749.25")
	assert.True(t, want.Equal(ledger.ComputeBalance(ctx, "u1", initial)))
	// reading twice changes nothing
	assert.True(t, want.Equal(ledger.ComputeBalance(ctx, "u1", initial)))
	assert.Len(t, ledger.Records(ctx), 2)
}

func TestLedger_AppendAllIsAtomic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	store := repositorymocks.NewMockTransactionStore(ctrl)
	store.EXPECT().LoadAll(gomock.Any()).Return(nil, nil)
	store.EXPECT().SaveAll(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	ledger, err := NewLedger(ctx, store)
	require.NoError(t, err)

	debit := deposit("u1", "-1500")
	debit.Details = models.TransferDetails{CounterpartyID: "u2", CounterpartyName: "Maria Gonzalez"}
	credit := deposit("u2", "1500")
	credit.Details = models.TransferDetails{CounterpartyID: "u1", CounterpartyName: "Juan Perez"}

	recs, err := ledger.AppendAll(ctx, debit, credit)
	assert.Nil(t, recs)
	assert.ErrorIs(t, err, pkgerrors.ErrPersistence)

	var perr *pkgerrors.PersistenceError
	assert.True(t, errors.As(err, &perr))
	assert.Empty(t, ledger.Records(ctx))
	assert.True(t, decimal.Zero.Equal(ledger.ComputeBalance(ctx, "u1", decimal.Zero)))
}

func TestLedger_AppendAllOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()
	ledger, err := NewLedger(ctx, store)
	require.NoError(t, err)

	recs, err := ledger.AppendAll(ctx, deposit("u1", "-1000"), deposit("u2", "1000"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "u1", recs[0].UserID)
	assert.Equal(t, "u2", recs[1].UserID)

	stored, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, recs[1].ID, stored[0].ID)
	assert.Equal(t, recs[0].ID, stored[1].ID)
}

func TestNewLedger_LoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := repositorymocks.NewMockTransactionStore(ctrl)
	store.EXPECT().LoadAll(gomock.Any()).Return(nil, errors.New("connection refused"))

	ledger, err := NewLedger(context.Background(), store)
	assert.Nil(t, ledger)
	assert.ErrorIs(t, err, pkgerrors.ErrPersistence)
}

func TestLedger_BalanceCache(t *testing.T) {
	ctx := context.Background()

	t.Run("append invalidates cached sum", func(t *testing.T) {
		cache := redis.NewMemoryClient()
		ledger, err := NewLedger(ctx, memory.NewTransactionStore(), WithBalanceCache(cache))
		require.NoError(t, err)

		_, err = ledger.Append(ctx, deposit("u1", "1000"))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(1000).Equal(ledger.ComputeBalance(ctx, "u1", decimal.Zero)))

		cached, err := cache.Get(ctx, ledger.movementsKey("u1"))
		require.NoError(t, err)
		assert.Equal(t, "1000", cached)

		_, err = ledger.Append(ctx, deposit("u1", "500"))
		require.NoError(t, err)
		_, err = cache.Get(ctx, ledger.movementsKey("u1"))
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)

		assert.True(t, decimal.NewFromInt(1500).Equal(ledger.ComputeBalance(ctx, "u1", decimal.Zero)))
	})

	t.Run("cache hit skips the scan", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		cache := redismocks.NewMockRedisClient(ctrl)
		ledger, err := NewLedger(ctx, memory.NewTransactionStore(), WithBalanceCache(cache))
		require.NoError(t, err)

		cache.EXPECT().Get(gomock.Any(), ledger.movementsKey("u1")).Return("250.50", nil)

		got := ledger.ComputeBalance(ctx, "u1", decimal.NewFromInt(100))
		assert.True(t, decimal.RequireFromString("350.50").Equal(got))
	})

	t.Run("malformed cache value is recomputed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		cache := redismocks.NewMockRedisClient(ctrl)
		ledger, err := NewLedger(ctx, memory.NewTransactionStore(), WithBalanceCache(cache))
		require.NoError(t, err)

		cache.EXPECT().Get(gomock.Any(), ledger.movementsKey("u1")).Return("not-a-number", nil)
		cache.EXPECT().Set(gomock.Any(), ledger.movementsKey("u1"), "0", balanceCacheTTL).Return(nil)

		got := ledger.ComputeBalance(ctx, "u1", decimal.NewFromInt(100))
		assert.True(t, decimal.NewFromInt(100).Equal(got))
	})

	t.Run("reloaded ledger ignores sums cached over another log", func(t *testing.T) {
		cache := redis.NewMemoryClient()
		first, err := NewLedger(ctx, memory.NewTransactionStore(), WithBalanceCache(cache))
		require.NoError(t, err)
		_, err = first.Append(ctx, deposit("u1", "10000"))
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(10000).Equal(first.ComputeBalance(ctx, "u1", decimal.Zero)))

		second, err := NewLedger(ctx, memory.NewTransactionStore(), WithBalanceCache(cache))
		require.NoError(t, err)

		assert.Empty(t, second.History(ctx, "u1", 0))
		assert.True(t, decimal.Zero.Equal(second.ComputeBalance(ctx, "u1", decimal.Zero)))
		assert.NotEqual(t, first.movementsKey("u1"), second.movementsKey("u1"))
	})
}
