package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alkewallet/wallet-core/internal/infrastructure/observability"
	"github.com/alkewallet/wallet-core/internal/infrastructure/redis"
	"github.com/alkewallet/wallet-core/internal/models"
	"github.com/alkewallet/wallet-core/internal/repository"
	pkgerrors "github.com/alkewallet/wallet-core/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Ledger is the append-only transaction log of all users. Balances are always
// derived from it: balance = initial balance + sum of the user's amounts.
//
// The log is kept most recent first and written through to the store on every
// append. A failed write leaves the in-memory log untouched. Appends and reads
// are serialized within the process; two processes sharing one store can still
// overwrite each other's SaveAll.
type Ledger struct {
	mu      sync.Mutex
	store   repository.TransactionStore
	cache   redis.RedisClient
	records []models.TransactionRecord
	now     func() time.Time
	newID   func() string
	// epoch scopes cache keys to this load of the log.
	epoch   string
}

// balanceCacheTTL bounds how long an orphaned cached sum can outlive its ledger.
const balanceCacheTTL = 30 * time.Minute

type LedgerOption func(*Ledger)

// WithBalanceCache caches per-user movement sums. Keys are scoped to one load
// of the log, so a restarted or second process never reads sums computed over
// a different log. Every append deletes the cached sum of each user it touches.
func WithBalanceCache(cache redis.RedisClient) LedgerOption {
	return func(l *Ledger) { l.cache = cache }
}

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(ctx context.Context, store repository.TransactionStore, opts ...LedgerOption) (*Ledger, error) {
	l := &Ledger{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		slog.Error("failed to load transaction log", "error", err)
		return nil, &pkgerrors.PersistenceError{Op: "load transactions", Err: err}
	}
	l.records = records
	l.epoch = uuid.NewString()
	slog.Info("ledger loaded", "records", len(records), "cache_epoch", l.epoch)
	return l, nil
}

func (l *Ledger) movementsKey(userID string) string {
	return fmt.Sprintf("ledger:%s:%s:movements", l.epoch, userID)
}

// Append stores one record and returns it with its generated fields.
// The amount sign is not checked against the transaction type.
func (l *Ledger) Append(ctx context.Context, in models.RecordInput) (models.TransactionRecord, error) {
	recs, err := l.AppendAll(ctx, in)
	if err != nil {
		return models.TransactionRecord{}, err
	}
	return recs[0], nil
}

// AppendAll stores a batch with a single write: either every record is
// persisted or none is. Records are returned in input order; in the log the
// last input ends up first.
func (l *Ledger) AppendAll(ctx context.Context, inputs ...models.RecordInput) ([]models.TransactionRecord, error) {
	tracer := otel.Tracer("ledger")
	ctx, span := tracer.Start(ctx, "AppendAll")
	defer span.End()
	span.SetAttributes(attribute.Int("records", len(inputs)))

	if len(inputs) == 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	created := make([]models.TransactionRecord, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		rec, err := l.build(in)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if _, dup := seen[rec.ID]; dup || l.containsID(rec.ID) {
			err = pkgerrors.NewValidationError("id", fmt.Sprintf("transaction id %s already used", rec.ID))
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		seen[rec.ID] = struct{}{}
		created = append(created, rec)
	}

	next := make([]models.TransactionRecord, 0, len(l.records)+len(created))
	for i := len(created) - 1; i >= 0; i-- {
		next = append(next, created[i])
	}
	next = append(next, l.records...)

	if err := l.store.SaveAll(ctx, next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		slog.Error("failed to persist transaction log", "records", len(created), "error", err)
		return nil, &pkgerrors.PersistenceError{Op: "save transactions", Err: err}
	}
	l.records = next

	touched := make(map[string]struct{})
	for _, rec := range created {
		touched[rec.UserID] = struct{}{}
		observability.LedgerAppends.WithLabelValues(string(rec.Kind())).Inc()
		slog.Info("transaction recorded", "id", rec.ID, "user_id", rec.UserID, "type", rec.Kind(), "amount", rec.Amount.String())
	}
	for userID := range touched {
		l.invalidate(ctx, userID)
	}
	return created, nil
}

func (l *Ledger) build(in models.RecordInput) (models.TransactionRecord, error) {
	if in.UserID == "" {
		return models.TransactionRecord{}, pkgerrors.NewValidationError("userId", "user id is required")
	}
	if in.Details == nil {
		return models.TransactionRecord{}, pkgerrors.NewValidationError("type", "transaction type is required")
	}
	if m, ok := in.Details.(models.MovementDetails); ok {
		switch m.Type {
		case models.KindWithdrawal, models.KindPayment, models.KindSalary, models.KindFee:
		default:
			return models.TransactionRecord{}, fmt.Errorf("%w: %q", pkgerrors.ErrInvalidTransactionKind, m.Type)
		}
	}

	rec := models.TransactionRecord{
		ID:          in.ID,
		UserID:      in.UserID,
		Details:     in.Details,
		Description: in.Description,
		Amount:      in.Amount,
		Status:      in.Status,
		Timestamp:   in.Timestamp,
	}
	if rec.ID == "" {
		rec.ID = l.newID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now().UTC()
	}
	if rec.Status == "" {
		rec.Status = models.StatusCompleted
	}
	if !rec.Status.Valid() {
		return models.TransactionRecord{}, fmt.Errorf("%w: %q", pkgerrors.ErrInvalidStatus, rec.Status)
	}
	return rec, nil
}

func (l *Ledger) containsID(id string) bool {
	for i := range l.records {
		if l.records[i].ID == id {
			return true
		}
	}
	return false
}

func (l *Ledger) invalidate(ctx context.Context, userID string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Del(ctx, l.movementsKey(userID)); err != nil {
		slog.Error("failed to invalidate cached balance", "user_id", userID, "error", err)
	}
}

// History returns the user's records, newest first. Records with equal
// timestamps keep log order, so the one appended last comes first.
// A limit <= 0 returns everything.
func (l *Ledger) History(ctx context.Context, userID string, limit int) []models.TransactionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.history(userID, limit)
}

func (l *Ledger) history(userID string, limit int) []models.TransactionRecord {
	out := make([]models.TransactionRecord, 0)
	for _, rec := range l.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ComputeBalance returns initialBalance plus the sum of the user's amounts.
func (l *Ledger) ComputeBalance(ctx context.Context, userID string, initialBalance decimal.Decimal) decimal.Decimal {
	tracer := otel.Tracer("ledger")
	ctx, span := tracer.Start(ctx, "ComputeBalance")
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	if sum, ok := l.cachedSum(ctx, userID); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return initialBalance.Add(sum)
	}

	sum := decimal.Zero
	for _, rec := range l.records {
		if rec.UserID == userID {
			sum = sum.Add(rec.Amount)
		}
	}
	if l.cache != nil {
		if err := l.cache.Set(ctx, l.movementsKey(userID), sum.String(), balanceCacheTTL); err != nil {
			slog.Error("failed to cache balance", "user_id", userID, "error", err)
		}
	}
	return initialBalance.Add(sum)
}

func (l *Ledger) cachedSum(ctx context.Context, userID string) (decimal.Decimal, bool) {
	if l.cache == nil {
		return decimal.Zero, false
	}
	raw, err := l.cache.Get(ctx, l.movementsKey(userID))
	if err != nil {
		return decimal.Zero, false
	}
	sum, err := decimal.NewFromString(raw)
	if err != nil {
		slog.Warn("ignoring malformed cached balance", "user_id", userID, "value", raw, "error", err)
		return decimal.Zero, false
	}
	return sum, true
}

// Records returns a copy of the whole log, most recent first.
func (l *Ledger) Records(ctx context.Context) []models.TransactionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.TransactionRecord, len(l.records))
	copy(out, l.records)
	return out
}
