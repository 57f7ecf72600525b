package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/alkewallet/wallet-core/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostgresTransactionStore keeps the ledger in the transactions table. The
// position column holds the log order, 0 being the most recent record.
type PostgresTransactionStore struct {
	db *sql.DB
}

func NewPostgresTransactionStore(db *sql.DB) *PostgresTransactionStore {
	return &PostgresTransactionStore{db: db}
}

const selectTransactions = `SELECT id, user_id, type, description, amount, status, created_at, counterparty_id, counterparty_name, deposit_method FROM transactions ORDER BY position`

const insertTransaction = `INSERT INTO transactions (id, position, user_id, type, description, amount, status, created_at, counterparty_id, counterparty_name, deposit_method) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (s *PostgresTransactionStore) LoadAll(ctx context.Context) (records []models.TransactionRecord, err error) {
	ctx, done := startCall(ctx, "LoadAllTransactions")
	defer func() { done(err) }()

	rows, err := s.db.QueryContext(ctx, selectTransactions)
	if err != nil {
		slog.Error("failed to query transactions", "method", "LoadAll", "error", err)
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	records = make([]models.TransactionRecord, 0)
	for rows.Next() {
		var (
			rec              models.TransactionRecord
			kind             string
			status           string
			counterpartyID   sql.NullString
			counterpartyName sql.NullString
			method           sql.NullString
		)
		if err = rows.Scan(&rec.ID, &rec.UserID, &kind, &rec.Description, &rec.Amount, &status, &rec.Timestamp,
			&counterpartyID, &counterpartyName, &method); err != nil {
			slog.Error("failed to scan transaction", "method", "LoadAll", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		rec.Status = models.StatusType(status)
		rec.Details, err = models.NewDetails(models.TransactionKind(kind), counterpartyID.String, counterpartyName.String, models.DepositMethod(method.String))
		if err != nil {
			slog.Error("invalid stored transaction", "method", "LoadAll", "id", rec.ID, "error", err)
			return nil, fmt.Errorf("invalid stored transaction %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	slog.Debug("transactions loaded", "method", "LoadAll", "count", len(records))
	return records, nil
}

func (s *PostgresTransactionStore) SaveAll(ctx context.Context, records []models.TransactionRecord) (err error) {
	ctx, done := startCall(ctx, "SaveAllTransactions")
	defer func() { done(err) }()
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("records", len(records)))

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "SaveAll", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err = writeAll(ctx, dbTx, records); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "method", "SaveAll", "error", rbErr)
			err = fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
		}
		slog.Error("failed to save transactions", "method", "SaveAll", "count", len(records), "error", err)
		return err
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "SaveAll", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Debug("transactions saved", "method", "SaveAll", "count", len(records))
	return nil
}

func writeAll(ctx context.Context, dbTx *sql.Tx, records []models.TransactionRecord) error {
	if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}
	for i, rec := range records {
		var counterpartyID, counterpartyName, method string
		switch d := rec.Details.(type) {
		case models.TransferDetails:
			counterpartyID, counterpartyName = d.CounterpartyID, d.CounterpartyName
		case models.DepositDetails:
			method = string(d.Method)
		}
		_, err := dbTx.ExecContext(ctx, insertTransaction,
			rec.ID, i, rec.UserID, string(rec.Kind()), rec.Description, rec.Amount, string(rec.Status), rec.Timestamp,
			nullString(counterpartyID), nullString(counterpartyName), nullString(method))
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", rec.ID, err)
		}
	}
	return nil
}
