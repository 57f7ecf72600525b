package repository

import (
	"context"

	"github.com/alkewallet/wallet-core/internal/models"
)

// TransactionStore persists the whole ledger, most recent record first.
// SaveAll overwrites whatever was stored before.
type TransactionStore interface {
	LoadAll(ctx context.Context) ([]models.TransactionRecord, error)
	SaveAll(ctx context.Context, records []models.TransactionRecord) error
}
