package memory

import (
	"context"
	"sync"

	"github.com/alkewallet/wallet-core/internal/models"
)

// TransactionStore keeps the persisted log in process memory.
type TransactionStore struct {
	mu      sync.RWMutex
	records []models.TransactionRecord
}

func NewTransactionStore(seed ...models.TransactionRecord) *TransactionStore {
	return &TransactionStore{records: append([]models.TransactionRecord(nil), seed...)}
}

func (s *TransactionStore) LoadAll(ctx context.Context) ([]models.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TransactionRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *TransactionStore) SaveAll(ctx context.Context, records []models.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]models.TransactionRecord, len(records))
	copy(s.records, records)
	return nil
}
