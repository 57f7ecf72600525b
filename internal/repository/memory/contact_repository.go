package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alkewallet/wallet-core/internal/models"
	pkgerrors "github.com/alkewallet/wallet-core/pkg/errors"
	"github.com/google/uuid"
)

type ContactRepository struct {
	mu       sync.RWMutex
	contacts []models.Contact
}

func NewContactRepository() *ContactRepository {
	return &ContactRepository{}
}

func (r *ContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	if contact == nil {
		return pkgerrors.ErrNilContact
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.OwnerID == contact.OwnerID && c.Alias == contact.Alias {
			return pkgerrors.ErrContactExists
		}
	}
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}
	r.contacts = append(r.contacts, *contact)
	return nil
}

func (r *ContactRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Contact
	for _, c := range r.contacts {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}
