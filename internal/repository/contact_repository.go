package repository

import (
	"context"

	"github.com/alkewallet/wallet-core/internal/models"
)

type ContactRepository interface {
	Create(ctx context.Context, contact *models.Contact) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Contact, error)
}
