package repository

import (
	"context"

	"github.com/alkewallet/wallet-core/internal/models"
	"github.com/shopspring/decimal"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIdentifier looks a user up by email or username.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
	SetVerified(ctx context.Context, id string) error
	// UpdateAccount sets the alias and bank shown on the user's account.
	UpdateAccount(ctx context.Context, id, alias, bank string) error
}
