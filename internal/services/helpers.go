package service

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/alkewallet/wallet-core/internal/models"
	"github.com/alkewallet/wallet-core/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	namePattern     = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑüÜ\s]{2,30}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,30}$`)
	hasLetter       = regexp.MustCompile(`[a-zA-Z]`)
	hasDigit        = regexp.MustCompile(`\d`)
	cbuPattern      = regexp.MustCompile(`^\d{22}$`)
)

func formatAmount(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// refreshSnapshot writes the ledger-derived balance back to the directory.
// The snapshot is informational, so failures are only logged.
func refreshSnapshot(ctx context.Context, ledger *Ledger, users repository.UserRepository, user *models.User) decimal.Decimal {
	balance := ledger.ComputeBalance(ctx, user.ID, user.InitialBalance)
	if err := users.UpdateBalance(ctx, user.ID, balance); err != nil {
		slog.Error("failed to update balance snapshot", "user_id", user.ID, "error", err)
	}
	user.Balance = balance
	return balance
}
