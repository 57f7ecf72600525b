package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBank is shown for accounts that never set a bank.
const DefaultBank = "AlkeWallet"

// User is a directory entry. Balance is a display snapshot of the ledger and is
// never used to decide anything.
type User struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	Username       string          `json:"username"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	PasswordHash   string          `json:"-"`
	IsActive       bool            `json:"is_active"`
	IsVerified     bool            `json:"is_verified"`
	Alias          string          `json:"alias"`
	Bank           string          `json:"bank"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
