// Package seed loads demo users and starting transactions from a YAML file
// into an empty directory and ledger.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alkewallet/wallet-core/internal/models"
	"github.com/alkewallet/wallet-core/internal/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type File struct {
	Users        []User        `yaml:"users"`
	Transactions []Transaction `yaml:"transactions"`
}

type User struct {
	ID             string `yaml:"id"`
	Email          string `yaml:"email"`
	Username       string `yaml:"username"`
	FirstName      string `yaml:"first_name"`
	LastName       string `yaml:"last_name"`
	Password       string `yaml:"password"`
	Active         *bool  `yaml:"active"`
	Verified       bool   `yaml:"verified"`
	Alias          string `yaml:"alias"`
	Bank           string `yaml:"bank"`
	InitialBalance string `yaml:"initial_balance"`
}

type Transaction struct {
	ID             string    `yaml:"id"`
	UserID         string    `yaml:"user_id"`
	Type           string    `yaml:"type"`
	Description    string    `yaml:"description"`
	Amount         string    `yaml:"amount"`
	Status         string    `yaml:"status"`
	Timestamp      time.Time `yaml:"timestamp"`
	CounterpartyID string    `yaml:"counterparty_id"`
	Counterparty   string    `yaml:"counterparty"`
	Method         string    `yaml:"method"`
}

// Appender is the part of the ledger the loader needs.
type Appender interface {
	AppendAll(ctx context.Context, inputs ...models.RecordInput) ([]models.TransactionRecord, error)
	Records(ctx context.Context) []models.TransactionRecord
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Apply creates the seed users when the directory is empty and appends the
// seed transactions when the ledger is empty. Either step is skipped
// otherwise, so Apply is safe to run on every start.
func Apply(ctx context.Context, f *File, users repository.UserRepository, ledger Appender) error {
	existing, err := users.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(existing) == 0 {
		for _, u := range f.Users {
			user, err := u.toModel()
			if err != nil {
				return err
			}
			if err := users.Create(ctx, user); err != nil {
				return fmt.Errorf("failed to create seed user %s: %w", u.Email, err)
			}
		}
		slog.Info("seed users created", "count", len(f.Users))
	} else {
		slog.Info("directory not empty, skipping seed users", "existing", len(existing))
	}

	if len(ledger.Records(ctx)) > 0 || len(f.Transactions) == 0 {
		return nil
	}
	inputs := make([]models.RecordInput, 0, len(f.Transactions))
	for _, tx := range f.Transactions {
		in, err := tx.toInput()
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
	}
	if _, err := ledger.AppendAll(ctx, inputs...); err != nil {
		return fmt.Errorf("failed to append seed transactions: %w", err)
	}
	slog.Info("seed transactions recorded", "count", len(inputs))
	return nil
}

func (u User) toModel() (*models.User, error) {
	if u.Email == "" || u.Password == "" {
		return nil, fmt.Errorf("seed user %q needs email and password", u.ID)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password for %s: %w", u.Email, err)
	}
	initial := decimal.Zero
	if u.InitialBalance != "" {
		initial, err = decimal.NewFromString(u.InitialBalance)
		if err != nil {
			return nil, fmt.Errorf("invalid initial balance for %s: %w", u.Email, err)
		}
	}
	active := true
	if u.Active != nil {
		active = *u.Active
	}
	bank := u.Bank
	if bank == "" {
		bank = models.DefaultBank
	}
	return &models.User{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		PasswordHash:   string(hash),
		IsActive:       active,
		IsVerified:     u.Verified,
		Alias:          u.Alias,
		Bank:           bank,
		InitialBalance: initial,
		Balance:        initial,
	}, nil
}

func (t Transaction) toInput() (models.RecordInput, error) {
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return models.RecordInput{}, fmt.Errorf("invalid amount in seed transaction %q: %w", t.ID, err)
	}
	details, err := models.NewDetails(models.TransactionKind(t.Type), t.CounterpartyID, t.Counterparty, models.DepositMethod(t.Method))
	if err != nil {
		return models.RecordInput{}, fmt.Errorf("seed transaction %q: %w", t.ID, err)
	}
	return models.RecordInput{
		ID:          t.ID,
		UserID:      t.UserID,
		Details:     details,
		Description: t.Description,
		Amount:      amount,
		Status:      models.StatusType(t.Status),
		Timestamp:   t.Timestamp,
	}, nil
}
