package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alkewallet/wallet-core/internal/models"
	pkgerrors "github.com/alkewallet/wallet-core/pkg/errors"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostgresContactRepository struct {
	db *sql.DB
}

func NewPostgresContactRepository(db *sql.DB) *PostgresContactRepository {
	return &PostgresContactRepository{db: db}
}

func (r *PostgresContactRepository) Create(ctx context.Context, c *models.Contact) (err error) {
	ctx, done := startCall(ctx, "CreateContact")
	defer func() { done(err) }()

	if c == nil {
		err = pkgerrors.ErrNilContact
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	query := `INSERT INTO contacts (id, owner_id, name, alias, cbu, bank, phone, email, user_id, is_favorite) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`
	err = r.db.QueryRowContext(ctx, query,
		c.ID, c.OwnerID, c.Name, c.Alias, c.CBU, c.Bank,
		nullString(c.Phone), nullString(c.Email), nullString(c.UserID), c.IsFavorite,
	).Scan(&c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			err = pkgerrors.ErrContactExists
			return err
		}
		slog.Error("failed to create contact", "method", "Create", "owner_id", c.OwnerID, "error", err)
		return fmt.Errorf("failed to create contact: %w", err)
	}

	slog.Info("contact created", "method", "Create", "owner_id", c.OwnerID, "contact_id", c.ID)
	return nil
}

func (r *PostgresContactRepository) ListByOwner(ctx context.Context, ownerID string) (contacts []models.Contact, err error) {
	ctx, done := startCall(ctx, "ListContacts")
	defer func() { done(err) }()

	query := `SELECT id, owner_id, name, alias, cbu, bank, phone, email, user_id, is_favorite, created_at FROM contacts WHERE owner_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		slog.Error("failed to list contacts", "method", "ListByOwner", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c                    models.Contact
			phone, email, userID sql.NullString
		)
		if err = rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Alias, &c.CBU, &c.Bank, &phone, &email, &userID, &c.IsFavorite, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		c.Phone, c.Email, c.UserID = phone.String, email.String, userID.String
		contacts = append(contacts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, nil
}
