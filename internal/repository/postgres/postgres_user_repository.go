package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alkewallet/wallet-core/internal/models"
	pkgerrors "github.com/alkewallet/wallet-core/pkg/errors"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const userColumns = `id, email, username, first_name, last_name, password_hash, is_active, is_verified, alias, bank, initial_balance, balance, created_at`

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, done := startCall(ctx, "CreateUser")
	defer func() { done(err) }()

	if user == nil {
		err = pkgerrors.ErrNilUser
		return err
	}
	if user.Email == "" || user.PasswordHash == "" {
		err = fmt.Errorf("email and password hash are required")
		return err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query := `INSERT INTO users (id, email, username, first_name, last_name, password_hash, is_active, is_verified, alias, bank, initial_balance, balance) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING created_at`
	err = r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Username, user.FirstName, user.LastName, user.PasswordHash,
		user.IsActive, user.IsVerified, user.Alias, user.Bank, user.InitialBalance, user.Balance,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			slog.Warn("user already exists", "method", "Create", "email", user.Email)
			err = pkgerrors.ErrUserAlreadyExists
			return err
		}
		slog.Error("failed to create user", "method", "Create", "email", user.Email, "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created", "method", "Create", "user_id", user.ID)
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (user *models.User, err error) {
	ctx, done := startCall(ctx, "GetUserByID")
	defer func() { done(err) }()

	user, err = scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrUserNotFound
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get user by id", "method", "GetByID", "user_id", id, "error", err)
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) GetByIdentifier(ctx context.Context, identifier string) (user *models.User, err error) {
	ctx, done := startCall(ctx, "GetUserByIdentifier")
	defer func() { done(err) }()

	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		err = pkgerrors.ErrUserNotFound
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1 OR lower(username) = $1 LIMIT 1`
	user, err = scanUser(r.db.QueryRowContext(ctx, query, identifier))
	if errors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrUserNotFound
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get user by identifier", "method", "GetByIdentifier", "error", err)
		return nil, fmt.Errorf("failed to get user by identifier: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) List(ctx context.Context) (users []models.User, err error) {
	ctx, done := startCall(ctx, "ListUsers")
	defer func() { done(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		slog.Error("failed to list users", "method", "List", "error", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan user: %w", scanErr)
			return nil, err
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) (err error) {
	ctx, done := startCall(ctx, "UpdateUserBalance")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE users SET balance = $1 WHERE id = $2`, balance, id)
	if err != nil {
		slog.Error("failed to update balance", "method", "UpdateBalance", "user_id", id, "error", err)
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresUserRepository) SetVerified(ctx context.Context, id string) (err error) {
	ctx, done := startCall(ctx, "SetUserVerified")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		slog.Error("failed to verify user", "method", "SetVerified", "user_id", id, "error", err)
		return fmt.Errorf("failed to verify user: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, id, alias, bank string) (err error) {
	ctx, done := startCall(ctx, "UpdateUserAccount")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE users SET alias = $1, bank = $2 WHERE id = $3`, alias, bank, id)
	if err != nil {
		slog.Error("failed to update account", "method", "UpdateAccount", "user_id", id, "error", err)
		return fmt.Errorf("failed to update account: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return pkgerrors.ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsActive, &u.IsVerified, &u.Alias, &u.Bank, &u.InitialBalance, &u.Balance, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
