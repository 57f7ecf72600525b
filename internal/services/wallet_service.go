package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	stderrors "errors"

	"github.com/alkewallet/wallet-core/internal/infrastructure/auth"
	"github.com/alkewallet/wallet-core/internal/infrastructure/redis"
	"github.com/alkewallet/wallet-core/internal/models"
	"github.com/alkewallet/wallet-core/internal/notify"
	"github.com/alkewallet/wallet-core/internal/repository"
	pkgerrors "github.com/alkewallet/wallet-core/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinDeposit      = 1000
	MaxDeposit      = 5000000
	ActivationBonus = 10000
)

var (
	minDeposit      = decimal.NewFromInt(MinDeposit)
	maxDeposit      = decimal.NewFromInt(MaxDeposit)
	activationBonus = decimal.NewFromInt(ActivationBonus)
)

var depositDescriptions = map[models.DepositMethod]string{
	models.MethodBank:   "Bank transfer deposit",
	models.MethodCard:   "Card deposit",
	models.MethodPayPal: "PayPal deposit",
	models.MethodCrypto: "Crypto deposit",
	models.MethodCash:   "Cash deposit",
}

type RegisterInput struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

type ContactInput struct {
	Name       string `json:"name"`
	Alias      string `json:"alias"`
	CBU        string `json:"cbu"`
	Bank       string `json:"bank"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	IsFavorite bool   `json:"is_favorite"`
}

// AccountInput carries the editable account details. An empty bank falls back
// to the wallet's own.
type AccountInput struct {
	Alias string `json:"alias"`
	Bank  string `json:"bank"`
}

type WalletService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, identifier, password string) (string, error)
	Logout(ctx context.Context, userID string) error
	Profile(ctx context.Context, userID string) (*models.User, error)
	FindUser(ctx context.Context, identifier string) (*models.User, error)
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	GetHistory(ctx context.Context, userID string, limit int) ([]models.TransactionRecord, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal, method models.DepositMethod) (*models.TransactionRecord, error)
	ActivateAccount(ctx context.Context, userID string) (*models.TransactionRecord, error)
	UpdateAccount(ctx context.Context, userID string, in AccountInput) (*models.User, error)
	ListRecipients(ctx context.Context, userID string) ([]models.User, error)
	AddContact(ctx context.Context, ownerID string, in ContactInput) (*models.Contact, error)
	ListContacts(ctx context.Context, ownerID, search string) ([]models.Contact, error)
}

type walletService struct {
	// activation makes the bonus check and the bonus credit one step.
	activation     sync.Mutex
	users          repository.UserRepository
	contacts       repository.ContactRepository
	ledger         *Ledger
	redisClient    redis.RedisClient
	jwtService     *auth.JWTService
	notifier       notify.Notifier
	initialBalance decimal.Decimal
}

func NewWalletService(
	users repository.UserRepository,
	contacts repository.ContactRepository,
	ledger *Ledger,
	redisClient redis.RedisClient,
	jwtService *auth.JWTService,
	notifier notify.Notifier,
	initialBalance decimal.Decimal,
) *walletService {
	return &walletService{
		users:          users,
		contacts:       contacts,
		ledger:         ledger,
		redisClient:    redisClient,
		jwtService:     jwtService,
		notifier:       notifier,
		initialBalance: initialBalance,
	}
}

func (s *walletService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.Username == "" {
		in.Username, _, _ = strings.Cut(in.Email, "@")
	}
	if err := validateRegistration(in); err != nil {
		span.SetStatus(codes.Error, "invalid registration")
		return nil, err
	}

	for _, identifier := range []string{in.Email, in.Username} {
		existing, err := s.users.GetByIdentifier(ctx, identifier)
		if existing != nil {
			span.SetStatus(codes.Error, "user already exists")
			slog.Warn("user already exists", "identifier", identifier, "existing_id", existing.ID)
			return nil, pkgerrors.ErrUserAlreadyExists
		}
		if err != nil && !stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			span.RecordError(err)
			slog.Error("failed to check user existence", "identifier", identifier, "error", err)
			return nil, fmt.Errorf("%w: failed to check user existence", pkgerrors.ErrInternal)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to hash password", "email", in.Email, "error", err)
		return nil, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		Email:          in.Email,
		Username:       in.Username,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		PasswordHash:   string(hash),
		IsActive:       true,
		Bank:           models.DefaultBank,
		InitialBalance: s.initialBalance,
		Balance:        s.initialBalance,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserAlreadyExists) {
			return nil, err
		}
		span.RecordError(err)
		slog.Error("failed to create user", "email", in.Email, "error", err)
		return nil, fmt.Errorf("%w: failed to create user", pkgerrors.ErrInternal)
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	s.notify(ctx, notify.Notification{
		UserID:  user.ID,
		Level:   notify.LevelSuccess,
		Title:   "Welcome to AlkeWallet",
		Message: "Your account was created. Activate it to receive your welcome bonus.",
	})
	return user, nil
}

func validateRegistration(in RegisterInput) error {
	if in.Email == "" || in.Password == "" || in.FirstName == "" || in.LastName == "" {
		return pkgerrors.NewValidationError("", "complete all required fields")
	}
	if !emailPattern.MatchString(in.Email) {
		return pkgerrors.NewValidationError("email", "enter a valid email address")
	}
	if !usernamePattern.MatchString(in.Username) {
		return pkgerrors.NewValidationError("username", "the username must have between 3 and 30 letters, digits, dots, dashes or underscores")
	}
	if len(in.Password) < 6 || !hasLetter.MatchString(in.Password) || !hasDigit.MatchString(in.Password) {
		return pkgerrors.NewValidationError("password", "the password must have at least 6 characters with letters and numbers")
	}
	if !namePattern.MatchString(in.FirstName) {
		return pkgerrors.NewValidationError("first_name", "the first name must have between 2 and 30 letters")
	}
	if !namePattern.MatchString(in.LastName) {
		return pkgerrors.NewValidationError("last_name", "the last name must have between 2 and 30 letters")
	}
	return nil
}

// Login returns a signed token and stores it as the user's current session.
// Every lookup or password failure is reported as ErrInvalidCredentials.
func (s *walletService) Login(ctx context.Context, identifier, password string) (string, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.users.GetByIdentifier(ctx, strings.ToLower(strings.TrimSpace(identifier)))
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		if !stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			slog.Error("failed to look up user", "identifier", identifier, "error", err)
		}
		return "", pkgerrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		span.SetStatus(codes.Error, "invalid password")
		slog.Warn("invalid password", "user_id", user.ID)
		return "", pkgerrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		span.SetStatus(codes.Error, "inactive user")
		slog.Warn("login attempt on inactive account", "user_id", user.ID)
		return "", pkgerrors.ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateJWT(user.ID)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to generate token", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("%w: failed to generate token", pkgerrors.ErrInternal)
	}
	if err := s.redisClient.Set(ctx, auth.TokenKey(user.ID), token, auth.TokenTTL); err != nil {
		span.RecordError(err)
		slog.Error("failed to store token", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("%w: failed to store session", pkgerrors.ErrInternal)
	}
	slog.Info("user logged in", "user_id", user.ID)
	return token, nil
}

func (s *walletService) Logout(ctx context.Context, userID string) error {
	if err := s.redisClient.Del(ctx, auth.TokenKey(userID)); err != nil {
		slog.Error("failed to delete token", "user_id", userID, "error", err)
		return fmt.Errorf("%w: failed to end session", pkgerrors.ErrInternal)
	}
	slog.Info("user logged out", "user_id", userID)
	return nil
}

func (s *walletService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Balance = s.ledger.ComputeBalance(ctx, user.ID, user.InitialBalance)
	return user, nil
}

// FindUser looks a user up by id, email or username.
func (s *walletService) FindUser(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, pkgerrors.ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		return nil, err
	}
	return s.users.GetByIdentifier(ctx, strings.ToLower(identifier))
}

func (s *walletService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.ledger.ComputeBalance(ctx, user.ID, user.InitialBalance), nil
}

func (s *walletService) GetHistory(ctx context.Context, userID string, limit int) ([]models.TransactionRecord, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, userID, limit), nil
}

func (s *walletService) Deposit(ctx context.Context, userID string, amount decimal.Decimal, method models.DepositMethod) (*models.TransactionRecord, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Deposit")
	defer span.End()

	if !amount.IsPositive() {
		return nil, pkgerrors.NewValidationError("amount", "enter a valid amount")
	}
	if amount.LessThan(minDeposit) {
		return nil, pkgerrors.NewValidationError("amount", fmt.Sprintf("the minimum deposit is %s", formatAmount(minDeposit)))
	}
	if amount.GreaterThan(maxDeposit) {
		return nil, pkgerrors.NewValidationError("amount", fmt.Sprintf("the maximum deposit is %s", formatAmount(maxDeposit)))
	}
	description, ok := depositDescriptions[method]
	if !ok {
		return nil, pkgerrors.NewValidationError("method", fmt.Sprintf("unsupported deposit method %q", method))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, err
	}

	rec, err := s.ledger.Append(ctx, models.RecordInput{
		UserID:      user.ID,
		Details:     models.DepositDetails{Method: method},
		Description: description,
		Amount:      amount,
		Status:      models.StatusCompleted,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return nil, err
	}

	balance := refreshSnapshot(ctx, s.ledger, s.users, user)
	slog.Info("deposit completed", "user_id", user.ID, "amount", amount.String(), "method", method, "balance", balance.String())
	s.notify(ctx, notify.Notification{
		UserID:    user.ID,
		Level:     notify.LevelSuccess,
		Title:     "Deposit received",
		Message:   fmt.Sprintf("%s of %s credited", description, formatAmount(amount)),
		Reference: rec.ID,
	})
	return &rec, nil
}

// ActivateAccount credits the one-time welcome bonus and marks the user
// verified. A bonus already present in the ledger counts as activated even
// if the verified flag was never written.
func (s *walletService) ActivateAccount(ctx context.Context, userID string) (*models.TransactionRecord, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "ActivateAccount")
	defer span.End()

	s.activation.Lock()
	defer s.activation.Unlock()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsVerified || s.hasBonus(ctx, user.ID) {
		span.SetStatus(codes.Error, "already active")
		return nil, pkgerrors.ErrAccountAlreadyActive
	}

	rec, err := s.ledger.Append(ctx, models.RecordInput{
		UserID:      user.ID,
		Details:     models.DepositDetails{Method: models.MethodBonus},
		Description: "Welcome bonus",
		Amount:      activationBonus,
		Status:      models.StatusCompleted,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.users.SetVerified(ctx, user.ID); err != nil {
		slog.Error("failed to mark user verified", "user_id", user.ID, "error", err)
	}
	refreshSnapshot(ctx, s.ledger, s.users, user)

	slog.Info("account activated", "user_id", user.ID)
	s.notify(ctx, notify.Notification{
		UserID:    user.ID,
		Level:     notify.LevelSuccess,
		Title:     "Account activated",
		Message:   fmt.Sprintf("You received a welcome bonus of %s", formatAmount(activationBonus)),
		Reference: rec.ID,
	})
	return &rec, nil
}

// UpdateAccount changes the alias and bank shown on the caller's account.
func (s *walletService) UpdateAccount(ctx context.Context, userID string, in AccountInput) (*models.User, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "UpdateAccount")
	defer span.End()

	alias := strings.TrimSpace(in.Alias)
	bank := strings.TrimSpace(in.Bank)
	if bank == "" {
		bank = models.DefaultBank
	}
	if n := utf8.RuneCountInString(alias); alias != "" && (n < 6 || n > 20) {
		span.SetStatus(codes.Error, "invalid alias")
		return nil, pkgerrors.NewValidationError("alias", "the alias must have between 6 and 20 characters")
	}
	if utf8.RuneCountInString(bank) > 50 {
		span.SetStatus(codes.Error, "invalid bank")
		return nil, pkgerrors.NewValidationError("bank", "the bank name is too long")
	}

	if err := s.users.UpdateAccount(ctx, userID, alias, bank); err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			return nil, err
		}
		span.RecordError(err)
		slog.Error("failed to update account", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: failed to update account", pkgerrors.ErrInternal)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	slog.Info("account updated", "user_id", userID, "alias", alias, "bank", bank)
	s.notify(ctx, notify.Notification{
		UserID:  userID,
		Level:   notify.LevelSuccess,
		Title:   "Profile updated",
		Message: "Your account details were updated",
	})
	return user, nil
}

func (s *walletService) hasBonus(ctx context.Context, userID string) bool {
	for _, rec := range s.ledger.History(ctx, userID, 0) {
		if d, ok := rec.Details.(models.DepositDetails); ok && d.Method == models.MethodBonus {
			return true
		}
	}
	return false
}

// ListRecipients returns the active users the caller can transfer to.
func (s *walletService) ListRecipients(ctx context.Context, userID string) ([]models.User, error) {
	all, err := s.users.List(ctx)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		return nil, fmt.Errorf("%w: failed to list users", pkgerrors.ErrInternal)
	}
	out := make([]models.User, 0, len(all))
	for _, u := range all {
		if u.IsActive && u.ID != userID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *walletService) AddContact(ctx context.Context, ownerID string, in ContactInput) (*models.Contact, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Alias = strings.TrimSpace(in.Alias)
	in.CBU = strings.TrimSpace(in.CBU)
	in.Bank = strings.TrimSpace(in.Bank)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Name == "" || in.Alias == "" || in.CBU == "" || in.Bank == "" {
		return nil, pkgerrors.NewValidationError("", "complete all required fields")
	}
	if !cbuPattern.MatchString(in.CBU) {
		return nil, pkgerrors.NewValidationError("cbu", "the CBU must have exactly 22 digits")
	}
	if n := utf8.RuneCountInString(in.Alias); n < 6 || n > 20 {
		return nil, pkgerrors.NewValidationError("alias", "the alias must have between 6 and 20 characters")
	}
	if in.Email != "" && !emailPattern.MatchString(in.Email) {
		return nil, pkgerrors.NewValidationError("email", "enter a valid email address")
	}

	existing, err := s.contacts.ListByOwner(ctx, ownerID)
	if err != nil {
		slog.Error("failed to list contacts", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("%w: failed to list contacts", pkgerrors.ErrInternal)
	}
	for _, c := range existing {
		if strings.EqualFold(c.Alias, in.Alias) {
			return nil, pkgerrors.ErrContactExists
		}
	}

	contact := &models.Contact{
		OwnerID:    ownerID,
		Name:       in.Name,
		Alias:      in.Alias,
		CBU:        in.CBU,
		Bank:       in.Bank,
		Phone:      strings.TrimSpace(in.Phone),
		Email:      in.Email,
		IsFavorite: in.IsFavorite,
	}
	if in.Email != "" {
		if u, err := s.users.GetByIdentifier(ctx, in.Email); err == nil && u.ID != ownerID {
			contact.UserID = u.ID
		}
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		if stderrors.Is(err, pkgerrors.ErrContactExists) {
			return nil, err
		}
		slog.Error("failed to create contact", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("%w: failed to create contact", pkgerrors.ErrInternal)
	}
	slog.Info("contact added", "owner_id", ownerID, "contact_id", contact.ID, "linked_user_id", contact.UserID)
	return contact, nil
}

// ListContacts returns favorites first, then by name. An empty search
// matches everything.
func (s *walletService) ListContacts(ctx context.Context, ownerID, search string) ([]models.Contact, error) {
	all, err := s.contacts.ListByOwner(ctx, ownerID)
	if err != nil {
		slog.Error("failed to list contacts", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("%w: failed to list contacts", pkgerrors.ErrInternal)
	}
	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Contact, 0, len(all))
	for _, c := range all {
		if search == "" ||
			strings.Contains(strings.ToLower(c.Name), search) ||
			strings.Contains(strings.ToLower(c.Alias), search) ||
			strings.Contains(strings.ToLower(c.Email), search) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsFavorite != out[j].IsFavorite {
			return out[i].IsFavorite
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *walletService) notify(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		slog.Error("failed to send notification", "user_id", n.UserID, "title", n.Title, "error", err)
	}
}
