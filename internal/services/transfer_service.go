package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	stderrors "errors"

	"github.com/alkewallet/wallet-core/internal/infrastructure/observability"
	"github.com/alkewallet/wallet-core/internal/models"
	"github.com/alkewallet/wallet-core/internal/notify"
	"github.com/alkewallet/wallet-core/internal/repository"
	pkgerrors "github.com/alkewallet/wallet-core/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	MinTransfer = 1000
	MaxTransfer = 1000000

	defaultConcept = "Transfer"
)

var (
	minTransfer = decimal.NewFromInt(MinTransfer)
	maxTransfer = decimal.NewFromInt(MaxTransfer)
)

type TransferService interface {
	ExecuteTransfer(ctx context.Context, intent models.TransferIntent) (*models.TransferResult, error)
}

type transferService struct {
	// mu makes the balance check and the commit one step.
	mu       sync.Mutex
	ledger   *Ledger
	users    repository.UserRepository
	notifier notify.Notifier
	codes    *CodeGenerator
}

func NewTransferService(ledger *Ledger, users repository.UserRepository, notifier notify.Notifier) *transferService {
	return &transferService{
		ledger:   ledger,
		users:    users,
		notifier: notifier,
		codes:    NewCodeGenerator(time.Now),
	}
}

// ExecuteTransfer validates the intent and commits a debit on the sender and
// a credit on the recipient in one ledger write. Checks run in a fixed order
// and the first failure is returned; nothing is written on failure.
func (s *transferService) ExecuteTransfer(ctx context.Context, intent models.TransferIntent) (*models.TransferResult, error) {
	tracer := otel.Tracer("transfer-service")
	ctx, span := tracer.Start(ctx, "ExecuteTransfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("sender_id", intent.SenderUserID),
		attribute.String("recipient_id", intent.RecipientUserID),
		attribute.String("recipient", intent.RecipientIdentifier),
		attribute.String("amount", intent.Amount.String()),
	)

	result, err := s.execute(ctx, intent)
	outcome := transferOutcome(err)
	observability.Transfers.WithLabelValues(outcome).Inc()
	if err != nil {
		span.SetStatus(codes.Error, outcome)
		slog.Warn("transfer rejected",
			"sender_id", intent.SenderUserID,
			"recipient_id", intent.RecipientUserID,
			"recipient", intent.RecipientIdentifier,
			"amount", intent.Amount.String(),
			"outcome", outcome,
			"error", err)
		s.notify(ctx, notify.Notification{
			UserID:  intent.SenderUserID,
			Level:   notify.LevelError,
			Title:   "Transfer failed",
			Message: failureMessage(err),
		})
		return nil, err
	}
	return result, nil
}

func (s *transferService) execute(ctx context.Context, intent models.TransferIntent) (*models.TransferResult, error) {
	amount := intent.Amount
	if !amount.IsPositive() {
		return nil, pkgerrors.NewValidationError("amount", "enter a valid amount")
	}
	if amount.LessThan(minTransfer) {
		return nil, pkgerrors.NewValidationError("amount", fmt.Sprintf("the minimum transfer is %s", formatAmount(minTransfer)))
	}
	if amount.GreaterThan(maxTransfer) {
		return nil, pkgerrors.NewValidationError("amount", fmt.Sprintf("the maximum transfer is %s", formatAmount(maxTransfer)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sender, err := s.users.GetByID(ctx, intent.SenderUserID)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to load sender: %v", pkgerrors.ErrInternal, err)
	}
	balance := s.ledger.ComputeBalance(ctx, sender.ID, sender.InitialBalance)
	if balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: balance %s, requested %s", pkgerrors.ErrInsufficientFunds, balance.StringFixed(2), amount.StringFixed(2))
	}

	recipient, err := s.recipient(ctx, intent)
	if err != nil {
		return nil, err
	}
	if !recipient.IsActive {
		return nil, pkgerrors.ErrRecipientInactive
	}
	if recipient.ID == sender.ID {
		return nil, pkgerrors.NewValidationError("recipient", "you cannot transfer to yourself")
	}

	concept := intent.Concept
	if concept == "" {
		concept = defaultConcept
	}
	recs, err := s.ledger.AppendAll(ctx,
		models.RecordInput{
			UserID:      sender.ID,
			Details:     models.TransferDetails{CounterpartyID: recipient.ID, CounterpartyName: recipient.FullName()},
			Description: fmt.Sprintf("%s to %s", concept, recipient.FullName()),
			Amount:      amount.Neg(),
			Status:      models.StatusCompleted,
		},
		models.RecordInput{
			UserID:      recipient.ID,
			Details:     models.TransferDetails{CounterpartyID: sender.ID, CounterpartyName: sender.FullName()},
			Description: fmt.Sprintf("%s from %s", concept, sender.FullName()),
			Amount:      amount,
			Status:      models.StatusCompleted,
		},
	)
	if err != nil {
		return nil, err
	}

	result := &models.TransferResult{
		Code:   s.codes.Next(),
		Debit:  recs[0],
		Credit: recs[1],
	}
	slog.Info("transfer completed",
		"code", result.Code,
		"sender_id", sender.ID,
		"recipient_id", recipient.ID,
		"amount", amount.String())

	refreshSnapshot(ctx, s.ledger, s.users, sender)
	refreshSnapshot(ctx, s.ledger, s.users, recipient)

	s.notify(ctx, notify.Notification{
		UserID:    sender.ID,
		Level:     notify.LevelSuccess,
		Title:     "Transfer sent",
		Message:   fmt.Sprintf("You sent %s to %s", formatAmount(amount), recipient.FullName()),
		Reference: result.Code,
	})
	s.notify(ctx, notify.Notification{
		UserID:    recipient.ID,
		Level:     notify.LevelInfo,
		Title:     "Transfer received",
		Message:   fmt.Sprintf("You received %s from %s", formatAmount(amount), sender.FullName()),
		Reference: result.Code,
	})
	return result, nil
}

func (s *transferService) recipient(ctx context.Context, intent models.TransferIntent) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	switch {
	case intent.RecipientUserID != "":
		user, err = s.users.GetByID(ctx, intent.RecipientUserID)
	case strings.TrimSpace(intent.RecipientIdentifier) != "":
		user, err = s.users.GetByIdentifier(ctx, strings.TrimSpace(intent.RecipientIdentifier))
	default:
		return nil, pkgerrors.NewValidationError("recipient", "select a recipient")
	}
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			return nil, pkgerrors.ErrRecipientNotFound
		}
		return nil, fmt.Errorf("%w: failed to load recipient: %v", pkgerrors.ErrInternal, err)
	}
	return user, nil
}

func (s *transferService) notify(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		slog.Error("failed to send notification", "user_id", n.UserID, "title", n.Title, "error", err)
	}
}

func transferOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case stderrors.Is(err, pkgerrors.ErrValidation):
		return "validation"
	case stderrors.Is(err, pkgerrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case stderrors.Is(err, pkgerrors.ErrRecipientNotFound):
		return "recipient_not_found"
	case stderrors.Is(err, pkgerrors.ErrRecipientInactive):
		return "recipient_inactive"
	case stderrors.Is(err, pkgerrors.ErrUserNotFound):
		return "sender_not_found"
	case stderrors.Is(err, pkgerrors.ErrPersistence):
		return "persistence"
	}
	return "error"
}

func failureMessage(err error) string {
	var verr *pkgerrors.ValidationError
	switch {
	case stderrors.As(err, &verr):
		return verr.Reason
	case stderrors.Is(err, pkgerrors.ErrInsufficientFunds):
		return "Insufficient balance for this transfer"
	case stderrors.Is(err, pkgerrors.ErrRecipientNotFound):
		return "The recipient does not exist"
	case stderrors.Is(err, pkgerrors.ErrRecipientInactive):
		return "The recipient account is not active"
	}
	return "The transfer could not be completed, try again later"
}

// CodeGenerator hands out human-readable transaction codes. Codes are
// strictly increasing within a process.
type CodeGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

func NewCodeGenerator(now func() time.Time) *CodeGenerator {
	return &CodeGenerator{now: now}
}

func (g *CodeGenerator) Next() string {
	for {
		prev := g.last.Load()
		n := g.now().UnixMilli()
		if n <= prev {
			n = prev + 1
		}
		if g.last.CompareAndSwap(prev, n) {
			return fmt.Sprintf("TXN%d", n)
		}
	}
}
