package errors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrRecipientNotFound      = errors.New("recipient not found")
	ErrRecipientInactive      = errors.New("recipient is not active")
	ErrPersistence            = errors.New("persistence failure")
	ErrUserNotFound           = errors.New("user not found")
	ErrUserAlreadyExists      = errors.New("user already exists")
	ErrNilUser                = errors.New("user is nil")
	ErrNilContact             = errors.New("contact is nil")
	ErrContactExists          = errors.New("contact alias already in use")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountAlreadyActive   = errors.New("account already active")
	ErrInvalidTransactionKind = errors.New("invalid transaction type")
	ErrInvalidStatus          = errors.New("invalid transaction status")
	ErrUnsupportedSchema      = errors.New("unsupported transaction log schema version")
	ErrInternal               = errors.New("internal error")
)

// ValidationError is a rejected input with a reason that can be shown to the user.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError wraps a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
