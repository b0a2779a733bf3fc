package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")

	// Transfer errors
	ErrSelfTransfer           = errors.New("sender and recipient must be different accounts")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrConcurrentModification = errors.New("account was modified concurrently")
	ErrIdempotencyKeyReuse    = errors.New("idempotency key was already used with a different payload")
	ErrTransferNotFound       = errors.New("transfer not found")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Transfer sides, used to report which account lookup failed.
const (
	SideSender    = "sender"
	SideRecipient = "recipient"
)

// AccountNotFoundError reports which side of a transfer failed to resolve.
type AccountNotFoundError struct {
	Side string
	ID   string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("%s account not found: %s", e.Side, e.ID)
}

func (e *AccountNotFoundError) Is(target error) bool {
	return target == ErrAccountNotFound
}

// InsufficientBalanceError carries the available and required amounts so the
// caller can render a precise message.
type InsufficientBalanceError struct {
	AccountID string
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on account %s: available %s, required %s",
		e.AccountID, e.Available, e.Required)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// StorageUnavailableError wraps a storage-level failure. It is the only
// retryable error in the taxonomy; retrying is safe only together with an
// idempotency key.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Err
}

func (e *StorageUnavailableError) Is(target error) bool {
	return target == ErrStorageUnavailable
}
