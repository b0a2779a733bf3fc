package dto

import (
	"github.com/shopspring/decimal"

	"banking/internal/usecase"
)

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		Name:           r.Name,
		Email:          r.Email,
		InitialBalance: r.InitialBalance,
	}
}

// CreateTransferRequest represents a request to create a transfer.
type CreateTransferRequest struct {
	SenderID       string          `json:"sender_id"`
	RecipientID    string          `json:"recipient_id"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// ToUseCaseInput converts to use case input. An Idempotency-Key header takes
// precedence over the body field.
func (r *CreateTransferRequest) ToUseCaseInput(headerKey string) usecase.TransferInput {
	key := r.IdempotencyKey
	if headerKey != "" {
		key = headerKey
	}

	return usecase.TransferInput{
		SenderID:       r.SenderID,
		RecipientID:    r.RecipientID,
		Amount:         r.Amount,
		IdempotencyKey: key,
	}
}

// PaginationRequest represents pagination parameters.
type PaginationRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
