package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"banking/internal/domain"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Email,
		Balance:        a.Balance,
		InitialBalance: a.InitialBalance,
		Version:        a.Version,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse wraps a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// TransferResponse represents a transfer record in API responses.
type TransferResponse struct {
	ID                    string          `json:"id"`
	SenderID              string          `json:"sender_id"`
	RecipientID           string          `json:"recipient_id"`
	Amount                decimal.Decimal `json:"amount"`
	SenderBalanceAfter    decimal.Decimal `json:"sender_balance_after"`
	RecipientBalanceAfter decimal.Decimal `json:"recipient_balance_after"`
	IdempotencyKey        *string         `json:"idempotency_key,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// TransferFromDomain converts a domain transfer record to a response.
func TransferFromDomain(t *domain.TransferRecord) *TransferResponse {
	return &TransferResponse{
		ID:                    t.ID,
		SenderID:              t.SenderID,
		RecipientID:           t.RecipientID,
		Amount:                t.Amount,
		SenderBalanceAfter:    t.SenderBalanceAfter,
		RecipientBalanceAfter: t.RecipientBalanceAfter,
		IdempotencyKey:        t.IdempotencyKey,
		CreatedAt:             t.CreatedAt,
	}
}

// TransfersFromDomain converts domain transfer records to responses.
func TransfersFromDomain(transfers []*domain.TransferRecord) []*TransferResponse {
	result := make([]*TransferResponse, len(transfers))
	for i, t := range transfers {
		result[i] = TransferFromDomain(t)
	}
	return result
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
