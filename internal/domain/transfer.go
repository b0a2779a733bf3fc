package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferRecord is the immutable record of a committed transfer. The balance
// snapshots are taken at commit time so an account's history can be audited
// without replaying every earlier record.
type TransferRecord struct {
	CreatedAt             time.Time
	ID                    string
	SenderID              string
	RecipientID           string
	Amount                decimal.Decimal
	SenderBalanceAfter    decimal.Decimal
	RecipientBalanceAfter decimal.Decimal
	IdempotencyKey        *string
}

// ValidateTransfer validates a transfer request before any account is touched.
func ValidateTransfer(senderID, recipientID string, amount decimal.Decimal) error {
	if senderID == recipientID {
		return ErrSelfTransfer
	}

	return ValidateAmount(amount)
}

// Matches reports whether the record was created for the same logical payload.
// Used to distinguish an idempotent replay from a key reuse.
func (r *TransferRecord) Matches(senderID, recipientID string, amount decimal.Decimal) bool {
	return r.SenderID == senderID &&
		r.RecipientID == recipientID &&
		r.Amount.Equal(amount)
}
