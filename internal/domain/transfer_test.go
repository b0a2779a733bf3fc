package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateTransfer(t *testing.T) {
	tests := []struct {
		name        string
		senderID    string
		recipientID string
		amount      decimal.Decimal
		errorType   error
	}{
		{
			name:        "valid transfer",
			senderID:    "acc-1",
			recipientID: "acc-2",
			amount:      decimal.NewFromInt(100),
		},
		{
			name:        "same account",
			senderID:    "acc-1",
			recipientID: "acc-1",
			amount:      decimal.NewFromInt(100),
			errorType:   ErrSelfTransfer,
		},
		{
			name:        "zero amount",
			senderID:    "acc-1",
			recipientID: "acc-2",
			amount:      decimal.Zero,
			errorType:   ErrInvalidAmount,
		},
		{
			name:        "negative amount",
			senderID:    "acc-1",
			recipientID: "acc-2",
			amount:      decimal.NewFromInt(-50),
			errorType:   ErrInvalidAmount,
		},
		{
			name:        "too many decimal places",
			senderID:    "acc-1",
			recipientID: "acc-2",
			amount:      decimal.RequireFromString("10.005"),
			errorType:   ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransfer(tt.senderID, tt.recipientID, tt.amount)
			if tt.errorType != nil {
				if !errors.Is(err, tt.errorType) {
					t.Errorf("expected error %v, got %v", tt.errorType, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTransferRecord_Matches(t *testing.T) {
	record := &TransferRecord{
		SenderID:    "acc-1",
		RecipientID: "acc-2",
		Amount:      decimal.NewFromInt(100),
	}

	if !record.Matches("acc-1", "acc-2", decimal.NewFromInt(100)) {
		t.Error("expected record to match identical payload")
	}

	if record.Matches("acc-1", "acc-2", decimal.NewFromInt(200)) {
		t.Error("expected record not to match different amount")
	}

	if record.Matches("acc-1", "acc-3", decimal.NewFromInt(100)) {
		t.Error("expected record not to match different recipient")
	}
}
