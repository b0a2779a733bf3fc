package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxAccountNameLength = 255
	MinAccountNameLength = 1
	MaxTransferAmount    = "1000000000000" // 1 trillion
	MinTransferAmount    = "0.01"
	// Amounts carry at most two fractional digits so every value is exactly
	// representable and repeated transfers cannot accumulate rounding drift.
	MaxAmountScale = 2
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateAmount validates a transfer amount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if amount.Exponent() < -MaxAmountScale {
		return fmt.Errorf("%w: at most %d decimal places allowed", ErrInvalidAmount, MaxAmountScale)
	}

	minAmount, _ := decimal.NewFromString(MinTransferAmount)
	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrInvalidAmount, MinTransferAmount)
	}

	maxAmount, _ := decimal.NewFromString(MaxTransferAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrInvalidAmount, MaxTransferAmount)
	}

	return nil
}

// ValidateAccountName validates an account holder name.
func ValidateAccountName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) < MinAccountNameLength {
		return fmt.Errorf("invalid account name: name cannot be empty")
	}

	if len(name) > MaxAccountNameLength {
		return fmt.Errorf("invalid account name: name exceeds %d characters", MaxAccountNameLength)
	}

	return nil
}

// ValidateEmail validates email format.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}

	return nil
}

// ValidateInitialBalance validates an opening balance.
func ValidateInitialBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("initial balance cannot be negative")
	}

	if balance.Exponent() < -MaxAmountScale {
		return fmt.Errorf("initial balance: at most %d decimal places allowed", MaxAmountScale)
	}

	return nil
}
