package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a customer account that can hold a balance.
type Account struct {
	ID             string
	Name           string
	Email          string
	Balance        decimal.Decimal
	InitialBalance decimal.Decimal
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CanDebit checks if the account holds enough balance to be debited by amount.
func (a *Account) CanDebit(amount decimal.Decimal) error {
	if a.Balance.LessThan(amount) {
		return &InsufficientBalanceError{
			AccountID: a.ID,
			Available: a.Balance,
			Required:  amount,
		}
	}

	return nil
}

// ApplyDebit returns new balance after debit.
func (a *Account) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Sub(amount)
}

// ApplyCredit returns new balance after credit.
func (a *Account) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount)
}
