package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"banking/internal/domain"
	"banking/internal/infrastructure/metrics"
)

const accountCacheTTL = 5 * time.Second

// AccountDirectory handles account creation and lookup.
type AccountDirectory struct {
	accounts AccountStore
	idGen    IDGenerator
	cache    Cache
	metrics  *metrics.Metrics
}

// NewAccountDirectory creates a new AccountDirectory. cache and metrics are
// optional.
func NewAccountDirectory(accounts AccountStore, idGen IDGenerator, cache Cache, metrics *metrics.Metrics) *AccountDirectory {
	return &AccountDirectory{
		accounts: accounts,
		idGen:    idGen,
		cache:    cache,
		metrics:  metrics,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	Name           string
	Email          string
	InitialBalance decimal.Decimal
}

// CreateAccount creates a new account with an optional opening balance.
func (d *AccountDirectory) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if err := domain.ValidateAccountName(input.Name); err != nil {
		return nil, err
	}

	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, err
	}

	if err := domain.ValidateInitialBalance(input.InitialBalance); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	account := &domain.Account{
		ID:             d.idGen.Generate(),
		Name:           input.Name,
		Email:          input.Email,
		Balance:        input.InitialBalance,
		InitialBalance: input.InitialBalance,
		Version:        0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := d.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	if d.metrics != nil {
		d.metrics.AccountsCreated.Inc()
	}

	return account, nil
}

// GetAccount retrieves an account by ID. Lookups go through the read cache
// when one is configured; committed transfers invalidate the cached entry.
func (d *AccountDirectory) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if d.cache != nil {
		if data, err := d.cache.Get(ctx, accountCacheKey(id)); err == nil && data != nil {
			var account domain.Account
			if err := json.Unmarshal(data, &account); err == nil {
				return &account, nil
			}
		}
	}

	account, err := d.accounts.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if data, err := json.Marshal(account); err == nil {
			_ = d.cache.Set(ctx, accountCacheKey(id), data, accountCacheTTL)
		}
	}

	return account, nil
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (d *AccountDirectory) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	limit, offset := clampPagination(input.Limit, input.Offset)

	return d.accounts.List(ctx, limit, offset)
}

func accountCacheKey(id string) string {
	return "account:" + id
}
