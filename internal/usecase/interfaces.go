package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"banking/internal/domain"
)

// AccountStore defines data access for accounts. AtomicUpdate is the only
// write path for balances: it succeeds only when the stored version still
// matches expectedVersion, so a concurrent out-of-band mutation surfaces as
// domain.ErrConcurrentModification instead of a silent overwrite.
type AccountStore interface {
	Create(ctx context.Context, account *domain.Account) error
	Resolve(ctx context.Context, id string) (*domain.Account, error)
	ResolveTx(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	AtomicUpdate(ctx context.Context, tx Transaction, id string, expectedVersion int64, newBalance decimal.Decimal, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// LedgerWriter defines append-only access to transfer records. The storage
// layer enforces uniqueness of (sender, idempotency key); Append returns
// domain.ErrIdempotencyKeyReuse when that constraint is violated.
type LedgerWriter interface {
	Append(ctx context.Context, tx Transaction, record *domain.TransferRecord) error
	GetByID(ctx context.Context, id string) (*domain.TransferRecord, error)
	List(ctx context.Context, limit, offset int) ([]*domain.TransferRecord, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.TransferRecord, error)
	FindByIdempotencyKey(ctx context.Context, senderID, key string) (*domain.TransferRecord, error)
	CheckConsistency(ctx context.Context) (drift decimal.Decimal, mismatched int64, err error)
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

// Retrier executes an operation with retries on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}
