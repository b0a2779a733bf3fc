package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"banking/internal/domain"
	"banking/internal/infrastructure/metrics"
)

// TransferEngine moves money between two accounts as a single atomic unit:
// validate, lock both accounts in a total order, re-check, apply both balance
// mutations with version checks, append the ledger record, commit.
type TransferEngine struct {
	txManager TransactionManager
	accounts  AccountStore
	ledger    LedgerWriter
	idGen     IDGenerator
	locker    *accountLocker
	cache     Cache
	metrics   *metrics.Metrics
}

// NewTransferEngine creates a new TransferEngine. cache and metrics are
// optional; when cache is set, cached account lookups are invalidated after
// each committed transfer.
func NewTransferEngine(
	txManager TransactionManager,
	accounts AccountStore,
	ledger LedgerWriter,
	idGen IDGenerator,
	cache Cache,
	metrics *metrics.Metrics,
) *TransferEngine {
	return &TransferEngine{
		txManager: txManager,
		accounts:  accounts,
		ledger:    ledger,
		idGen:     idGen,
		locker:    newAccountLocker(),
		cache:     cache,
		metrics:   metrics,
	}
}

// TransferInput represents input for a transfer.
type TransferInput struct {
	SenderID       string
	RecipientID    string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Transfer executes a transfer. On success both balances have been mutated and
// the record durably appended; on any error no state has changed. The engine
// never retries on its own: only domain.ErrStorageUnavailable is retryable,
// and only by a caller supplying an idempotency key.
func (e *TransferEngine) Transfer(ctx context.Context, input TransferInput) (*domain.TransferRecord, error) {
	start := time.Now()

	record, err := e.transfer(ctx, input)

	if e.metrics != nil {
		if err != nil {
			e.metrics.TransferErrors.WithLabelValues(transferErrorType(err)).Inc()
		} else {
			e.metrics.TransfersCreated.Inc()
			e.metrics.TransferDuration.Observe(time.Since(start).Seconds())
			e.metrics.TransferAmount.Observe(input.Amount.InexactFloat64())
		}
	}

	return record, err
}

func (e *TransferEngine) transfer(ctx context.Context, input TransferInput) (*domain.TransferRecord, error) {
	if err := domain.ValidateTransfer(input.SenderID, input.RecipientID, input.Amount); err != nil {
		return nil, err
	}

	sender, err := e.resolveSide(ctx, input.SenderID, domain.SideSender)
	if err != nil {
		return nil, err
	}

	if _, err := e.resolveSide(ctx, input.RecipientID, domain.SideRecipient); err != nil {
		return nil, err
	}

	if input.IdempotencyKey != "" {
		record, err := e.findReplay(ctx, input)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
	}

	// Advisory precheck; the authoritative check runs again under the locks.
	if err := sender.CanDebit(input.Amount); err != nil {
		return nil, err
	}

	// Lock both accounts, smaller ID first. A deadline elapsing here leaves
	// no partial state: lockPair either holds both locks or none.
	lockStart := time.Now()
	unlock, err := e.locker.lockPair(ctx, input.SenderID, input.RecipientID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if e.metrics != nil {
		e.metrics.LockWaitDuration.Observe(time.Since(lockStart).Seconds())
	}

	record, err := e.commit(ctx, input)
	if err != nil {
		// Another instance may have committed the same idempotent request
		// between our replay check and the append; the storage constraint is
		// the backstop, and its violation means the record already exists.
		if input.IdempotencyKey != "" && errors.Is(err, domain.ErrIdempotencyKeyReuse) {
			if record, replayErr := e.findReplay(ctx, input); replayErr == nil && record != nil {
				return record, nil
			}
		}

		return nil, err
	}

	e.invalidateCached(ctx, input.SenderID, input.RecipientID)

	return record, nil
}

// commit runs the balance mutations and the ledger append inside one storage
// transaction. Both locks are held by the caller for the full duration.
func (e *TransferEngine) commit(ctx context.Context, input TransferInput) (*domain.TransferRecord, error) {
	tx, err := e.txManager.Begin(ctx)
	if err != nil {
		return nil, &domain.StorageUnavailableError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	sender, err := e.resolveSideTx(ctx, tx, input.SenderID, domain.SideSender)
	if err != nil {
		return nil, err
	}

	recipient, err := e.resolveSideTx(ctx, tx, input.RecipientID, domain.SideRecipient)
	if err != nil {
		return nil, err
	}

	// Re-check: an earlier transfer may have drained the sender while this
	// one was queued for the locks.
	if err := sender.CanDebit(input.Amount); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	senderBalance := sender.ApplyDebit(input.Amount)
	recipientBalance := recipient.ApplyCredit(input.Amount)

	if err := e.accounts.AtomicUpdate(ctx, tx, sender.ID, sender.Version, senderBalance, now); err != nil {
		return nil, err
	}

	if err := e.accounts.AtomicUpdate(ctx, tx, recipient.ID, recipient.Version, recipientBalance, now); err != nil {
		return nil, err
	}

	record := &domain.TransferRecord{
		ID:                    e.idGen.Generate(),
		SenderID:              input.SenderID,
		RecipientID:           input.RecipientID,
		Amount:                input.Amount,
		SenderBalanceAfter:    senderBalance,
		RecipientBalanceAfter: recipientBalance,
		CreatedAt:             now,
	}
	if input.IdempotencyKey != "" {
		key := input.IdempotencyKey
		record.IdempotencyKey = &key
	}

	if err := e.ledger.Append(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &domain.StorageUnavailableError{Op: "commit", Err: err}
	}

	return record, nil
}

// findReplay returns the previously committed record for the same sender and
// idempotency key, nil when none exists, or domain.ErrIdempotencyKeyReuse when
// the key was used with a different payload.
func (e *TransferEngine) findReplay(ctx context.Context, input TransferInput) (*domain.TransferRecord, error) {
	record, err := e.ledger.FindByIdempotencyKey(ctx, input.SenderID, input.IdempotencyKey)
	if err != nil {
		if errors.Is(err, domain.ErrTransferNotFound) {
			return nil, nil
		}

		return nil, err
	}

	if !record.Matches(input.SenderID, input.RecipientID, input.Amount) {
		return nil, domain.ErrIdempotencyKeyReuse
	}

	return record, nil
}

func (e *TransferEngine) resolveSide(ctx context.Context, id, side string) (*domain.Account, error) {
	account, err := e.accounts.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, &domain.AccountNotFoundError{Side: side, ID: id}
		}

		return nil, err
	}

	return account, nil
}

func (e *TransferEngine) resolveSideTx(ctx context.Context, tx Transaction, id, side string) (*domain.Account, error) {
	account, err := e.accounts.ResolveTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, &domain.AccountNotFoundError{Side: side, ID: id}
		}

		return nil, err
	}

	return account, nil
}

// transferErrorType buckets an error for the transfer error counter.
func transferErrorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrSelfTransfer):
		return "self_transfer"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, domain.ErrIdempotencyKeyReuse):
		return "idempotency_key_reuse"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "other"
	}
}

func (e *TransferEngine) invalidateCached(ctx context.Context, accountIDs ...string) {
	if e.cache == nil {
		return
	}

	for _, id := range accountIDs {
		_ = e.cache.Delete(ctx, accountCacheKey(id))
	}
}
