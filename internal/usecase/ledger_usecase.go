package usecase

import (
	"context"
	"errors"

	"banking/internal/domain"
	"banking/internal/infrastructure/metrics"
)

// ErrInconsistentLedger is returned when replaying the ledger does not
// reproduce the current account balances.
var ErrInconsistentLedger = errors.New("ledger is inconsistent: records do not reproduce balances")

// LedgerUseCase handles read access to the transfer ledger.
type LedgerUseCase struct {
	ledger  LedgerWriter
	metrics *metrics.Metrics
}

// NewLedgerUseCase creates a new LedgerUseCase. metrics is optional.
func NewLedgerUseCase(ledger LedgerWriter, metrics *metrics.Metrics) *LedgerUseCase {
	return &LedgerUseCase{ledger: ledger, metrics: metrics}
}

// GetTransfer retrieves a transfer record by ID.
func (uc *LedgerUseCase) GetTransfer(ctx context.Context, id string) (*domain.TransferRecord, error) {
	return uc.ledger.GetByID(ctx, id)
}

// ListTransfersInput represents input for listing transfers.
type ListTransfersInput struct {
	Limit  int
	Offset int
}

// ListTransfers lists all transfer records, newest first.
func (uc *LedgerUseCase) ListTransfers(ctx context.Context, input ListTransfersInput) ([]*domain.TransferRecord, error) {
	limit, offset := clampPagination(input.Limit, input.Offset)

	return uc.ledger.List(ctx, limit, offset)
}

// ListTransfersByAccountInput represents input for listing an account's transfers.
type ListTransfersByAccountInput struct {
	AccountID string
	Limit     int
	Offset    int
}

// ListTransfersByAccount lists transfers touching an account, newest first.
func (uc *LedgerUseCase) ListTransfersByAccount(ctx context.Context, input ListTransfersByAccountInput) ([]*domain.TransferRecord, error) {
	limit, offset := clampPagination(input.Limit, input.Offset)

	return uc.ledger.ListByAccount(ctx, input.AccountID, limit, offset)
}

// CheckConsistency verifies the conservation invariant: the total of all
// balances equals the total of all opening balances, and every account's
// balance equals its opening balance plus the sum of its signed transfer
// amounts.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (bool, error) {
	drift, mismatched, err := uc.ledger.CheckConsistency(ctx)
	if err != nil {
		return false, err
	}

	consistent := drift.IsZero() && mismatched == 0

	if uc.metrics != nil {
		result := "consistent"
		gauge := 1.0
		if !consistent {
			result = "inconsistent"
			gauge = 0
		}
		uc.metrics.ConsistencyChecks.WithLabelValues(result).Inc()
		uc.metrics.LedgerConsistent.Set(gauge)
	}

	if !consistent {
		return false, ErrInconsistentLedger
	}

	return true, nil
}

func clampPagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
