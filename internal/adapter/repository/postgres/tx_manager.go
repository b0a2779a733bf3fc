package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"banking/internal/domain"
	"banking/internal/usecase"
)

// txBeginner is the slice of the pool the manager needs; tests substitute a
// mock pool through it.
type txBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// TxManager implements usecase.TransactionManager on a pgx pool. The transfer
// engine opens one transaction per commit and holds both account locks for
// its full duration, so transactions stay short-lived.
type TxManager struct {
	pool txBeginner
}

// NewTxManager creates a new TxManager.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return newTxManager(pool)
}

func newTxManager(pool txBeginner) *TxManager {
	return &TxManager{pool: pool}
}

// Begin starts a new transaction. Failure to obtain one is a connectivity
// problem, classified as storage-unavailable so keyed requests may retry.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, &domain.StorageUnavailableError{Op: "begin transaction", Err: err}
	}

	return &Tx{tx: tx}, nil
}

// Tx adapts a pgx transaction to usecase.Transaction.
type Tx struct {
	tx pgx.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback rolls back the transaction. After a successful commit it returns
// pgx.ErrTxClosed, which deferred callers ignore.
func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// PgxTx returns the underlying pgx.Tx for repositories that need to run
// statements inside the transaction.
func (t *Tx) PgxTx() pgx.Tx {
	return t.tx
}
