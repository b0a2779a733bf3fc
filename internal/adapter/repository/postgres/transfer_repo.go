package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"banking/internal/domain"
	"banking/internal/usecase"
)

// TransferRepository implements usecase.LedgerWriter. Records are write-once:
// there is no update or delete path, and the partial unique index on
// (sender_id, idempotency_key) is the backstop against double-application.
type TransferRepository struct {
	pool *pgxpool.Pool
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{pool: pool}
}

const appendTransferSQL = `
INSERT INTO transfers (id, sender_id, recipient_id, amount, sender_balance_after, recipient_balance_after, created_at, idempotency_key)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Append writes a transfer record inside the commit transaction.
func (r *TransferRepository) Append(ctx context.Context, tx usecase.Transaction, record *domain.TransferRecord) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, appendTransferSQL,
		record.ID,
		record.SenderID,
		record.RecipientID,
		decimalToNumeric(record.Amount),
		decimalToNumeric(record.SenderBalanceAfter),
		decimalToNumeric(record.RecipientBalanceAfter),
		timeToPgTimestamptz(record.CreatedAt),
		record.IdempotencyKey,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return domain.ErrIdempotencyKeyReuse
		}

		return &domain.StorageUnavailableError{Op: "append transfer", Err: err}
	}

	return nil
}

const selectTransferSQL = `
SELECT id, sender_id, recipient_id, amount, sender_balance_after, recipient_balance_after, created_at, idempotency_key
FROM transfers`

// GetByID retrieves a transfer record by ID.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.TransferRecord, error) {
	return scanTransfer(r.pool.QueryRow(ctx, selectTransferSQL+" WHERE id = $1", id))
}

// List lists all transfer records, newest first.
func (r *TransferRepository) List(ctx context.Context, limit, offset int) ([]*domain.TransferRecord, error) {
	rows, err := r.pool.Query(ctx,
		selectTransferSQL+" ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, &domain.StorageUnavailableError{Op: "list transfers", Err: err}
	}
	defer rows.Close()

	return collectTransfers(rows)
}

// ListByAccount lists transfers touching an account, newest first.
func (r *TransferRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.TransferRecord, error) {
	rows, err := r.pool.Query(ctx,
		selectTransferSQL+` WHERE sender_id = $1 OR recipient_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, &domain.StorageUnavailableError{Op: "list transfers by account", Err: err}
	}
	defer rows.Close()

	return collectTransfers(rows)
}

// FindByIdempotencyKey finds the record committed for a sender and key.
func (r *TransferRepository) FindByIdempotencyKey(ctx context.Context, senderID, key string) (*domain.TransferRecord, error) {
	return scanTransfer(r.pool.QueryRow(ctx,
		selectTransferSQL+" WHERE sender_id = $1 AND idempotency_key = $2",
		senderID, key))
}

const consistencySQL = `
SELECT
	COALESCE(SUM(balance - initial_balance), 0) AS drift,
	COUNT(*) FILTER (
		WHERE balance <> initial_balance
			+ COALESCE((SELECT SUM(t.amount) FROM transfers t WHERE t.recipient_id = accounts.id), 0)
			- COALESCE((SELECT SUM(t.amount) FROM transfers t WHERE t.sender_id = accounts.id), 0)
	) AS mismatched
FROM accounts`

// CheckConsistency computes the conservation drift across all accounts and
// the number of accounts whose balance cannot be reproduced by replaying
// their transfer records.
func (r *TransferRepository) CheckConsistency(ctx context.Context) (decimal.Decimal, int64, error) {
	var (
		drift      pgtype.Numeric
		mismatched int64
	)

	if err := r.pool.QueryRow(ctx, consistencySQL).Scan(&drift, &mismatched); err != nil {
		return decimal.Zero, 0, &domain.StorageUnavailableError{Op: "check consistency", Err: err}
	}

	return numericToDecimal(drift), mismatched, nil
}

func scanTransfer(row pgx.Row) (*domain.TransferRecord, error) {
	var (
		record                domain.TransferRecord
		amount                pgtype.Numeric
		senderBalanceAfter    pgtype.Numeric
		recipientBalanceAfter pgtype.Numeric
		createdAt             pgtype.Timestamptz
	)

	err := row.Scan(
		&record.ID,
		&record.SenderID,
		&record.RecipientID,
		&amount,
		&senderBalanceAfter,
		&recipientBalanceAfter,
		&createdAt,
		&record.IdempotencyKey,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}

		return nil, &domain.StorageUnavailableError{Op: "read transfer", Err: err}
	}

	record.Amount = numericToDecimal(amount)
	record.SenderBalanceAfter = numericToDecimal(senderBalanceAfter)
	record.RecipientBalanceAfter = numericToDecimal(recipientBalanceAfter)
	record.CreatedAt = createdAt.Time

	return &record, nil
}

func collectTransfers(rows pgx.Rows) ([]*domain.TransferRecord, error) {
	var records []*domain.TransferRecord
	for rows.Next() {
		record, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageUnavailableError{Op: "read transfers", Err: err}
	}

	return records, nil
}
