package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"banking/internal/domain"
	"banking/internal/usecase"
)

const pgErrUniqueViolation = "23505"

// AccountRepository implements usecase.AccountStore.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const createAccountSQL = `
INSERT INTO accounts (id, name, email, balance, initial_balance, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.pool.Exec(ctx, createAccountSQL,
		account.ID,
		account.Name,
		account.Email,
		decimalToNumeric(account.Balance),
		decimalToNumeric(account.InitialBalance),
		account.Version,
		timeToPgTimestamptz(account.CreatedAt),
		timeToPgTimestamptz(account.UpdatedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return domain.ErrAccountExists
		}

		return &domain.StorageUnavailableError{Op: "create account", Err: err}
	}

	return nil
}

const selectAccountSQL = `
SELECT id, name, email, balance, initial_balance, version, created_at, updated_at
FROM accounts
WHERE id = $1`

// Resolve retrieves an account by ID.
func (r *AccountRepository) Resolve(ctx context.Context, id string) (*domain.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, selectAccountSQL, id))
}

// ResolveTx retrieves an account by ID inside a transaction, so the read
// reflects every write already committed before the transaction began.
func (r *AccountRepository) ResolveTx(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	pgxTx := tx.(*Tx).PgxTx()

	return scanAccount(pgxTx.QueryRow(ctx, selectAccountSQL, id))
}

const updateBalanceSQL = `
UPDATE accounts
SET balance = $2, version = version + 1, updated_at = $3
WHERE id = $1 AND version = $4`

// AtomicUpdate applies a balance write guarded by the account version. Zero
// rows updated means the version moved underneath us.
func (r *AccountRepository) AtomicUpdate(ctx context.Context, tx usecase.Transaction, id string, expectedVersion int64, newBalance decimal.Decimal, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, updateBalanceSQL,
		id,
		decimalToNumeric(newBalance),
		timeToPgTimestamptz(updatedAt),
		expectedVersion,
	)
	if err != nil {
		return &domain.StorageUnavailableError{Op: "update balance", Err: err}
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrentModification
	}

	return nil
}

const listAccountsSQL = `
SELECT id, name, email, balance, initial_balance, version, created_at, updated_at
FROM accounts
ORDER BY created_at, id
LIMIT $1 OFFSET $2`

// List lists accounts with pagination.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, listAccountsSQL, limit, offset)
	if err != nil {
		return nil, &domain.StorageUnavailableError{Op: "list accounts", Err: err}
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageUnavailableError{Op: "list accounts", Err: err}
	}

	return accounts, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account        domain.Account
		balance        pgtype.Numeric
		initialBalance pgtype.Numeric
		createdAt      pgtype.Timestamptz
		updatedAt      pgtype.Timestamptz
	)

	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&balance,
		&initialBalance,
		&account.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, &domain.StorageUnavailableError{Op: "read account", Err: err}
	}

	account.Balance = numericToDecimal(balance)
	account.InitialBalance = numericToDecimal(initialBalance)
	account.CreatedAt = createdAt.Time
	account.UpdatedAt = updatedAt.Time

	return &account, nil
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}

	d, _ := decimal.NewFromString(n.Int.String())
	if n.Exp != 0 {
		d = d.Shift(n.Exp)
	}

	return d
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
