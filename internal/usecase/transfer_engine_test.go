package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"banking/internal/domain"
	"banking/internal/usecase"
	"banking/internal/usecase/mocks"
)

type engineFixture struct {
	engine   *usecase.TransferEngine
	accounts *mocks.MockAccountStore
	ledger   *mocks.MockLedgerWriter
	txMgr    *mocks.MockTransactionManager
}

func newEngineFixture(seed ...*domain.Account) *engineFixture {
	f := &engineFixture{
		accounts: mocks.NewMockAccountStore(),
		ledger:   mocks.NewMockLedgerWriter(),
		txMgr:    mocks.NewMockTransactionManager(),
	}

	for _, acc := range seed {
		f.accounts.Put(acc)
	}

	f.engine = usecase.NewTransferEngine(f.txMgr, f.accounts, f.ledger, mocks.NewMockIDGenerator(), nil, nil)

	return f
}

func account(id string, balance int64) *domain.Account {
	return &domain.Account{
		ID:             id,
		Balance:        decimal.NewFromInt(balance),
		InitialBalance: decimal.NewFromInt(balance),
	}
}

func TestTransferEngine_Transfer(t *testing.T) {
	tests := []struct {
		name      string
		seed      []*domain.Account
		input     usecase.TransferInput
		errorType error
	}{
		{
			name: "successful transfer",
			seed: []*domain.Account{account("acc-1", 1000), account("acc-2", 500)},
			input: usecase.TransferInput{
				SenderID:    "acc-1",
				RecipientID: "acc-2",
				Amount:      decimal.NewFromInt(200),
			},
		},
		{
			name: "reject self transfer",
			seed: []*domain.Account{account("acc-1", 1000)},
			input: usecase.TransferInput{
				SenderID:    "acc-1",
				RecipientID: "acc-1",
				Amount:      decimal.NewFromInt(100),
			},
			errorType: domain.ErrSelfTransfer,
		},
		{
			name: "reject non-positive amount",
			seed: []*domain.Account{account("acc-1", 1000), account("acc-2", 500)},
			input: usecase.TransferInput{
				SenderID:    "acc-1",
				RecipientID: "acc-2",
				Amount:      decimal.Zero,
			},
			errorType: domain.ErrInvalidAmount,
		},
		{
			name: "reject unknown sender",
			seed: []*domain.Account{account("acc-2", 500)},
			input: usecase.TransferInput{
				SenderID:    "acc-1",
				RecipientID: "acc-2",
				Amount:      decimal.NewFromInt(100),
			},
			errorType: domain.ErrAccountNotFound,
		},
		{
			name: "reject unknown recipient",
			seed: []*domain.Account{account("acc-1", 1000)},
			input: usecase.TransferInput{
				SenderID:    "acc-1",
				RecipientID: "acc-2",
				Amount:      decimal.NewFromInt(100),
			},
			errorType: domain.ErrAccountNotFound,
		},
		{
			name: "reject insufficient balance",
			seed: []*domain.Account{account("acc-1", 1000), account("acc-2", 500)},
			input: usecase.TransferInput{
				SenderID:    "acc-1",
				RecipientID: "acc-2",
				Amount:      decimal.NewFromInt(1500),
			},
			errorType: domain.ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(tt.seed...)

			record, err := f.engine.Transfer(context.Background(), tt.input)

			if tt.errorType != nil {
				if !errors.Is(err, tt.errorType) {
					t.Fatalf("expected error %v, got %v", tt.errorType, err)
				}
				if len(f.ledger.Records()) != 0 {
					t.Error("expected no record for rejected transfer")
				}
				// Rejection must leave every account untouched.
				for _, seeded := range tt.seed {
					acc, resolveErr := f.accounts.Resolve(context.Background(), seeded.ID)
					if resolveErr != nil {
						t.Fatalf("unexpected error: %v", resolveErr)
					}
					if !acc.Balance.Equal(seeded.Balance) {
						t.Errorf("account %s balance changed: %s -> %s", seeded.ID, seeded.Balance, acc.Balance)
					}
					if acc.Version != seeded.Version {
						t.Errorf("account %s version changed: %d -> %d", seeded.ID, seeded.Version, acc.Version)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if record == nil {
				t.Fatal("expected record, got nil")
			}
		})
	}
}

func TestTransferEngine_CommitSnapshot(t *testing.T) {
	f := newEngineFixture(account("acc-1", 1000), account("acc-2", 500))

	record, err := f.engine.Transfer(context.Background(), usecase.TransferInput{
		SenderID:    "acc-1",
		RecipientID: "acc-2",
		Amount:      decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !record.SenderBalanceAfter.Equal(decimal.NewFromInt(800)) {
		t.Errorf("expected sender balance after 800, got %s", record.SenderBalanceAfter)
	}
	if !record.RecipientBalanceAfter.Equal(decimal.NewFromInt(700)) {
		t.Errorf("expected recipient balance after 700, got %s", record.RecipientBalanceAfter)
	}

	sender, _ := f.accounts.Resolve(context.Background(), "acc-1")
	recipient, _ := f.accounts.Resolve(context.Background(), "acc-2")

	if !sender.Balance.Equal(decimal.NewFromInt(800)) {
		t.Errorf("expected sender balance 800, got %s", sender.Balance)
	}
	if !recipient.Balance.Equal(decimal.NewFromInt(700)) {
		t.Errorf("expected recipient balance 700, got %s", recipient.Balance)
	}
	if sender.Version != 1 || recipient.Version != 1 {
		t.Errorf("expected both versions incremented, got %d and %d", sender.Version, recipient.Version)
	}

	if len(f.ledger.Records()) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(f.ledger.Records()))
	}
}

func TestTransferEngine_InsufficientBalanceDetail(t *testing.T) {
	f := newEngineFixture(account("acc-1", 1000), account("acc-2", 500))

	_, err := f.engine.Transfer(context.Background(), usecase.TransferInput{
		SenderID:    "acc-1",
		RecipientID: "acc-2",
		Amount:      decimal.NewFromInt(1500),
	})

	var insufficientErr *domain.InsufficientBalanceError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if !insufficientErr.Available.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected available 1000, got %s", insufficientErr.Available)
	}
	if !insufficientErr.Required.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected required 1500, got %s", insufficientErr.Required)
	}
}

func TestTransferEngine_NotFoundNamesSide(t *testing.T) {
	f := newEngineFixture(account("acc-1", 1000))

	_, err := f.engine.Transfer(context.Background(), usecase.TransferInput{
		SenderID:    "acc-1",
		RecipientID: "missing",
		Amount:      decimal.NewFromInt(100),
	})

	var notFoundErr *domain.AccountNotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected AccountNotFoundError, got %v", err)
	}
	if notFoundErr.Side != domain.SideRecipient {
		t.Errorf("expected side %q, got %q", domain.SideRecipient, notFoundErr.Side)
	}
}

func TestTransferEngine_Idempotency(t *testing.T) {
	f := newEngineFixture(account("acc-1", 1000), account("acc-2", 500))

	input := usecase.TransferInput{
		SenderID:       "acc-1",
		RecipientID:    "acc-2",
		Amount:         decimal.NewFromInt(200),
		IdempotencyKey: "req-42",
	}

	first, err := f.engine.Transfer(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := f.engine.Transfer(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected replay to return original record, got %s and %s", first.ID, second.ID)
	}

	sender, _ := f.accounts.Resolve(context.Background(), "acc-1")
	if !sender.Balance.Equal(decimal.NewFromInt(800)) {
		t.Errorf("expected balance mutated exactly once, got %s", sender.Balance)
	}
	if len(f.ledger.Records()) != 1 {
		t.Errorf("expected exactly one record, got %d", len(f.ledger.Records()))
	}

	// Same key, different payload is a reuse, not a replay.
	input.Amount = decimal.NewFromInt(300)
	if _, err := f.engine.Transfer(context.Background(), input); !errors.Is(err, domain.ErrIdempotencyKeyReuse) {
		t.Errorf("expected ErrIdempotencyKeyReuse, got %v", err)
	}
}

func TestTransferEngine_AppendConflictReturnsExisting(t *testing.T) {
	f := newEngineFixture(account("acc-1", 1000), account("acc-2", 500))

	key := "req-7"
	committed := &domain.TransferRecord{
		ID:             "other-instance-id",
		SenderID:       "acc-1",
		RecipientID:    "acc-2",
		Amount:         decimal.NewFromInt(200),
		IdempotencyKey: &key,
	}

	// Another instance wins the race between the replay check and the append:
	// the lookup misses first, the storage constraint fires, the retry finds
	// the committed record.
	var lookups atomic.Int32
	f.ledger.FindByIdempotencyKeyFunc = func(ctx context.Context, senderID, k string) (*domain.TransferRecord, error) {
		if lookups.Add(1) == 1 {
			return nil, domain.ErrTransferNotFound
		}
		return committed, nil
	}
	f.ledger.AppendFunc = func(ctx context.Context, tx usecase.Transaction, record *domain.TransferRecord) error {
		return domain.ErrIdempotencyKeyReuse
	}

	record, err := f.engine.Transfer(context.Background(), usecase.TransferInput{
		SenderID:       "acc-1",
		RecipientID:    "acc-2",
		Amount:         decimal.NewFromInt(200),
		IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ID != committed.ID {
		t.Errorf("expected the already committed record, got %s", record.ID)
	}
}

func TestTransferEngine_AtomicityOnAppendFailure(t *testing.T) {
	f := newEngineFixture(account("acc-1", 1000), account("acc-2", 500))

	appendErr := &domain.StorageUnavailableError{Op: "append", Err: errors.New("connection reset")}
	f.ledger.AppendFunc = func(ctx context.Context, tx usecase.Transaction, record *domain.TransferRecord) error {
		return appendErr
	}

	_, err := f.engine.Transfer(context.Background(), usecase.TransferInput{
		SenderID:    "acc-1",
		RecipientID: "acc-2",
		Amount:      decimal.NewFromInt(200),
	})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}

	// The failed append must roll back the balance mutations with it.
	sender, _ := f.accounts.Resolve(context.Background(), "acc-1")
	recipient, _ := f.accounts.Resolve(context.Background(), "acc-2")
	if !sender.Balance.Equal(decimal.NewFromInt(1000)) || sender.Version != 0 {
		t.Errorf("sender mutated despite aborted commit: balance %s version %d", sender.Balance, sender.Version)
	}
	if !recipient.Balance.Equal(decimal.NewFromInt(500)) || recipient.Version != 0 {
		t.Errorf("recipient mutated despite aborted commit: balance %s version %d", recipient.Balance, recipient.Version)
	}
	if len(f.ledger.Records()) != 0 {
		t.Error("expected no record after aborted commit")
	}
}

func TestTransferEngine_ConcurrentModification(t *testing.T) {
	f := newEngineFixture(account("acc-1", 1000), account("acc-2", 500))

	f.accounts.AtomicUpdateFunc = func(ctx context.Context, tx usecase.Transaction, id string, expectedVersion int64, newBalance decimal.Decimal, updatedAt time.Time) error {
		return domain.ErrConcurrentModification
	}

	_, err := f.engine.Transfer(context.Background(), usecase.TransferInput{
		SenderID:    "acc-1",
		RecipientID: "acc-2",
		Amount:      decimal.NewFromInt(200),
	})
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	if len(f.ledger.Records()) != 0 {
		t.Error("expected no record when the version check loses the race")
	}
}

func TestTransferEngine_StorageUnavailable(t *testing.T) {
	f := newEngineFixture(account("acc-1", 1000), account("acc-2", 500))

	t.Run("begin fails", func(t *testing.T) {
		f.txMgr.BeginFunc = func(ctx context.Context) (usecase.Transaction, error) {
			return nil, errors.New("pool exhausted")
		}
		defer func() { f.txMgr.BeginFunc = nil }()

		_, err := f.engine.Transfer(context.Background(), usecase.TransferInput{
			SenderID:    "acc-1",
			RecipientID: "acc-2",
			Amount:      decimal.NewFromInt(100),
		})
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			t.Fatalf("expected ErrStorageUnavailable, got %v", err)
		}
	})

	t.Run("commit fails", func(t *testing.T) {
		f.txMgr.BeginFunc = func(ctx context.Context) (usecase.Transaction, error) {
			return &mocks.MockTransaction{
				CommitFunc: func(ctx context.Context) error { return errors.New("connection lost") },
			}, nil
		}
		defer func() { f.txMgr.BeginFunc = nil }()

		_, err := f.engine.Transfer(context.Background(), usecase.TransferInput{
			SenderID:    "acc-1",
			RecipientID: "acc-2",
			Amount:      decimal.NewFromInt(100),
		})
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			t.Fatalf("expected ErrStorageUnavailable, got %v", err)
		}

		sender, _ := f.accounts.Resolve(context.Background(), "acc-1")
		if !sender.Balance.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("expected balance unchanged after failed commit, got %s", sender.Balance)
		}
	})
}

func TestTransferEngine_DeadlineWhileQueuedForLocks(t *testing.T) {
	f := newEngineFixture(account("acc-1", 1000), account("acc-2", 500))

	// The first transfer parks inside the commit while holding both locks.
	blocker := make(chan struct{})
	var calls atomic.Int32
	f.accounts.ResolveTxFunc = func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
		if calls.Add(1) == 1 {
			<-blocker
		}
		return f.accounts.Resolve(ctx, id)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.engine.Transfer(context.Background(), usecase.TransferInput{
			SenderID:    "acc-1",
			RecipientID: "acc-2",
			Amount:      decimal.NewFromInt(100),
		})
		firstDone <- err
	}()

	// Give the first transfer time to take the locks.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.engine.Transfer(ctx, usecase.TransferInput{
		SenderID:    "acc-2",
		RecipientID: "acc-1",
		Amount:      decimal.NewFromInt(100),
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	close(blocker)
	if err := <-firstDone; err != nil {
		t.Fatalf("first transfer failed: %v", err)
	}

	// The timed-out attempt must have left no trace.
	if len(f.ledger.Records()) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(f.ledger.Records()))
	}

	sender, _ := f.accounts.Resolve(context.Background(), "acc-1")
	if !sender.Balance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("expected balance 900 from the completed transfer only, got %s", sender.Balance)
	}
}
