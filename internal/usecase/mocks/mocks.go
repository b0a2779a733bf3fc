// Package mocks provides in-memory implementations of the usecase interfaces.
// The defaults model the real storage contract closely enough for concurrency
// tests: versioned compare-and-swap updates, idempotency-key uniqueness, and
// writes that only become visible when the transaction commits.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"banking/internal/domain"
	"banking/internal/usecase"
)

// MockTransaction buffers writes until Commit. Rollback discards them.
type MockTransaction struct {
	mu     sync.Mutex
	staged []func()
	done   bool

	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

// Stage queues a write to apply on Commit.
func (t *MockTransaction) Stage(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.staged = append(t.staged, fn)
}

func (t *MockTransaction) Commit(ctx context.Context) error {
	if t.CommitFunc != nil {
		return t.CommitFunc(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	for _, fn := range t.staged {
		fn()
	}
	return nil
}

func (t *MockTransaction) Rollback(ctx context.Context) error {
	if t.RollbackFunc != nil {
		return t.RollbackFunc(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.staged = nil
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockAccountStore is a mock implementation of AccountStore.
type MockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account

	CreateFunc       func(ctx context.Context, account *domain.Account) error
	ResolveFunc      func(ctx context.Context, id string) (*domain.Account, error)
	ResolveTxFunc    func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error)
	AtomicUpdateFunc func(ctx context.Context, tx usecase.Transaction, id string, expectedVersion int64, newBalance decimal.Decimal, updatedAt time.Time) error
	ListFunc         func(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

func NewMockAccountStore() *MockAccountStore {
	return &MockAccountStore{accounts: make(map[string]*domain.Account)}
}

// Put seeds an account directly, bypassing validation.
func (m *MockAccountStore) Put(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *account
	m.accounts[account.ID] = &cp
}

func (m *MockAccountStore) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.ID]; ok {
		return domain.ErrAccountExists
	}
	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

func (m *MockAccountStore) Resolve(ctx context.Context, id string) (*domain.Account, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *MockAccountStore) ResolveTx(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	if m.ResolveTxFunc != nil {
		return m.ResolveTxFunc(ctx, tx, id)
	}
	return m.Resolve(ctx, id)
}

func (m *MockAccountStore) AtomicUpdate(ctx context.Context, tx usecase.Transaction, id string, expectedVersion int64, newBalance decimal.Decimal, updatedAt time.Time) error {
	if m.AtomicUpdateFunc != nil {
		return m.AtomicUpdateFunc(ctx, tx, id, expectedVersion, newBalance, updatedAt)
	}
	m.mu.Lock()
	acc, ok := m.accounts[id]
	if !ok {
		m.mu.Unlock()
		return domain.ErrAccountNotFound
	}
	if acc.Version != expectedVersion {
		m.mu.Unlock()
		return domain.ErrConcurrentModification
	}
	m.mu.Unlock()

	apply := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if acc, ok := m.accounts[id]; ok {
			acc.Balance = newBalance
			acc.Version++
			acc.UpdatedAt = updatedAt
		}
	}

	if mt, ok := tx.(*MockTransaction); ok && mt != nil {
		mt.Stage(apply)
	} else {
		apply()
	}
	return nil
}

func (m *MockAccountStore) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	accounts := make([]*domain.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		cp := *acc
		accounts = append(accounts, &cp)
	}
	return accounts, nil
}

// MockLedgerWriter is a mock implementation of LedgerWriter.
type MockLedgerWriter struct {
	mu      sync.Mutex
	records []*domain.TransferRecord
	byID    map[string]*domain.TransferRecord
	byKey   map[string]*domain.TransferRecord

	AppendFunc               func(ctx context.Context, tx usecase.Transaction, record *domain.TransferRecord) error
	GetByIDFunc              func(ctx context.Context, id string) (*domain.TransferRecord, error)
	ListFunc                 func(ctx context.Context, limit, offset int) ([]*domain.TransferRecord, error)
	ListByAccountFunc        func(ctx context.Context, accountID string, limit, offset int) ([]*domain.TransferRecord, error)
	FindByIdempotencyKeyFunc func(ctx context.Context, senderID, key string) (*domain.TransferRecord, error)
	CheckConsistencyFunc     func(ctx context.Context) (decimal.Decimal, int64, error)
}

func NewMockLedgerWriter() *MockLedgerWriter {
	return &MockLedgerWriter{
		byID:  make(map[string]*domain.TransferRecord),
		byKey: make(map[string]*domain.TransferRecord),
	}
}

func keyFor(senderID, key string) string {
	return fmt.Sprintf("%s\x00%s", senderID, key)
}

func (m *MockLedgerWriter) Append(ctx context.Context, tx usecase.Transaction, record *domain.TransferRecord) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, record)
	}
	m.mu.Lock()
	if record.IdempotencyKey != nil {
		if _, ok := m.byKey[keyFor(record.SenderID, *record.IdempotencyKey)]; ok {
			m.mu.Unlock()
			return domain.ErrIdempotencyKeyReuse
		}
	}
	m.mu.Unlock()

	cp := *record
	apply := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.records = append(m.records, &cp)
		m.byID[cp.ID] = &cp
		if cp.IdempotencyKey != nil {
			m.byKey[keyFor(cp.SenderID, *cp.IdempotencyKey)] = &cp
		}
	}

	if mt, ok := tx.(*MockTransaction); ok && mt != nil {
		mt.Stage(apply)
	} else {
		apply()
	}
	return nil
}

func (m *MockLedgerWriter) GetByID(ctx context.Context, id string) (*domain.TransferRecord, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockLedgerWriter) List(ctx context.Context, limit, offset int) ([]*domain.TransferRecord, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return paginateDesc(m.records, limit, offset), nil
}

func (m *MockLedgerWriter) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.TransferRecord, error) {
	if m.ListByAccountFunc != nil {
		return m.ListByAccountFunc(ctx, accountID, limit, offset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var filtered []*domain.TransferRecord
	for _, rec := range m.records {
		if rec.SenderID == accountID || rec.RecipientID == accountID {
			filtered = append(filtered, rec)
		}
	}
	return paginateDesc(filtered, limit, offset), nil
}

func (m *MockLedgerWriter) FindByIdempotencyKey(ctx context.Context, senderID, key string) (*domain.TransferRecord, error) {
	if m.FindByIdempotencyKeyFunc != nil {
		return m.FindByIdempotencyKeyFunc(ctx, senderID, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byKey[keyFor(senderID, key)]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockLedgerWriter) CheckConsistency(ctx context.Context) (decimal.Decimal, int64, error) {
	if m.CheckConsistencyFunc != nil {
		return m.CheckConsistencyFunc(ctx)
	}
	return decimal.Zero, 0, nil
}

// Records returns the committed records in commit order.
func (m *MockLedgerWriter) Records() []*domain.TransferRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.TransferRecord, len(m.records))
	for i, rec := range m.records {
		cp := *rec
		out[i] = &cp
	}
	return out
}

// paginateDesc returns a page of records in reverse commit order (newest first).
func paginateDesc(records []*domain.TransferRecord, limit, offset int) []*domain.TransferRecord {
	out := make([]*domain.TransferRecord, 0, limit)
	for i := len(records) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *records[i]
		out = append(out, &cp)
	}
	return out
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	counter atomic.Int64

	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	return fmt.Sprintf("id-%06d", m.counter.Add(1))
}

// MockCache is a mock implementation of Cache. TTLs are ignored.
type MockCache struct {
	mu      sync.Mutex
	entries map[string][]byte

	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
}

func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[string][]byte)}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key], nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
