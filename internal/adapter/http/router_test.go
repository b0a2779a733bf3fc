package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"banking/internal/adapter/http/handler"
	apimiddleware "banking/internal/adapter/http/middleware"
	"banking/internal/domain"
	"banking/internal/usecase"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimit = 1
		cfg.RateBurst = 1
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	body := `{"sender_id":"acc-1","recipient_id":"acc-2","amount":"10"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if !store.checkCalled {
		t.Fatalf("expected idempotency store to be used")
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"POST /api/v1/accounts/",
		"GET /api/v1/accounts/",
		"GET /api/v1/accounts/{id}",
		"GET /api/v1/accounts/{id}/transfers",
		"POST /api/v1/transfers/",
		"GET /api/v1/transfers/",
		"GET /api/v1/transfers/{id}",
		"GET /api/v1/ledger/consistency",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	accountHandler := handler.NewAccountHandler(&stubAccountService{})
	transferHandler := handler.NewTransferHandler(&stubTransferService{}, &stubLedgerReader{}, nil)
	ledgerHandler := handler.NewLedgerHandler(usecase.NewLedgerUseCase(&stubLedgerWriter{}, nil))

	cfg := RouterConfig{
		HealthHandler:   &handler.HealthHandler{},
		AccountHandler:  accountHandler,
		TransferHandler: transferHandler,
		LedgerHandler:   ledgerHandler,
		Logger:          zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubAccountService struct{}

func (stubAccountService) CreateAccount(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error) {
	return &domain.Account{ID: "acc"}, nil
}

func (stubAccountService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return &domain.Account{ID: id}, nil
}

func (stubAccountService) ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error) {
	return []*domain.Account{}, nil
}

type stubTransferService struct{}

func (stubTransferService) Transfer(ctx context.Context, input usecase.TransferInput) (*domain.TransferRecord, error) {
	return &domain.TransferRecord{ID: "transfer"}, nil
}

type stubLedgerReader struct{}

func (stubLedgerReader) GetTransfer(ctx context.Context, id string) (*domain.TransferRecord, error) {
	return &domain.TransferRecord{ID: id}, nil
}

func (stubLedgerReader) ListTransfers(ctx context.Context, input usecase.ListTransfersInput) ([]*domain.TransferRecord, error) {
	return []*domain.TransferRecord{}, nil
}

func (stubLedgerReader) ListTransfersByAccount(ctx context.Context, input usecase.ListTransfersByAccountInput) ([]*domain.TransferRecord, error) {
	return []*domain.TransferRecord{}, nil
}

type stubLedgerWriter struct{}

func (stubLedgerWriter) Append(ctx context.Context, tx usecase.Transaction, record *domain.TransferRecord) error {
	return nil
}

func (stubLedgerWriter) GetByID(ctx context.Context, id string) (*domain.TransferRecord, error) {
	return &domain.TransferRecord{ID: id}, nil
}

func (stubLedgerWriter) List(ctx context.Context, limit, offset int) ([]*domain.TransferRecord, error) {
	return []*domain.TransferRecord{}, nil
}

func (stubLedgerWriter) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.TransferRecord, error) {
	return []*domain.TransferRecord{}, nil
}

func (stubLedgerWriter) FindByIdempotencyKey(ctx context.Context, senderID, key string) (*domain.TransferRecord, error) {
	return nil, domain.ErrTransferNotFound
}

func (stubLedgerWriter) CheckConsistency(ctx context.Context) (decimal.Decimal, int64, error) {
	return decimal.Zero, 0, nil
}

type stubIdempotencyStore struct {
	checkCalled bool
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.checkCalled = true
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return nil
}
