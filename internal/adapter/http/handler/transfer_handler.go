package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"banking/internal/adapter/http/dto"
	"banking/internal/domain"
	"banking/internal/usecase"
)

// TransferService defines the behavior needed by TransferHandler.
type TransferService interface {
	Transfer(ctx context.Context, input usecase.TransferInput) (*domain.TransferRecord, error)
}

// LedgerReader defines read access to the transfer ledger.
type LedgerReader interface {
	GetTransfer(ctx context.Context, id string) (*domain.TransferRecord, error)
	ListTransfers(ctx context.Context, input usecase.ListTransfersInput) ([]*domain.TransferRecord, error)
	ListTransfersByAccount(ctx context.Context, input usecase.ListTransfersByAccountInput) ([]*domain.TransferRecord, error)
}

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	engine  TransferService
	ledger  LedgerReader
	retrier usecase.Retrier
}

// NewTransferHandler creates a new TransferHandler. retrier is optional; when
// set, transient storage failures are retried for requests that carry an
// idempotency key. Requests without a key are never retried.
func NewTransferHandler(engine TransferService, ledger LedgerReader, retrier usecase.Retrier) *TransferHandler {
	return &TransferHandler{
		engine:  engine,
		ledger:  ledger,
		retrier: retrier,
	}
}

// Create creates a new transfer.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input := req.ToUseCaseInput(r.Header.Get("Idempotency-Key"))

	record, err := h.execute(r.Context(), input)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to create transfer", err.Error())

		return
	}

	writeJSON(w, http.StatusCreated, dto.TransferFromDomain(record))
}

// execute runs the transfer, retrying transient storage failures only when an
// idempotency key makes the retry safe.
func (h *TransferHandler) execute(ctx context.Context, input usecase.TransferInput) (*domain.TransferRecord, error) {
	if h.retrier == nil || input.IdempotencyKey == "" {
		return h.engine.Transfer(ctx, input)
	}

	var record *domain.TransferRecord
	err := h.retrier.Retry(ctx, func() error {
		var err error
		record, err = h.engine.Transfer(ctx, input)
		return err
	})

	return record, err
}

// Get retrieves a transfer by ID.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transfer ID", "")
		return
	}

	record, err := h.ledger.GetTransfer(r.Context(), id)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get transfer", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.TransferFromDomain(record))
}

// List lists all transfers, newest first.
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	records, err := h.ledger.ListTransfers(r.Context(), usecase.ListTransfersInput{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list transfers", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransfersFromDomain(records))
}

// ListByAccount lists transfers for an account.
func (h *TransferHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	records, err := h.ledger.ListTransfersByAccount(r.Context(), usecase.ListTransfersByAccountInput{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list transfers", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransfersFromDomain(records))
}
