package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/ingest"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/ledger"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/middleware"
)

// LedgerHandler serves the mutating ledger endpoints.
type LedgerHandler struct {
	engine   *ledger.Engine
	pipeline *ingest.Pipeline
	logger   zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(engine *ledger.Engine, pipeline *ingest.Pipeline, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{engine: engine, pipeline: pipeline, logger: logger}
}

// ApplyTransaction handles POST /api/transactions.
func (h *LedgerHandler) ApplyTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var intent ledger.Intent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Apply(r.Context(), ownerID, intent)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, h.logger, result)
}

type settlementResponse struct {
	CounterpartyAccountID string `json:"counterpartyAccountId"`
}

// RecordSettlement handles POST /api/settlements.
func (h *LedgerHandler) RecordSettlement(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var params ledger.SettlementParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	counterpartyID, err := h.engine.RecordSettlement(r.Context(), ownerID, params)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, h.logger, settlementResponse{CounterpartyAccountID: counterpartyID})
}

type ingestRequest struct {
	DocumentText    string `json:"documentText"`
	SourceAccountID string `json:"sourceAccountId"`
}

// IngestStatement handles POST /api/statements/ingest.
func (h *LedgerHandler) IngestStatement(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.pipeline.IngestStatement(r.Context(), ownerID, req.DocumentText, req.SourceAccountID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, h.logger, result)
}

// writeLedgerError maps the ledger error taxonomy to HTTP statuses. Messages
// are safe to surface; they carry no internals beyond account IDs the caller
// already knows.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrAccountNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrCreditLimitExceeded),
		errors.Is(err, domain.ErrPaymentExceedsOwed),
		errors.Is(err, ingest.ErrNoTransactionsExtracted):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
