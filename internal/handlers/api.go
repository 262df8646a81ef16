// Package handlers wires the HTTP surface to the ledger engine and the
// ingestion pipeline. Request parsing stays dumb; all semantics live behind
// the handlers.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/middleware"
)

// Reader is the read-only slice of the store the API handlers need.
type Reader interface {
	ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error)
	ListTransactions(ctx context.Context, ownerID string) ([]*domain.Transaction, error)
}

// APIHandler serves the read-only API endpoints.
type APIHandler struct {
	reader Reader
	logger zerolog.Logger
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(reader Reader, logger zerolog.Logger) *APIHandler {
	return &APIHandler{reader: reader, logger: logger}
}

// GetAccounts handles GET /api/accounts.
func (h *APIHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	accounts, err := h.reader.ListAccounts(r.Context(), ownerID)
	if err != nil {
		h.logger.Error().Err(err).Str("ownerId", ownerID).Msg("failed to list accounts")
		http.Error(w, "Failed to fetch accounts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, accounts)
}

// GetTransactions handles GET /api/transactions.
func (h *APIHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	txns, err := h.reader.ListTransactions(r.Context(), ownerID)
	if err != nil {
		h.logger.Error().Err(err).Str("ownerId", ownerID).Msg("failed to list transactions")
		http.Error(w, "Failed to fetch transactions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, txns)
}

// HealthCheck handles GET /health.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
