package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/audit"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/categorize"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/extract"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/ingest"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/ledger"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/middleware"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store/memstore"
)

const testOwner = "owner-1"

type fixedClassifier struct{}

func (fixedClassifier) Classify(ctx context.Context, description string, amount decimal.Decimal) categorize.Result {
	return categorize.Result{Category: domain.CategoryDining, IsAutoCategorized: true}
}

func newTestHandler(t *testing.T) (*LedgerHandler, *APIHandler, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	st.Seed(&domain.Account{
		ID:      "bank-1",
		OwnerID: testOwner,
		Name:    "Everyday",
		Kind:    domain.KindBank,
		Balance: decimal.RequireFromString("100.00"),
	})

	log := zerolog.Nop()
	auditLog := audit.NewLog(st, log)
	engine := ledger.NewEngine(st, fixedClassifier{}, auditLog, log)
	pipeline := ingest.NewPipeline(st, extract.NewPattern(), extract.NewPattern(), fixedClassifier{}, auditLog, log)
	return NewLedgerHandler(engine, pipeline, log), NewAPIHandler(st, log), st
}

func authedRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := context.WithValue(r.Context(), middleware.OwnerIDKey, testOwner)
	return r.WithContext(ctx)
}

func TestApplyTransactionEndpoint(t *testing.T) {
	h, _, st := newTestHandler(t)

	w := httptest.NewRecorder()
	h.ApplyTransaction(w, authedRequest(http.MethodPost, "/api/transactions",
		`{"type":"Expense","amount":"40.00","fromAccountId":"bank-1","description":"coffee"}`))

	require.Equal(t, http.StatusOK, w.Code)

	var result ledger.ApplyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.TypeExpense, result.Transaction.Type)
	assert.True(t, result.UpdatedBalances["bank-1"].Equal(decimal.RequireFromString("60.00")))

	bank, err := st.GetAccount(context.Background(), "bank-1")
	require.NoError(t, err)
	assert.True(t, bank.Balance.Equal(decimal.RequireFromString("60.00")))
}

func TestApplyTransactionErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "malformed JSON",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "validation error",
			body:       `{"type":"Expense","amount":"40.00"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown account",
			body:       `{"type":"Expense","amount":"40.00","fromAccountId":"nope"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "insufficient funds",
			body:       `{"type":"Expense","amount":"500.00","fromAccountId":"bank-1"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTestHandler(t)
			w := httptest.NewRecorder()
			h.ApplyTransaction(w, authedRequest(http.MethodPost, "/api/transactions", tt.body))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestApplyTransactionRequiresAuth(t *testing.T) {
	h, _, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(`{}`))
	h.ApplyTransaction(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecordSettlementEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.RecordSettlement(w, authedRequest(http.MethodPost, "/api/settlements",
		`{"sourceAccountId":"bank-1","counterpartyName":"Alice","amount":"25.00","isOutgoing":true}`))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		CounterpartyAccountID string `json:"counterpartyAccountId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.AccountDocID(testOwner, domain.KindPerson, "alice"), resp.CounterpartyAccountID)
}

func TestIngestStatementEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t)

	doc := "05 Jan 2024  COFFEE CORNER   -4.50   95.50"
	body, err := json.Marshal(map[string]string{
		"documentText":    doc,
		"sourceAccountId": "bank-1",
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.IngestStatement(w, authedRequest(http.MethodPost, "/api/statements/ingest", string(body)))

	require.Equal(t, http.StatusOK, w.Code)
	var result ingest.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Processed, 1)
	assert.True(t, result.FinalBalance.Equal(decimal.RequireFromString("95.50")))
}

func TestIngestStatementNoCandidates(t *testing.T) {
	h, _, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.IngestStatement(w, authedRequest(http.MethodPost, "/api/statements/ingest",
		`{"documentText":"nothing here","sourceAccountId":"bank-1"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetAccountsEndpoint(t *testing.T) {
	_, api, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	api.GetAccounts(w, authedRequest(http.MethodGet, "/api/accounts", ""))

	require.Equal(t, http.StatusOK, w.Code)
	var accounts []*domain.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "bank-1", accounts[0].ID)
}

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
