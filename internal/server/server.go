// Package server assembles the ledger HTTP API: Firestore-backed store,
// Gemini adapters, engine, pipeline, and routes.
package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/audit"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/categorize"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/extract"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/handlers"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/ingest"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/ledger"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/middleware"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store/firestorestore"
)

// Config holds server construction parameters.
type Config struct {
	ProjectID string
	// Model overrides the default Gemini model for both classification and
	// extraction when non-empty.
	Model string
}

// Server is the ledger API server.
type Server struct {
	client *firestorestore.Client
	mux    *http.ServeMux
	logger zerolog.Logger
}

// New creates a server instance with all collaborators wired.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Server, error) {
	client, err := firestorestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}

	classifier, err := categorize.NewGemini(ctx, cfg.Model, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	extractor, err := extract.NewGemini(ctx, cfg.Model, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	auditLog := audit.NewLog(client, logger)
	engine := ledger.NewEngine(client, classifier, auditLog, logger)
	pipeline := ingest.NewPipeline(client, extractor, extract.NewPattern(), classifier, auditLog, logger)

	s := &Server{
		client: client,
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.setupRoutes(engine, pipeline)
	return s, nil
}

func (s *Server) setupRoutes(engine *ledger.Engine, pipeline *ingest.Pipeline) {
	// Health check (no auth required)
	s.mux.HandleFunc("/health", handlers.HealthCheck)

	apiHandler := handlers.NewAPIHandler(s.client, s.logger)
	ledgerHandler := handlers.NewLedgerHandler(engine, pipeline, s.logger)
	authMiddleware := middleware.NewAuthMiddleware(s.client.Auth)

	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.RequireAuth(h)
	}

	s.mux.Handle("GET /api/accounts", protected(apiHandler.GetAccounts))
	s.mux.Handle("GET /api/transactions", protected(apiHandler.GetTransactions))
	s.mux.Handle("POST /api/transactions", protected(ledgerHandler.ApplyTransaction))
	s.mux.Handle("POST /api/settlements", protected(ledgerHandler.RecordSettlement))
	s.mux.Handle("POST /api/statements/ingest", protected(ledgerHandler.IngestStatement))
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return middleware.CORS(s.mux)
}

// Close closes the server resources.
func (s *Server) Close() error {
	return s.client.Close()
}
