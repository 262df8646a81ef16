package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/audit"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/categorize"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/extract"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/ingest"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/logger"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/server"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store/sqlitestore"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/ui"
)

const (
	version = "0.1.0"
)

var (
	// Global flags
	versionFlag = flag.Bool("version", false, "Show version")

	// Server mode flags
	serve     = flag.Bool("serve", false, "Run the HTTP API server")
	addr      = flag.String("addr", ":8080", "Listen address for -serve")
	projectID = flag.String("project", "", "Firebase project ID (required with -serve)")
	model     = flag.String("model", "", "Gemini model override")

	// One-shot ingest flags (offline: SQLite store, rule-based categorization)
	inputFile   = flag.String("input", "", "Statement file to ingest")
	dbFile      = flag.String("db", "ledger.db", "SQLite database file")
	ownerID     = flag.String("owner", "local", "Owner ID for one-shot ingestion")
	accountID   = flag.String("account", "", "Source account ID")
	accountName = flag.String("account-name", "", "Source account name (found or created when -account is not given)")
	rulesFile   = flag.String("rules", "", "Category rules file (default: embedded rules)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `ledgerd - personal finance ledger engine

Usage:
  ledgerd [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Run the API server against a Firebase project
  ledgerd -serve -project my-project -addr :8080

  # Ingest a statement into a local SQLite ledger
  ledgerd -input statement.ofx -db ledger.db -account-name "Everyday"

  # Ingest with custom category rules
  ledgerd -input statement.txt -account-name "Everyday" -rules rules.yaml

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("ledgerd version %s\n", version)
		os.Exit(0)
	}

	if !*serve && *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Error: either -serve or -input is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		return runServer(ctx)
	}
	return runIngest(ctx)
}

func runServer(ctx context.Context) error {
	if *projectID == "" {
		return fmt.Errorf("-project is required with -serve")
	}
	log := logger.New()

	srv, err := server.New(ctx, server.Config{ProjectID: *projectID, Model: *model}, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", *addr).Str("project", *projectID).Msg("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

func runIngest(ctx context.Context) error {
	log := logger.New()

	document, err := os.ReadFile(*inputFile)
	if err != nil {
		return fmt.Errorf("failed to read statement %s: %w", *inputFile, err)
	}

	st, err := sqlitestore.Open(ctx, *dbFile)
	if err != nil {
		return fmt.Errorf("failed to open ledger database %s: %w", *dbFile, err)
	}
	defer st.Close()

	classifier, err := loadClassifier()
	if err != nil {
		return err
	}

	ui.Header("Ingesting Statement")

	ui.Step(1, 3, "Resolving source account")
	sourceID, err := resolveSourceAccount(ctx, st)
	if err != nil {
		return err
	}

	ui.Step(2, 3, "Extracting and applying transactions")
	auditLog := audit.NewLog(st, log)
	pipeline := ingest.NewPipeline(st, extract.NewPattern(), extract.NewPattern(), classifier, auditLog, log)
	result, err := pipeline.IngestStatement(ctx, *ownerID, string(document), sourceID)
	if err != nil {
		return err
	}

	ui.Step(3, 3, "Done")
	ui.Success(fmt.Sprintf("%d transactions recorded, %d duplicates skipped",
		len(result.Processed), len(result.Duplicates)))
	ui.Info(fmt.Sprintf("Final balance: %s", result.FinalBalance.StringFixed(2)))
	return nil
}

func loadClassifier() (categorize.Classifier, error) {
	if *rulesFile != "" {
		r, err := categorize.LoadRulesFromFile(*rulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules %s: %w", *rulesFile, err)
		}
		return r, nil
	}
	return categorize.LoadEmbeddedRules()
}

// resolveSourceAccount returns the configured account ID, finding or creating
// a bank account by name when only -account-name is given.
func resolveSourceAccount(ctx context.Context, st store.Store) (string, error) {
	if *accountID != "" {
		if _, err := st.GetAccount(ctx, *accountID); err != nil {
			return "", fmt.Errorf("account %s: %w", *accountID, err)
		}
		return *accountID, nil
	}
	if *accountName == "" {
		return "", fmt.Errorf("either -account or -account-name is required")
	}

	var id string
	err := st.RunTransaction(ctx, func(tx store.Tx) error {
		identity := domain.SlugifyName(*accountName)
		existing, err := tx.FindAccountByIdentity(*ownerID, domain.KindBank, identity)
		if err == nil {
			id = existing.ID
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		a, err := domain.NewAccount(*ownerID, *accountName, domain.KindBank)
		if err != nil {
			return err
		}
		a.ID = domain.AccountDocID(*ownerID, domain.KindBank, identity)
		a.IsManual = true
		if err := tx.CreateAccount(a); err != nil {
			return err
		}
		id = a.ID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve account %q: %w", *accountName, err)
	}
	return id, nil
}
