// Package ingest turns raw statement documents into ledger transactions:
// extraction with fallback, per-line deduplication, categorization, and a
// single atomic apply against the declared source account.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/audit"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/categorize"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/dedup"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/extract"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/ledger"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store"
)

// ErrNoTransactionsExtracted is returned when neither the primary extractor
// nor the pattern fallback found any transaction in the document.
var ErrNoTransactionsExtracted = errors.New("no transactions extracted from document")

// Result is the outcome of one statement ingestion: the transactions
// created, the candidates suppressed as duplicates, and the source account's
// balance after the batch.
type Result struct {
	Processed    []*domain.Transaction `json:"processed"`
	Duplicates   []domain.Candidate    `json:"duplicates"`
	FinalBalance decimal.Decimal       `json:"finalBalance"`
}

// Pipeline orchestrates statement ingestion. OFX documents are detected by
// sniffing and routed to the OFX extractor; everything else goes through the
// primary extractor with the pattern scanner as fallback.
type Pipeline struct {
	store      store.Store
	primary    extract.Extractor
	fallback   extract.Extractor
	ofx        extract.Extractor
	classifier categorize.Classifier
	audit      *audit.Log
	logger     zerolog.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(st store.Store, primary, fallback extract.Extractor, classifier categorize.Classifier, auditLog *audit.Log, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:      st,
		primary:    primary,
		fallback:   fallback,
		ofx:        extract.NewOFX(),
		classifier: classifier,
		audit:      auditLog,
		logger:     logger,
	}
}

// ingestInput is the raw-input snapshot written to the failure audit log when
// an ingestion aborts after validation.
type ingestInput struct {
	SourceAccountID string `json:"sourceAccountId"`
	DocumentText    string `json:"documentText"`
}

// IngestStatement extracts candidates from documentText and applies them
// sequentially against sourceAccountID in one atomic scope. Duplicates are
// reported, not failed; any domain failure aborts the entire batch.
func (p *Pipeline) IngestStatement(ctx context.Context, ownerID, documentText, sourceAccountID string) (*Result, error) {
	if err := validateIngest(ownerID, documentText, sourceAccountID); err != nil {
		return nil, err
	}

	result, err := p.ingest(ctx, ownerID, documentText, sourceAccountID)
	if err != nil {
		p.logger.Warn().Err(err).
			Str("ownerId", ownerID).
			Str("sourceAccountId", sourceAccountID).
			Msg("ingestion aborted")
		p.audit.Append(ctx, ownerID, ingestInput{
			SourceAccountID: sourceAccountID,
			DocumentText:    documentText,
		}, err.Error())
		return nil, err
	}

	p.logger.Info().
		Str("ownerId", ownerID).
		Str("sourceAccountId", sourceAccountID).
		Int("processed", len(result.Processed)).
		Int("duplicates", len(result.Duplicates)).
		Msg("statement ingested")
	return result, nil
}

func (p *Pipeline) ingest(ctx context.Context, ownerID, documentText, sourceAccountID string) (*Result, error) {
	candidates, err := p.extractCandidates(ctx, documentText)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = dedup.Key(ownerID, c.Date, c.Amount, c.Description)
	}

	// Pass 1, read-only: mark candidates whose dedup key already exists so
	// the classifier is not consulted for lines that will be suppressed.
	known := make([]bool, len(candidates))
	err = p.store.RunTransaction(ctx, func(tx store.Tx) error {
		for i, key := range keys {
			if known[i] {
				continue
			}
			if _, err := tx.FindTransactionByDedupKey(ownerID, key); err == nil {
				known[i] = true
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrStorage, err)
	}

	// Pass 2: classify the survivors outside any storage transaction. The
	// classifier never fails; unavailable service degrades to Uncategorized.
	classifications := make([]categorize.Result, len(candidates))
	for i, c := range candidates {
		if known[i] {
			continue
		}
		classifications[i] = p.classifier.Classify(ctx, c.Description, c.Amount.Abs())
	}

	// Pass 3: the authoritative scope. Dedup is re-checked inside the
	// transaction, so the pre-scan is an optimization, never the decision.
	var result *Result
	var fnErr error
	err = p.store.RunTransaction(ctx, func(tx store.Tx) error {
		var err error
		result, err = p.applyBatch(tx, ownerID, sourceAccountID, candidates, keys, classifications)
		fnErr = err
		return err
	})
	if err != nil {
		if !errors.Is(err, fnErr) || fnErr == nil {
			err = fmt.Errorf("%w: %v", ledger.ErrStorage, err)
		}
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) applyBatch(tx store.Tx, ownerID, sourceAccountID string, candidates []domain.Candidate, keys []string, classifications []categorize.Result) (*Result, error) {
	src, err := tx.GetAccount(sourceAccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("account %s: %w", sourceAccountID, domain.ErrAccountNotFound)
		}
		return nil, err
	}
	// Another owner's account must not be reachable by guessing its ID.
	if src.OwnerID != ownerID {
		return nil, fmt.Errorf("account %s: %w", sourceAccountID, domain.ErrAccountNotFound)
	}

	result := &Result{}
	seen := make(map[string]bool)
	for i, c := range candidates {
		key := keys[i]
		if seen[key] {
			result.Duplicates = append(result.Duplicates, c)
			continue
		}
		if _, err := tx.FindTransactionByDedupKey(ownerID, key); err == nil {
			result.Duplicates = append(result.Duplicates, c)
			seen[key] = true
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		seen[key] = true

		magnitude := c.Amount.Abs()
		txnType := domain.TypeIncome
		if c.Amount.IsNegative() {
			txnType = domain.TypeExpense
			if err := src.CheckDebit(magnitude); err != nil {
				return nil, fmt.Errorf("candidate %q (%s): %w", c.Description, c.Date.Format("2006-01-02"), err)
			}
			src.Debit(magnitude)
		} else {
			src.CreditFunds(magnitude)
		}

		classification := classifications[i]
		if classification.Category == "" {
			// The pre-scan marked this a duplicate but the authoritative
			// check disagreed; classifying here would hold the scope across
			// a network call, so the line degrades instead.
			classification = categorize.Uncategorized()
		}

		txn := &domain.Transaction{
			ID:                uuid.NewString(),
			OwnerID:           ownerID,
			Type:              txnType,
			Amount:            magnitude,
			Description:       c.Description,
			Category:          classification.Category,
			SubCategory:       classification.SubCategory,
			Date:              c.Date,
			IsAutoCategorized: classification.IsAutoCategorized,
			IsFromUpload:      true,
			DedupKey:          key,
			CreatedAt:         time.Now(),
		}
		if txnType == domain.TypeExpense {
			txn.FromAccountID = src.ID
		} else {
			txn.ToAccountID = src.ID
		}
		if err := txn.Validate(); err != nil {
			return nil, fmt.Errorf("constructed invalid transaction: %w", err)
		}
		if err := tx.CreateTransaction(txn); err != nil {
			return nil, err
		}
		result.Processed = append(result.Processed, txn)
	}

	if err := src.CheckInvariants(); err != nil {
		return nil, err
	}
	if len(result.Processed) > 0 {
		if err := tx.PutAccount(src); err != nil {
			return nil, err
		}
	}
	result.FinalBalance = src.Balance
	return result, nil
}

// extractCandidates runs the extractor chain: OFX when the document sniffs
// as OFX, otherwise the primary extractor with the pattern fallback taking
// over on failure or an empty yield.
func (p *Pipeline) extractCandidates(ctx context.Context, documentText string) ([]domain.Candidate, error) {
	primary := p.primary
	if extract.IsOFX(documentText) {
		primary = p.ofx
	}

	candidates, err := primary.Extract(ctx, documentText)
	if err != nil || len(candidates) == 0 {
		if err != nil {
			p.logger.Warn().Err(err).
				Str("extractor", primary.Name()).
				Msg("primary extraction failed, trying fallback")
		}
		candidates, err = p.fallback.Extract(ctx, documentText)
		if err != nil {
			return nil, fmt.Errorf("fallback extraction failed: %w", err)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoTransactionsExtracted
	}
	return candidates, nil
}

func validateIngest(ownerID, documentText, sourceAccountID string) error {
	if ownerID == "" {
		return &domain.ValidationError{Field: "ownerId", Reason: "cannot be empty"}
	}
	if documentText == "" {
		return &domain.ValidationError{Field: "documentText", Reason: "cannot be empty"}
	}
	if sourceAccountID == "" {
		return &domain.ValidationError{Field: "sourceAccountId", Reason: "cannot be empty"}
	}
	return nil
}
