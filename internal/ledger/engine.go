// Package ledger applies transaction intents to accounts under the balance
// and credit-limit invariants. Every mutating operation runs inside one
// atomic store scope; failures after validation roll the scope back and leave
// a failure audit record behind.
package ledger

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
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store"
)

// Intent is a single transaction request before it is applied to the ledger.
// Amount is a positive magnitude; Type determines direction. For transfers
// the destination may be named instead of identified, in which case a temp
// account is found or created for the owner.
type Intent struct {
	Type          domain.TransactionType `json:"type"`
	Amount        decimal.Decimal        `json:"amount"`
	FromAccountID string                 `json:"fromAccountId,omitempty"`
	ToAccountID   string                 `json:"toAccountId,omitempty"`
	ToAccountName string                 `json:"toAccountName,omitempty"`
	Description   string                 `json:"description"`
	Notes         string                 `json:"notes,omitempty"`
	Date          time.Time              `json:"date"`
}

// ApplyResult is the outcome of a successful apply: the created transaction
// and the new balance of every touched account.
type ApplyResult struct {
	Transaction     *domain.Transaction        `json:"transaction"`
	UpdatedBalances map[string]decimal.Decimal `json:"updatedBalances"`
}

// Engine validates and applies transaction intents.
type Engine struct {
	store      store.Store
	classifier categorize.Classifier
	audit      *audit.Log
	logger     zerolog.Logger
}

// NewEngine creates a ledger engine. The classifier is consulted for Expense
// and Income intents; transfers carry the fixed Transfer category.
func NewEngine(st store.Store, classifier categorize.Classifier, auditLog *audit.Log, logger zerolog.Logger) *Engine {
	return &Engine{
		store:      st,
		classifier: classifier,
		audit:      auditLog,
		logger:     logger,
	}
}

// Apply validates the intent, applies its balance effect, and persists the
// transaction record and touched accounts as one atomic unit.
//
// Validation failures are returned before any side effect and are never
// audited. Any later failure rolls the whole scope back, appends a
// FailedTransaction record outside the aborted scope, and surfaces the error.
func (e *Engine) Apply(ctx context.Context, ownerID string, intent Intent) (*ApplyResult, error) {
	if err := validateIntent(ownerID, intent); err != nil {
		return nil, err
	}
	if intent.Date.IsZero() {
		intent.Date = time.Now()
	}

	// Classification is a slow network call; keep it out of the storage
	// transaction's critical section. Its result cannot fail the apply.
	var classification categorize.Result
	switch intent.Type {
	case domain.TypeTransfer:
		classification = categorize.Result{Category: domain.CategoryTransfer}
	default:
		classification = e.classifier.Classify(ctx, intent.Description, intent.Amount)
	}

	var result *ApplyResult
	var fnErr error
	err := e.store.RunTransaction(ctx, func(tx store.Tx) error {
		var err error
		result, err = e.applyInTx(tx, ownerID, intent, classification)
		fnErr = err
		return err
	})
	if err != nil {
		if !errors.Is(err, fnErr) || fnErr == nil {
			// The scope itself failed to commit.
			err = fmt.Errorf("%w: %v", ErrStorage, err)
		}
		e.logger.Warn().Err(err).
			Str("ownerId", ownerID).
			Str("type", string(intent.Type)).
			Msg("apply aborted")
		if !domain.IsValidation(err) {
			e.audit.Append(ctx, ownerID, intent, err.Error())
		}
		return nil, err
	}

	e.logger.Info().
		Str("ownerId", ownerID).
		Str("transactionId", result.Transaction.ID).
		Str("type", string(intent.Type)).
		Str("amount", intent.Amount.String()).
		Msg("transaction applied")
	return result, nil
}

func (e *Engine) applyInTx(tx store.Tx, ownerID string, intent Intent, classification categorize.Result) (*ApplyResult, error) {
	var src, dst *domain.Account
	var err error

	// Resolve the destination first: a named transfer destination is found
	// or created as a temp account inside this scope, so concurrent
	// identical requests collide on the store's uniqueness constraint
	// instead of racing past an existence check.
	toAccountID := intent.ToAccountID
	if intent.Type == domain.TypeTransfer && toAccountID == "" {
		dst, err = findOrCreateAccount(tx, ownerID, intent.ToAccountName, domain.KindTemp)
		if err != nil {
			return nil, err
		}
		toAccountID = dst.ID
	}

	// All invariant-check reads happen here, inside the scope the commit
	// serializes against. Pre-validation snapshots are never reused.
	if intent.Type == domain.TypeExpense || intent.Type == domain.TypeTransfer {
		src, err = loadAccount(tx, ownerID, intent.FromAccountID)
		if err != nil {
			return nil, err
		}
	}
	if dst == nil && (intent.Type == domain.TypeIncome || intent.Type == domain.TypeTransfer) {
		dst, err = loadAccount(tx, ownerID, toAccountID)
		if err != nil {
			return nil, err
		}
	}

	if src != nil {
		if err := src.CheckDebit(intent.Amount); err != nil {
			return nil, err
		}
	}
	if intent.Type == domain.TypeTransfer {
		if err := dst.CheckTransferIn(intent.Amount); err != nil {
			return nil, err
		}
	}

	switch intent.Type {
	case domain.TypeExpense:
		src.Debit(intent.Amount)
	case domain.TypeIncome:
		dst.CreditFunds(intent.Amount)
	case domain.TypeTransfer:
		src.Debit(intent.Amount)
		dst.ReceiveTransfer(intent.Amount)
	}

	txn := &domain.Transaction{
		ID:                uuid.NewString(),
		OwnerID:           ownerID,
		Type:              intent.Type,
		Amount:            intent.Amount,
		FromAccountID:     intent.FromAccountID,
		Description:       intent.Description,
		Category:          classification.Category,
		SubCategory:       classification.SubCategory,
		Notes:             intent.Notes,
		Date:              intent.Date,
		IsAutoCategorized: classification.IsAutoCategorized,
		// Manually entered transactions carry a dedup key too, so a later
		// statement upload containing the same line is suppressed as a
		// duplicate instead of double-applied.
		DedupKey:  dedup.Key(ownerID, intent.Date, intent.Amount, intent.Description),
		CreatedAt: time.Now(),
	}
	if intent.Type != domain.TypeExpense {
		txn.ToAccountID = toAccountID
	}
	if err := txn.Validate(); err != nil {
		return nil, fmt.Errorf("constructed invalid transaction: %w", err)
	}

	balances := make(map[string]decimal.Decimal)
	for _, a := range []*domain.Account{src, dst} {
		if a == nil {
			continue
		}
		if err := a.CheckInvariants(); err != nil {
			return nil, err
		}
		if err := tx.PutAccount(a); err != nil {
			return nil, err
		}
		balances[a.ID] = a.Balance
	}
	if err := tx.CreateTransaction(txn); err != nil {
		return nil, err
	}

	return &ApplyResult{Transaction: txn, UpdatedBalances: balances}, nil
}

func validateIntent(ownerID string, intent Intent) error {
	if ownerID == "" {
		return &domain.ValidationError{Field: "ownerId", Reason: "cannot be empty"}
	}
	if !domain.ValidateTransactionType(intent.Type) {
		return &domain.ValidationError{Field: "type", Reason: fmt.Sprintf("must be one of Income, Expense, Transfer; got %q", intent.Type)}
	}
	if !intent.Amount.IsPositive() {
		return &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	switch intent.Type {
	case domain.TypeIncome:
		if intent.ToAccountID == "" {
			return &domain.ValidationError{Field: "toAccountId", Reason: "required for Income"}
		}
	case domain.TypeExpense:
		if intent.FromAccountID == "" {
			return &domain.ValidationError{Field: "fromAccountId", Reason: "required for Expense"}
		}
	case domain.TypeTransfer:
		if intent.FromAccountID == "" {
			return &domain.ValidationError{Field: "fromAccountId", Reason: "required for Transfer"}
		}
		if intent.ToAccountID == "" && intent.ToAccountName == "" {
			return &domain.ValidationError{Field: "toAccountId", Reason: "Transfer requires a destination account id or name"}
		}
	}
	return nil
}

// loadAccount reads an account through the scope, translating the store's
// not-found into the ledger's precondition error. Another owner's account is
// indistinguishable from a missing one.
func loadAccount(tx store.Tx, ownerID, id string) (*domain.Account, error) {
	a, err := tx.GetAccount(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
		}
		return nil, err
	}
	if a.OwnerID != ownerID {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
	}
	return a, nil
}

// findOrCreateAccount resolves the owner's account for a counterparty name,
// creating it with a zero balance when absent. Creation uses the
// deterministic (owner, kind, identity) document ID, so a concurrent
// identical create surfaces as ErrAccountExists and is retried as a lookup.
func findOrCreateAccount(tx store.Tx, ownerID, name string, kind domain.AccountKind) (*domain.Account, error) {
	if name == "" {
		return nil, &domain.ValidationError{Field: "toAccountName", Reason: "cannot be empty"}
	}
	identity := domain.SlugifyName(name)
	a, err := tx.FindAccountByIdentity(ownerID, kind, identity)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	created, err := domain.NewAccount(ownerID, name, kind)
	if err != nil {
		return nil, err
	}
	created.ID = domain.AccountDocID(ownerID, kind, identity)
	if err := tx.CreateAccount(created); err != nil {
		if errors.Is(err, store.ErrAccountExists) {
			return tx.FindAccountByIdentity(ownerID, kind, identity)
		}
		return nil, err
	}
	return created, nil
}
