package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/dedup"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store"
)

// SettlementParams describes a person-to-person settlement: money paid to or
// received from a named counterparty out of one of the owner's accounts.
type SettlementParams struct {
	SourceAccountID  string          `json:"sourceAccountId"`
	CounterpartyName string          `json:"counterpartyName"`
	Amount           decimal.Decimal `json:"amount"`
	IsOutgoing       bool            `json:"isOutgoing"`
	Note             string          `json:"note,omitempty"`
	Date             time.Time       `json:"date"`
}

// RecordSettlement finds or creates a person account for the counterparty and
// records the settlement as a linked pair of Transfer legs, one categorized
// Outgoing Transfer and one Incoming Transfer, each carrying the other's ID.
//
// The counterparty account, both legs, and the source-account balance update
// all commit in the same atomic scope. Returns the counterparty account ID.
func (e *Engine) RecordSettlement(ctx context.Context, ownerID string, params SettlementParams) (string, error) {
	if err := validateSettlement(ownerID, params); err != nil {
		return "", err
	}
	if params.Date.IsZero() {
		params.Date = time.Now()
	}

	var counterpartyID string
	var fnErr error
	err := e.store.RunTransaction(ctx, func(tx store.Tx) error {
		var err error
		counterpartyID, err = e.settleInTx(tx, ownerID, params)
		fnErr = err
		return err
	})
	if err != nil {
		if !errors.Is(err, fnErr) || fnErr == nil {
			err = fmt.Errorf("%w: %v", ErrStorage, err)
		}
		e.logger.Warn().Err(err).
			Str("ownerId", ownerID).
			Str("counterparty", params.CounterpartyName).
			Msg("settlement aborted")
		if !domain.IsValidation(err) {
			e.audit.Append(ctx, ownerID, params, err.Error())
		}
		return "", err
	}

	e.logger.Info().
		Str("ownerId", ownerID).
		Str("counterpartyAccountId", counterpartyID).
		Str("amount", params.Amount.String()).
		Bool("outgoing", params.IsOutgoing).
		Msg("settlement recorded")
	return counterpartyID, nil
}

func (e *Engine) settleInTx(tx store.Tx, ownerID string, params SettlementParams) (string, error) {
	counterparty, err := findOrCreateAccount(tx, ownerID, params.CounterpartyName, domain.KindPerson)
	if err != nil {
		return "", err
	}

	src, err := loadAccount(tx, ownerID, params.SourceAccountID)
	if err != nil {
		return "", err
	}

	if params.IsOutgoing {
		if err := src.CheckDebit(params.Amount); err != nil {
			return "", err
		}
		src.Debit(params.Amount)
		counterparty.ReceiveTransfer(params.Amount)
	} else {
		// An incoming settlement into a credit source is a repayment and must
		// not exceed what is owed, same as the engine's transfer path.
		if err := src.CheckTransferIn(params.Amount); err != nil {
			return "", err
		}
		// Person accounts track what the counterparty holds of yours, so a
		// received settlement may push theirs negative.
		src.ReceiveTransfer(params.Amount)
		counterparty.Debit(params.Amount)
	}
	if err := src.CheckInvariants(); err != nil {
		return "", err
	}

	direction := "from"
	if params.IsOutgoing {
		direction = "to"
	}
	description := fmt.Sprintf("Transfer %s %s", direction, counterparty.Name)

	outflow, inflow := settlementLegs(ownerID, src.ID, counterparty.ID, params, description)
	for _, a := range []*domain.Account{src, counterparty} {
		if err := tx.PutAccount(a); err != nil {
			return "", err
		}
	}
	for _, txn := range []*domain.Transaction{outflow, inflow} {
		if err := txn.Validate(); err != nil {
			return "", fmt.Errorf("constructed invalid settlement leg: %w", err)
		}
		if err := tx.CreateTransaction(txn); err != nil {
			return "", err
		}
	}
	return counterparty.ID, nil
}

// settlementLegs builds the linked Transfer pair. Both legs store the
// positive magnitude and the same endpoints; the categories carry direction.
func settlementLegs(ownerID, sourceID, counterpartyID string, params SettlementParams, description string) (*domain.Transaction, *domain.Transaction) {
	now := time.Now()
	base := domain.Transaction{
		OwnerID:           ownerID,
		Type:              domain.TypeTransfer,
		Amount:            params.Amount,
		FromAccountID:     sourceID,
		ToAccountID:       counterpartyID,
		Description:       description,
		Notes:             params.Note,
		Date:              params.Date,
		IsAutoCategorized: true,
		DedupKey:          dedup.Key(ownerID, params.Date, params.Amount, description),
		CreatedAt:         now,
	}

	outflow := base
	outflow.ID = uuid.NewString()
	outflow.Category = domain.CategoryOutgoingTransfer

	inflow := base
	inflow.ID = uuid.NewString()
	inflow.Category = domain.CategoryIncomingTransfer

	outflow.LinkedTransactionID = inflow.ID
	inflow.LinkedTransactionID = outflow.ID
	return &outflow, &inflow
}

func validateSettlement(ownerID string, params SettlementParams) error {
	if ownerID == "" {
		return &domain.ValidationError{Field: "ownerId", Reason: "cannot be empty"}
	}
	if params.SourceAccountID == "" {
		return &domain.ValidationError{Field: "sourceAccountId", Reason: "cannot be empty"}
	}
	if params.CounterpartyName == "" {
		return &domain.ValidationError{Field: "counterpartyName", Reason: "cannot be empty"}
	}
	if !params.Amount.IsPositive() {
		return &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return nil
}
