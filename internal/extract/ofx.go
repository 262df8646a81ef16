package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
)

// OFX extracts candidates from OFX/QFX statement documents. Stateless and
// safe for concurrent use.
type OFX struct{}

// NewOFX creates the OFX extractor.
func NewOFX() *OFX {
	return &OFX{}
}

// Name returns the extractor identifier.
func (o *OFX) Name() string {
	return "ofx"
}

// Extract parses an OFX/QFX document and flattens its bank and credit card
// transaction lists into candidates. OFX amounts are already signed with the
// statement convention (negative for debits).
func (o *OFX) Extract(ctx context.Context, documentText string) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	response, err := ofxgo.ParseResponse(strings.NewReader(documentText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX document (%d bytes): %w", len(documentText), err)
	}

	var lists []*ofxgo.TransactionList
	for _, msg := range response.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}
	for _, msg := range response.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}
	if len(lists) == 0 {
		return nil, fmt.Errorf("no supported statement type found in OFX document (bank: %d, creditcard: %d)",
			len(response.Bank), len(response.CreditCard))
	}

	var candidates []domain.Candidate
	for _, list := range lists {
		for i, txn := range list.Transactions {
			c, err := ofxCandidate(txn)
			if err != nil {
				return nil, fmt.Errorf("failed to parse OFX transaction at index %d: %w", i, err)
			}
			candidates = append(candidates, *c)
		}
	}
	return candidates, nil
}

func ofxCandidate(txn ofxgo.Transaction) (*domain.Candidate, error) {
	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return nil, fmt.Errorf("transaction %s missing both posted date and user date", txn.FiTID.String())
	}

	description := strings.TrimSpace(txn.Name.String())
	if description == "" {
		description = strings.TrimSpace(txn.Memo.String())
	}
	if description == "" {
		return nil, fmt.Errorf("transaction %s missing both name and memo fields", txn.FiTID.String())
	}

	// ofxgo amounts are big.Rat; go through the string form rather than
	// Float64 so precision survives.
	amount, err := decimal.NewFromString(txn.TrnAmt.String())
	if err != nil {
		return nil, fmt.Errorf("transaction %s: invalid amount %q: %w", txn.FiTID.String(), txn.TrnAmt.String(), err)
	}

	return &domain.Candidate{
		Date:        date,
		Description: description,
		Amount:      amount,
	}, nil
}
