package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the transaction type enum.
type TransactionType string

const (
	TypeIncome   TransactionType = "Income"
	TypeExpense  TransactionType = "Expense"
	TypeTransfer TransactionType = "Transfer"
)

// ValidateTransactionType checks if the transaction type is valid.
func ValidateTransactionType(t TransactionType) bool {
	return t == TypeIncome || t == TypeExpense || t == TypeTransfer
}

// Transaction is a single immutable ledger event. Amount is a positive
// magnitude; direction comes from Type and the from/to account fields:
// Expense sets FromAccountID only, Income sets ToAccountID only, Transfer
// sets both. Settlement legs reference each other via LinkedTransactionID.
type Transaction struct {
	ID                  string          `json:"id"`
	OwnerID             string          `json:"ownerId"`
	Type                TransactionType `json:"type"`
	Amount              decimal.Decimal `json:"amount"`
	FromAccountID       string          `json:"fromAccountId,omitempty"`
	ToAccountID         string          `json:"toAccountId,omitempty"`
	Description         string          `json:"description"`
	Category            string          `json:"category"`
	SubCategory         string          `json:"subCategory"`
	Notes               string          `json:"notes,omitempty"`
	Date                time.Time       `json:"date"`
	IsAutoCategorized   bool            `json:"isAutoCategorized"`
	IsFromUpload        bool            `json:"isFromUpload"`
	LinkedTransactionID string          `json:"linkedTransactionId,omitempty"`
	DedupKey            string          `json:"dedupKey,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// Validate checks the shape invariants for a transaction record.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}
	if t.OwnerID == "" {
		return fmt.Errorf("owner ID cannot be empty")
	}
	if !ValidateTransactionType(t.Type) {
		return fmt.Errorf("invalid transaction type: %s", t.Type)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", t.Amount)
	}
	switch t.Type {
	case TypeExpense:
		if t.FromAccountID == "" || t.ToAccountID != "" {
			return fmt.Errorf("expense requires fromAccountId and no toAccountId")
		}
	case TypeIncome:
		if t.ToAccountID == "" || t.FromAccountID != "" {
			return fmt.Errorf("income requires toAccountId and no fromAccountId")
		}
	case TypeTransfer:
		if t.FromAccountID == "" || t.ToAccountID == "" {
			return fmt.Errorf("transfer requires both fromAccountId and toAccountId")
		}
	}
	return nil
}

// Candidate is one extracted statement line before it becomes a ledger
// transaction. Amount is signed: positive for money in, negative for money
// out. Balance is the running balance printed on the statement, zero when
// the source omits it.
type Candidate struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
}
