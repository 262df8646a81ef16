package firestorestore

import (
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
)

// accountDoc is the Firestore representation of an account. Money fields are
// stored as decimal strings; Firestore numbers are float64 and unfit for
// balances that get compared for invariants.
type accountDoc struct {
	ID            string    `firestore:"id"`
	OwnerID       string    `firestore:"ownerId"`
	Name          string    `firestore:"name"`
	Kind          string    `firestore:"kind"`
	Provider      string    `firestore:"provider,omitempty"`
	Balance       string    `firestore:"balance"`
	AccountNumber string    `firestore:"accountNumber,omitempty"`
	WalletEmail   string    `firestore:"walletEmail,omitempty"`
	IsManual      bool      `firestore:"isManual"`
	Notes         string    `firestore:"notes,omitempty"`
	CardNumber    string    `firestore:"cardNumber,omitempty"`
	ExpiryDate    string    `firestore:"expiryDate,omitempty"`
	CardLimit     string    `firestore:"cardLimit,omitempty"`
	UsedBalance   string    `firestore:"usedBalance,omitempty"`
	UpdatedAt     time.Time `firestore:"updatedAt,serverTimestamp"`
}

type txnDoc struct {
	ID                  string    `firestore:"id"`
	OwnerID             string    `firestore:"ownerId"`
	Type                string    `firestore:"type"`
	Amount              string    `firestore:"amount"`
	FromAccountID       string    `firestore:"fromAccountId,omitempty"`
	ToAccountID         string    `firestore:"toAccountId,omitempty"`
	Description         string    `firestore:"description"`
	Category            string    `firestore:"category"`
	SubCategory         string    `firestore:"subCategory"`
	Notes               string    `firestore:"notes,omitempty"`
	Date                time.Time `firestore:"date"`
	IsAutoCategorized   bool      `firestore:"isAutoCategorized"`
	IsFromUpload        bool      `firestore:"isFromUpload"`
	LinkedTransactionID string    `firestore:"linkedTransactionId,omitempty"`
	DedupKey            string    `firestore:"dedupKey,omitempty"`
	CreatedAt           time.Time `firestore:"createdAt"`
}

type failureDoc struct {
	ID            string    `firestore:"id"`
	OwnerID       string    `firestore:"ownerId"`
	RawData       string    `firestore:"rawData"`
	SchemaVersion int       `firestore:"schemaVersion"`
	Error         string    `firestore:"error"`
	Status        string    `firestore:"status"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

func accountToDoc(a *domain.Account) *accountDoc {
	doc := &accountDoc{
		ID:            a.ID,
		OwnerID:       a.OwnerID,
		Name:          a.Name,
		Kind:          string(a.Kind),
		Provider:      a.Provider,
		Balance:       a.Balance.String(),
		AccountNumber: a.AccountNumber,
		WalletEmail:   a.WalletEmail,
		IsManual:      a.IsManual,
		Notes:         a.Notes,
	}
	if a.Credit != nil {
		doc.CardNumber = a.Credit.CardNumber
		doc.ExpiryDate = a.Credit.ExpiryDate
		doc.CardLimit = a.Credit.CardLimit.String()
		doc.UsedBalance = a.Credit.UsedBalance.String()
	}
	return doc
}

func docToAccount(snap *firestore.DocumentSnapshot) (*domain.Account, error) {
	var doc accountDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse account %s: %w", snap.Ref.ID, err)
	}

	balance, err := decimal.NewFromString(doc.Balance)
	if err != nil {
		return nil, fmt.Errorf("account %s: invalid balance %q: %w", doc.ID, doc.Balance, err)
	}

	a := &domain.Account{
		ID:            doc.ID,
		OwnerID:       doc.OwnerID,
		Name:          doc.Name,
		Kind:          domain.AccountKind(doc.Kind),
		Provider:      doc.Provider,
		Balance:       balance,
		AccountNumber: doc.AccountNumber,
		WalletEmail:   doc.WalletEmail,
		IsManual:      doc.IsManual,
		Notes:         doc.Notes,
	}
	if a.Kind == domain.KindCredit {
		limit, err := decimal.NewFromString(doc.CardLimit)
		if err != nil {
			return nil, fmt.Errorf("account %s: invalid card limit %q: %w", doc.ID, doc.CardLimit, err)
		}
		used, err := decimal.NewFromString(doc.UsedBalance)
		if err != nil {
			return nil, fmt.Errorf("account %s: invalid used balance %q: %w", doc.ID, doc.UsedBalance, err)
		}
		a.Credit = &domain.CreditDetails{
			CardNumber:  doc.CardNumber,
			ExpiryDate:  doc.ExpiryDate,
			CardLimit:   limit,
			UsedBalance: used,
		}
	}
	return a, nil
}

func txnToDoc(t *domain.Transaction) *txnDoc {
	return &txnDoc{
		ID:                  t.ID,
		OwnerID:             t.OwnerID,
		Type:                string(t.Type),
		Amount:              t.Amount.String(),
		FromAccountID:       t.FromAccountID,
		ToAccountID:         t.ToAccountID,
		Description:         t.Description,
		Category:            t.Category,
		SubCategory:         t.SubCategory,
		Notes:               t.Notes,
		Date:                t.Date,
		IsAutoCategorized:   t.IsAutoCategorized,
		IsFromUpload:        t.IsFromUpload,
		LinkedTransactionID: t.LinkedTransactionID,
		DedupKey:            t.DedupKey,
		CreatedAt:           t.CreatedAt,
	}
}

func docToTransaction(snap *firestore.DocumentSnapshot) (*domain.Transaction, error) {
	var doc txnDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse transaction %s: %w", snap.Ref.ID, err)
	}

	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: invalid amount %q: %w", doc.ID, doc.Amount, err)
	}

	return &domain.Transaction{
		ID:                  doc.ID,
		OwnerID:             doc.OwnerID,
		Type:                domain.TransactionType(doc.Type),
		Amount:              amount,
		FromAccountID:       doc.FromAccountID,
		ToAccountID:         doc.ToAccountID,
		Description:         doc.Description,
		Category:            doc.Category,
		SubCategory:         doc.SubCategory,
		Notes:               doc.Notes,
		Date:                doc.Date,
		IsAutoCategorized:   doc.IsAutoCategorized,
		IsFromUpload:        doc.IsFromUpload,
		LinkedTransactionID: doc.LinkedTransactionID,
		DedupKey:            doc.DedupKey,
		CreatedAt:           doc.CreatedAt,
	}, nil
}
