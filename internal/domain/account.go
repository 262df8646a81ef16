// Package domain defines the ledger's core types: accounts, transactions,
// statement candidates, and the categorization taxonomy.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AccountKind represents the account kind enum.
// Use ValidateAccountKind to ensure validity before use.
type AccountKind string

const (
	KindBank      AccountKind = "bank"
	KindWallet    AccountKind = "wallet"
	KindCredit    AccountKind = "credit"
	KindLoan      AccountKind = "loan"
	KindAsset     AccountKind = "asset"
	KindLiability AccountKind = "liability"
	KindPerson    AccountKind = "person"
	KindTemp      AccountKind = "temp"
)

var validAccountKinds = map[AccountKind]struct{}{
	KindBank: {}, KindWallet: {}, KindCredit: {}, KindLoan: {},
	KindAsset: {}, KindLiability: {}, KindPerson: {}, KindTemp: {},
}

// ValidateAccountKind checks if the account kind is valid.
func ValidateAccountKind(k AccountKind) bool {
	_, ok := validAccountKinds[k]
	return ok
}

// CreditDetails carries the fields that exist only on credit-kind accounts.
// Sign convention: Balance on the owning account mirrors the owed balance,
// Balance == -UsedBalance at all times after a successful write.
type CreditDetails struct {
	CardNumber  string          `json:"cardNumber"`
	ExpiryDate  string          `json:"expiryDate"`
	CardLimit   decimal.Decimal `json:"cardLimit"`
	UsedBalance decimal.Decimal `json:"usedBalance"`
}

// Account represents a single owner-scoped ledger account.
//
// Credit is populated iff Kind == KindCredit; all other kinds carry a plain
// held balance. Balance fields must only be mutated through the Debit /
// CreditFunds / ReceiveTransfer methods so the credit-account invariants
// hold after every write.
type Account struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"ownerId"`
	Name          string          `json:"name"`
	Kind          AccountKind     `json:"kind"`
	Provider      string          `json:"provider,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	AccountNumber string          `json:"accountNumber,omitempty"` // bank
	WalletEmail   string          `json:"walletEmail,omitempty"`   // wallet
	Credit        *CreditDetails  `json:"credit,omitempty"`        // credit only
	IsManual      bool            `json:"isManual"`
	Notes         string          `json:"notes,omitempty"`
}

// NewAccount creates a validated non-credit account.
func NewAccount(ownerID, name string, kind AccountKind) (*Account, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner ID cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("account name cannot be empty")
	}
	if !ValidateAccountKind(kind) {
		return nil, fmt.Errorf("invalid account kind: %s", kind)
	}
	if kind == KindCredit {
		return nil, fmt.Errorf("credit accounts must be created with NewCreditAccount")
	}
	return &Account{
		OwnerID: ownerID,
		Name:    name,
		Kind:    kind,
		Balance: decimal.Zero,
	}, nil
}

// NewCreditAccount creates a validated credit-kind account with a zero owed
// balance.
func NewCreditAccount(ownerID, name, cardNumber, expiryDate string, cardLimit decimal.Decimal) (*Account, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner ID cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("account name cannot be empty")
	}
	if cardNumber == "" {
		return nil, fmt.Errorf("card number cannot be empty")
	}
	if cardLimit.IsNegative() {
		return nil, fmt.Errorf("card limit cannot be negative")
	}
	return &Account{
		OwnerID: ownerID,
		Name:    name,
		Kind:    KindCredit,
		Balance: decimal.Zero,
		Credit: &CreditDetails{
			CardNumber:  cardNumber,
			ExpiryDate:  expiryDate,
			CardLimit:   cardLimit,
			UsedBalance: decimal.Zero,
		},
	}, nil
}

// IsCredit reports whether the account carries an owed balance.
func (a *Account) IsCredit() bool {
	return a.Kind == KindCredit && a.Credit != nil
}

// CheckDebit verifies that the account can fund an outgoing amount.
// Non-credit accounts require Balance >= amount; credit accounts require
// UsedBalance + amount <= CardLimit.
func (a *Account) CheckDebit(amount decimal.Decimal) error {
	if a.IsCredit() {
		if a.Credit.UsedBalance.Add(amount).GreaterThan(a.Credit.CardLimit) {
			return ErrCreditLimitExceeded
		}
		return nil
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	return nil
}

// CheckTransferIn verifies that a transfer into this account is acceptable.
// A transfer into a credit account is modeled strictly as debt repayment, so
// the amount must not exceed the owed balance.
func (a *Account) CheckTransferIn(amount decimal.Decimal) error {
	if a.IsCredit() && amount.GreaterThan(a.Credit.UsedBalance) {
		return ErrPaymentExceedsOwed
	}
	return nil
}

// Debit applies an outgoing amount. Callers must run CheckDebit first inside
// the same atomic scope.
func (a *Account) Debit(amount decimal.Decimal) {
	if a.IsCredit() {
		a.Credit.UsedBalance = a.Credit.UsedBalance.Add(amount)
		a.Balance = a.Credit.UsedBalance.Neg()
		return
	}
	a.Balance = a.Balance.Sub(amount)
}

// CreditFunds applies an incoming income amount. For credit accounts income
// reduces the owed balance.
func (a *Account) CreditFunds(amount decimal.Decimal) {
	if a.IsCredit() {
		a.Credit.UsedBalance = a.Credit.UsedBalance.Sub(amount)
		a.Balance = a.Credit.UsedBalance.Neg()
		return
	}
	a.Balance = a.Balance.Add(amount)
}

// ReceiveTransfer applies an incoming transfer amount. Credit destinations
// clamp the owed balance at zero; CheckTransferIn rejects overpayment before
// this point, so the clamp only guards the write itself.
func (a *Account) ReceiveTransfer(amount decimal.Decimal) {
	if a.IsCredit() {
		used := a.Credit.UsedBalance.Sub(amount)
		if used.IsNegative() {
			used = decimal.Zero
		}
		a.Credit.UsedBalance = used
		a.Balance = used.Neg()
		return
	}
	a.Balance = a.Balance.Add(amount)
}

// CheckInvariants verifies the credit-account invariants after a write.
func (a *Account) CheckInvariants() error {
	if !a.IsCredit() {
		return nil
	}
	if !a.Balance.Equal(a.Credit.UsedBalance.Neg()) {
		return fmt.Errorf("credit account %s: balance %s != -usedBalance %s",
			a.ID, a.Balance, a.Credit.UsedBalance)
	}
	if a.Credit.UsedBalance.GreaterThan(a.Credit.CardLimit) {
		return fmt.Errorf("credit account %s: usedBalance %s exceeds cardLimit %s",
			a.ID, a.Credit.UsedBalance, a.Credit.CardLimit)
	}
	return nil
}

// IdentityKey returns the per-kind uniqueness identifier for this account
// under its owner: account number for bank, card number for credit, wallet
// email for wallet, normalized name for person/temp. Kinds without a natural
// identifier fall back to the normalized name.
func (a *Account) IdentityKey() string {
	switch a.Kind {
	case KindBank:
		if a.AccountNumber != "" {
			return a.AccountNumber
		}
	case KindCredit:
		if a.Credit != nil && a.Credit.CardNumber != "" {
			return a.Credit.CardNumber
		}
	case KindWallet:
		if a.WalletEmail != "" {
			return strings.ToLower(a.WalletEmail)
		}
	}
	return SlugifyName(a.Name)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// SlugifyName converts an account name to its normalized identity form.
// "José's Café" → "jose-s-cafe". Unicode marks are stripped so visually
// identical names collide on the uniqueness constraint.
func SlugifyName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		normalized = name
	}
	slug := strings.ToLower(normalized)
	slug = nonAlnum.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// AccountDocID derives the deterministic storage ID for an account from its
// owner, kind, and identity key. Concurrent creates of the same logical
// account collide on this ID, which is what makes find-or-create race-safe
// at the store.
func AccountDocID(ownerID string, kind AccountKind, identity string) string {
	sum := sha256.Sum256([]byte(ownerID + "|" + string(kind) + "|" + identity))
	return hex.EncodeToString(sum[:16])
}
