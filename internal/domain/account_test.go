package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSlugifyName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain name",
			input:    "Alice",
			expected: "alice",
		},
		{
			name:     "spaces and punctuation",
			input:    "John's Plumbing & Sons",
			expected: "john-s-plumbing-sons",
		},
		{
			name:     "accents stripped",
			input:    "José's Café",
			expected: "jose-s-cafe",
		},
		{
			name:     "leading and trailing separators",
			input:    "  --Alice--  ",
			expected: "alice",
		},
		{
			name:     "digits kept",
			input:    "Account 42",
			expected: "account-42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SlugifyName(tt.input)
			if got != tt.expected {
				t.Errorf("SlugifyName(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestAccountDocIDDeterministic(t *testing.T) {
	a := AccountDocID("owner1", KindTemp, "alice")
	b := AccountDocID("owner1", KindTemp, "alice")
	if a != b {
		t.Errorf("same inputs produced different IDs: %q vs %q", a, b)
	}

	if AccountDocID("owner2", KindTemp, "alice") == a {
		t.Error("different owners produced the same ID")
	}
	if AccountDocID("owner1", KindPerson, "alice") == a {
		t.Error("different kinds produced the same ID")
	}
}

func TestCheckDebit(t *testing.T) {
	tests := []struct {
		name    string
		account *Account
		amount  string
		wantErr error
	}{
		{
			name:    "bank with sufficient funds",
			account: &Account{Kind: KindBank, Balance: dec("100.00")},
			amount:  "50.00",
		},
		{
			name:    "bank exact balance",
			account: &Account{Kind: KindBank, Balance: dec("100.00")},
			amount:  "100.00",
		},
		{
			name:    "bank insufficient funds",
			account: &Account{Kind: KindBank, Balance: dec("100.00")},
			amount:  "150.00",
			wantErr: ErrInsufficientFunds,
		},
		{
			name:    "credit within limit",
			account: creditAccount("200.00", "100.00"),
			amount:  "100.00",
		},
		{
			name:    "credit over limit",
			account: creditAccount("200.00", "100.00"),
			amount:  "100.01",
			wantErr: ErrCreditLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.CheckDebit(dec(tt.amount))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckDebit(%s) = %v; want %v", tt.amount, err, tt.wantErr)
			}
		})
	}
}

func TestCheckTransferIn(t *testing.T) {
	credit := creditAccount("500.00", "80.00")
	if err := credit.CheckTransferIn(dec("80.00")); err != nil {
		t.Errorf("repayment of full owed balance should pass, got %v", err)
	}
	if err := credit.CheckTransferIn(dec("80.01")); !errors.Is(err, ErrPaymentExceedsOwed) {
		t.Errorf("overpayment should fail with ErrPaymentExceedsOwed, got %v", err)
	}

	bank := &Account{Kind: KindBank, Balance: dec("10.00")}
	if err := bank.CheckTransferIn(dec("1000.00")); err != nil {
		t.Errorf("non-credit destination accepts any amount, got %v", err)
	}
}

func TestCreditMutationsKeepInvariants(t *testing.T) {
	a := creditAccount("300.00", "0.00")

	a.Debit(dec("120.00"))
	assertCredit(t, a, "120.00", "-120.00")

	a.CreditFunds(dec("20.00"))
	assertCredit(t, a, "100.00", "-100.00")

	a.ReceiveTransfer(dec("60.00"))
	assertCredit(t, a, "40.00", "-40.00")

	// Repayment clamps at zero rather than going into overpayment.
	a.ReceiveTransfer(dec("100.00"))
	assertCredit(t, a, "0.00", "0.00")
}

func TestIdentityKey(t *testing.T) {
	tests := []struct {
		name     string
		account  *Account
		expected string
	}{
		{
			name:     "bank uses account number",
			account:  &Account{Kind: KindBank, Name: "Everyday", AccountNumber: "0623-1234"},
			expected: "0623-1234",
		},
		{
			name:     "credit uses card number",
			account:  &Account{Kind: KindCredit, Name: "Visa", Credit: &CreditDetails{CardNumber: "4111"}},
			expected: "4111",
		},
		{
			name:     "wallet uses lowercased email",
			account:  &Account{Kind: KindWallet, Name: "PayPal", WalletEmail: "Alice@Example.COM"},
			expected: "alice@example.com",
		},
		{
			name:     "person falls back to slug",
			account:  &Account{Kind: KindPerson, Name: "José García"},
			expected: "jose-garcia",
		},
		{
			name:     "bank without number falls back to slug",
			account:  &Account{Kind: KindBank, Name: "Everyday Saver"},
			expected: "everyday-saver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.account.IdentityKey(); got != tt.expected {
				t.Errorf("IdentityKey() = %q; want %q", got, tt.expected)
			}
		})
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func creditAccount(limit, used string) *Account {
	return &Account{
		Kind:    KindCredit,
		Balance: dec(used).Neg(),
		Credit: &CreditDetails{
			CardLimit:   dec(limit),
			UsedBalance: dec(used),
		},
	}
}

func assertCredit(t *testing.T, a *Account, wantUsed, wantBalance string) {
	t.Helper()
	if !a.Credit.UsedBalance.Equal(dec(wantUsed)) {
		t.Errorf("usedBalance = %s; want %s", a.Credit.UsedBalance, wantUsed)
	}
	if !a.Balance.Equal(dec(wantBalance)) {
		t.Errorf("balance = %s; want %s", a.Balance, wantBalance)
	}
	if err := a.CheckInvariants(); err != nil {
		t.Errorf("invariants violated: %v", err)
	}
}
