package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store"
)

func TestRecordSettlementOutgoing(t *testing.T) {
	engine, st, _ := newTestEngine(t)
	seedBank(st, "bank-1", "100.00")

	counterpartyID, err := engine.RecordSettlement(context.Background(), testOwner, SettlementParams{
		SourceAccountID:  "bank-1",
		CounterpartyName: "Alice",
		Amount:           dec("40.00"),
		IsOutgoing:       true,
		Note:             "dinner split",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AccountDocID(testOwner, domain.KindPerson, "alice"), counterpartyID)

	bank, err := st.GetAccount(context.Background(), "bank-1")
	require.NoError(t, err)
	assert.True(t, bank.Balance.Equal(dec("60.00")))

	alice, err := st.GetAccount(context.Background(), counterpartyID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindPerson, alice.Kind)
	assert.True(t, alice.Balance.Equal(dec("40.00")))

	txns, err := st.ListTransactions(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, txns, 2)

	var outflow, inflow *domain.Transaction
	for _, txn := range txns {
		switch txn.Category {
		case domain.CategoryOutgoingTransfer:
			outflow = txn
		case domain.CategoryIncomingTransfer:
			inflow = txn
		}
	}
	require.NotNil(t, outflow)
	require.NotNil(t, inflow)

	// Legs reference each other and share the settlement's shape.
	assert.Equal(t, inflow.ID, outflow.LinkedTransactionID)
	assert.Equal(t, outflow.ID, inflow.LinkedTransactionID)
	for _, leg := range []*domain.Transaction{outflow, inflow} {
		assert.Equal(t, domain.TypeTransfer, leg.Type)
		assert.True(t, leg.Amount.Equal(dec("40.00")))
		assert.Equal(t, "bank-1", leg.FromAccountID)
		assert.Equal(t, counterpartyID, leg.ToAccountID)
		assert.Equal(t, "Transfer to Alice", leg.Description)
		assert.Equal(t, "dinner split", leg.Notes)
		assert.True(t, leg.IsAutoCategorized)
		assert.NotEmpty(t, leg.DedupKey)
	}
}

func TestRecordSettlementIncoming(t *testing.T) {
	engine, st, _ := newTestEngine(t)
	seedBank(st, "bank-1", "100.00")

	counterpartyID, err := engine.RecordSettlement(context.Background(), testOwner, SettlementParams{
		SourceAccountID:  "bank-1",
		CounterpartyName: "Alice",
		Amount:           dec("25.00"),
		IsOutgoing:       false,
	})
	require.NoError(t, err)

	bank, err := st.GetAccount(context.Background(), "bank-1")
	require.NoError(t, err)
	assert.True(t, bank.Balance.Equal(dec("125.00")))

	// Alice paid us back, so her account goes negative.
	alice, err := st.GetAccount(context.Background(), counterpartyID)
	require.NoError(t, err)
	assert.True(t, alice.Balance.Equal(dec("-25.00")))

	txns, err := st.ListTransactions(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "Transfer from Alice", txns[0].Description)
}

func TestRecordSettlementIncomingOverpaymentRejected(t *testing.T) {
	engine, st, _ := newTestEngine(t)
	seedCredit(st, "credit-1", "200.00", "30.00")

	// Money received into a credit source is a repayment; the excess over
	// what is owed must not silently vanish into the clamp.
	_, err := engine.RecordSettlement(context.Background(), testOwner, SettlementParams{
		SourceAccountID:  "credit-1",
		CounterpartyName: "Alice",
		Amount:           dec("50.00"),
		IsOutgoing:       false,
	})
	require.ErrorIs(t, err, domain.ErrPaymentExceedsOwed)

	credit, err := st.GetAccount(context.Background(), "credit-1")
	require.NoError(t, err)
	assert.True(t, credit.Credit.UsedBalance.Equal(dec("30.00")))
	assert.True(t, credit.Balance.Equal(dec("-30.00")))

	_, err = st.GetAccount(context.Background(), domain.AccountDocID(testOwner, domain.KindPerson, "alice"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordSettlementRejectsForeignSource(t *testing.T) {
	engine, st, _ := newTestEngine(t)
	st.Seed(&domain.Account{
		ID:      "bank-theirs",
		OwnerID: "owner-2",
		Name:    "Everyday",
		Kind:    domain.KindBank,
		Balance: dec("500.00"),
	})

	_, err := engine.RecordSettlement(context.Background(), testOwner, SettlementParams{
		SourceAccountID:  "bank-theirs",
		CounterpartyName: "Alice",
		Amount:           dec("10.00"),
		IsOutgoing:       true,
	})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	theirs, err := st.GetAccount(context.Background(), "bank-theirs")
	require.NoError(t, err)
	assert.True(t, theirs.Balance.Equal(dec("500.00")))
}

func TestRecordSettlementReusesPersonAccount(t *testing.T) {
	engine, st, _ := newTestEngine(t)
	seedBank(st, "bank-1", "100.00")

	for range 2 {
		_, err := engine.RecordSettlement(context.Background(), testOwner, SettlementParams{
			SourceAccountID:  "bank-1",
			CounterpartyName: "Alice",
			Amount:           dec("10.00"),
			IsOutgoing:       true,
		})
		require.NoError(t, err)
	}

	accounts, err := st.ListAccounts(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, accounts, 2) // bank + one Alice

	alice, err := st.GetAccount(context.Background(), domain.AccountDocID(testOwner, domain.KindPerson, "alice"))
	require.NoError(t, err)
	assert.True(t, alice.Balance.Equal(dec("20.00")))
}

func TestRecordSettlementAtomicOnFailure(t *testing.T) {
	engine, st, _ := newTestEngine(t)
	seedBank(st, "bank-1", "10.00")

	_, err := engine.RecordSettlement(context.Background(), testOwner, SettlementParams{
		SourceAccountID:  "bank-1",
		CounterpartyName: "Bob",
		Amount:           dec("50.00"),
		IsOutgoing:       true,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// The person account created in the aborted scope must not survive, and
	// neither leg may be recorded.
	_, err = st.GetAccount(context.Background(), domain.AccountDocID(testOwner, domain.KindPerson, "bob"))
	require.ErrorIs(t, err, store.ErrNotFound)
	txns, err := st.ListTransactions(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Empty(t, txns)
	require.Len(t, st.Failures(), 1)
}

func TestRecordSettlementValidation(t *testing.T) {
	engine, st, _ := newTestEngine(t)

	tests := []struct {
		name   string
		params SettlementParams
	}{
		{
			name:   "missing source",
			params: SettlementParams{CounterpartyName: "Alice", Amount: dec("5.00")},
		},
		{
			name:   "missing counterparty",
			params: SettlementParams{SourceAccountID: "bank-1", Amount: dec("5.00")},
		},
		{
			name:   "non-positive amount",
			params: SettlementParams{SourceAccountID: "bank-1", CounterpartyName: "Alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.RecordSettlement(context.Background(), testOwner, tt.params)
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
		})
	}
	assert.Empty(t, st.Failures())
}
