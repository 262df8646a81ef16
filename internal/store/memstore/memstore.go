// Package memstore is an in-memory store used by tests and local
// development. A single mutex serializes units of work, and writes are
// staged until the unit of work returns, so a failed scope leaves no trace.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store"
)

// Store implements store.Store backed by maps.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
	failures     []*domain.FailedTransaction
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
	}
}

// Seed inserts an account directly, outside any unit of work. Test setup
// only; the caller provides the ID.
func (s *Store) Seed(a *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = copyAccount(a)
}

func copyAccount(a *domain.Account) *domain.Account {
	cp := *a
	if a.Credit != nil {
		credit := *a.Credit
		cp.Credit = &credit
	}
	return &cp
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	cp := *t
	return &cp
}

type tx struct {
	s *Store
	// staged writes, applied to the maps only on commit
	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
}

// RunTransaction executes fn under the store mutex with staged writes.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		s:            s,
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
	}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, a := range t.accounts {
		s.accounts[id] = a
	}
	for id, txn := range t.transactions {
		s.transactions[id] = txn
	}
	return nil
}

func (t *tx) GetAccount(id string) (*domain.Account, error) {
	if a, ok := t.accounts[id]; ok {
		return copyAccount(a), nil
	}
	if a, ok := t.s.accounts[id]; ok {
		return copyAccount(a), nil
	}
	return nil, store.ErrNotFound
}

func (t *tx) FindAccountByIdentity(ownerID string, kind domain.AccountKind, identity string) (*domain.Account, error) {
	id := domain.AccountDocID(ownerID, kind, identity)
	return t.GetAccount(id)
}

func (t *tx) CreateAccount(a *domain.Account) error {
	if a.ID == "" {
		a.ID = domain.AccountDocID(a.OwnerID, a.Kind, a.IdentityKey())
	}
	if _, ok := t.accounts[a.ID]; ok {
		return store.ErrAccountExists
	}
	if _, ok := t.s.accounts[a.ID]; ok {
		return store.ErrAccountExists
	}
	t.accounts[a.ID] = copyAccount(a)
	return nil
}

func (t *tx) PutAccount(a *domain.Account) error {
	t.accounts[a.ID] = copyAccount(a)
	return nil
}

func (t *tx) FindTransactionByDedupKey(ownerID, key string) (*domain.Transaction, error) {
	for _, txn := range t.transactions {
		if txn.OwnerID == ownerID && txn.DedupKey == key {
			return copyTransaction(txn), nil
		}
	}
	for _, txn := range t.s.transactions {
		if txn.OwnerID == ownerID && txn.DedupKey == key {
			return copyTransaction(txn), nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) CreateTransaction(txn *domain.Transaction) error {
	t.transactions[txn.ID] = copyTransaction(txn)
	return nil
}

// GetAccount reads a committed account outside any unit of work.
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return copyAccount(a), nil
	}
	return nil, store.ErrNotFound
}

// ListAccounts returns all committed accounts for an owner.
func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListTransactions returns the owner's committed transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, ownerID string) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Transaction
	for _, txn := range s.transactions {
		if txn.OwnerID == ownerID {
			out = append(out, copyTransaction(txn))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// AppendFailure records a failure audit entry.
func (s *Store) AppendFailure(ctx context.Context, f *domain.FailedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.failures = append(s.failures, &cp)
	return nil
}

// Failures returns the recorded failure audit entries. Test inspection only.
func (s *Store) Failures() []*domain.FailedTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.FailedTransaction, len(s.failures))
	copy(out, s.failures)
	return out
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
