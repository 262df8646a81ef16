// Package store defines the persistence contract for the ledger: an atomic
// unit of work over accounts and transactions, plus per-owner lookups.
package store

import (
	"context"
	"errors"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
)

var (
	// ErrNotFound is returned by lookups that match nothing.
	ErrNotFound = errors.New("not found")
	// ErrAccountExists is returned by CreateAccount when the uniqueness
	// constraint on (owner, kind, identity) is violated. Callers performing
	// find-or-create retry as a lookup on this error.
	ErrAccountExists = errors.New("account already exists")
	// ErrConflict is returned by RunTransaction when the unit of work lost a
	// write conflict and exhausted its retries.
	ErrConflict = errors.New("transaction conflict")
)

// Tx is one atomic unit of work. All reads used for invariant checks must go
// through the Tx so they observe the state the commit will be serialized
// against; writes become visible together at commit or not at all.
type Tx interface {
	// GetAccount loads an account by ID. Returns ErrNotFound when missing.
	GetAccount(id string) (*domain.Account, error)
	// FindAccountByIdentity looks up the owner's account with the given kind
	// and identity key. Returns ErrNotFound when missing.
	FindAccountByIdentity(ownerID string, kind domain.AccountKind, identity string) (*domain.Account, error)
	// CreateAccount persists a new account. The store enforces the per-owner
	// (kind, identity) uniqueness constraint and returns ErrAccountExists on
	// violation, including races with concurrent units of work.
	CreateAccount(a *domain.Account) error
	// PutAccount writes back a mutated account.
	PutAccount(a *domain.Account) error
	// FindTransactionByDedupKey returns the owner's transaction carrying the
	// dedup key, or ErrNotFound.
	FindTransactionByDedupKey(ownerID, key string) (*domain.Transaction, error)
	// CreateTransaction persists a new transaction record.
	CreateTransaction(t *domain.Transaction) error
}

// Store is the ledger's persistence boundary.
type Store interface {
	// RunTransaction executes fn inside one atomic scope. If fn returns an
	// error the scope is rolled back and the error is returned unchanged.
	// Backends with optimistic concurrency may invoke fn more than once, so
	// fn must be side-effect free outside the Tx.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	// GetAccount is a read outside any atomic scope, for request validation
	// and result reporting only. Never use it for invariant checks.
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	// ListAccounts returns all accounts for an owner.
	ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error)
	// ListTransactions returns the owner's transactions, newest first.
	ListTransactions(ctx context.Context, ownerID string) ([]*domain.Transaction, error)
	// AppendFailure writes a failure audit record. Called outside any atomic
	// scope, after the scope it describes has been rolled back.
	AppendFailure(ctx context.Context, f *domain.FailedTransaction) error
	Close() error
}
