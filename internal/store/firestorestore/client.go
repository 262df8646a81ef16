// Package firestorestore implements the ledger store on Cloud Firestore.
package firestorestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store"
)

const (
	accountsCollection = "ledger-accounts"
	txnsCollection     = "ledger-transactions"
	failuresCollection = "ledger-failed-transactions"
)

// Client wraps the Firestore client with ledger-specific operations.
type Client struct {
	Firestore *firestore.Client
	Auth      *auth.Client
	projectID string
}

// NewClient creates a new Firestore-backed store.
func NewClient(ctx context.Context, projectID string) (*Client, error) {
	conf := &firebase.Config{ProjectID: projectID}

	app, err := firebase.NewApp(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("failed to create Auth client: %w", err)
	}

	return &Client{
		Firestore: firestoreClient,
		Auth:      authClient,
		projectID: projectID,
	}, nil
}

// Close closes the Firestore client.
func (c *Client) Close() error {
	return c.Firestore.Close()
}

// txUnit adapts a Firestore transaction to store.Tx. Firestore requires all
// reads to precede all writes within a transaction, so writes are staged in
// memory and flushed after the unit of work returns; staged state shadows
// committed state for reads within the same scope.
type txUnit struct {
	c        *Client
	ftx      *firestore.Transaction
	accounts map[string]*domain.Account
	txns     map[string]*domain.Transaction
	// created tracks which staged accounts need Create (not Set) on flush so
	// concurrent creates of the same doc ID fail the commit and retry.
	created map[string]bool
}

// RunTransaction executes fn inside one Firestore transaction. Firestore
// retries fn on optimistic conflicts; exhausted retries map to ErrConflict.
func (c *Client) RunTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	err := c.Firestore.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		t := &txUnit{
			c:        c,
			ftx:      ftx,
			accounts: make(map[string]*domain.Account),
			txns:     make(map[string]*domain.Transaction),
			created:  make(map[string]bool),
		}
		if err := fn(t); err != nil {
			return err
		}
		return t.flush()
	})
	if status.Code(err) == codes.Aborted {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func (t *txUnit) flush() error {
	for id, a := range t.accounts {
		ref := t.c.Firestore.Collection(accountsCollection).Doc(id)
		doc := accountToDoc(a)
		if t.created[id] {
			if err := t.ftx.Create(ref, doc); err != nil {
				return fmt.Errorf("failed to create account %s: %w", id, err)
			}
			continue
		}
		if err := t.ftx.Set(ref, doc); err != nil {
			return fmt.Errorf("failed to write account %s: %w", id, err)
		}
	}
	for id, txn := range t.txns {
		ref := t.c.Firestore.Collection(txnsCollection).Doc(id)
		if err := t.ftx.Create(ref, txnToDoc(txn)); err != nil {
			return fmt.Errorf("failed to create transaction %s: %w", id, err)
		}
	}
	return nil
}

func (t *txUnit) GetAccount(id string) (*domain.Account, error) {
	if a, ok := t.accounts[id]; ok {
		return copyAccount(a), nil
	}
	snap, err := t.ftx.Get(t.c.Firestore.Collection(accountsCollection).Doc(id))
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account %s: %w", id, err)
	}
	return docToAccount(snap)
}

func (t *txUnit) FindAccountByIdentity(ownerID string, kind domain.AccountKind, identity string) (*domain.Account, error) {
	return t.GetAccount(domain.AccountDocID(ownerID, kind, identity))
}

func (t *txUnit) CreateAccount(a *domain.Account) error {
	if a.ID == "" {
		a.ID = domain.AccountDocID(a.OwnerID, a.Kind, a.IdentityKey())
	}
	if _, ok := t.accounts[a.ID]; ok {
		return store.ErrAccountExists
	}
	_, err := t.ftx.Get(t.c.Firestore.Collection(accountsCollection).Doc(a.ID))
	if err == nil {
		return store.ErrAccountExists
	}
	if status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to check account %s: %w", a.ID, err)
	}
	t.accounts[a.ID] = copyAccount(a)
	t.created[a.ID] = true
	return nil
}

func (t *txUnit) PutAccount(a *domain.Account) error {
	// An account staged by CreateAccount keeps its Create semantics on flush.
	t.accounts[a.ID] = copyAccount(a)
	return nil
}

func (t *txUnit) FindTransactionByDedupKey(ownerID, key string) (*domain.Transaction, error) {
	for _, txn := range t.txns {
		if txn.OwnerID == ownerID && txn.DedupKey == key {
			return copyTransaction(txn), nil
		}
	}
	query := t.c.Firestore.Collection(txnsCollection).
		Where("ownerId", "==", ownerID).
		Where("dedupKey", "==", key).
		Limit(1)
	iter := t.ftx.Documents(query)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for owner %s: %w", ownerID, err)
	}
	return docToTransaction(snap)
}

func (t *txUnit) CreateTransaction(txn *domain.Transaction) error {
	t.txns[txn.ID] = copyTransaction(txn)
	return nil
}

// GetAccount reads one account outside any atomic scope.
func (c *Client) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	snap, err := c.Firestore.Collection(accountsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account %s: %w", id, err)
	}
	return docToAccount(snap)
}

// ListAccounts retrieves all accounts for an owner.
func (c *Client) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	iter := c.Firestore.Collection(accountsCollection).
		Where("ownerId", "==", ownerID).
		Documents(ctx)
	defer iter.Stop()

	var accounts []*domain.Account
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate accounts for owner %s: %w", ownerID, err)
		}
		a, err := docToAccount(snap)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// ListTransactions retrieves all transactions for an owner, newest first.
func (c *Client) ListTransactions(ctx context.Context, ownerID string) ([]*domain.Transaction, error) {
	iter := c.Firestore.Collection(txnsCollection).
		Where("ownerId", "==", ownerID).
		OrderBy("date", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var txns []*domain.Transaction
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate transactions for owner %s: %w", ownerID, err)
		}
		txn, err := docToTransaction(snap)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// AppendFailure writes a failure audit record outside any atomic scope.
func (c *Client) AppendFailure(ctx context.Context, f *domain.FailedTransaction) error {
	doc := failureDoc{
		ID:            f.ID,
		OwnerID:       f.OwnerID,
		RawData:       string(f.RawData),
		SchemaVersion: f.SchemaVersion,
		Error:         f.Error,
		Status:        string(f.Status),
		CreatedAt:     f.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	_, err := c.Firestore.Collection(failuresCollection).Doc(f.ID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to append failure record %s: %w", f.ID, err)
	}
	return nil
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
