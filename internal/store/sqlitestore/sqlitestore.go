// Package sqlitestore implements the ledger store on an embedded SQLite
// database. Units of work run as SQL transactions serialized on a single
// connection, and the UNIQUE index on (owner_id, kind, identity) is the
// constraint that makes account find-or-create race-safe.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
	"github.com/rumor-ml/commons.systems/ledgerd/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	name           TEXT NOT NULL,
	kind           TEXT NOT NULL,
	provider       TEXT NOT NULL DEFAULT '',
	balance        TEXT NOT NULL,
	account_number TEXT NOT NULL DEFAULT '',
	wallet_email   TEXT NOT NULL DEFAULT '',
	is_manual      INTEGER NOT NULL DEFAULT 0,
	notes          TEXT NOT NULL DEFAULT '',
	card_number    TEXT NOT NULL DEFAULT '',
	expiry_date    TEXT NOT NULL DEFAULT '',
	card_limit     TEXT NOT NULL DEFAULT '',
	used_balance   TEXT NOT NULL DEFAULT '',
	identity       TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_identity
	ON accounts(owner_id, kind, identity);

CREATE TABLE IF NOT EXISTS transactions (
	id                    TEXT PRIMARY KEY,
	owner_id              TEXT NOT NULL,
	type                  TEXT NOT NULL,
	amount                TEXT NOT NULL,
	from_account_id       TEXT NOT NULL DEFAULT '',
	to_account_id         TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	category              TEXT NOT NULL DEFAULT '',
	sub_category          TEXT NOT NULL DEFAULT '',
	notes                 TEXT NOT NULL DEFAULT '',
	date                  TEXT NOT NULL,
	is_auto_categorized   INTEGER NOT NULL DEFAULT 0,
	is_from_upload        INTEGER NOT NULL DEFAULT 0,
	linked_transaction_id TEXT NOT NULL DEFAULT '',
	dedup_key             TEXT NOT NULL DEFAULT '',
	created_at            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_owner_dedup
	ON transactions(owner_id, dedup_key);
CREATE INDEX IF NOT EXISTS idx_transactions_owner_date
	ON transactions(owner_id, date);

CREATE TABLE IF NOT EXISTS failed_transactions (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	raw_data       BLOB NOT NULL,
	schema_version INTEGER NOT NULL,
	error          TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
`

// Store implements store.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. Use ":memory:" for an
// ephemeral database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// SQLite allows one writer; serialize access through a single connection
	// so concurrent units of work queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type txUnit struct {
	ctx context.Context
	tx  *sql.Tx
}

// RunTransaction executes fn inside one SQL transaction.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	t := &txUnit{ctx: ctx, tx: sqlTx}
	if err := fn(t); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const accountColumns = `id, owner_id, name, kind, provider, balance,
	account_number, wallet_email, is_manual, notes,
	card_number, expiry_date, card_limit, used_balance`

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		a                      domain.Account
		kind, balance          string
		cardNumber, expiryDate string
		cardLimit, usedBalance string
	)
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &kind, &a.Provider, &balance,
		&a.AccountNumber, &a.WalletEmail, &a.IsManual, &a.Notes,
		&cardNumber, &expiryDate, &cardLimit, &usedBalance)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	a.Kind = domain.AccountKind(kind)
	a.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("account %s: invalid balance %q: %w", a.ID, balance, err)
	}
	if a.Kind == domain.KindCredit {
		limit, err := decimal.NewFromString(cardLimit)
		if err != nil {
			return nil, fmt.Errorf("account %s: invalid card limit %q: %w", a.ID, cardLimit, err)
		}
		used, err := decimal.NewFromString(usedBalance)
		if err != nil {
			return nil, fmt.Errorf("account %s: invalid used balance %q: %w", a.ID, usedBalance, err)
		}
		a.Credit = &domain.CreditDetails{
			CardNumber:  cardNumber,
			ExpiryDate:  expiryDate,
			CardLimit:   limit,
			UsedBalance: used,
		}
	}
	return &a, nil
}

func accountArgs(a *domain.Account) []any {
	var cardNumber, expiryDate, cardLimit, usedBalance string
	if a.Credit != nil {
		cardNumber = a.Credit.CardNumber
		expiryDate = a.Credit.ExpiryDate
		cardLimit = a.Credit.CardLimit.String()
		usedBalance = a.Credit.UsedBalance.String()
	}
	return []any{a.ID, a.OwnerID, a.Name, string(a.Kind), a.Provider,
		a.Balance.String(), a.AccountNumber, a.WalletEmail, a.IsManual, a.Notes,
		cardNumber, expiryDate, cardLimit, usedBalance}
}

func (t *txUnit) GetAccount(id string) (*domain.Account, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (t *txUnit) FindAccountByIdentity(ownerID string, kind domain.AccountKind, identity string) (*domain.Account, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE owner_id = ? AND kind = ? AND identity = ?`,
		ownerID, string(kind), identity)
	return scanAccount(row)
}

func (t *txUnit) CreateAccount(a *domain.Account) error {
	identity := a.IdentityKey()
	if a.ID == "" {
		a.ID = domain.AccountDocID(a.OwnerID, a.Kind, identity)
	}
	args := append(accountArgs(a), identity)
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO accounts (`+accountColumns+`, identity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAccountExists
		}
		return fmt.Errorf("failed to insert account %s: %w", a.ID, err)
	}
	return nil
}

func (t *txUnit) PutAccount(a *domain.Account) error {
	args := append(accountArgs(a)[1:], a.ID)
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE accounts SET owner_id = ?, name = ?, kind = ?, provider = ?,
		 balance = ?, account_number = ?, wallet_email = ?, is_manual = ?,
		 notes = ?, card_number = ?, expiry_date = ?, card_limit = ?,
		 used_balance = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", a.ID, err)
	}
	return nil
}

const txnColumns = `id, owner_id, type, amount, from_account_id, to_account_id,
	description, category, sub_category, notes, date,
	is_auto_categorized, is_from_upload, linked_transaction_id,
	dedup_key, created_at`

func scanTransaction(scan func(dest ...any) error) (*domain.Transaction, error) {
	var (
		txn             domain.Transaction
		typ, amount     string
		date, createdAt string
	)
	err := scan(&txn.ID, &txn.OwnerID, &typ, &amount, &txn.FromAccountID,
		&txn.ToAccountID, &txn.Description, &txn.Category, &txn.SubCategory,
		&txn.Notes, &date, &txn.IsAutoCategorized, &txn.IsFromUpload,
		&txn.LinkedTransactionID, &txn.DedupKey, &createdAt)
	if err != nil {
		return nil, err
	}
	txn.Type = domain.TransactionType(typ)
	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: invalid amount %q: %w", txn.ID, amount, err)
	}
	txn.Date, err = time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: invalid date %q: %w", txn.ID, date, err)
	}
	txn.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: invalid created_at %q: %w", txn.ID, createdAt, err)
	}
	return &txn, nil
}

func (t *txUnit) FindTransactionByDedupKey(ownerID, key string) (*domain.Transaction, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT `+txnColumns+` FROM transactions
		 WHERE owner_id = ? AND dedup_key = ? LIMIT 1`, ownerID, key)
	txn, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction by dedup key: %w", err)
	}
	return txn, nil
}

func (t *txUnit) CreateTransaction(txn *domain.Transaction) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO transactions (`+txnColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.OwnerID, string(txn.Type), txn.Amount.String(),
		txn.FromAccountID, txn.ToAccountID, txn.Description, txn.Category,
		txn.SubCategory, txn.Notes, txn.Date.Format(time.RFC3339Nano),
		txn.IsAutoCategorized, txn.IsFromUpload, txn.LinkedTransactionID,
		txn.DedupKey, txn.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	return nil
}

// GetAccount reads one account outside any atomic scope.
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// ListAccounts returns all accounts for an owner.
func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM accounts WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		a, err := s.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// ListTransactions returns the owner's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, ownerID string) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txnColumns+` FROM transactions
		 WHERE owner_id = ? ORDER BY date DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// AppendFailure writes a failure audit record outside any atomic scope.
func (s *Store) AppendFailure(ctx context.Context, f *domain.FailedTransaction) error {
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failed_transactions
		 (id, owner_id, raw_data, schema_version, error, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OwnerID, f.RawData, f.SchemaVersion, f.Error, string(f.Status),
		createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append failure record %s: %w", f.ID, err)
	}
	return nil
}
