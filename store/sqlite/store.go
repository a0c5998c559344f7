// Package sqlite implements store.Store on SQLite through the grove
// sqlitedriver, which runs on the pure-Go modernc.org/sqlite driver.
//
// SQLite has no arbitrary-precision numeric type, so amounts are stored as
// canonical decimal text and added by the wallet_add SQL function. The
// non-negative balance rule is a CHECK on that text. Transactions begin
// IMMEDIATE, so writers serialize on the database lock and wait up to the
// busy timeout for it.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/external"
	walletstore "github.com/xraph/wallet/store"
	"github.com/xraph/wallet/webhook"
)

// compile-time interface checks
var (
	_ walletstore.Store = (*Store)(nil)
	_ walletstore.Tx    = (*Tx)(nil)
	_ webhook.Store     = (*Store)(nil)
)

// DefaultOptions are appended to a DSN that carries no query string.
const DefaultOptions = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	*queries
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a SQLite store on an open grove handle. The handle must have
// been opened after Connect, or RegisterFunctions, installed wallet_add.
func New(db *grove.DB) *Store {
	sdb := sqlitedriver.Unwrap(db)
	return &Store{queries: &queries{db: sdb, now: now}, db: db, sdb: sdb}
}

// RegisterFunctions installs the wallet SQL functions on every SQLite
// connection opened afterwards.
func RegisterFunctions() error { return registerFunctions() }

// Connect opens the database file at dsn. A bare path gets DefaultOptions.
// In-memory databases are limited to one connection.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("wallet/sqlite: register functions: %w", err)
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?" + DefaultOptions
	}

	var opts []driver.Option
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		opts = append(opts, driver.WithPoolSize(1))
	}

	sdb := sqlitedriver.New()
	if err := sdb.Open(ctx, dsn, opts...); err != nil {
		return nil, fmt.Errorf("wallet/sqlite: open: %w", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("wallet/sqlite: open grove: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	orch := migrate.NewOrchestrator(sqlitemigrate.New(s.sdb), Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("wallet/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts an IMMEDIATE transaction when the DSN sets _txlock.
func (s *Store) Begin(ctx context.Context) (walletstore.Tx, error) {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	return &Tx{queries: &queries{db: tx, now: s.now}, tx: tx}, nil
}

func (s *Store) inTx(ctx context.Context, fn func(q *queries) error) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&queries{db: tx, now: s.now}); err != nil {
		return err
	}
	return classify(tx.Commit())
}

// ApplyDeltas runs its two statements in one transaction.
func (s *Store) ApplyDeltas(ctx context.Context, deltas []account.Delta) ([]*account.Account, error) {
	var result []*account.Account
	err := s.inTx(ctx, func(q *queries) error {
		var err error
		result, err = q.ApplyDeltas(ctx, deltas)
		return err
	})
	return result, err
}

func (s *Store) CreateExternalTransaction(ctx context.Context, t *external.ExternalTransaction) error {
	return s.inTx(ctx, func(q *queries) error {
		return q.CreateExternalTransaction(ctx, t)
	})
}

// ==================== Tx ====================

// Tx is one SQLite transaction.
type Tx struct {
	*queries
	tx *sqlitedriver.SqliteTx
}

func (t *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.NewRaw("SAVEPOINT " + quoteIdent(name)).Exec(ctx)
	return classify(err)
}

func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	_, err := t.tx.NewRaw("ROLLBACK TO SAVEPOINT " + quoteIdent(name)).Exec(ctx)
	return classify(err)
}

func (t *Tx) Release(ctx context.Context, name string) error {
	_, err := t.tx.NewRaw("RELEASE SAVEPOINT " + quoteIdent(name)).Exec(ctx)
	return classify(err)
}

func (t *Tx) Commit(_ context.Context) error {
	return classify(t.tx.Commit())
}

func (t *Tx) Rollback(_ context.Context) error {
	return classify(t.tx.Rollback())
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func now() time.Time { return time.Now().UTC() }
