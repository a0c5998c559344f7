// Package postgres implements store.Store on PostgreSQL through the grove
// pgdriver.
//
// Balances live in a NUMERIC(78,0) column guarded by a CHECK (balance >= 0)
// constraint. Every balance change is one multi-row
// "balance = balance + delta" UPDATE over rows locked in a fixed order, so
// concurrent debits serialize on the row locks and an overdraft fails the
// whole statement.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/pgdriver/pgmigrate"
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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	*queries
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a PostgreSQL store on an open grove handle.
func New(db *grove.DB) *Store {
	pg := pgdriver.Unwrap(db)
	return &Store{queries: &queries{db: pg}, db: db, pg: pg}
}

// Connect opens a pgx pool for dsn and wraps it in a grove handle.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pg := pgdriver.New()
	if err := pg.Open(ctx, dsn); err != nil {
		return nil, fmt.Errorf("wallet/postgres: open: %w", err)
	}
	db, err := grove.Open(pg)
	if err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("wallet/postgres: open grove: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	orch := migrate.NewOrchestrator(pgmigrate.New(s.pg), Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("wallet/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts a READ COMMITTED transaction. The atomic increment does not
// need a stronger level.
func (s *Store) Begin(ctx context.Context) (walletstore.Tx, error) {
	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	return &Tx{queries: &queries{db: tx}, tx: tx}, nil
}

// inTx runs fn in its own transaction for the multi-statement writes.
func (s *Store) inTx(ctx context.Context, fn func(q *queries) error) error {
	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	return classify(tx.Commit())
}

// ApplyDeltas runs its statements in one transaction.
func (s *Store) ApplyDeltas(ctx context.Context, deltas []account.Delta) ([]*account.Account, error) {
	var result []*account.Account
	err := s.inTx(ctx, func(q *queries) error {
		var err error
		result, err = q.ApplyDeltas(ctx, deltas)
		return err
	})
	return result, err
}

// CreateExternalTransaction writes the transaction and its queue item in
// one transaction.
func (s *Store) CreateExternalTransaction(ctx context.Context, t *external.ExternalTransaction) error {
	return s.inTx(ctx, func(q *queries) error {
		return q.CreateExternalTransaction(ctx, t)
	})
}

// ==================== Tx ====================

// Tx is one PostgreSQL transaction.
type Tx struct {
	*queries
	tx *pgdriver.PgTx
}

func (t *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.NewRaw("SAVEPOINT " + pgx.Identifier{name}.Sanitize()).Exec(ctx)
	return classify(err)
}

func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	_, err := t.tx.NewRaw("ROLLBACK TO SAVEPOINT " + pgx.Identifier{name}.Sanitize()).Exec(ctx)
	return classify(err)
}

func (t *Tx) Release(ctx context.Context, name string) error {
	_, err := t.tx.NewRaw("RELEASE SAVEPOINT " + pgx.Identifier{name}.Sanitize()).Exec(ctx)
	return classify(err)
}

func (t *Tx) Commit(_ context.Context) error {
	return classify(t.tx.Commit())
}

func (t *Tx) Rollback(_ context.Context) error {
	return classify(t.tx.Rollback())
}
