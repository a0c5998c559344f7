// Package memory provides an in-process store for tests and single-process
// deployments. All access is serialized: a transaction holds the store
// exclusively from Begin until Commit or Rollback, and every write records
// an undo step so a rollback (or a failed batch) restores the prior state.
//
// A goroutine holding an open unit of work must route every call through
// it: a direct call on the Store waits for the transaction to end.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/external"
	"github.com/xraph/wallet/id"
	walletstore "github.com/xraph/wallet/store"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
	"github.com/xraph/wallet/webhook"
)

// compile-time interface checks
var (
	_ walletstore.Store = (*Store)(nil)
	_ walletstore.Tx    = (*Tx)(nil)
	_ webhook.Store     = (*Store)(nil)
)

type state struct {
	accounts     map[account.Beneficiary]*account.Account
	transactions []*transaction.Transaction
	externals    map[string]*external.ExternalTransaction
	externalKeys map[string]string // external_transaction_id -> id
	externalLogs []*external.Log
}

// Store implements store.Store in memory.
type Store struct {
	sem   chan struct{}
	state *state
	now   func() time.Time

	webhookMu sync.Mutex
	webhooks  map[string]*webhook.Entry
}

// New creates an empty memory store.
func New() *Store {
	return &Store{
		sem: make(chan struct{}, 1),
		state: &state{
			accounts:     make(map[account.Beneficiary]*account.Account),
			externals:    make(map[string]*external.ExternalTransaction),
			externalKeys: make(map[string]string),
		},
		now:      func() time.Time { return time.Now().UTC() },
		webhooks: make(map[string]*webhook.Entry),
	}
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.sem }

// Begin starts a transaction that holds the store until it ends.
func (s *Store) Begin(ctx context.Context) (walletstore.Tx, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	return &Tx{
		txn:        &txn{st: s.state, now: s.now},
		s:          s,
		savepoints: make(map[string]int),
	}, nil
}

// run executes fn as its own transaction: it commits on success and
// undoes every recorded step on error.
func run[T any](ctx context.Context, s *Store, fn func(q *txn) (T, error)) (T, error) {
	var zero T
	if err := s.acquire(ctx); err != nil {
		return zero, err
	}
	defer s.release()

	q := &txn{st: s.state, now: s.now}
	out, err := fn(q)
	if err != nil {
		q.undoTo(0)
		return zero, err
	}
	return out, nil
}

func exec(ctx context.Context, s *Store, fn func(q *txn) error) error {
	_, err := run(ctx, s, func(q *txn) (struct{}, error) { return struct{}{}, fn(q) })
	return err
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// ==================== Account Store ====================

func (s *Store) GetBalance(ctx context.Context, b account.Beneficiary) (types.Amount, error) {
	return run(ctx, s, func(q *txn) (types.Amount, error) { return q.GetBalance(ctx, b) })
}

func (s *Store) GetAccount(ctx context.Context, b account.Beneficiary) (*account.Account, error) {
	return run(ctx, s, func(q *txn) (*account.Account, error) { return q.GetAccount(ctx, b) })
}

func (s *Store) ListBalances(ctx context.Context, owner string, ns account.Namespace) ([]*account.Account, error) {
	return run(ctx, s, func(q *txn) ([]*account.Account, error) { return q.ListBalances(ctx, owner, ns) })
}

func (s *Store) ListBalancesBySymbols(ctx context.Context, symbols []string, ns account.Namespace, owner string) ([]*account.Account, error) {
	return run(ctx, s, func(q *txn) ([]*account.Account, error) {
		return q.ListBalancesBySymbols(ctx, symbols, ns, owner)
	})
}

func (s *Store) ApplyDeltas(ctx context.Context, deltas []account.Delta) ([]*account.Account, error) {
	return run(ctx, s, func(q *txn) ([]*account.Account, error) { return q.ApplyDeltas(ctx, deltas) })
}

func (s *Store) BurnAll(ctx context.Context, owners []string, ns account.Namespace, symbol string) (int64, error) {
	return run(ctx, s, func(q *txn) (int64, error) { return q.BurnAll(ctx, owners, ns, symbol) })
}

// ==================== Transaction Store ====================

func (s *Store) AppendTransaction(ctx context.Context, t *transaction.Transaction) error {
	return exec(ctx, s, func(q *txn) error { return q.AppendTransaction(ctx, t) })
}

func (s *Store) GetTransaction(ctx context.Context, txID id.TransactionID) (*transaction.Transaction, error) {
	return run(ctx, s, func(q *txn) (*transaction.Transaction, error) { return q.GetTransaction(ctx, txID) })
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	return run(ctx, s, func(q *txn) ([]*transaction.Transaction, error) { return q.ListTransactions(ctx, opts) })
}

func (s *Store) SumTransactions(ctx context.Context, opts transaction.SumOpts) (types.Amount, error) {
	return run(ctx, s, func(q *txn) (types.Amount, error) { return q.SumTransactions(ctx, opts) })
}

// ==================== External Transaction Store ====================

func (s *Store) CreateExternalTransaction(ctx context.Context, t *external.ExternalTransaction) error {
	return exec(ctx, s, func(q *txn) error { return q.CreateExternalTransaction(ctx, t) })
}

func (s *Store) GetExternalTransaction(ctx context.Context, txID id.ExternalTransactionID) (*external.ExternalTransaction, error) {
	return run(ctx, s, func(q *txn) (*external.ExternalTransaction, error) {
		return q.GetExternalTransaction(ctx, txID)
	})
}

func (s *Store) GetExternalTransactionByExternalID(ctx context.Context, externalID string, forUpdate bool) (*external.ExternalTransaction, error) {
	return run(ctx, s, func(q *txn) (*external.ExternalTransaction, error) {
		return q.GetExternalTransactionByExternalID(ctx, externalID, forUpdate)
	})
}

func (s *Store) UpdateExternalTransactionStatus(ctx context.Context, txID id.ExternalTransactionID, status external.Status, hash string) error {
	return exec(ctx, s, func(q *txn) error { return q.UpdateExternalTransactionStatus(ctx, txID, status, hash) })
}

func (s *Store) GetExternalTransactionByHash(ctx context.Context, hash string) (*external.ExternalTransaction, error) {
	return run(ctx, s, func(q *txn) (*external.ExternalTransaction, error) {
		return q.GetExternalTransactionByHash(ctx, hash)
	})
}

func (s *Store) GetLastExternalByBlockNumber(ctx context.Context, originator external.Originator, status external.Status, network external.NetworkCode) (*external.ExternalTransaction, error) {
	return run(ctx, s, func(q *txn) (*external.ExternalTransaction, error) {
		return q.GetLastExternalByBlockNumber(ctx, originator, status, network)
	})
}

func (s *Store) ListExternalTransactions(ctx context.Context, opts external.ListOpts) ([]*external.ExternalTransaction, error) {
	return run(ctx, s, func(q *txn) ([]*external.ExternalTransaction, error) {
		return q.ListExternalTransactions(ctx, opts)
	})
}

func (s *Store) AppendExternalLog(ctx context.Context, l *external.Log) error {
	return exec(ctx, s, func(q *txn) error { return q.AppendExternalLog(ctx, l) })
}

func (s *Store) GetExternalLogByHash(ctx context.Context, hash string) (*external.Log, error) {
	return run(ctx, s, func(q *txn) (*external.Log, error) { return q.GetExternalLogByHash(ctx, hash) })
}

func (s *Store) ListExternalLogs(ctx context.Context, opts external.LogListOpts) ([]*external.Log, error) {
	return run(ctx, s, func(q *txn) ([]*external.Log, error) { return q.ListExternalLogs(ctx, opts) })
}

func (s *Store) SumExternalLogAmount(ctx context.Context, originator external.Originator, internalUserID string) (types.Amount, error) {
	return run(ctx, s, func(q *txn) (types.Amount, error) {
		return q.SumExternalLogAmount(ctx, originator, internalUserID)
	})
}

// ==================== Tx ====================

// Tx is a memory transaction. It owns the store until it ends.
type Tx struct {
	*txn
	s          *Store
	savepoints map[string]int
}

func (t *Tx) Savepoint(_ context.Context, name string) error {
	if t.done {
		return walletstore.ErrTxDone
	}
	t.savepoints[name] = len(t.journal)
	return nil
}

func (t *Tx) RollbackTo(_ context.Context, name string) error {
	if t.done {
		return walletstore.ErrTxDone
	}
	mark, ok := t.savepoints[name]
	if !ok {
		return walletstore.ErrNotFound
	}
	t.undoTo(mark)
	return nil
}

func (t *Tx) Release(_ context.Context, name string) error {
	if t.done {
		return walletstore.ErrTxDone
	}
	delete(t.savepoints, name)
	return nil
}

func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return walletstore.ErrTxDone
	}
	t.done = true
	t.journal = nil
	t.s.release()
	return nil
}

func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return walletstore.ErrTxDone
	}
	t.undoTo(0)
	t.done = true
	t.s.release()
	return nil
}
