package wallet

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/external"
	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/store"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
)

// UnitOfWork groups balance operations and external transaction writes
// into one database transaction with explicit Begin, Commit and Rollback.
//
// While no transaction is active every call auto-commits on its own. Once
// Begin succeeds, calls join the transaction. A failed call is rolled back
// to a savepoint taken just before it, so its partial effects are gone but
// earlier work in the unit survives; the unit is never rolled back on the
// caller's behalf.
//
// A UnitOfWork owns one store transaction and is not safe for concurrent
// use. Plugin hooks for its operations fire after Commit.
type UnitOfWork struct {
	w *Wallet

	tx      store.Tx
	pending []func(context.Context)
	ops     int
	seq     int
}

// NewUnitOfWork returns an inactive unit of work bound to w.
func (w *Wallet) NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{w: w}
}

// RunInUnitOfWork begins a unit of work, runs fn and commits when fn
// returns nil. It rolls back when fn fails or panics.
func (w *Wallet) RunInUnitOfWork(ctx context.Context, fn func(u *UnitOfWork) error) (err error) {
	u := w.NewUnitOfWork()
	if err := u.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = u.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rerr := u.Rollback(context.WithoutCancel(ctx)); rerr != nil {
				w.logger.Error("unit of work rollback failed", "error", rerr)
			}
			return
		}
		err = u.Commit(ctx)
	}()

	return fn(u)
}

// Active reports whether a transaction is open.
func (u *UnitOfWork) Active() bool { return u.tx != nil }

// Tx returns the open store transaction.
func (u *UnitOfWork) Tx() (store.Tx, error) {
	if u.tx == nil {
		return nil, ErrNoActiveUnitOfWork
	}
	return u.tx, nil
}

// Begin opens a transaction. It is a no-op when one is already open.
// ctx bounds the lifetime of the transaction, not just this call.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return nil
	}

	ctx, span := u.w.tracer.Start(ctx, "wallet.uow.begin")
	defer span.End()

	tx, err := u.w.store.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &StorageFailureError{Op: "begin", Err: err}
	}

	u.tx = tx
	u.pending = nil
	u.ops = 0
	u.w.logger.Debug("unit of work started")
	return nil
}

// Commit commits the open transaction and then delivers the plugin hooks
// of its operations. It is a no-op when no transaction is open. A failed
// commit leaves the outcome unknown.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	ctx, span := u.w.tracer.Start(ctx, "wallet.uow.commit")
	defer span.End()

	tx, pending, ops := u.tx, u.pending, u.ops
	u.reset()

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		u.w.logger.Error("unit of work commit failed", "operations", ops, "error", err)
		return storageFailure("commit", err, true)
	}

	span.SetAttributes(attribute.Int("wallet.operations", ops))
	u.w.logger.Debug("unit of work committed", "operations", ops)

	for _, emit := range pending {
		emit(ctx)
	}
	u.w.plugins.EmitUnitOfWorkCommitted(ctx, ops)
	return nil
}

// Rollback discards the open transaction and the pending plugin hooks.
// It is a no-op when no transaction is open.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	ctx, span := u.w.tracer.Start(ctx, "wallet.uow.rollback")
	defer span.End()

	tx, discarded := u.tx, u.ops
	u.reset()

	// ErrTxDone means the driver already ended the transaction.
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, store.ErrTxDone) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return storageFailure("rollback", err, false)
	}

	u.w.logger.Debug("unit of work rolled back", "discarded", discarded)
	u.w.plugins.EmitUnitOfWorkRolledBack(ctx, discarded)
	return nil
}

func (u *UnitOfWork) reset() {
	u.tx = nil
	u.pending = nil
	u.ops = 0
}

// querier routes a call to the open transaction, or to the store.
func (u *UnitOfWork) querier() store.Querier {
	if u.tx != nil {
		return u.tx
	}
	return u.w.store
}

// write runs fn inside the open transaction behind a savepoint, or against
// the store when no transaction is open.
func (u *UnitOfWork) write(ctx context.Context, fn func(q store.Querier) error) error {
	if u.tx == nil {
		return fn(u.w.store)
	}

	u.seq++
	name := fmt.Sprintf("wallet_sp_%d", u.seq)
	if err := u.tx.Savepoint(ctx, name); err != nil {
		return err
	}

	if err := fn(u.tx); err != nil {
		if rerr := u.tx.RollbackTo(context.WithoutCancel(ctx), name); rerr != nil {
			return fmt.Errorf("%v; rollback to savepoint: %w", err, rerr)
		}
		return err
	}
	return u.tx.Release(ctx, name)
}

// execute runs m in the open transaction, or on its own when none is open.
func (u *UnitOfWork) execute(ctx context.Context, m *mutation) (*Result, error) {
	if u.tx == nil {
		return u.w.execute(ctx, m)
	}

	ctx, cancel := u.w.withTimeout(ctx)
	defer cancel()

	var res *Result
	err := u.write(ctx, func(q store.Querier) error {
		var err error
		res, err = m.apply(ctx, q)
		return err
	})
	if err != nil {
		return nil, u.w.translate(ctx, u.tx, m, err)
	}

	u.ops++
	u.pending = append(u.pending, func(ctx context.Context) { m.emit(ctx, res) })
	return res, nil
}

// ──────────────────────────────────────────────────
// Balance operations
// ──────────────────────────────────────────────────

// Mint is Wallet.Mint inside the unit of work.
func (u *UnitOfWork) Mint(ctx context.Context, b account.Beneficiary, amount string) (*Result, error) {
	return u.w.do(ctx, opMint, beneficiaryAttrs(b, amount), func() (*mutation, error) {
		return u.w.prepareMint(b, amount)
	}, u.execute)
}

// Burn is Wallet.Burn inside the unit of work.
func (u *UnitOfWork) Burn(ctx context.Context, b account.Beneficiary, amount string) (*Result, error) {
	return u.w.do(ctx, opBurn, beneficiaryAttrs(b, amount), func() (*mutation, error) {
		return u.w.prepareBurn(b, amount)
	}, u.execute)
}

// Transfer is Wallet.Transfer inside the unit of work.
func (u *UnitOfWork) Transfer(ctx context.Context, sender, receiver account.Beneficiary, amount string) (*Result, error) {
	return u.w.do(ctx, opTransfer, transferAttrs(sender, receiver, amount), func() (*mutation, error) {
		return u.w.prepareTransfer(sender, receiver, amount)
	}, u.execute)
}

// BurnAll is Wallet.BurnAll inside the unit of work.
func (u *UnitOfWork) BurnAll(ctx context.Context, owners []string, ns account.Namespace, symbol string) (int64, error) {
	res, err := u.w.do(ctx, opBurnAll, burnAllAttrs(owners, ns, symbol), func() (*mutation, error) {
		return u.w.prepareBurnAll(owners, ns, symbol)
	}, u.execute)
	if err != nil {
		return 0, err
	}
	return res.Affected, nil
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// GetBalance sees the uncommitted writes of the unit of work.
func (u *UnitOfWork) GetBalance(ctx context.Context, b account.Beneficiary) (types.Amount, error) {
	return u.w.getBalance(ctx, u.querier(), b)
}

func (u *UnitOfWork) GetAccount(ctx context.Context, b account.Beneficiary) (*account.Account, error) {
	return u.w.getAccount(ctx, u.querier(), b)
}

func (u *UnitOfWork) ListBalances(ctx context.Context, owner string, ns account.Namespace) ([]*account.Account, error) {
	return u.w.listBalances(ctx, u.querier(), owner, ns)
}

func (u *UnitOfWork) ListBalancesBySymbols(ctx context.Context, symbols []string, ns account.Namespace, owner string) ([]*account.Account, error) {
	return u.w.listBalancesBySymbols(ctx, u.querier(), symbols, ns, owner)
}

func (u *UnitOfWork) GetTransaction(ctx context.Context, txID id.TransactionID) (*transaction.Transaction, error) {
	return u.w.getTransaction(ctx, u.querier(), txID)
}

func (u *UnitOfWork) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	return u.w.listTransactions(ctx, u.querier(), opts)
}

// ──────────────────────────────────────────────────
// External transactions
// ──────────────────────────────────────────────────

// External returns the external transaction collaborator bound to this
// unit of work. Calls made while a transaction is open join it; errors are
// the store's own.
func (u *UnitOfWork) External() external.Store {
	return unitExternal{u: u}
}

type unitExternal struct {
	u *UnitOfWork
}

var _ external.Store = unitExternal{}

func (e unitExternal) CreateExternalTransaction(ctx context.Context, t *external.ExternalTransaction) error {
	return e.u.write(ctx, func(q store.Querier) error {
		return q.CreateExternalTransaction(ctx, t)
	})
}

func (e unitExternal) GetExternalTransaction(ctx context.Context, txID id.ExternalTransactionID) (*external.ExternalTransaction, error) {
	return e.u.querier().GetExternalTransaction(ctx, txID)
}

func (e unitExternal) GetExternalTransactionByExternalID(ctx context.Context, externalID string, forUpdate bool) (*external.ExternalTransaction, error) {
	return e.u.querier().GetExternalTransactionByExternalID(ctx, externalID, forUpdate)
}

func (e unitExternal) UpdateExternalTransactionStatus(ctx context.Context, txID id.ExternalTransactionID, status external.Status, hash string) error {
	return e.u.write(ctx, func(q store.Querier) error {
		return q.UpdateExternalTransactionStatus(ctx, txID, status, hash)
	})
}

func (e unitExternal) GetExternalTransactionByHash(ctx context.Context, hash string) (*external.ExternalTransaction, error) {
	return e.u.querier().GetExternalTransactionByHash(ctx, hash)
}

func (e unitExternal) GetLastExternalByBlockNumber(ctx context.Context, originator external.Originator, status external.Status, network external.NetworkCode) (*external.ExternalTransaction, error) {
	return e.u.querier().GetLastExternalByBlockNumber(ctx, originator, status, network)
}

func (e unitExternal) ListExternalTransactions(ctx context.Context, opts external.ListOpts) ([]*external.ExternalTransaction, error) {
	return e.u.querier().ListExternalTransactions(ctx, opts)
}

func (e unitExternal) AppendExternalLog(ctx context.Context, l *external.Log) error {
	return e.u.write(ctx, func(q store.Querier) error {
		return q.AppendExternalLog(ctx, l)
	})
}

func (e unitExternal) GetExternalLogByHash(ctx context.Context, hash string) (*external.Log, error) {
	return e.u.querier().GetExternalLogByHash(ctx, hash)
}

func (e unitExternal) ListExternalLogs(ctx context.Context, opts external.LogListOpts) ([]*external.Log, error) {
	return e.u.querier().ListExternalLogs(ctx, opts)
}

func (e unitExternal) SumExternalLogAmount(ctx context.Context, originator external.Originator, internalUserID string) (types.Amount, error) {
	return e.u.querier().SumExternalLogAmount(ctx, originator, internalUserID)
}
