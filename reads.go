package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/store"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
)

// Reads take the querier explicitly so a unit of work can route them
// through its transaction.

func (w *Wallet) getBalance(ctx context.Context, q store.Querier, b account.Beneficiary) (types.Amount, error) {
	if err := validateBeneficiary(b); err != nil {
		return types.Amount{}, err
	}
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	balance, err := q.GetBalance(ctx, b)
	if err != nil {
		return types.Amount{}, storageFailure("get_balance", err, false)
	}
	return balance, nil
}

func (w *Wallet) getAccount(ctx context.Context, q store.Querier, b account.Beneficiary) (*account.Account, error) {
	if err := validateBeneficiary(b); err != nil {
		return nil, err
	}
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	a, err := q.GetAccount(ctx, b)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &AccountNotFoundError{Beneficiary: b}
	}
	if err != nil {
		return nil, storageFailure("get_account", err, false)
	}
	return a, nil
}

func (w *Wallet) listBalances(ctx context.Context, q store.Querier, owner string, ns account.Namespace) ([]*account.Account, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	accounts, err := q.ListBalances(ctx, owner, ns)
	if err != nil {
		return nil, storageFailure("list_balances", err, false)
	}
	return accounts, nil
}

func (w *Wallet) listBalancesBySymbols(ctx context.Context, q store.Querier, symbols []string, ns account.Namespace, owner string) ([]*account.Account, error) {
	if len(symbols) == 0 {
		return []*account.Account{}, nil
	}
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	accounts, err := q.ListBalancesBySymbols(ctx, symbols, ns, owner)
	if err != nil {
		return nil, storageFailure("list_balances_by_symbols", err, false)
	}
	return accounts, nil
}

func (w *Wallet) getTransaction(ctx context.Context, q store.Querier, txID id.TransactionID) (*transaction.Transaction, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	t, err := q.GetTransaction(ctx, txID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("wallet: transaction %s: %w", txID, err)
	}
	if err != nil {
		return nil, storageFailure("get_transaction", err, false)
	}
	return t, nil
}

func (w *Wallet) listTransactions(ctx context.Context, q store.Querier, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	txs, err := q.ListTransactions(ctx, opts)
	if err != nil {
		return nil, storageFailure("list_transactions", err, false)
	}
	return txs, nil
}

func (w *Wallet) sumTransactions(ctx context.Context, q store.Querier, opts transaction.SumOpts) (types.Amount, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	total, err := q.SumTransactions(ctx, opts)
	if err != nil {
		return types.Amount{}, storageFailure("sum_transactions", err, false)
	}
	return total, nil
}
