package wallet

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/store"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
)

// mutation is one validated balance operation, ready to run against a
// Querier: either the store itself inside a fresh transaction, or the
// transaction of an active unit of work.
type mutation struct {
	op     string
	amount types.Amount

	// debit is the account that can run short, if any.
	debit *account.Beneficiary

	apply func(ctx context.Context, q store.Querier) (*Result, error)
	emit  func(ctx context.Context, res *Result)
}

// executor runs a mutation to completion.
type executor func(ctx context.Context, m *mutation) (*Result, error)

// do wraps an operation in a span, logs the outcome and reports failures
// to plugins. A nil mutation from prepare is a no-op.
func (w *Wallet) do(
	ctx context.Context,
	op string,
	attrs []attribute.KeyValue,
	prepare func() (*mutation, error),
	exec executor,
) (*Result, error) {
	ctx, span := w.tracer.Start(ctx, "wallet."+op, trace.WithAttributes(attrs...))
	defer span.End()

	m, err := prepare()
	if err == nil && m == nil {
		span.SetAttributes(attribute.Bool("wallet.noop", true))
		w.logger.Debug("balance operation skipped", "op", op, "reason", "zero amount")
		return &Result{}, nil
	}

	var res *Result
	if err == nil {
		res, err = exec(ctx, m)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.logFailure(op, err)
		w.plugins.EmitMutationFailed(ctx, op, err)
		return nil, err
	}

	if res.Transaction != nil {
		span.SetAttributes(attribute.String("wallet.transaction_id", res.Transaction.ID.String()))
		w.logger.Debug("balance operation applied",
			"op", op,
			"transaction_id", res.Transaction.ID.String(),
			"symbol", res.Transaction.Symbol,
			"amount", res.Transaction.Amount.String(),
		)
	} else {
		span.SetAttributes(attribute.Int64("wallet.affected", res.Affected))
		w.logger.Debug("balance operation applied", "op", op, "affected", res.Affected)
	}
	return res, nil
}

func (w *Wallet) logFailure(op string, err error) {
	var sf *StorageFailureError
	if errors.As(err, &sf) {
		w.logger.Error("balance operation failed",
			"op", op,
			"unknown_outcome", sf.Unknown,
			"error", err,
		)
		return
	}
	w.logger.Debug("balance operation rejected",
		"op", op,
		"kind", string(KindOf(err)),
		"error", err,
	)
}

// execute runs m in its own transaction and commits it.
func (w *Wallet) execute(ctx context.Context, m *mutation) (*Result, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	tx, err := w.store.Begin(ctx)
	if err != nil {
		return nil, &StorageFailureError{Op: m.op, Err: err}
	}
	// Rollback after Commit returns store.ErrTxDone and is ignored.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	res, err := m.apply(ctx, tx)
	if err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return nil, w.translate(ctx, w.store, m, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storageFailure(m.op, err, true)
	}

	m.emit(ctx, res)
	return res, nil
}

// translate maps a store error into the tagged error for m. q must be
// usable again: the failed write has already been rolled back.
func (w *Wallet) translate(ctx context.Context, q store.Querier, m *mutation, err error) error {
	if errors.Is(err, store.ErrNegativeBalance) && m.debit != nil {
		available, rerr := q.GetBalance(ctx, *m.debit)
		if rerr != nil {
			available = types.Zero()
		}
		return &InsufficientFundsError{
			Beneficiary: *m.debit,
			Amount:      m.amount,
			Available:   available,
		}
	}
	if errors.Is(err, store.ErrOverflow) {
		return &InvalidAmountError{Amount: m.amount.String(), Err: err}
	}
	return storageFailure(m.op, err, false)
}

func (w *Wallet) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, w.opTimeout)
}

// ──────────────────────────────────────────────────
// Preparation
// ──────────────────────────────────────────────────

// parseAmount accepts a non-negative integer string of minor units.
func parseAmount(raw string) (types.Amount, error) {
	amount, err := types.ParseAmount(raw)
	if err != nil {
		return types.Amount{}, &InvalidAmountError{Amount: raw, Err: err}
	}
	if amount.IsNegative() {
		return types.Amount{}, &InvalidAmountError{Amount: raw, Err: errNegativeAmount}
	}
	return amount, nil
}

func validateBeneficiary(b account.Beneficiary) error {
	if err := b.Validate(); err != nil {
		return &InvalidBeneficiaryError{Beneficiary: b, Err: err}
	}
	return nil
}

// ledgerWrite applies deltas and appends entry through the same querier.
func (w *Wallet) ledgerWrite(deltas []account.Delta, entry *transaction.Transaction) func(context.Context, store.Querier) (*Result, error) {
	return func(ctx context.Context, q store.Querier) (*Result, error) {
		balances, err := q.ApplyDeltas(ctx, deltas)
		if err != nil {
			return nil, err
		}

		logged := *entry
		logged.ID = id.NewTransactionID()
		logged.ExecutedAt = w.now()
		if err := q.AppendTransaction(ctx, &logged); err != nil {
			return nil, err
		}
		return &Result{Transaction: &logged, Balances: balances}, nil
	}
}

func (w *Wallet) prepareMint(b account.Beneficiary, raw string) (*mutation, error) {
	amount, err := parseAmount(raw)
	if err != nil || amount.IsZero() {
		return nil, err
	}
	if err := validateBeneficiary(b); err != nil {
		return nil, err
	}

	return &mutation{
		op:     opMint,
		amount: amount,
		apply: w.ledgerWrite(
			[]account.Delta{{Beneficiary: b, Amount: amount}},
			transaction.NewMint(b, amount),
		),
		emit: func(ctx context.Context, res *Result) {
			w.plugins.EmitMinted(ctx, res.Transaction, account.Find(res.Balances, b))
		},
	}, nil
}

func (w *Wallet) prepareBurn(b account.Beneficiary, raw string) (*mutation, error) {
	amount, err := parseAmount(raw)
	if err != nil || amount.IsZero() {
		return nil, err
	}
	if err := validateBeneficiary(b); err != nil {
		return nil, err
	}

	return &mutation{
		op:     opBurn,
		amount: amount,
		debit:  &b,
		apply: w.ledgerWrite(
			[]account.Delta{{Beneficiary: b, Amount: amount.Neg()}},
			transaction.NewBurn(b, amount),
		),
		emit: func(ctx context.Context, res *Result) {
			w.plugins.EmitBurned(ctx, res.Transaction, account.Find(res.Balances, b))
		},
	}, nil
}

func (w *Wallet) prepareTransfer(sender, receiver account.Beneficiary, raw string) (*mutation, error) {
	amount, err := parseAmount(raw)
	if err != nil {
		return nil, err
	}
	if sender.Symbol != receiver.Symbol {
		return nil, &SymbolMismatchError{Sender: sender, Receiver: receiver}
	}
	if amount.IsZero() {
		return nil, nil
	}
	if err := validateBeneficiary(sender); err != nil {
		return nil, err
	}
	if err := validateBeneficiary(receiver); err != nil {
		return nil, err
	}

	// A self-transfer merges into a zero delta: the balance is untouched
	// and the entry is still logged.
	return &mutation{
		op:     opTransfer,
		amount: amount,
		debit:  &sender,
		apply: w.ledgerWrite(
			[]account.Delta{
				{Beneficiary: sender, Amount: amount.Neg()},
				{Beneficiary: receiver, Amount: amount},
			},
			transaction.NewTransfer(sender, receiver, amount),
		),
		emit: func(ctx context.Context, res *Result) {
			w.plugins.EmitTransferred(ctx, res.Transaction,
				account.Find(res.Balances, sender),
				account.Find(res.Balances, receiver),
			)
		},
	}, nil
}

func (w *Wallet) prepareBurnAll(owners []string, ns account.Namespace, symbol string) (*mutation, error) {
	if !ns.Valid() {
		return nil, &InvalidBeneficiaryError{
			Beneficiary: account.NewBeneficiary("", ns, symbol),
			Err:         fmt.Errorf("account: unknown namespace %q", ns),
		}
	}
	if symbol == "" {
		return nil, &InvalidBeneficiaryError{
			Beneficiary: account.NewBeneficiary("", ns, symbol),
			Err:         errors.New("account: symbol is empty"),
		}
	}
	if len(owners) == 0 {
		return nil, nil
	}

	owners = append([]string(nil), owners...)
	return &mutation{
		op: opBurnAll,
		apply: func(ctx context.Context, q store.Querier) (*Result, error) {
			affected, err := q.BurnAll(ctx, owners, ns, symbol)
			if err != nil {
				return nil, err
			}
			return &Result{Affected: affected}, nil
		},
		emit: func(ctx context.Context, res *Result) {
			w.plugins.EmitBurnedAll(ctx, owners, ns, symbol, res.Affected)
		},
	}, nil
}

// ──────────────────────────────────────────────────
// Span attributes
// ──────────────────────────────────────────────────

func beneficiaryAttrs(b account.Beneficiary, amount string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("wallet.namespace", string(b.Namespace)),
		attribute.String("wallet.symbol", b.Symbol),
		attribute.String("wallet.amount", amount),
	}
}

func transferAttrs(sender, receiver account.Beneficiary, amount string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("wallet.namespace", string(sender.Namespace)),
		attribute.String("wallet.receiver_namespace", string(receiver.Namespace)),
		attribute.String("wallet.symbol", sender.Symbol),
		attribute.String("wallet.amount", amount),
	}
}

func burnAllAttrs(owners []string, ns account.Namespace, symbol string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("wallet.namespace", string(ns)),
		attribute.String("wallet.symbol", symbol),
		attribute.Int("wallet.owners", len(owners)),
	}
}
