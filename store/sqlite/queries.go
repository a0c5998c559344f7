package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/external"
	"github.com/xraph/wallet/id"
	walletstore "github.com/xraph/wallet/store"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
)

// conn is satisfied by *sqlitedriver.SqliteDB and *sqlitedriver.SqliteTx.
type conn interface {
	NewRaw(query string, args ...any) *sqlitedriver.RawQuery
	NewInsert(model any) *sqlitedriver.InsertQuery
}

type queries struct {
	db  conn
	now func() time.Time
}

// ==================== Account Store ====================

const accountColumns = `owner_account, account_namespace, symbol, balance, created_at, updated_at`

func (q *queries) GetBalance(ctx context.Context, b account.Beneficiary) (types.Amount, error) {
	a, err := q.GetAccount(ctx, b)
	if errors.Is(err, walletstore.ErrNotFound) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Amount{}, err
	}
	return a.Balance, nil
}

func (q *queries) GetAccount(ctx context.Context, b account.Beneficiary) (*account.Account, error) {
	var models []accountModel
	err := q.db.NewRaw(`
SELECT `+accountColumns+` FROM wallet_accounts
WHERE owner_account = ? AND account_namespace = ? AND symbol = ?`,
		b.Owner, string(b.Namespace), b.Symbol,
	).Scan(ctx, &models)
	if err != nil {
		return nil, classify(err)
	}
	if len(models) == 0 {
		return nil, walletstore.ErrNotFound
	}
	return fromAccountModel(&models[0])
}

func (q *queries) ListBalances(ctx context.Context, owner string, ns account.Namespace) ([]*account.Account, error) {
	var models []accountModel
	err := q.db.NewRaw(`
SELECT `+accountColumns+` FROM wallet_accounts
WHERE owner_account = ? AND account_namespace = ?
ORDER BY symbol`,
		owner, string(ns),
	).Scan(ctx, &models)
	if err != nil {
		return nil, classify(err)
	}
	return fromAccountModels(models)
}

func (q *queries) ListBalancesBySymbols(ctx context.Context, symbols []string, ns account.Namespace, owner string) ([]*account.Account, error) {
	if len(symbols) == 0 {
		return []*account.Account{}, nil
	}
	w := &where{}
	w.add("account_namespace = ?", string(ns))
	w.in("symbol", symbols)
	if owner != "" {
		w.add("owner_account = ?", owner)
	}

	var models []accountModel
	err := q.db.NewRaw(`SELECT `+accountColumns+` FROM wallet_accounts`+w.String()+` ORDER BY owner_account, symbol`, w.args...).
		Scan(ctx, &models)
	if err != nil {
		return nil, classify(err)
	}
	return fromAccountModels(models)
}

// ApplyDeltas must run inside a transaction. Missing rows are created at
// zero first so the CHECK only ever sees the summed balance. The rows are
// visited in key order, matching the PostgreSQL store.
func (q *queries) ApplyDeltas(ctx context.Context, deltas []account.Delta) ([]*account.Account, error) {
	merged := account.MergeDeltas(deltas)
	if len(merged) == 0 {
		return []*account.Account{}, nil
	}

	ts := formatTime(q.now())
	ordered := account.LockOrder(merged)
	values := strings.TrimSuffix(strings.Repeat("(?, ?, ?, ?), ", len(ordered)), ", ")
	args := make([]any, 0, len(ordered)*4)
	for _, d := range ordered {
		args = append(args, d.Beneficiary.Owner, string(d.Beneficiary.Namespace), d.Beneficiary.Symbol, d.Amount.String())
	}

	ensure := append(append([]any{}, args...), ts, ts)
	if _, err := q.db.NewRaw(`
WITH d (owner_account, account_namespace, symbol, delta) AS (VALUES `+values+`)
INSERT INTO wallet_accounts (owner_account, account_namespace, symbol, balance, created_at, updated_at)
SELECT d.owner_account, d.account_namespace, d.symbol, '0', ?, ? FROM d WHERE true
ON CONFLICT (owner_account, account_namespace, symbol) DO NOTHING`,
		ensure...,
	).Exec(ctx); err != nil {
		return nil, classify(err)
	}

	update := append(append([]any{}, args...), ts)
	var models []accountModel
	if err := q.db.NewRaw(`
WITH d (owner_account, account_namespace, symbol, delta) AS (VALUES `+values+`)
UPDATE wallet_accounts
SET balance = wallet_add(wallet_accounts.balance, d.delta), updated_at = ?
FROM d
WHERE wallet_accounts.owner_account = d.owner_account
  AND wallet_accounts.account_namespace = d.account_namespace
  AND wallet_accounts.symbol = d.symbol
RETURNING `+accountColumns,
		update...,
	).Scan(ctx, &models); err != nil {
		return nil, classify(err)
	}
	updated, err := fromAccountModels(models)
	if err != nil {
		return nil, err
	}

	result := make([]*account.Account, 0, len(merged))
	for _, d := range merged {
		a := account.Find(updated, d.Beneficiary)
		if a == nil {
			return nil, fmt.Errorf("wallet/sqlite: account %s missing after update", d.Beneficiary)
		}
		result = append(result, a)
	}
	return result, nil
}

func (q *queries) BurnAll(ctx context.Context, owners []string, ns account.Namespace, symbol string) (int64, error) {
	if len(owners) == 0 {
		return 0, nil
	}
	w := &where{}
	w.add("account_namespace = ?", string(ns))
	w.add("symbol = ?", symbol)
	w.in("owner_account", owners)

	res, err := q.db.NewRaw(
		`UPDATE wallet_accounts SET balance = '0', updated_at = ?`+w.String(),
		append([]any{formatTime(q.now())}, w.args...)...,
	).Exec(ctx)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

// ==================== Transaction Store ====================

const transactionColumns = `id, sender_namespace, sender_account, receiver_namespace, receiver_account, symbol, amount, executed_at`

func (q *queries) AppendTransaction(ctx context.Context, t *transaction.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", walletstore.ErrInvalidEntry, err)
	}
	if t.ID.IsNil() {
		t.ID = id.NewTransactionID()
	}
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = q.now()
	}

	_, err := q.db.NewInsert(toTransactionModel(t)).Exec(ctx)
	return classify(err)
}

func (q *queries) GetTransaction(ctx context.Context, txID id.TransactionID) (*transaction.Transaction, error) {
	var models []transactionModel
	err := q.db.NewRaw(`SELECT `+transactionColumns+` FROM wallet_transactions WHERE id = ?`, txID.String()).
		Scan(ctx, &models)
	if err != nil {
		return nil, classify(err)
	}
	if len(models) == 0 {
		return nil, walletstore.ErrNotFound
	}
	return fromTransactionModel(&models[0])
}

func (q *queries) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	w := &where{}
	if opts.Account != "" {
		w.add("(sender_account = ? OR receiver_account = ?)", opts.Account, opts.Account)
	}
	if opts.Namespace != "" {
		w.add("(sender_namespace = ? OR receiver_namespace = ?)", string(opts.Namespace), string(opts.Namespace))
	}
	if opts.Symbol != "" {
		w.add("symbol = ?", opts.Symbol)
	}
	w.window("executed_at", opts.From, opts.To)

	var models []transactionModel
	err := q.db.NewRaw(
		`SELECT `+transactionColumns+` FROM wallet_transactions`+w.String()+
			` ORDER BY executed_at DESC, id DESC`+page(opts.Limit, opts.Offset),
		w.args...,
	).Scan(ctx, &models)
	if err != nil {
		return nil, classify(err)
	}

	result := make([]*transaction.Transaction, 0, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, nil
}

// SumTransactions adds the amounts in Go; SQLite's SUM is limited to
// 64-bit integers and doubles.
func (q *queries) SumTransactions(ctx context.Context, opts transaction.SumOpts) (types.Amount, error) {
	w := &where{}
	if opts.SenderNamespace != "" {
		w.add("sender_namespace = ?", string(opts.SenderNamespace))
	}
	if opts.ReceiverNamespace != "" {
		w.add("receiver_namespace = ?", string(opts.ReceiverNamespace))
	}
	if opts.Symbol != "" {
		w.add("symbol = ?", opts.Symbol)
	}
	w.window("executed_at", opts.From, opts.To)

	var models []transactionModel
	err := q.db.NewRaw(`SELECT amount FROM wallet_transactions`+w.String(), w.args...).Scan(ctx, &models)
	if err != nil {
		return types.Amount{}, classify(err)
	}
	amounts := make([]string, len(models))
	for i := range models {
		amounts[i] = models[i].Amount
	}
	return sumAmounts(amounts)
}

// sumAmounts skips the per-amount digit cap; totals may exceed it.
func sumAmounts(amounts []string) (types.Amount, error) {
	total := types.Zero()
	for _, s := range amounts {
		var a types.Amount
		if err := a.Scan(s); err != nil {
			return types.Amount{}, err
		}
		total = total.Add(a)
	}
	return total, nil
}

// ==================== External Transaction Store ====================

const (
	externalColumns = `id, originator, external_system, status, external_transaction_id, transaction_hash,
       network_code, block_number, internal_user_id, created_at, updated_at`

	queueColumns = `id, external_transaction_id, network_code, receiver, sender, symbol, namespace,
       amount, created_at, updated_at`
)

// CreateExternalTransaction must run inside a transaction when t carries
// a queue item.
func (q *queries) CreateExternalTransaction(ctx context.Context, t *external.ExternalTransaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	now := q.now()
	if t.ID.IsNil() {
		t.ID = id.NewExternalTransactionID()
	}
	t.Entity = types.Entity{CreatedAt: now, UpdatedAt: now}

	if _, err := q.db.NewInsert(toExternalModel(t)).Exec(ctx); err != nil {
		return classify(err)
	}

	if t.Queue == nil {
		return nil
	}
	if t.Queue.ID.IsNil() {
		t.Queue.ID = id.NewQueueItemID()
	}
	t.Queue.Entity = t.Entity
	_, err := q.db.NewInsert(toQueueModel(t.ID.String(), t.Queue)).Exec(ctx)
	return classify(err)
}

func (q *queries) GetExternalTransaction(ctx context.Context, txID id.ExternalTransactionID) (*external.ExternalTransaction, error) {
	return q.firstExternal(ctx, ` WHERE id = ?`, txID.String())
}

// GetExternalTransactionByExternalID ignores forUpdate: an IMMEDIATE
// transaction already holds the database write lock.
func (q *queries) GetExternalTransactionByExternalID(ctx context.Context, externalID string, _ bool) (*external.ExternalTransaction, error) {
	return q.firstExternal(ctx, ` WHERE external_transaction_id = ?`, externalID)
}

func (q *queries) GetExternalTransactionByHash(ctx context.Context, hash string) (*external.ExternalTransaction, error) {
	return q.firstExternal(ctx, ` WHERE transaction_hash = ? ORDER BY created_at DESC, id DESC LIMIT 1`, hash)
}

func (q *queries) GetLastExternalByBlockNumber(ctx context.Context, originator external.Originator, status external.Status, network external.NetworkCode) (*external.ExternalTransaction, error) {
	return q.firstExternal(ctx, `
WHERE originator = ? AND status = ? AND network_code = ? AND block_number IS NOT NULL
ORDER BY block_number DESC, created_at DESC, id DESC
LIMIT 1`,
		string(originator), string(status), string(network),
	)
}

func (q *queries) UpdateExternalTransactionStatus(ctx context.Context, txID id.ExternalTransactionID, status external.Status, hash string) error {
	if !status.Valid() {
		return fmt.Errorf("external: unknown status %q", status)
	}
	res, err := q.db.NewRaw(`
UPDATE wallet_external_transactions
SET status = ?,
    transaction_hash = CASE WHEN ? = '' THEN transaction_hash ELSE ? END,
    external_transaction_id = CASE WHEN ? = '' THEN external_transaction_id ELSE ? END,
    updated_at = ?
WHERE id = ?`,
		string(status), hash, hash, hash, hash, formatTime(q.now()), txID.String(),
	).Exec(ctx)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return walletstore.ErrNotFound
	}
	return nil
}

func (q *queries) ListExternalTransactions(ctx context.Context, opts external.ListOpts) ([]*external.ExternalTransaction, error) {
	w := &where{}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, s := range opts.Statuses {
			statuses[i] = string(s)
		}
		w.in("status", statuses)
	}
	if opts.NetworkCode != "" {
		w.add("network_code = ?", string(opts.NetworkCode))
	}
	if opts.Originator != "" {
		w.add("originator = ?", string(opts.Originator))
	}

	order := " ORDER BY created_at ASC, id ASC"
	if opts.Descending {
		order = " ORDER BY created_at DESC, id DESC"
	}
	return q.listExternals(ctx, w.String()+order+page(opts.Limit, opts.Offset), w.args...)
}

func (q *queries) firstExternal(ctx context.Context, suffix string, args ...any) (*external.ExternalTransaction, error) {
	list, err := q.listExternals(ctx, suffix, args...)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, walletstore.ErrNotFound
	}
	return list[0], nil
}

// listExternals loads the transactions selected by suffix, then their
// queue items in one more query.
func (q *queries) listExternals(ctx context.Context, suffix string, args ...any) ([]*external.ExternalTransaction, error) {
	var models []externalModel
	err := q.db.NewRaw(`SELECT `+externalColumns+` FROM wallet_external_transactions`+suffix, args...).
		Scan(ctx, &models)
	if err != nil {
		return nil, classify(err)
	}

	result := make([]*external.ExternalTransaction, 0, len(models))
	ids := make([]string, 0, len(models))
	for i := range models {
		t, err := fromExternalModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, t)
		ids = append(ids, models[i].ID)
	}
	if len(ids) == 0 {
		return result, nil
	}

	w := &where{}
	w.in("external_transaction_id", ids)
	var queue []queueModel
	err = q.db.NewRaw(`SELECT `+queueColumns+` FROM wallet_transaction_queue`+w.String(), w.args...).
		Scan(ctx, &queue)
	if err != nil {
		return nil, classify(err)
	}
	byExternal := make(map[string]*external.QueueItem, len(queue))
	for i := range queue {
		item, err := fromQueueModel(&queue[i])
		if err != nil {
			return nil, err
		}
		byExternal[queue[i].ExternalTransactionID] = item
	}
	for _, t := range result {
		t.Queue = byExternal[t.ID.String()]
	}
	return result, nil
}

const externalLogColumns = `id, originator, external_system, status, external_transaction_id, transaction_hash,
       network_code, symbol, sender, receiver, amount, fee, fiat_currency,
       fiat_amount, internal_user_id, created_at, updated_at`

func (q *queries) AppendExternalLog(ctx context.Context, l *external.Log) error {
	now := q.now()
	if l.ID.IsNil() {
		l.ID = id.NewExternalLogID()
	}
	l.Entity = types.Entity{CreatedAt: now, UpdatedAt: now}

	_, err := q.db.NewInsert(toExternalLogModel(l)).Exec(ctx)
	return classify(err)
}

func (q *queries) GetExternalLogByHash(ctx context.Context, hash string) (*external.Log, error) {
	logs, err := q.listExternalLogs(ctx, ` WHERE transaction_hash = ? ORDER BY created_at DESC, id DESC LIMIT 1`, hash)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, walletstore.ErrNotFound
	}
	return logs[0], nil
}

func (q *queries) ListExternalLogs(ctx context.Context, opts external.LogListOpts) ([]*external.Log, error) {
	w := &where{}
	if opts.ExternalTransactionID != "" {
		w.add("external_transaction_id = ?", opts.ExternalTransactionID)
	}
	if opts.TransactionHash != "" {
		w.add("transaction_hash = ?", opts.TransactionHash)
	}
	if opts.InternalUserID != "" {
		w.add("internal_user_id = ?", opts.InternalUserID)
	}
	if opts.Originator != "" {
		w.add("originator = ?", string(opts.Originator))
	}
	if opts.Status != "" {
		w.add("status = ?", string(opts.Status))
	}
	w.window("created_at", opts.From, opts.To)

	return q.listExternalLogs(ctx, w.String()+` ORDER BY created_at, id`, w.args...)
}

func (q *queries) listExternalLogs(ctx context.Context, suffix string, args ...any) ([]*external.Log, error) {
	var models []externalLogModel
	err := q.db.NewRaw(`SELECT `+externalLogColumns+` FROM wallet_external_transaction_logs`+suffix, args...).
		Scan(ctx, &models)
	if err != nil {
		return nil, classify(err)
	}

	result := make([]*external.Log, 0, len(models))
	for i := range models {
		l, err := fromExternalLogModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, nil
}

func (q *queries) SumExternalLogAmount(ctx context.Context, originator external.Originator, internalUserID string) (types.Amount, error) {
	var models []externalLogModel
	err := q.db.NewRaw(`
SELECT amount FROM wallet_external_transaction_logs
WHERE originator = ? AND internal_user_id = ?`,
		string(originator), internalUserID,
	).Scan(ctx, &models)
	if err != nil {
		return types.Amount{}, classify(err)
	}
	amounts := make([]string, len(models))
	for i := range models {
		amounts[i] = models[i].Amount
	}
	return sumAmounts(amounts)
}

// ==================== Helpers ====================

type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) in(column string, values []string) {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	w.conds = append(w.conds, column+" IN ("+marks+")")
	for _, v := range values {
		w.args = append(w.args, v)
	}
}

// window treats from as inclusive and to as exclusive. Timestamps are
// fixed-width text, so they compare in time order.
func (w *where) window(column string, from, to time.Time) {
	if !from.IsZero() {
		w.add(column+" >= ?", formatTime(from))
	}
	if !to.IsZero() {
		w.add(column+" < ?", formatTime(to))
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func page(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}
	return ""
}
