package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/external"
	"github.com/xraph/wallet/id"
	walletstore "github.com/xraph/wallet/store"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
)

// conn is satisfied by *pgdriver.PgDB and *pgdriver.PgTx.
type conn interface {
	NewRaw(query string, args ...any) *pgdriver.RawQuery
	NewInsert(model any) *pgdriver.InsertQuery
}

// queries implements store.Querier against a pool or a transaction.
type queries struct {
	db conn
}

// ==================== Account Store ====================

const accountColumns = `owner_account, account_namespace, symbol, balance::text AS balance, created_at, updated_at`

func (q *queries) GetBalance(ctx context.Context, b account.Beneficiary) (types.Amount, error) {
	var balance string
	err := q.db.NewRaw(`
SELECT balance::text FROM wallet_accounts
WHERE owner_account = $1 AND account_namespace = $2 AND symbol = $3`,
		b.Owner, string(b.Namespace), b.Symbol,
	).Scan(ctx, &balance)
	if isNoRows(err) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Amount{}, classify(err)
	}
	return types.ParseAmount(balance)
}

func (q *queries) GetAccount(ctx context.Context, b account.Beneficiary) (*account.Account, error) {
	var models []accountModel
	err := q.db.NewRaw(`
SELECT `+accountColumns+` FROM wallet_accounts
WHERE owner_account = $1 AND account_namespace = $2 AND symbol = $3`,
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
WHERE owner_account = $1 AND account_namespace = $2
ORDER BY symbol`,
		owner, string(ns),
	).Scan(ctx, &models)
	if err != nil {
		return nil, classify(err)
	}
	return fromAccountModels(models)
}

func (q *queries) ListBalancesBySymbols(ctx context.Context, symbols []string, ns account.Namespace, owner string) ([]*account.Account, error) {
	query := `
SELECT ` + accountColumns + ` FROM wallet_accounts
WHERE account_namespace = $1 AND symbol = ANY($2)`
	args := []any{string(ns), symbols}
	if owner != "" {
		query += ` AND owner_account = $3`
		args = append(args, owner)
	}
	query += ` ORDER BY owner_account, symbol`

	var models []accountModel
	if err := q.db.NewRaw(query, args...).Scan(ctx, &models); err != nil {
		return nil, classify(err)
	}
	return fromAccountModels(models)
}

// ApplyDeltas must run inside a transaction. It makes sure every addressed
// row exists with a zero balance, locks the rows in key order, then adds
// all deltas in one UPDATE. The rows cannot be created with their delta
// directly: CHECK constraints are evaluated on the proposed INSERT row
// before ON CONFLICT is resolved, which would reject every debit.
//
// Two batches touching the same accounts lock them in the same order, so
// crossing transfers wait on each other instead of deadlocking.
func (q *queries) ApplyDeltas(ctx context.Context, deltas []account.Delta) ([]*account.Account, error) {
	merged := account.MergeDeltas(deltas)
	if len(merged) == 0 {
		return []*account.Account{}, nil
	}

	var values strings.Builder
	ordered := account.LockOrder(merged)
	args := make([]any, 0, len(ordered)*4)
	for i, d := range ordered {
		if i > 0 {
			values.WriteString(", ")
		}
		n := i * 4
		fmt.Fprintf(&values, "($%d::text, $%d::text, $%d::text, $%d::numeric)", n+1, n+2, n+3, n+4)
		args = append(args, d.Beneficiary.Owner, string(d.Beneficiary.Namespace), d.Beneficiary.Symbol, d.Amount.String())
	}
	from := ` FROM (VALUES ` + values.String() + `) AS d (owner_account, account_namespace, symbol, delta)`

	if _, err := q.db.NewRaw(`
INSERT INTO wallet_accounts (owner_account, account_namespace, symbol, balance)
SELECT d.owner_account, d.account_namespace, d.symbol, 0`+from+`
ON CONFLICT (owner_account, account_namespace, symbol) DO NOTHING`,
		args...,
	).Exec(ctx); err != nil {
		return nil, classify(err)
	}

	if _, err := q.db.NewRaw(`
SELECT a.owner_account FROM wallet_accounts AS a
JOIN (VALUES `+values.String()+`) AS d (owner_account, account_namespace, symbol, delta)
  ON a.owner_account = d.owner_account
 AND a.account_namespace = d.account_namespace
 AND a.symbol = d.symbol
ORDER BY a.owner_account, a.account_namespace, a.symbol
FOR UPDATE OF a`,
		args...,
	).Exec(ctx); err != nil {
		return nil, classify(err)
	}

	var models []accountModel
	if err := q.db.NewRaw(`
UPDATE wallet_accounts AS a
SET balance = a.balance + d.delta, updated_at = NOW()`+from+`
WHERE a.owner_account = d.owner_account
  AND a.account_namespace = d.account_namespace
  AND a.symbol = d.symbol
RETURNING a.owner_account, a.account_namespace, a.symbol, a.balance::text AS balance, a.created_at, a.updated_at`,
		args...,
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
			return nil, fmt.Errorf("wallet/postgres: account %s missing after update", d.Beneficiary)
		}
		result = append(result, a)
	}
	return result, nil
}

func (q *queries) BurnAll(ctx context.Context, owners []string, ns account.Namespace, symbol string) (int64, error) {
	res, err := q.db.NewRaw(`
UPDATE wallet_accounts SET balance = 0, updated_at = NOW()
WHERE account_namespace = $1 AND symbol = $2 AND owner_account = ANY($3)`,
		string(ns), symbol, owners,
	).Exec(ctx)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

// ==================== Transaction Store ====================

const transactionColumns = `id, sender_namespace, sender_account, receiver_namespace, receiver_account, symbol, amount::text AS amount, executed_at`

func (q *queries) AppendTransaction(ctx context.Context, t *transaction.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", walletstore.ErrInvalidEntry, err)
	}
	if t.ID.IsNil() {
		t.ID = id.NewTransactionID()
	}
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now().UTC()
	}

	_, err := q.db.NewInsert(toTransactionModel(t)).Exec(ctx)
	return classify(err)
}

func (q *queries) GetTransaction(ctx context.Context, txID id.TransactionID) (*transaction.Transaction, error) {
	var models []transactionModel
	err := q.db.NewRaw(`SELECT `+transactionColumns+` FROM wallet_transactions WHERE id = $1`, txID.String()).
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
		n := w.arg(opts.Account)
		w.add(fmt.Sprintf("(sender_account = %s OR receiver_account = %s)", n, n))
	}
	if opts.Namespace != "" {
		n := w.arg(string(opts.Namespace))
		w.add(fmt.Sprintf("(sender_namespace = %s OR receiver_namespace = %s)", n, n))
	}
	if opts.Symbol != "" {
		w.add("symbol = " + w.arg(opts.Symbol))
	}
	w.window("executed_at", opts.From, opts.To)

	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions` + w.String() +
		` ORDER BY executed_at DESC, id DESC` + w.page(opts.Limit, opts.Offset)

	var models []transactionModel
	if err := q.db.NewRaw(query, w.args...).Scan(ctx, &models); err != nil {
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

func (q *queries) SumTransactions(ctx context.Context, opts transaction.SumOpts) (types.Amount, error) {
	w := &where{}
	if opts.SenderNamespace != "" {
		w.add("sender_namespace = " + w.arg(string(opts.SenderNamespace)))
	}
	if opts.ReceiverNamespace != "" {
		w.add("receiver_namespace = " + w.arg(string(opts.ReceiverNamespace)))
	}
	if opts.Symbol != "" {
		w.add("symbol = " + w.arg(opts.Symbol))
	}
	w.window("executed_at", opts.From, opts.To)

	return q.sum(ctx, `SELECT COALESCE(SUM(amount), 0)::text FROM wallet_transactions`+w.String(), w.args...)
}

// sum scans a single text aggregate. Totals may exceed the per-amount
// digit cap.
func (q *queries) sum(ctx context.Context, query string, args ...any) (types.Amount, error) {
	var raw string
	if err := q.db.NewRaw(query, args...).Scan(ctx, &raw); err != nil {
		return types.Amount{}, classify(err)
	}
	var total types.Amount
	if err := total.Scan(raw); err != nil {
		return types.Amount{}, err
	}
	return total, nil
}

// ==================== External Transaction Store ====================

const (
	externalColumns = `id, originator, external_system, status, external_transaction_id, transaction_hash,
       network_code, block_number, internal_user_id, created_at, updated_at`

	queueColumns = `id, external_transaction_id, network_code, receiver, sender, symbol, namespace,
       amount::text AS amount, created_at, updated_at`
)

// CreateExternalTransaction must run inside a transaction when t carries
// a queue item.
func (q *queries) CreateExternalTransaction(ctx context.Context, t *external.ExternalTransaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
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
	return q.firstExternal(ctx, `WHERE id = $1`, txID.String())
}

func (q *queries) GetExternalTransactionByExternalID(ctx context.Context, externalID string, forUpdate bool) (*external.ExternalTransaction, error) {
	suffix := `WHERE external_transaction_id = $1`
	if forUpdate {
		suffix += ` FOR UPDATE`
	}
	return q.firstExternal(ctx, suffix, externalID)
}

func (q *queries) GetExternalTransactionByHash(ctx context.Context, hash string) (*external.ExternalTransaction, error) {
	return q.firstExternal(ctx, `WHERE transaction_hash = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, hash)
}

func (q *queries) GetLastExternalByBlockNumber(ctx context.Context, originator external.Originator, status external.Status, network external.NetworkCode) (*external.ExternalTransaction, error) {
	return q.firstExternal(ctx, `
WHERE originator = $1 AND status = $2 AND network_code = $3 AND block_number IS NOT NULL
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
SET status = $2,
    transaction_hash = CASE WHEN $3 = '' THEN transaction_hash ELSE $3 END,
    external_transaction_id = CASE WHEN $3 = '' THEN external_transaction_id ELSE $3 END,
    updated_at = NOW()
WHERE id = $1`,
		txID.String(), string(status), hash,
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
		w.add("status = ANY(" + w.arg(statuses) + ")")
	}
	if opts.NetworkCode != "" {
		w.add("network_code = " + w.arg(string(opts.NetworkCode)))
	}
	if opts.Originator != "" {
		w.add("originator = " + w.arg(string(opts.Originator)))
	}

	order := " ORDER BY created_at ASC, id ASC"
	if opts.Descending {
		order = " ORDER BY created_at DESC, id DESC"
	}
	return q.listExternals(ctx, w.String()+order+w.page(opts.Limit, opts.Offset), w.args...)
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
	err := q.db.NewRaw(`SELECT `+externalColumns+` FROM wallet_external_transactions `+suffix, args...).
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

	var queue []queueModel
	err = q.db.NewRaw(`SELECT `+queueColumns+` FROM wallet_transaction_queue WHERE external_transaction_id = ANY($1)`, ids).
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
       network_code, symbol, sender, receiver, amount::text AS amount, fee::text AS fee, fiat_currency,
       fiat_amount::text AS fiat_amount, internal_user_id, created_at, updated_at`

func (q *queries) AppendExternalLog(ctx context.Context, l *external.Log) error {
	now := time.Now().UTC()
	if l.ID.IsNil() {
		l.ID = id.NewExternalLogID()
	}
	l.Entity = types.Entity{CreatedAt: now, UpdatedAt: now}

	_, err := q.db.NewInsert(toExternalLogModel(l)).Exec(ctx)
	return classify(err)
}

func (q *queries) GetExternalLogByHash(ctx context.Context, hash string) (*external.Log, error) {
	logs, err := q.listExternalLogs(ctx, ` WHERE transaction_hash = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, hash)
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
		w.add("external_transaction_id = " + w.arg(opts.ExternalTransactionID))
	}
	if opts.TransactionHash != "" {
		w.add("transaction_hash = " + w.arg(opts.TransactionHash))
	}
	if opts.InternalUserID != "" {
		w.add("internal_user_id = " + w.arg(opts.InternalUserID))
	}
	if opts.Originator != "" {
		w.add("originator = " + w.arg(string(opts.Originator)))
	}
	if opts.Status != "" {
		w.add("status = " + w.arg(string(opts.Status)))
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
	return q.sum(ctx, `
SELECT COALESCE(SUM(amount), 0)::text FROM wallet_external_transaction_logs
WHERE originator = $1 AND internal_user_id = $2`,
		string(originator), internalUserID,
	)
}

// ==================== Helpers ====================

// where accumulates numbered predicates.
type where struct {
	conds []string
	args  []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(cond string) { w.conds = append(w.conds, cond) }

// window treats from as inclusive and to as exclusive.
func (w *where) window(column string, from, to time.Time) {
	if !from.IsZero() {
		w.add(column + " >= " + w.arg(from))
	}
	if !to.IsZero() {
		w.add(column + " < " + w.arg(to))
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) page(limit, offset int) string {
	var s string
	if limit > 0 {
		s += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		s += fmt.Sprintf(" OFFSET %d", offset)
	}
	return s
}
