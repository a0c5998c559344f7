package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/external"
	"github.com/xraph/wallet/id"
	walletstore "github.com/xraph/wallet/store"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
)

// txn runs queries against the shared state while the caller holds the
// store. Every mutation appends its inverse to the journal.
type txn struct {
	st      *state
	now     func() time.Time
	journal []func()
	done    bool
}

func (q *txn) record(undo func()) { q.journal = append(q.journal, undo) }

func (q *txn) undoTo(mark int) {
	for i := len(q.journal) - 1; i >= mark; i-- {
		q.journal[i]()
	}
	q.journal = q.journal[:mark]
}

func (q *txn) check(ctx context.Context) error {
	if q.done {
		return walletstore.ErrTxDone
	}
	return ctx.Err()
}

// ==================== Account Store ====================

func (q *txn) GetBalance(ctx context.Context, b account.Beneficiary) (types.Amount, error) {
	if err := q.check(ctx); err != nil {
		return types.Amount{}, err
	}
	if a, ok := q.st.accounts[b]; ok {
		return a.Balance, nil
	}
	return types.Zero(), nil
}

func (q *txn) GetAccount(ctx context.Context, b account.Beneficiary) (*account.Account, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	a, ok := q.st.accounts[b]
	if !ok {
		return nil, walletstore.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (q *txn) ListBalances(ctx context.Context, owner string, ns account.Namespace) ([]*account.Account, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	result := make([]*account.Account, 0)
	for _, a := range q.st.accounts {
		if a.Owner == owner && a.Namespace == ns {
			out := *a
			result = append(result, &out)
		}
	}
	sortAccounts(result)
	return result, nil
}

func (q *txn) ListBalancesBySymbols(ctx context.Context, symbols []string, ns account.Namespace, owner string) ([]*account.Account, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		wanted[sym] = true
	}

	result := make([]*account.Account, 0)
	for _, a := range q.st.accounts {
		if a.Namespace != ns || !wanted[a.Symbol] {
			continue
		}
		if owner != "" && a.Owner != owner {
			continue
		}
		out := *a
		result = append(result, &out)
	}
	sortAccounts(result)
	return result, nil
}

// ApplyDeltas computes every resulting balance before touching state, so a
// batch with any negative outcome leaves nothing behind.
func (q *txn) ApplyDeltas(ctx context.Context, deltas []account.Delta) ([]*account.Account, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	merged := account.MergeDeltas(deltas)

	next := make([]types.Amount, len(merged))
	for i, d := range merged {
		current := types.Zero()
		if a, ok := q.st.accounts[d.Beneficiary]; ok {
			current = a.Balance
		}
		next[i] = current.Add(d.Amount)
		if next[i].IsNegative() {
			return nil, fmt.Errorf("%w: %s", walletstore.ErrNegativeBalance, d.Beneficiary)
		}
		if next[i].Overflows() {
			return nil, fmt.Errorf("%w: %s", walletstore.ErrOverflow, d.Beneficiary)
		}
	}

	now := q.now()
	result := make([]*account.Account, len(merged))
	for i, d := range merged {
		b := d.Beneficiary
		a, ok := q.st.accounts[b]
		if ok {
			prev := *a
			a.Balance = next[i]
			a.UpdatedAt = now
			q.record(func() { *a = prev })
		} else {
			a = &account.Account{
				Owner:     b.Owner,
				Namespace: b.Namespace,
				Symbol:    b.Symbol,
				Balance:   next[i],
				Entity:    types.Entity{CreatedAt: now, UpdatedAt: now},
			}
			q.st.accounts[b] = a
			q.record(func() { delete(q.st.accounts, b) })
		}
		out := *a
		result[i] = &out
	}
	return result, nil
}

func (q *txn) BurnAll(ctx context.Context, owners []string, ns account.Namespace, symbol string) (int64, error) {
	if err := q.check(ctx); err != nil {
		return 0, err
	}
	now := q.now()
	seen := make(map[string]bool, len(owners))
	var affected int64
	for _, owner := range owners {
		if seen[owner] {
			continue
		}
		seen[owner] = true

		a, ok := q.st.accounts[account.NewBeneficiary(owner, ns, symbol)]
		if !ok {
			continue
		}
		prev := *a
		a.Balance = types.Zero()
		a.UpdatedAt = now
		q.record(func() { *a = prev })
		affected++
	}
	return affected, nil
}

// ==================== Transaction Store ====================

func (q *txn) AppendTransaction(ctx context.Context, t *transaction.Transaction) error {
	if err := q.check(ctx); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", walletstore.ErrInvalidEntry, err)
	}
	if t.ID.IsNil() {
		t.ID = id.NewTransactionID()
	}
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = q.now()
	}

	stored := *t
	n := len(q.st.transactions)
	q.st.transactions = append(q.st.transactions, &stored)
	q.record(func() { q.st.transactions = q.st.transactions[:n] })
	return nil
}

func (q *txn) GetTransaction(ctx context.Context, txID id.TransactionID) (*transaction.Transaction, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	for _, t := range q.st.transactions {
		if t.ID.String() == txID.String() {
			out := *t
			return &out, nil
		}
	}
	return nil, walletstore.ErrNotFound
}

func (q *txn) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	result := make([]*transaction.Transaction, 0)
	for i := len(q.st.transactions) - 1; i >= 0; i-- {
		t := q.st.transactions[i]
		if opts.Matches(t) {
			out := *t
			result = append(result, &out)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ExecutedAt.After(result[j].ExecutedAt)
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (q *txn) SumTransactions(ctx context.Context, opts transaction.SumOpts) (types.Amount, error) {
	if err := q.check(ctx); err != nil {
		return types.Amount{}, err
	}
	total := types.Zero()
	for _, t := range q.st.transactions {
		if opts.Matches(t) {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

// ==================== External Transaction Store ====================

func (q *txn) CreateExternalTransaction(ctx context.Context, t *external.ExternalTransaction) error {
	if err := q.check(ctx); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if _, exists := q.st.externalKeys[t.ExternalTransactionID]; exists {
		return fmt.Errorf("%w: external_transaction_id %q", walletstore.ErrConflict, t.ExternalTransactionID)
	}

	now := q.now()
	if t.ID.IsNil() {
		t.ID = id.NewExternalTransactionID()
	}
	t.Entity = types.Entity{CreatedAt: now, UpdatedAt: now}
	if t.Queue != nil {
		if t.Queue.ID.IsNil() {
			t.Queue.ID = id.NewQueueItemID()
		}
		t.Queue.Entity = t.Entity
	}

	key := t.ID.String()
	q.st.externals[key] = cloneExternal(t)
	q.st.externalKeys[t.ExternalTransactionID] = key
	externalID := t.ExternalTransactionID
	q.record(func() {
		delete(q.st.externals, key)
		delete(q.st.externalKeys, externalID)
	})
	return nil
}

func (q *txn) GetExternalTransaction(ctx context.Context, txID id.ExternalTransactionID) (*external.ExternalTransaction, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	t, ok := q.st.externals[txID.String()]
	if !ok {
		return nil, walletstore.ErrNotFound
	}
	return cloneExternal(t), nil
}

// GetExternalTransactionByExternalID ignores forUpdate: the caller already
// holds the whole store.
func (q *txn) GetExternalTransactionByExternalID(ctx context.Context, externalID string, _ bool) (*external.ExternalTransaction, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	key, ok := q.st.externalKeys[externalID]
	if !ok {
		return nil, walletstore.ErrNotFound
	}
	return cloneExternal(q.st.externals[key]), nil
}

func (q *txn) UpdateExternalTransactionStatus(ctx context.Context, txID id.ExternalTransactionID, status external.Status, hash string) error {
	if err := q.check(ctx); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("external: unknown status %q", status)
	}
	t, ok := q.st.externals[txID.String()]
	if !ok {
		return walletstore.ErrNotFound
	}

	key := t.ID.String()
	if hash != "" && hash != t.ExternalTransactionID {
		if _, taken := q.st.externalKeys[hash]; taken {
			return fmt.Errorf("%w: external_transaction_id %q", walletstore.ErrConflict, hash)
		}
	}

	prev := *t
	t.Status = status
	if hash != "" {
		t.TransactionHash = hash
		t.ExternalTransactionID = hash
		delete(q.st.externalKeys, prev.ExternalTransactionID)
		q.st.externalKeys[hash] = key
	}
	t.UpdatedAt = q.now()
	q.record(func() {
		delete(q.st.externalKeys, t.ExternalTransactionID)
		q.st.externalKeys[prev.ExternalTransactionID] = key
		*t = prev
	})
	return nil
}

func (q *txn) GetExternalTransactionByHash(ctx context.Context, hash string) (*external.ExternalTransaction, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	var found *external.ExternalTransaction
	for _, t := range q.st.externals {
		if t.TransactionHash == hash && (found == nil || newerExternal(t, found)) {
			found = t
		}
	}
	if found == nil {
		return nil, walletstore.ErrNotFound
	}
	return cloneExternal(found), nil
}

func (q *txn) GetLastExternalByBlockNumber(ctx context.Context, originator external.Originator, status external.Status, network external.NetworkCode) (*external.ExternalTransaction, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	var found *external.ExternalTransaction
	for _, t := range q.st.externals {
		if t.BlockNumber == nil || t.Originator != originator || t.Status != status || t.NetworkCode != network {
			continue
		}
		if found == nil || *t.BlockNumber > *found.BlockNumber ||
			(*t.BlockNumber == *found.BlockNumber && newerExternal(t, found)) {
			found = t
		}
	}
	if found == nil {
		return nil, walletstore.ErrNotFound
	}
	return cloneExternal(found), nil
}

func (q *txn) ListExternalTransactions(ctx context.Context, opts external.ListOpts) ([]*external.ExternalTransaction, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	result := make([]*external.ExternalTransaction, 0)
	for _, t := range q.st.externals {
		if opts.Matches(t) {
			result = append(result, cloneExternal(t))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if opts.Descending {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if opts.Descending {
			return a.ID.String() > b.ID.String()
		}
		return a.ID.String() < b.ID.String()
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (q *txn) AppendExternalLog(ctx context.Context, l *external.Log) error {
	if err := q.check(ctx); err != nil {
		return err
	}
	if l.ID.IsNil() {
		l.ID = id.NewExternalLogID()
	}
	now := q.now()
	l.Entity = types.Entity{CreatedAt: now, UpdatedAt: now}

	stored := *l
	n := len(q.st.externalLogs)
	q.st.externalLogs = append(q.st.externalLogs, &stored)
	q.record(func() { q.st.externalLogs = q.st.externalLogs[:n] })
	return nil
}

func (q *txn) ListExternalLogs(ctx context.Context, opts external.LogListOpts) ([]*external.Log, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	result := make([]*external.Log, 0)
	for _, l := range q.st.externalLogs {
		if opts.Matches(l) {
			out := *l
			result = append(result, &out)
		}
	}
	return result, nil
}

func (q *txn) GetExternalLogByHash(ctx context.Context, hash string) (*external.Log, error) {
	if err := q.check(ctx); err != nil {
		return nil, err
	}
	for i := len(q.st.externalLogs) - 1; i >= 0; i-- {
		if l := q.st.externalLogs[i]; l.TransactionHash == hash {
			out := *l
			return &out, nil
		}
	}
	return nil, walletstore.ErrNotFound
}

func (q *txn) SumExternalLogAmount(ctx context.Context, originator external.Originator, internalUserID string) (types.Amount, error) {
	if err := q.check(ctx); err != nil {
		return types.Amount{}, err
	}
	total := types.Zero()
	for _, l := range q.st.externalLogs {
		if l.Originator == originator && l.InternalUserID == internalUserID {
			total = total.Add(l.Amount)
		}
	}
	return total, nil
}

// ==================== Helpers ====================

func cloneExternal(t *external.ExternalTransaction) *external.ExternalTransaction {
	out := *t
	if t.Queue != nil {
		qi := *t.Queue
		out.Queue = &qi
	}
	if t.BlockNumber != nil {
		bn := *t.BlockNumber
		out.BlockNumber = &bn
	}
	return &out
}

// newerExternal orders by created_at, then id.
func newerExternal(a, b *external.ExternalTransaction) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}

func sortAccounts(accounts []*account.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		a, b := accounts[i], accounts[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Symbol < b.Symbol
	})
}

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
