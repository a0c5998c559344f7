package transaction

import (
	"context"
	"time"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/types"
)

// Store is the append-only transaction log contract.
type Store interface {
	// AppendTransaction inserts one entry. Entries failing Validate are
	// rejected with an error wrapping store.ErrInvalidEntry.
	AppendTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, txID id.TransactionID) (*Transaction, error)
	ListTransactions(ctx context.Context, opts ListOpts) ([]*Transaction, error)
	SumTransactions(ctx context.Context, opts SumOpts) (types.Amount, error)
}

// ListOpts filters the log. Zero fields do not filter. Results are ordered
// by executed_at, newest first.
type ListOpts struct {
	// Account matches entries where the owner is sender or receiver.
	Account   string
	Namespace account.Namespace
	Symbol    string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// SumOpts selects entries between two namespaces within a window.
type SumOpts struct {
	SenderNamespace   account.Namespace
	ReceiverNamespace account.Namespace
	Symbol            string
	From              time.Time
	To                time.Time
}

// Matches reports whether t satisfies the list filter.
func (o ListOpts) Matches(t *Transaction) bool {
	if o.Account != "" && t.SenderAccount != o.Account && t.ReceiverAccount != o.Account {
		return false
	}
	if o.Namespace != "" && t.SenderNamespace != o.Namespace && t.ReceiverNamespace != o.Namespace {
		return false
	}
	if o.Symbol != "" && t.Symbol != o.Symbol {
		return false
	}
	return inWindow(t.ExecutedAt, o.From, o.To)
}

// Matches reports whether t satisfies the sum filter.
func (o SumOpts) Matches(t *Transaction) bool {
	if o.SenderNamespace != "" && t.SenderNamespace != o.SenderNamespace {
		return false
	}
	if o.ReceiverNamespace != "" && t.ReceiverNamespace != o.ReceiverNamespace {
		return false
	}
	if o.Symbol != "" && t.Symbol != o.Symbol {
		return false
	}
	return inWindow(t.ExecutedAt, o.From, o.To)
}

// inWindow treats From as inclusive and To as exclusive.
func inWindow(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && !ts.Before(to) {
		return false
	}
	return true
}
