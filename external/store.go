package external

import (
	"context"
	"time"

	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/types"
)

// Store persists external transactions, their queue items and their logs.
type Store interface {
	// CreateExternalTransaction inserts t and, when set, its queue item in
	// the same write.
	CreateExternalTransaction(ctx context.Context, t *ExternalTransaction) error
	GetExternalTransaction(ctx context.Context, txID id.ExternalTransactionID) (*ExternalTransaction, error)

	// GetExternalTransactionByExternalID looks up by the network-side id.
	// With forUpdate set the row stays locked until the surrounding
	// transaction ends.
	GetExternalTransactionByExternalID(ctx context.Context, externalID string, forUpdate bool) (*ExternalTransaction, error)

	// GetExternalTransactionByHash returns the transaction carrying the
	// given on-chain hash.
	GetExternalTransactionByHash(ctx context.Context, hash string) (*ExternalTransaction, error)

	// GetLastExternalByBlockNumber returns the matching transaction with
	// the highest block number. Transactions without one are skipped. A
	// chain watcher resumes scanning from it.
	GetLastExternalByBlockNumber(ctx context.Context, originator Originator, status Status, network NetworkCode) (*ExternalTransaction, error)

	// UpdateExternalTransactionStatus sets the status. A non-empty hash is
	// stored as both the transaction hash and the external id, since the
	// hash becomes the network-side id once the transfer is broadcast.
	UpdateExternalTransactionStatus(ctx context.Context, txID id.ExternalTransactionID, status Status, hash string) error
	ListExternalTransactions(ctx context.Context, opts ListOpts) ([]*ExternalTransaction, error)

	AppendExternalLog(ctx context.Context, l *Log) error

	// GetExternalLogByHash returns the newest log entry for hash.
	GetExternalLogByHash(ctx context.Context, hash string) (*Log, error)
	ListExternalLogs(ctx context.Context, opts LogListOpts) ([]*Log, error)
	SumExternalLogAmount(ctx context.Context, originator Originator, internalUserID string) (types.Amount, error)
}

// ListOpts filters external transactions. Results are ordered by
// created_at, oldest first unless Descending is set.
type ListOpts struct {
	Statuses    []Status
	NetworkCode NetworkCode
	Originator  Originator
	Limit       int
	Offset      int
	Descending  bool
}

// Matches reports whether t satisfies the filter.
func (o ListOpts) Matches(t *ExternalTransaction) bool {
	if len(o.Statuses) > 0 {
		found := false
		for _, s := range o.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if o.NetworkCode != "" && t.NetworkCode != o.NetworkCode {
		return false
	}
	if o.Originator != "" && t.Originator != o.Originator {
		return false
	}
	return true
}

// LogListOpts filters external logs. From is inclusive, To exclusive.
type LogListOpts struct {
	ExternalTransactionID string
	TransactionHash       string
	InternalUserID        string
	Originator            Originator
	Status                Status
	From                  time.Time
	To                    time.Time
}

// Matches reports whether l satisfies the filter.
func (o LogListOpts) Matches(l *Log) bool {
	if o.ExternalTransactionID != "" && l.ExternalTransactionID != o.ExternalTransactionID {
		return false
	}
	if o.TransactionHash != "" && l.TransactionHash != o.TransactionHash {
		return false
	}
	if o.InternalUserID != "" && l.InternalUserID != o.InternalUserID {
		return false
	}
	if o.Originator != "" && l.Originator != o.Originator {
		return false
	}
	if o.Status != "" && l.Status != o.Status {
		return false
	}
	if !o.From.IsZero() && l.CreatedAt.Before(o.From) {
		return false
	}
	if !o.To.IsZero() && !l.CreatedAt.Before(o.To) {
		return false
	}
	return true
}
