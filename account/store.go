package account

import (
	"context"

	"github.com/xraph/wallet/types"
)

// Store is the balance table contract.
type Store interface {
	// GetBalance returns zero when the account does not exist.
	GetBalance(ctx context.Context, b Beneficiary) (types.Amount, error)

	// GetAccount returns store.ErrNotFound when the account does not exist.
	GetAccount(ctx context.Context, b Beneficiary) (*Account, error)

	ListBalances(ctx context.Context, owner string, ns Namespace) ([]*Account, error)

	// ListBalancesBySymbols lists every owner when owner is empty.
	ListBalancesBySymbols(ctx context.Context, symbols []string, ns Namespace, owner string) ([]*Account, error)

	// ApplyDeltas adds each delta to its account in one atomic write,
	// creating missing accounts. Deltas for the same account are merged.
	// If any resulting balance would be negative nothing is written and
	// the error wraps store.ErrNegativeBalance. The result holds one
	// account per distinct beneficiary, in order of first appearance.
	ApplyDeltas(ctx context.Context, deltas []Delta) ([]*Account, error)

	// BurnAll sets the matching balances to zero and returns how many
	// accounts were reset.
	BurnAll(ctx context.Context, owners []string, ns Namespace, symbol string) (int64, error)
}
