// Package plugin provides an extensible plugin system for Wallet.
// Plugins can hook into lifecycle and balance events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/transaction"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the wallet starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, w interface{}) error
}

// OnShutdown is called when the wallet stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────
//
// Balance hooks fire after the change is durable: immediately for an
// auto-committed operation, on Commit for work done in a unit of work.
// Work that is rolled back never reaches them.

// OnMinted is called after value is credited to an account.
type OnMinted interface {
	Plugin
	OnMinted(ctx context.Context, tx *transaction.Transaction, balance *account.Account) error
}

// OnBurned is called after value is debited from an account.
type OnBurned interface {
	Plugin
	OnBurned(ctx context.Context, tx *transaction.Transaction, balance *account.Account) error
}

// OnTransferred is called after value moves between two accounts.
type OnTransferred interface {
	Plugin
	OnTransferred(ctx context.Context, tx *transaction.Transaction, sender, receiver *account.Account) error
}

// OnBurnedAll is called after a bulk reset. No log entries exist for it,
// so this hook is the only record of the operation.
type OnBurnedAll interface {
	Plugin
	OnBurnedAll(ctx context.Context, owners []string, ns account.Namespace, symbol string, affected int64) error
}

// OnMutationFailed is called when a balance operation returns an error.
type OnMutationFailed interface {
	Plugin
	OnMutationFailed(ctx context.Context, op string, err error) error
}

// ──────────────────────────────────────────────────
// Unit-of-work hooks
// ──────────────────────────────────────────────────

// OnUnitOfWorkCommitted is called after a unit of work commits.
type OnUnitOfWorkCommitted interface {
	Plugin
	OnUnitOfWorkCommitted(ctx context.Context, operations int) error
}

// OnUnitOfWorkRolledBack is called after a unit of work rolls back.
type OnUnitOfWorkRolledBack interface {
	Plugin
	OnUnitOfWorkRolledBack(ctx context.Context, discarded int) error
}
