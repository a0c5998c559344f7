package store

import (
	"context"
	"errors"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/external"
	"github.com/xraph/wallet/transaction"
)

// Errors every backend translates its driver errors into.
var (
	// ErrNotFound is returned by lookups that require existence.
	ErrNotFound = errors.New("store: not found")

	// ErrNegativeBalance is returned when a write would leave a balance
	// below zero. It is raised by the storage constraint, not a pre-read.
	ErrNegativeBalance = errors.New("store: balance would become negative")

	// ErrOverflow is returned when a balance would exceed
	// types.MaxDigits digits.
	ErrOverflow = errors.New("store: balance exceeds the amount range")

	// ErrInvalidEntry is returned when a transaction log entry violates
	// the log constraints.
	ErrInvalidEntry = errors.New("store: invalid transaction entry")

	// ErrConflict is returned on a uniqueness violation.
	ErrConflict = errors.New("store: conflict")

	// ErrTimeout marks a statement cut short by its deadline. Whether the
	// statement took effect is unknown.
	ErrTimeout = errors.New("store: timeout")

	// ErrTxDone is returned when a finished transaction is used.
	ErrTxDone = errors.New("store: transaction already committed or rolled back")
)

// Querier holds every data operation the engine and its collaborators
// issue. Both Store and Tx satisfy it.
type Querier interface {
	account.Store
	transaction.Store
	external.Store
}

// Store is the unified storage interface. Operations called on it
// directly run in their own implicit transaction.
type Store interface {
	Querier

	// Begin starts a transaction. The transaction owns one connection
	// until Commit or Rollback. ctx bounds the lifetime of the transaction.
	Begin(ctx context.Context) (Tx, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is one physical database transaction.
type Tx interface {
	Querier

	// Savepoint marks a point that RollbackTo can return to. Names are
	// unique within the transaction.
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error

	Commit(ctx context.Context) error

	// Rollback is safe to call after Commit; it then returns ErrTxDone.
	Rollback(ctx context.Context) error
}
