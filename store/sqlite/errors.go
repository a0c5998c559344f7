package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	walletstore "github.com/xraph/wallet/store"
	"github.com/xraph/wallet/types"
)

const balanceConstraint = "wallet_accounts_balance_non_negative"

// classify maps driver errors onto the store sentinels, keeping the cause.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if strings.Contains(err.Error(), errOverflow.Error()) {
		return fmt.Errorf("%w: %w", walletstore.ErrOverflow, err)
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		code := sqlErr.Code()
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_CHECK ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqlErr.Error(), "CHECK")):
			if strings.Contains(sqlErr.Error(), balanceConstraint) {
				return fmt.Errorf("%w: %w", walletstore.ErrNegativeBalance, err)
			}
			return fmt.Errorf("%w: %w", walletstore.ErrInvalidEntry, err)
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %w", walletstore.ErrConflict, err)
		case code&0xff == sqlite3.SQLITE_BUSY:
			return fmt.Errorf("%w: %w", walletstore.ErrConflict, err)
		}
	}

	// The driver runs on database/sql, so a finished transaction reports
	// sql.ErrTxDone.
	switch {
	case errors.Is(err, sql.ErrTxDone):
		return fmt.Errorf("%w: %w", walletstore.ErrTxDone, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", walletstore.ErrTimeout, err)
	}
	return err
}

var registerOnce = sync.OnceValue(func() error {
	return sqlite.RegisterDeterministicScalarFunction("wallet_add", 2, walletAdd)
})

// registerFunctions installs the SQL functions on every connection opened
// afterwards.
func registerFunctions() error { return registerOnce() }

// errOverflow is raised by wallet_add. SQLite flattens function errors to
// text, so classify matches on the message.
var errOverflow = errors.New("wallet_add: result exceeds 78 digits")

// walletAdd is wallet_add(a, b): the exact sum of two decimal integer
// strings, as a decimal string.
func walletAdd(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, err := amountArg(args[0])
	if err != nil {
		return nil, err
	}
	b, err := amountArg(args[1])
	if err != nil {
		return nil, err
	}
	sum := a.Add(b)
	if sum.Overflows() {
		return nil, errOverflow
	}
	return sum.String(), nil
}

func amountArg(v driver.Value) (types.Amount, error) {
	var a types.Amount
	if err := a.Scan(v); err != nil {
		return types.Amount{}, fmt.Errorf("wallet_add: %w", err)
	}
	return a, nil
}
