package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	walletstore "github.com/xraph/wallet/store"
)

// SQLSTATE codes the store translates.
const (
	codeNumericOutOfRange    = "22003"
	codeCheckViolation       = "23514"
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeQueryCanceled        = "57014"
)

const balanceConstraint = "wallet_accounts_balance_non_negative"

// classify maps driver errors onto the store sentinels, keeping the cause.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeCheckViolation:
			if pgErr.ConstraintName == balanceConstraint {
				return fmt.Errorf("%w: %w", walletstore.ErrNegativeBalance, err)
			}
			return fmt.Errorf("%w: %w", walletstore.ErrInvalidEntry, err)
		case codeNumericOutOfRange:
			return fmt.Errorf("%w: %w", walletstore.ErrOverflow, err)
		case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", walletstore.ErrConflict, err)
		case codeQueryCanceled:
			return fmt.Errorf("%w: %w", walletstore.ErrTimeout, err)
		}
	}

	switch {
	case errors.Is(err, pgx.ErrTxClosed):
		return fmt.Errorf("%w: %w", walletstore.ErrTxDone, err)
	case pgconn.Timeout(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", walletstore.ErrTimeout, err)
	}
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
