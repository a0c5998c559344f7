package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/store"
	"github.com/xraph/wallet/types"
)

// Sentinel errors. Every error returned by a balance operation matches
// exactly one of the first six with errors.Is.
var (
	ErrInvalidAmount      = errors.New("wallet: invalid amount")
	ErrInvalidBeneficiary = errors.New("wallet: invalid beneficiary")
	ErrInsufficientFunds  = errors.New("wallet: insufficient funds")
	ErrSymbolMismatch     = errors.New("wallet: symbol mismatch")
	ErrAccountNotFound    = errors.New("wallet: account not found")
	ErrStorageFailure     = errors.New("wallet: storage failure")

	// ErrNoActiveUnitOfWork is returned by accessors that need a
	// transaction when none has been begun.
	ErrNoActiveUnitOfWork = errors.New("wallet: no active unit of work")
)

// ErrorKind tags an error with the failure class a caller branches on.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindInvalidAmount      ErrorKind = "invalid_amount"
	KindInvalidBeneficiary ErrorKind = "invalid_beneficiary"
	KindInsufficientFunds  ErrorKind = "insufficient_funds"
	KindSymbolMismatch     ErrorKind = "symbol_mismatch"
	KindAccountNotFound    ErrorKind = "account_not_found"
	KindStorageFailure     ErrorKind = "storage_failure"
)

// InvalidAmountError reports an amount the ledger cannot hold: malformed,
// fractional, negative or wider than types.MaxDigits.
type InvalidAmountError struct {
	Amount string
	Err    error
}

func (e *InvalidAmountError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wallet: invalid amount %q: %v", e.Amount, e.Err)
	}
	return fmt.Sprintf("wallet: invalid amount %q", e.Amount)
}

func (e *InvalidAmountError) Is(target error) bool { return target == ErrInvalidAmount }
func (e *InvalidAmountError) Unwrap() error        { return e.Err }

// InvalidBeneficiaryError reports an account address with an empty owner
// or symbol, or an unknown namespace.
type InvalidBeneficiaryError struct {
	Beneficiary account.Beneficiary
	Err         error
}

func (e *InvalidBeneficiaryError) Error() string {
	return fmt.Sprintf("wallet: invalid beneficiary %s: %v", e.Beneficiary, e.Err)
}

func (e *InvalidBeneficiaryError) Is(target error) bool { return target == ErrInvalidBeneficiary }
func (e *InvalidBeneficiaryError) Unwrap() error        { return e.Err }

// InsufficientFundsError reports a debit that would leave Beneficiary
// below zero. Available is the balance observed after the failed write;
// it is zero when that read itself failed.
type InsufficientFundsError struct {
	Beneficiary account.Beneficiary
	Amount      types.Amount
	Available   types.Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("wallet: insufficient funds in %s: amount %s, available %s",
		e.Beneficiary, e.Amount, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// SymbolMismatchError reports a transfer between different symbols.
type SymbolMismatchError struct {
	Sender   account.Beneficiary
	Receiver account.Beneficiary
}

func (e *SymbolMismatchError) Error() string {
	return fmt.Sprintf("wallet: cannot transfer %s to %s: symbols differ",
		e.Sender.Symbol, e.Receiver.Symbol)
}

func (e *SymbolMismatchError) Is(target error) bool { return target == ErrSymbolMismatch }

// AccountNotFoundError is only returned by reads that require the account
// to exist. Mutations create missing accounts.
type AccountNotFoundError struct {
	Beneficiary account.Beneficiary
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("wallet: account %s not found", e.Beneficiary)
}

func (e *AccountNotFoundError) Is(target error) bool { return target == ErrAccountNotFound }

// StorageFailureError wraps any persistence error that is not a domain
// error. When Unknown is set the write may or may not have been applied:
// the caller must reconcile before retrying.
type StorageFailureError struct {
	Op      string
	Unknown bool
	Err     error
}

func (e *StorageFailureError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("wallet: %s: storage failure (outcome unknown): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("wallet: %s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageFailureError) Is(target error) bool { return target == ErrStorageFailure }
func (e *StorageFailureError) Unwrap() error        { return e.Err }

// KindOf returns the kind of err, or KindNone for errors not produced by
// this package.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInvalidBeneficiary):
		return KindInvalidBeneficiary
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrSymbolMismatch):
		return KindSymbolMismatch
	case errors.Is(err, ErrAccountNotFound):
		return KindAccountNotFound
	case errors.Is(err, ErrStorageFailure):
		return KindStorageFailure
	default:
		return KindNone
	}
}

// IsUnknownOutcome reports whether err leaves it undecided whether the
// operation took effect.
func IsUnknownOutcome(err error) bool {
	var sf *StorageFailureError
	return errors.As(err, &sf) && sf.Unknown
}

// IsRetryable reports whether the operation is known not to have been
// applied and may be issued again as is. Domain errors are not retryable;
// they would fail the same way.
func IsRetryable(err error) bool {
	var sf *StorageFailureError
	return errors.As(err, &sf) && !sf.Unknown
}

// storageFailure wraps a backend error. Timeouts are reported with an
// unknown outcome.
func storageFailure(op string, err error, unknown bool) error {
	return &StorageFailureError{Op: op, Unknown: unknown || isTimeout(err), Err: err}
}

func isTimeout(err error) bool {
	return errors.Is(err, store.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
