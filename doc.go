// Package wallet provides a double-entry ledger of fungible balances for Go
// applications.
//
// Wallet is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - Mint, burn, transfer and burn-all over accounts keyed by
//     (owner, namespace, symbol)
//   - Arbitrary-precision integer balances that can never go below zero
//   - An append-only transaction log of every balance change
//   - Explicit units of work spanning balance changes and external
//     transaction bookkeeping
//   - Pluggable hooks for metrics and audit trails
//
// # Quick Start
//
// Create a wallet with your preferred store:
//
//	import (
//	    "github.com/xraph/wallet"
//	    "github.com/xraph/wallet/store/postgres"
//	)
//
//	store, err := postgres.Connect(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	w := wallet.New(store)
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Core Concepts
//
// A Beneficiary addresses one account. Accounts are created on their first
// credit and are never deleted:
//
//	alice := wallet.NewBeneficiary("alice", wallet.NamespaceUser, wallet.DefaultSymbol)
//	bob := wallet.NewBeneficiary("bob", wallet.NamespaceUser, wallet.DefaultSymbol)
//
//	_, err := w.Mint(ctx, alice, "100")
//	res, err := w.Transfer(ctx, alice, bob, "30")
//	balance, _ := res.Balance(bob) // 30
//
// Amounts are decimal strings of minor units. A zero amount returns an
// empty Result and no error. Use ToWei and FromWei to convert token units
// at the boundary.
//
// # Concurrency
//
// Every operation is a single "balance = balance + delta" write guarded by
// a storage CHECK constraint, so concurrent debits of one account never
// overdraw it and no application lock is taken. An overdraft surfaces as
// *InsufficientFundsError.
//
// # Units of Work
//
// Several operations can be committed together:
//
//	err := w.RunInUnitOfWork(ctx, func(u *wallet.UnitOfWork) error {
//	    if _, err := u.Burn(ctx, alice, "50"); err != nil {
//	        return err
//	    }
//	    return u.External().CreateExternalTransaction(ctx, withdrawal)
//	})
//
// # Errors
//
// Failures are tagged: InvalidAmountError, InvalidBeneficiaryError,
// InsufficientFundsError, SymbolMismatchError, AccountNotFoundError and
// StorageFailureError. Branch with errors.As or KindOf. A storage failure
// with Unknown set may or may not have been applied.
//
// # TypeID
//
// Log entries and external records use TypeID identifiers:
//
//	txn_01h2xcejqtf2nbrexx3vqjhp41  // Transaction log entry
//	etx_01h2xcejqtf2nbrexx3vqjhp41  // External transaction
//	whk_01h455vb4pex5vsknk084sn02q  // Webhook queue entry
package wallet
