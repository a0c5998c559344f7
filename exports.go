package wallet

import (
	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/types"
)

// Re-export common types for convenience so users don't have to import the
// account and types packages for everyday calls.

// Amount is re-exported from types package.
type Amount = types.Amount

// Beneficiary is re-exported from account package.
type Beneficiary = account.Beneficiary

// Namespace is re-exported from account package.
type Namespace = account.Namespace

// Re-export namespaces
const (
	NamespaceUser      = account.NamespaceUser
	NamespaceEthereum  = account.NamespaceEthereum
	NamespaceBetting   = account.NamespaceBetting
	NamespaceTradelite = account.NamespaceTradelite
	NamespaceCasino    = account.NamespaceCasino
	NamespaceLiquidity = account.NamespaceLiquidity

	DefaultSymbol = account.DefaultSymbol
)

// Re-export constructors
var (
	NewBeneficiary = account.NewBeneficiary
	ParseAmount    = types.ParseAmount
	ToWei          = types.ToWei
	FromWei        = types.FromWei
	Zero           = types.Zero
)
