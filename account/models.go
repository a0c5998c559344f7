package account

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/xraph/wallet/types"
)

// DefaultSymbol is the platform token symbol.
const DefaultSymbol = "WFAIR"

// Namespace partitions the balances of one owner by context.
type Namespace string

const (
	NamespaceUser      Namespace = "usr" // platform user wallet
	NamespaceEthereum  Namespace = "eth" // on-chain address
	NamespaceBetting   Namespace = "bet" // trading
	NamespaceTradelite Namespace = "tdl" // tradelite games
	NamespaceCasino    Namespace = "cas" // internal casino games
	NamespaceLiquidity Namespace = "liq" // liquidity pools
)

// Namespaces lists every known namespace.
func Namespaces() []Namespace {
	return []Namespace{
		NamespaceUser,
		NamespaceEthereum,
		NamespaceBetting,
		NamespaceTradelite,
		NamespaceCasino,
		NamespaceLiquidity,
	}
}

// Valid reports whether n is a known namespace.
func (n Namespace) Valid() bool {
	switch n {
	case NamespaceUser, NamespaceEthereum, NamespaceBetting,
		NamespaceTradelite, NamespaceCasino, NamespaceLiquidity:
		return true
	}
	return false
}

// ParseNamespace accepts the wire value in any case ("usr", "USR").
func ParseNamespace(s string) (Namespace, error) {
	n := Namespace(strings.ToLower(strings.TrimSpace(s)))
	if !n.Valid() {
		return "", fmt.Errorf("account: unknown namespace %q", s)
	}
	return n, nil
}

// Beneficiary addresses one account.
type Beneficiary struct {
	Owner     string    `json:"owner"`
	Namespace Namespace `json:"namespace"`
	Symbol    string    `json:"symbol"`
}

// NewBeneficiary builds a Beneficiary.
func NewBeneficiary(owner string, ns Namespace, symbol string) Beneficiary {
	return Beneficiary{Owner: owner, Namespace: ns, Symbol: symbol}
}

// Validate checks that every field of the triple is set.
func (b Beneficiary) Validate() error {
	if b.Owner == "" {
		return fmt.Errorf("account: beneficiary owner is empty")
	}
	if !b.Namespace.Valid() {
		return fmt.Errorf("account: beneficiary namespace %q is invalid", b.Namespace)
	}
	if b.Symbol == "" {
		return fmt.Errorf("account: beneficiary symbol is empty")
	}
	return nil
}

// String renders the triple as "namespace:owner/symbol".
func (b Beneficiary) String() string {
	return string(b.Namespace) + ":" + b.Owner + "/" + b.Symbol
}

// Account is one balance row.
type Account struct {
	Owner     string       `json:"owner_account"`
	Namespace Namespace    `json:"account_namespace"`
	Symbol    string       `json:"symbol"`
	Balance   types.Amount `json:"balance"`
	types.Entity
}

// Beneficiary returns the key of the account.
func (a *Account) Beneficiary() Beneficiary {
	return Beneficiary{Owner: a.Owner, Namespace: a.Namespace, Symbol: a.Symbol}
}

// Delta is a signed balance change addressed to one account.
type Delta struct {
	Beneficiary Beneficiary
	Amount      types.Amount
}

// MergeDeltas folds deltas addressed to the same beneficiary into one,
// keeping the order of first appearance. A batch touches each row once.
func MergeDeltas(deltas []Delta) []Delta {
	merged := make([]Delta, 0, len(deltas))
	index := make(map[Beneficiary]int, len(deltas))
	for _, d := range deltas {
		if i, ok := index[d.Beneficiary]; ok {
			merged[i].Amount = merged[i].Amount.Add(d.Amount)
			continue
		}
		index[d.Beneficiary] = len(merged)
		merged = append(merged, d)
	}
	return merged
}

// LockOrder returns a copy of deltas sorted by owner, namespace and symbol.
// Writers that lock rows in this order cannot deadlock on each other.
func LockOrder(deltas []Delta) []Delta {
	sorted := slices.Clone(deltas)
	slices.SortFunc(sorted, func(x, y Delta) int {
		return cmp.Or(
			cmp.Compare(x.Beneficiary.Owner, y.Beneficiary.Owner),
			cmp.Compare(x.Beneficiary.Namespace, y.Beneficiary.Namespace),
			cmp.Compare(x.Beneficiary.Symbol, y.Beneficiary.Symbol),
		)
	})
	return sorted
}

// Find returns the account addressed by b, or nil.
func Find(accounts []*Account, b Beneficiary) *Account {
	for _, a := range accounts {
		if a.Beneficiary() == b {
			return a
		}
	}
	return nil
}
