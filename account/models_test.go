package account

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/wallet/types"
)

func TestMergeDeltasKeepsFirstAppearance(t *testing.T) {
	a := NewBeneficiary("a", NamespaceUser, DefaultSymbol)
	b := NewBeneficiary("b", NamespaceUser, DefaultSymbol)

	merged := MergeDeltas([]Delta{
		{Beneficiary: b, Amount: types.NewAmount(10)},
		{Beneficiary: a, Amount: types.NewAmount(3)},
		{Beneficiary: b, Amount: types.NewAmount(-4)},
	})

	assert.Len(t, merged, 2)
	assert.Equal(t, b, merged[0].Beneficiary)
	assert.Equal(t, "6", merged[0].Amount.String())
	assert.Equal(t, a, merged[1].Beneficiary)
}

func TestLockOrder(t *testing.T) {
	bobUser := NewBeneficiary("bob", NamespaceUser, DefaultSymbol)
	aliceUser := NewBeneficiary("alice", NamespaceUser, DefaultSymbol)
	aliceBet := NewBeneficiary("alice", NamespaceBetting, DefaultSymbol)
	aliceETH := NewBeneficiary("alice", NamespaceUser, "ETH")

	in := []Delta{
		{Beneficiary: bobUser, Amount: types.NewAmount(1)},
		{Beneficiary: aliceUser, Amount: types.NewAmount(2)},
		{Beneficiary: aliceETH, Amount: types.NewAmount(3)},
		{Beneficiary: aliceBet, Amount: types.NewAmount(4)},
	}
	sorted := LockOrder(in)

	want := []Beneficiary{aliceBet, aliceETH, aliceUser, bobUser}
	for i, d := range sorted {
		assert.Equal(t, want[i], d.Beneficiary, "position %d", i)
	}
	assert.Equal(t, bobUser, in[0].Beneficiary, "input must not be reordered")
}
