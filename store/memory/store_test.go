package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/store"
	"github.com/xraph/wallet/store/memory"
	"github.com/xraph/wallet/store/storetest"
	"github.com/xraph/wallet/types"
	"github.com/xraph/wallet/webhook"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return memory.New() })
}

func TestWebhooks(t *testing.T) {
	storetest.RunWebhooks(t, func(t *testing.T) webhook.Store { return memory.New() })
}

func TestBeginHoldsStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	b := account.NewBeneficiary("a", account.NamespaceUser, "WFAIR")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.GetBalance(waitCtx, b)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "store is held by the open transaction")

	_, err = tx.ApplyDeltas(ctx, []account.Delta{{Beneficiary: b, Amount: types.NewAmount(3)}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	balance, err := s.GetBalance(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "3", balance.String())
}

func TestRollbackToUnknownSavepoint(t *testing.T) {
	ctx := context.Background()
	tx, err := memory.New().Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	assert.ErrorIs(t, tx.RollbackTo(ctx, "nope"), store.ErrNotFound)
}

func TestUseAfterCommit(t *testing.T) {
	ctx := context.Background()
	tx, err := memory.New().Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	_, err = tx.GetBalance(ctx, account.NewBeneficiary("a", account.NamespaceUser, "WFAIR"))
	assert.ErrorIs(t, err, store.ErrTxDone)
	assert.ErrorIs(t, tx.Commit(ctx), store.ErrTxDone)
}
