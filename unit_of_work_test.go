package wallet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/wallet"
	"github.com/xraph/wallet/external"
	"github.com/xraph/wallet/transaction"
)

func TestUnitOfWorkCommit(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := newWallet(t, wallet.WithPlugin(rec))

	u := w.NewUnitOfWork()
	require.False(t, u.Active())
	require.NoError(t, u.Begin(ctx))
	require.NoError(t, u.Begin(ctx), "begin is idempotent")
	require.True(t, u.Active())

	_, err := u.Mint(ctx, alice, "100")
	require.NoError(t, err)
	_, err = u.Transfer(ctx, alice, bob, "40")
	require.NoError(t, err)

	got, err := u.GetBalance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "40", got.String(), "reads see uncommitted work")
	assert.Empty(t, rec.seen(), "hooks wait for commit")

	require.NoError(t, u.Commit(ctx))
	assert.False(t, u.Active())

	assert.Equal(t, "60", balanceOf(t, w, alice))
	assert.Equal(t, "40", balanceOf(t, w, bob))
	assert.Equal(t, []string{"minted:100", "transferred:40", "committed"}, rec.seen())
}

func TestUnitOfWorkRollback(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := newWallet(t, wallet.WithPlugin(rec))

	u := w.NewUnitOfWork()
	require.NoError(t, u.Begin(ctx))
	_, err := u.Mint(ctx, alice, "100")
	require.NoError(t, err)
	require.NoError(t, u.External().CreateExternalTransaction(ctx, &external.ExternalTransaction{
		Originator:            external.OriginatorDeposit,
		ExternalSystem:        "ethereum",
		Status:                external.StatusNew,
		ExternalTransactionID: "deposit-1",
		NetworkCode:           external.NetworkEthereum,
		InternalUserID:        "alice",
	}))
	require.NoError(t, u.Rollback(ctx))

	assert.Equal(t, "0", balanceOf(t, w, alice))
	txs, err := w.ListTransactions(ctx, transaction.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, txs)
	_, err = w.External().GetExternalTransactionByExternalID(ctx, "deposit-1", false)
	assert.Error(t, err)

	assert.Equal(t, []string{"rolled_back"}, rec.seen())
}

func TestUnitOfWorkSurvivesDomainError(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	u := w.NewUnitOfWork()
	require.NoError(t, u.Begin(ctx))
	_, err := u.Mint(ctx, alice, "10")
	require.NoError(t, err)

	_, err = u.Transfer(ctx, alice, bob, "50")
	var insufficient *wallet.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "10", insufficient.Available.String())
	require.True(t, u.Active(), "domain errors leave the unit open")

	_, err = u.Transfer(ctx, alice, bob, "4")
	require.NoError(t, err)
	require.NoError(t, u.Commit(ctx))

	assert.Equal(t, "6", balanceOf(t, w, alice))
	assert.Equal(t, "4", balanceOf(t, w, bob))
	txs, err := w.ListTransactions(ctx, transaction.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestUnitOfWorkInactiveAutoCommits(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	u := w.NewUnitOfWork()
	_, err := u.Mint(ctx, alice, "3")
	require.NoError(t, err)
	assert.Equal(t, "3", balanceOf(t, w, alice))

	require.NoError(t, u.Commit(ctx), "commit without begin is a no-op")
	require.NoError(t, u.Rollback(ctx), "rollback without begin is a no-op")
	assert.Equal(t, "3", balanceOf(t, w, alice))

	_, err = u.Tx()
	assert.ErrorIs(t, err, wallet.ErrNoActiveUnitOfWork)
}

func TestUnitOfWorkReuse(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)
	u := w.NewUnitOfWork()

	require.NoError(t, u.Begin(ctx))
	_, err := u.Mint(ctx, alice, "1")
	require.NoError(t, err)
	require.NoError(t, u.Commit(ctx))

	require.NoError(t, u.Begin(ctx))
	_, err = u.Mint(ctx, alice, "1")
	require.NoError(t, err)
	require.NoError(t, u.Rollback(ctx))

	assert.Equal(t, "1", balanceOf(t, w, alice))
}

func TestRunInUnitOfWork(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)
	_, err := w.Mint(ctx, alice, "10")
	require.NoError(t, err)

	t.Run("commits on success", func(t *testing.T) {
		err := w.RunInUnitOfWork(ctx, func(u *wallet.UnitOfWork) error {
			_, err := u.Burn(ctx, alice, "2")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, "8", balanceOf(t, w, alice))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := w.RunInUnitOfWork(ctx, func(u *wallet.UnitOfWork) error {
			if _, err := u.Burn(ctx, alice, "2"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "8", balanceOf(t, w, alice))
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = w.RunInUnitOfWork(ctx, func(u *wallet.UnitOfWork) error {
				if _, err := u.Burn(ctx, alice, "2"); err != nil {
					return err
				}
				panic("boom")
			})
		})
		assert.Equal(t, "8", balanceOf(t, w, alice))
	})
}

func TestUnitOfWorkExternalStatus(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	deposit := &external.ExternalTransaction{
		Originator:            external.OriginatorDeposit,
		ExternalSystem:        "ethereum",
		Status:                external.StatusNew,
		ExternalTransactionID: "deposit-7",
		NetworkCode:           external.NetworkEthereum,
		InternalUserID:        "alice",
	}
	require.NoError(t, w.External().CreateExternalTransaction(ctx, deposit))

	err := w.RunInUnitOfWork(ctx, func(u *wallet.UnitOfWork) error {
		found, err := u.External().GetExternalTransactionByExternalID(ctx, "deposit-7", true)
		if err != nil {
			return err
		}
		if _, err := u.Mint(ctx, alice, "25"); err != nil {
			return err
		}
		return u.External().UpdateExternalTransactionStatus(ctx, found.ID, external.StatusCompleted, "0xabc")
	})
	require.NoError(t, err)

	got, err := w.External().GetExternalTransaction(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, external.StatusCompleted, got.Status)
	assert.Equal(t, "0xabc", got.TransactionHash)
	assert.Equal(t, "0xabc", got.ExternalTransactionID, "the hash becomes the external id")
	assert.Equal(t, "25", balanceOf(t, w, alice))

	byHash, err := w.External().GetExternalTransactionByHash(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, deposit.ID, byHash.ID)
}
