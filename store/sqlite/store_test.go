package sqlite_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/store"
	"github.com/xraph/wallet/store/sqlite"
	"github.com/xraph/wallet/store/storetest"
	"github.com/xraph/wallet/types"
	"github.com/xraph/wallet/webhook"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.Connect(ctx, filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newStore(t) })
}

func TestWebhooks(t *testing.T) {
	storetest.RunWebhooks(t, func(t *testing.T) webhook.Store { return newStore(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestBalanceCheckConstraint(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	b := account.NewBeneficiary("a", account.NamespaceUser, "WFAIR")

	_, err := s.ApplyDeltas(ctx, []account.Delta{{Beneficiary: b, Amount: types.NewAmount(5)}})
	require.NoError(t, err)

	_, err = sqlitedriver.Unwrap(s.DB()).NewRaw(
		`UPDATE wallet_accounts SET balance = '-1' WHERE owner_account = ?`, "a").Exec(ctx)
	require.Error(t, err, "the schema rejects negative balances on its own")

	balance, err := s.GetBalance(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "5", balance.String())
}

func TestOverflowIsClassified(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	b := account.NewBeneficiary("a", account.NamespaceUser, "WFAIR")

	top, err := types.ParseAmount(strings.Repeat("9", types.MaxDigits))
	require.NoError(t, err)
	_, err = s.ApplyDeltas(ctx, []account.Delta{{Beneficiary: b, Amount: top}})
	require.NoError(t, err)

	_, err = s.ApplyDeltas(ctx, []account.Delta{{Beneficiary: b, Amount: types.NewAmount(1)}})
	require.ErrorIs(t, err, store.ErrOverflow)

	balance, err := s.GetBalance(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, top.String(), balance.String())
}

func TestInMemoryConnect(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Connect(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))
}
