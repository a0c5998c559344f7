package observability_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/wallet"
	"github.com/xraph/wallet/observability"
	"github.com/xraph/wallet/store/memory"
)

func TestMetricsExtension(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))

	w := wallet.New(memory.New(), wallet.WithPlugin(metrics))
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })

	alice := wallet.NewBeneficiary("alice", wallet.NamespaceUser, wallet.DefaultSymbol)
	bob := wallet.NewBeneficiary("bob", wallet.NamespaceUser, wallet.DefaultSymbol)

	_, err := w.Mint(ctx, alice, "10")
	require.NoError(t, err)
	_, err = w.Transfer(ctx, alice, bob, "3")
	require.NoError(t, err)
	_, err = w.Burn(ctx, alice, "100")
	require.Error(t, err)
	_, err = w.Mint(ctx, alice, "-1")
	require.Error(t, err)
	_, err = w.BurnAll(ctx, []string{"alice", "bob"}, wallet.NamespaceUser, wallet.DefaultSymbol)
	require.NoError(t, err)

	err = w.RunInUnitOfWork(ctx, func(u *wallet.UnitOfWork) error {
		if _, err := u.Mint(ctx, alice, "1"); err != nil {
			return err
		}
		_, err := u.Mint(ctx, bob, "1")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 3.0, value(t, metrics.Minted))
	assert.Equal(t, 1.0, value(t, metrics.Transferred))
	assert.Equal(t, 0.0, value(t, metrics.Burned))
	assert.Equal(t, 1.0, value(t, metrics.BurnedAll))
	assert.Equal(t, 2.0, value(t, metrics.Reset))
	assert.Equal(t, 1.0, value(t, metrics.InsufficientFunds))
	assert.Equal(t, 1.0, value(t, metrics.Rejected))
	assert.Equal(t, 1.0, value(t, metrics.UnitsCommitted))

	count, err := testutil.GatherAndCount(reg, "wallet_mint_total", "wallet_uow_operations")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func value(t *testing.T, c observability.Counter) float64 {
	t.Helper()
	pc, ok := c.(prometheus.Counter)
	require.True(t, ok)
	return testutil.ToFloat64(pc)
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)

	a := f.Counter("wallet.test.total")
	b := f.Counter("wallet.test.total")
	a.Inc()
	b.Inc()

	other := observability.NewPrometheusFactory(reg).Counter("wallet.test.total")
	other.Inc()

	assert.Equal(t, 3.0, value(t, a))
}
