package extension

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/wallet/store/memory"
	"github.com/xraph/wallet/store/sqlite"
	"github.com/xraph/wallet/webhook"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{DSN: "x"})

	assert.Equal(t, DriverMemory, cfg.Driver)
	assert.Equal(t, 10*time.Second, cfg.OperationTimeout)
	assert.Equal(t, "wallet", cfg.WebhookMongoDatabase)
	assert.Equal(t, "x", cfg.DSN)

	cfg = mergeWithDefaults(Config{OperationTimeout: -1})
	assert.Equal(t, time.Duration(-1), cfg.OperationTimeout, "negative disables the bound")
}

func TestMergeConfigurations(t *testing.T) {
	fromFile := Config{Driver: DriverPostgres, DSN: "postgres://file"}
	programmatic := Config{
		Driver:           DriverSQLite,
		DSN:              "file:ignored.db",
		OperationTimeout: time.Second,
		DisableMigrate:   true,
	}

	cfg := mergeConfigurations(fromFile, programmatic)

	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "postgres://file", cfg.DSN)
	assert.Equal(t, time.Second, cfg.OperationTimeout)
	assert.True(t, cfg.DisableMigrate)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := openStore(ctx, "", "")
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)

	s, err = openStore(ctx, DriverSQLite, "file:"+filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.IsType(t, &sqlite.Store{}, s)
	_, ok := s.(webhook.Store)
	assert.True(t, ok)

	_, err = openStore(ctx, DriverPostgres, "")
	assert.Error(t, err)
	_, err = openStore(ctx, "oracle", "dsn")
	assert.ErrorContains(t, err, "unknown driver")
}

func TestStoreFromGrove(t *testing.T) {
	ctx := context.Background()

	src, err := sqlite.Connect(ctx, "file:"+filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	s, err := storeFromGrove(src.DB())
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))
}

func TestBuildWalletOpts(t *testing.T) {
	e := New(WithOperationTimeout(time.Second))
	assert.Len(t, e.buildWalletOpts(), 1)

	e = New(WithOperationTimeout(-1))
	assert.Empty(t, e.buildWalletOpts())
}
