//go:build integration

package postgres_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/store"
	"github.com/xraph/wallet/store/postgres"
	"github.com/xraph/wallet/store/storetest"
	"github.com/xraph/wallet/types"
	"github.com/xraph/wallet/webhook"
)

// setupPostgresContainer starts a disposable PostgreSQL container and
// returns its connection string. The container is terminated on cleanup.
func setupPostgresContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("wallet"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// newStore returns a migrated store whose tables are emptied first, so the
// suites can share one container.
func newStore(t *testing.T, dsn string) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	s, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	_, err = pgdriver.Unwrap(s.DB()).NewRaw(`TRUNCATE wallet_accounts, wallet_transactions,
		wallet_transaction_queue, wallet_external_transactions,
		wallet_external_transaction_logs, wallet_webhook_queue`).Exec(ctx)
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	dsn := setupPostgresContainer(t)

	storetest.Run(t, func(t *testing.T) store.Store { return newStore(t, dsn) })
	storetest.RunWebhooks(t, func(t *testing.T) webhook.Store { return newStore(t, dsn) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	dsn := setupPostgresContainer(t)
	s := newStore(t, dsn)

	require.NoError(t, s.Migrate(context.Background()))
}

func TestNumericOverflowIsClassified(t *testing.T) {
	ctx := context.Background()
	dsn := setupPostgresContainer(t)
	s := newStore(t, dsn)
	b := account.NewBeneficiary("alice", account.NamespaceUser, "WFAIR")

	widest := types.MustParseAmount(strings.Repeat("9", types.MaxDigits))
	_, err := s.ApplyDeltas(ctx, []account.Delta{{Beneficiary: b, Amount: widest}})
	require.NoError(t, err)

	_, err = s.ApplyDeltas(ctx, []account.Delta{{Beneficiary: b, Amount: types.NewAmount(1)}})
	assert.ErrorIs(t, err, store.ErrOverflow)
}
