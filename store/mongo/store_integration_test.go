//go:build integration

package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/wallet/store/mongo"
	"github.com/xraph/wallet/store/storetest"
	"github.com/xraph/wallet/webhook"
)

func TestWebhooks(t *testing.T) {
	ctx := context.Background()

	container, err := tcmongo.Run(ctx,
		"mongo:7",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Waiting for connections").
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	storetest.RunWebhooks(t, func(t *testing.T) webhook.Store {
		s, err := mongo.Connect(ctx, uri, "wallet_test")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		require.NoError(t, mongodriver.Unwrap(s.DB()).Collection("wallet_webhook_queue").Drop(ctx))
		require.NoError(t, s.Migrate(ctx))
		return s
	})
}
