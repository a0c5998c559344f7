package plugin_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/plugin"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
)

type minter struct {
	name  string
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (m *minter) Name() string { return m.name }

func (m *minter) OnMinted(ctx context.Context, _ *transaction.Transaction, _ *account.Account) error {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
		}
	}
	return m.err
}

type bare struct{}

func (bare) Name() string { return "bare" }

func quietRegistry(buf *bytes.Buffer) *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(buf, nil)))
}

func mintEntry() *transaction.Transaction {
	b := account.NewBeneficiary("alice", account.NamespaceUser, account.DefaultSymbol)
	return transaction.NewMint(b, types.NewAmount(5))
}

func TestRegister(t *testing.T) {
	var buf bytes.Buffer
	r := quietRegistry(&buf)

	require.NoError(t, r.Register(&minter{name: "a"}))
	require.NoError(t, r.Register(bare{}))
	assert.Error(t, r.Register(&minter{name: "a"}), "duplicate names are rejected")

	assert.Equal(t, 2, r.Count())
	assert.Len(t, r.List(), 2)
	assert.NotNil(t, r.Get("bare"))
	assert.Nil(t, r.Get("missing"))
	assert.Contains(t, buf.String(), "OnMinted")
}

func TestEmitDispatchesByInterface(t *testing.T) {
	var buf bytes.Buffer
	r := quietRegistry(&buf)
	m := &minter{name: "m"}
	require.NoError(t, r.Register(m))
	require.NoError(t, r.Register(bare{}))

	ctx := context.Background()
	r.EmitMinted(ctx, mintEntry(), nil)
	r.EmitBurned(ctx, mintEntry(), nil)

	assert.EqualValues(t, 1, m.calls.Load())
}

func TestEmitLogsPluginErrors(t *testing.T) {
	var buf bytes.Buffer
	r := quietRegistry(&buf)
	require.NoError(t, r.Register(&minter{name: "broken", err: errors.New("boom")}))
	ok := &minter{name: "ok"}
	require.NoError(t, r.Register(ok))

	r.EmitMinted(context.Background(), mintEntry(), nil)

	assert.EqualValues(t, 1, ok.calls.Load(), "a failing plugin does not stop the others")
	assert.Contains(t, buf.String(), "plugin OnMinted failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestHookTimeout(t *testing.T) {
	var buf bytes.Buffer
	r := quietRegistry(&buf).WithHookTimeout(10 * time.Millisecond)
	require.NoError(t, r.Register(&minter{name: "slow", delay: time.Second}))

	start := time.Now()
	r.EmitMinted(context.Background(), mintEntry(), nil)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Contains(t, buf.String(), "plugin timeout: slow")
}
