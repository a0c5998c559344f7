package wallet_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xraph/wallet"
)

func newTracedWallet(t *testing.T) (*wallet.Wallet, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return newWallet(t, wallet.WithTracer(tp.Tracer(wallet.TracerName))), rec
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestSpans(t *testing.T) {
	ctx := context.Background()
	w, rec := newTracedWallet(t)

	_, err := w.Mint(ctx, alice, "10")
	require.NoError(t, err)
	_, err = w.Transfer(ctx, alice, bob, "0")
	require.NoError(t, err)
	_, err = w.Burn(ctx, alice, "11")
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "wallet.mint", spans[0].Name())
	txID, ok := spanAttr(spans[0], "wallet.transaction_id")
	require.True(t, ok)
	assert.NotEmpty(t, txID.AsString())

	assert.Equal(t, "wallet.transfer", spans[1].Name())
	noop, ok := spanAttr(spans[1], "wallet.noop")
	require.True(t, ok)
	assert.True(t, noop.AsBool())

	assert.Equal(t, "wallet.burn", spans[2].Name())
	assert.Equal(t, codes.Error, spans[2].Status().Code)
}

func TestUnitOfWorkSpans(t *testing.T) {
	ctx := context.Background()
	w, rec := newTracedWallet(t)

	err := w.RunInUnitOfWork(ctx, func(u *wallet.UnitOfWork) error {
		_, err := u.Mint(ctx, alice, "1")
		return err
	})
	require.NoError(t, err)

	names := make([]string, 0)
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"wallet.uow.begin", "wallet.mint", "wallet.uow.commit"}, names)
}
