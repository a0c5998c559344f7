package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/wallet"
	audithook "github.com/xraph/wallet/audit_hook"
	"github.com/xraph/wallet/store/memory"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, e *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

var (
	alice = wallet.NewBeneficiary("alice", wallet.NamespaceUser, wallet.DefaultSymbol)
	bob   = wallet.NewBeneficiary("bob", wallet.NamespaceUser, wallet.DefaultSymbol)
)

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	rec := &sink{}
	w := wallet.New(memory.New(), wallet.WithPlugin(audithook.New(rec)))

	res, err := w.Mint(ctx, alice, "10")
	require.NoError(t, err)
	_, err = w.Transfer(ctx, alice, bob, "4")
	require.NoError(t, err)
	_, err = w.Burn(ctx, alice, "100")
	require.Error(t, err)
	_, err = w.BurnAll(ctx, []string{"bob"}, wallet.NamespaceUser, wallet.DefaultSymbol)
	require.NoError(t, err)

	assert.Equal(t, []string{
		audithook.ActionMinted,
		audithook.ActionTransferred,
		audithook.ActionBurnedAll,
	}, rec.actions(), "rejected operations are not audited")

	mint := rec.events[0]
	assert.Equal(t, res.Transaction.ID.String(), mint.ResourceID)
	assert.Equal(t, "10", mint.Metadata["amount"])
	assert.Equal(t, "10", mint.Metadata["balance"])
	assert.Equal(t, "usr:alice", mint.Metadata["receiver"])

	burnAll := rec.events[2]
	assert.Equal(t, audithook.SeverityWarning, burnAll.Severity)
	assert.EqualValues(t, 1, burnAll.Metadata["affected"])
}

func TestAuditUnitOfWork(t *testing.T) {
	ctx := context.Background()
	rec := &sink{}
	w := wallet.New(memory.New(), wallet.WithPlugin(audithook.New(rec)))

	err := w.RunInUnitOfWork(ctx, func(u *wallet.UnitOfWork) error {
		_, err := u.Mint(ctx, alice, "1")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = w.RunInUnitOfWork(ctx, func(u *wallet.UnitOfWork) error {
		if _, err := u.Mint(ctx, alice, "1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, []string{
		audithook.ActionMinted,
		audithook.ActionUnitCommitted,
		audithook.ActionUnitRolledBack,
	}, rec.actions())
}

func TestAuditStorageFailure(t *testing.T) {
	rec := &sink{}
	ext := audithook.New(rec)

	err := &wallet.StorageFailureError{Op: "burn", Unknown: true, Err: errors.New("connection reset")}
	require.NoError(t, ext.OnMutationFailed(context.Background(), "burn", err))

	require.Len(t, rec.events, 1)
	assert.Equal(t, audithook.OutcomeUnknown, rec.events[0].Outcome)
	assert.Equal(t, audithook.SeverityCritical, rec.events[0].Severity)
	assert.Contains(t, rec.events[0].Reason, "connection reset")
}

func TestEnabledActions(t *testing.T) {
	ctx := context.Background()
	rec := &sink{}
	w := wallet.New(memory.New(), wallet.WithPlugin(
		audithook.New(rec, audithook.WithDisabledActions(audithook.ActionMinted)),
	))

	_, err := w.Mint(ctx, alice, "5")
	require.NoError(t, err)
	_, err = w.Burn(ctx, alice, "2")
	require.NoError(t, err)

	assert.Equal(t, []string{audithook.ActionBurned}, rec.actions())
}
