// Package storetest holds the behaviour every store.Store backend must
// show. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/external"
	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/store"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
	"github.com/xraph/wallet/webhook"
)

// Factory returns a migrated, empty store.
type Factory func(t *testing.T) store.Store

// Run runs the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, newStore) })
	t.Run("ApplyDeltas", func(t *testing.T) { testApplyDeltas(t, newStore) })
	t.Run("BurnAll", func(t *testing.T) { testBurnAll(t, newStore) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newStore) })
	t.Run("Tx", func(t *testing.T) { testTx(t, newStore) })
	t.Run("External", func(t *testing.T) { testExternal(t, newStore) })
	t.Run("ConcurrentDebits", func(t *testing.T) { testConcurrentDebits(t, newStore) })
	t.Run("CrossingTransfers", func(t *testing.T) { testCrossingTransfers(t, newStore) })
	t.Run("Overflow", func(t *testing.T) { testOverflow(t, newStore) })
}

func amt(s string) types.Amount { return types.MustParseAmount(s) }

func credit(b account.Beneficiary, v string) account.Delta {
	return account.Delta{Beneficiary: b, Amount: amt(v)}
}

func debit(b account.Beneficiary, v string) account.Delta {
	return account.Delta{Beneficiary: b, Amount: amt(v).Neg()}
}

func testAccounts(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)

	alice := account.NewBeneficiary("alice", account.NamespaceUser, "WFAIR")
	aliceETH := account.NewBeneficiary("alice", account.NamespaceUser, "ETH")
	bob := account.NewBeneficiary("bob", account.NamespaceUser, "WFAIR")
	bobBet := account.NewBeneficiary("bob", account.NamespaceBetting, "WFAIR")

	balance, err := s.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "missing account reads as zero")

	_, err = s.GetAccount(ctx, alice)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.ApplyDeltas(ctx, []account.Delta{
		credit(alice, "100"),
		credit(aliceETH, "5"),
		credit(bob, "7"),
		credit(bobBet, "9"),
	})
	require.NoError(t, err)

	a, err := s.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "100", a.Balance.String())
	assert.Equal(t, alice, a.Beneficiary())
	assert.False(t, a.CreatedAt.IsZero())

	list, err := s.ListBalances(ctx, "alice", account.NamespaceUser)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ETH", list[0].Symbol)
	assert.Equal(t, "WFAIR", list[1].Symbol)

	bySymbol, err := s.ListBalancesBySymbols(ctx, []string{"WFAIR"}, account.NamespaceUser, "")
	require.NoError(t, err)
	require.Len(t, bySymbol, 2)
	assert.Equal(t, "alice", bySymbol[0].Owner)
	assert.Equal(t, "bob", bySymbol[1].Owner)

	bySymbol, err = s.ListBalancesBySymbols(ctx, []string{"WFAIR", "ETH"}, account.NamespaceUser, "alice")
	require.NoError(t, err)
	assert.Len(t, bySymbol, 2)

	empty, err := s.ListBalances(ctx, "nobody", account.NamespaceUser)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func testApplyDeltas(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("MergesAndKeepsOrder", func(t *testing.T) {
		s := newStore(t)
		a := account.NewBeneficiary("a", account.NamespaceUser, "WFAIR")
		b := account.NewBeneficiary("b", account.NamespaceCasino, "WFAIR")

		out, err := s.ApplyDeltas(ctx, []account.Delta{credit(b, "10"), credit(a, "3"), credit(b, "5")})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, b, out[0].Beneficiary())
		assert.Equal(t, "15", out[0].Balance.String())
		assert.Equal(t, a, out[1].Beneficiary())
		assert.Equal(t, "3", out[1].Balance.String())
	})

	t.Run("TransferMovesValue", func(t *testing.T) {
		s := newStore(t)
		a := account.NewBeneficiary("a", account.NamespaceUser, "WFAIR")
		b := account.NewBeneficiary("b", account.NamespaceUser, "WFAIR")
		_, err := s.ApplyDeltas(ctx, []account.Delta{credit(a, "100")})
		require.NoError(t, err)

		out, err := s.ApplyDeltas(ctx, []account.Delta{debit(a, "40"), credit(b, "40")})
		require.NoError(t, err)
		assert.Equal(t, "60", out[0].Balance.String())
		assert.Equal(t, "40", out[1].Balance.String())
	})

	t.Run("NegativeResultWritesNothing", func(t *testing.T) {
		s := newStore(t)
		a := account.NewBeneficiary("a", account.NamespaceUser, "WFAIR")
		b := account.NewBeneficiary("b", account.NamespaceUser, "WFAIR")
		_, err := s.ApplyDeltas(ctx, []account.Delta{credit(a, "10")})
		require.NoError(t, err)

		_, err = s.ApplyDeltas(ctx, []account.Delta{credit(b, "11"), debit(a, "11")})
		require.ErrorIs(t, err, store.ErrNegativeBalance)

		balance, err := s.GetBalance(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, "10", balance.String())

		_, err = s.GetAccount(ctx, b)
		assert.ErrorIs(t, err, store.ErrNotFound, "credited account must not be created")
	})

	t.Run("DebitOfMissingAccount", func(t *testing.T) {
		s := newStore(t)
		ghost := account.NewBeneficiary("ghost", account.NamespaceUser, "WFAIR")

		_, err := s.ApplyDeltas(ctx, []account.Delta{debit(ghost, "1")})
		require.ErrorIs(t, err, store.ErrNegativeBalance)

		_, err = s.GetAccount(ctx, ghost)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("DrainToZero", func(t *testing.T) {
		s := newStore(t)
		a := account.NewBeneficiary("a", account.NamespaceUser, "WFAIR")
		_, err := s.ApplyDeltas(ctx, []account.Delta{credit(a, "25")})
		require.NoError(t, err)

		out, err := s.ApplyDeltas(ctx, []account.Delta{debit(a, "25")})
		require.NoError(t, err)
		assert.True(t, out[0].Balance.IsZero())
	})

	t.Run("BeyondInt64", func(t *testing.T) {
		s := newStore(t)
		a := account.NewBeneficiary("whale", account.NamespaceUser, "WFAIR")
		big := "123456789012345678901234567890"

		_, err := s.ApplyDeltas(ctx, []account.Delta{credit(a, big), credit(a, big)})
		require.NoError(t, err)

		balance, err := s.GetBalance(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, "246913578024691357802469135780", balance.String())
	})
}

func testBurnAll(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)

	a := account.NewBeneficiary("a", account.NamespaceTradelite, "WFAIR")
	b := account.NewBeneficiary("b", account.NamespaceTradelite, "WFAIR")
	other := account.NewBeneficiary("a", account.NamespaceUser, "WFAIR")
	_, err := s.ApplyDeltas(ctx, []account.Delta{credit(a, "5"), credit(b, "6"), credit(other, "7")})
	require.NoError(t, err)

	n, err := s.BurnAll(ctx, []string{"a", "b", "missing"}, account.NamespaceTradelite, "WFAIR")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, ben := range []account.Beneficiary{a, b} {
		balance, err := s.GetBalance(ctx, ben)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	}
	balance, err := s.GetBalance(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "7", balance.String(), "other namespaces are untouched")
}

func testTransactions(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)

	alice := account.NewBeneficiary("alice", account.NamespaceUser, "WFAIR")
	bet := account.NewBeneficiary("alice", account.NamespaceBetting, "WFAIR")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mint := transaction.NewMint(alice, amt("100"))
	mint.ExecutedAt = base
	require.NoError(t, s.AppendTransaction(ctx, mint))
	assert.False(t, mint.ID.IsNil(), "id is assigned")

	move := transaction.NewTransfer(alice, bet, amt("30"))
	move.ExecutedAt = base.Add(time.Minute)
	require.NoError(t, s.AppendTransaction(ctx, move))

	burn := transaction.NewBurn(bet, amt("5"))
	burn.ExecutedAt = base.Add(2 * time.Minute)
	require.NoError(t, s.AppendTransaction(ctx, burn))

	t.Run("Validation", func(t *testing.T) {
		err := s.AppendTransaction(ctx, transaction.NewMint(alice, types.Zero()))
		assert.ErrorIs(t, err, store.ErrInvalidEntry)

		err = s.AppendTransaction(ctx, &transaction.Transaction{Symbol: "WFAIR", Amount: amt("1")})
		assert.ErrorIs(t, err, store.ErrInvalidEntry)
	})

	t.Run("Get", func(t *testing.T) {
		got, err := s.GetTransaction(ctx, move.ID)
		require.NoError(t, err)
		assert.Equal(t, move.ID.String(), got.ID.String())
		assert.Equal(t, transaction.KindTransfer, got.Kind())
		assert.Equal(t, "30", got.Amount.String())
		assert.Equal(t, account.NamespaceBetting, got.ReceiverNamespace)
		assert.True(t, got.ExecutedAt.Equal(move.ExecutedAt))

		got, err = s.GetTransaction(ctx, mint.ID)
		require.NoError(t, err)
		assert.Equal(t, transaction.KindMint, got.Kind())
		assert.Empty(t, got.SenderAccount)

		_, err = s.GetTransaction(ctx, id.NewTransactionID())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		list, err := s.ListTransactions(ctx, transaction.ListOpts{Account: "alice"})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, burn.ID.String(), list[0].ID.String())
		assert.Equal(t, mint.ID.String(), list[2].ID.String())

		page, err := s.ListTransactions(ctx, transaction.ListOpts{Account: "alice", Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, move.ID.String(), page[0].ID.String())

		window, err := s.ListTransactions(ctx, transaction.ListOpts{
			From: base.Add(time.Minute),
			To:   base.Add(2 * time.Minute),
		})
		require.NoError(t, err)
		require.Len(t, window, 1)
		assert.Equal(t, move.ID.String(), window[0].ID.String())

		betOnly, err := s.ListTransactions(ctx, transaction.ListOpts{Namespace: account.NamespaceBetting})
		require.NoError(t, err)
		assert.Len(t, betOnly, 2)
	})

	t.Run("Sum", func(t *testing.T) {
		total, err := s.SumTransactions(ctx, transaction.SumOpts{
			SenderNamespace:   account.NamespaceUser,
			ReceiverNamespace: account.NamespaceBetting,
			Symbol:            "WFAIR",
		})
		require.NoError(t, err)
		assert.Equal(t, "30", total.String())

		total, err = s.SumTransactions(ctx, transaction.SumOpts{Symbol: "NOPE"})
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})
}

func testTx(t *testing.T, newStore Factory) {
	ctx := context.Background()
	a := account.NewBeneficiary("a", account.NamespaceUser, "WFAIR")

	t.Run("CommitPublishes", func(t *testing.T) {
		s := newStore(t)
		tx, err := s.Begin(ctx)
		require.NoError(t, err)

		_, err = tx.ApplyDeltas(ctx, []account.Delta{credit(a, "10")})
		require.NoError(t, err)
		require.NoError(t, tx.AppendTransaction(ctx, transaction.NewMint(a, amt("10"))))

		inside, err := tx.GetBalance(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, "10", inside.String())

		require.NoError(t, tx.Commit(ctx))
		assert.ErrorIs(t, tx.Rollback(ctx), store.ErrTxDone)

		balance, err := s.GetBalance(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, "10", balance.String())
	})

	t.Run("RollbackDiscards", func(t *testing.T) {
		s := newStore(t)
		tx, err := s.Begin(ctx)
		require.NoError(t, err)

		_, err = tx.ApplyDeltas(ctx, []account.Delta{credit(a, "10")})
		require.NoError(t, err)
		require.NoError(t, tx.AppendTransaction(ctx, transaction.NewMint(a, amt("10"))))
		require.NoError(t, tx.Rollback(ctx))

		_, err = s.GetAccount(ctx, a)
		assert.ErrorIs(t, err, store.ErrNotFound)
		list, err := s.ListTransactions(ctx, transaction.ListOpts{})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("SavepointKeepsEarlierWork", func(t *testing.T) {
		s := newStore(t)
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()

		_, err = tx.ApplyDeltas(ctx, []account.Delta{credit(a, "10")})
		require.NoError(t, err)

		require.NoError(t, tx.Savepoint(ctx, "sp_1"))
		_, err = tx.ApplyDeltas(ctx, []account.Delta{debit(a, "50")})
		require.ErrorIs(t, err, store.ErrNegativeBalance)
		require.NoError(t, tx.RollbackTo(ctx, "sp_1"))

		require.NoError(t, tx.Savepoint(ctx, "sp_2"))
		_, err = tx.ApplyDeltas(ctx, []account.Delta{debit(a, "4")})
		require.NoError(t, err)
		require.NoError(t, tx.Release(ctx, "sp_2"))

		require.NoError(t, tx.Commit(ctx))

		balance, err := s.GetBalance(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, "6", balance.String())
	})
}

func testExternal(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)

	block := int64(42)
	deposit := &external.ExternalTransaction{
		Originator:            external.OriginatorDeposit,
		ExternalSystem:        "chain-watcher",
		Status:                external.StatusCompleted,
		ExternalTransactionID: "0xdeposit",
		TransactionHash:       "0xhash1",
		NetworkCode:           external.NetworkEthereum,
		BlockNumber:           &block,
		InternalUserID:        "alice",
	}
	require.NoError(t, s.CreateExternalTransaction(ctx, deposit))
	assert.False(t, deposit.ID.IsNil())

	withdraw := &external.ExternalTransaction{
		Originator:            external.OriginatorWithdraw,
		Status:                external.StatusNew,
		ExternalTransactionID: "wd-1",
		NetworkCode:           external.NetworkEthereum,
		InternalUserID:        "alice",
		Queue: &external.QueueItem{
			NetworkCode: external.NetworkEthereum,
			Receiver:    "0xreceiver",
			Symbol:      "WFAIR",
			Namespace:   account.NamespaceEthereum,
			Amount:      amt("1000"),
		},
	}
	require.NoError(t, s.CreateExternalTransaction(ctx, withdraw))

	t.Run("Get", func(t *testing.T) {
		got, err := s.GetExternalTransaction(ctx, deposit.ID)
		require.NoError(t, err)
		assert.Equal(t, "0xdeposit", got.ExternalTransactionID)
		require.NotNil(t, got.BlockNumber)
		assert.Equal(t, int64(42), *got.BlockNumber)
		assert.Nil(t, got.Queue)

		got, err = s.GetExternalTransactionByExternalID(ctx, "wd-1", false)
		require.NoError(t, err)
		require.NotNil(t, got.Queue)
		assert.Equal(t, "1000", got.Queue.Amount.String())
		assert.Equal(t, "0xreceiver", got.Queue.Receiver)
		assert.Nil(t, got.BlockNumber)

		_, err = s.GetExternalTransactionByExternalID(ctx, "nope", false)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("DuplicateExternalID", func(t *testing.T) {
		dup := &external.ExternalTransaction{
			Originator:            external.OriginatorDeposit,
			Status:                external.StatusNew,
			ExternalTransactionID: "0xdeposit",
		}
		assert.ErrorIs(t, s.CreateExternalTransaction(ctx, dup), store.ErrConflict)
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		require.NoError(t, s.UpdateExternalTransactionStatus(ctx, withdraw.ID, external.StatusProcessing, ""))
		require.NoError(t, s.UpdateExternalTransactionStatus(ctx, withdraw.ID, external.StatusCompleted, "0xsent"))

		got, err := s.GetExternalTransaction(ctx, withdraw.ID)
		require.NoError(t, err)
		assert.Equal(t, external.StatusCompleted, got.Status)
		assert.Equal(t, "0xsent", got.TransactionHash)
		assert.Equal(t, "0xsent", got.ExternalTransactionID)
		require.NotNil(t, got.Queue)

		_, err = s.GetExternalTransactionByExternalID(ctx, "wd-1", false)
		assert.ErrorIs(t, err, store.ErrNotFound)

		err = s.UpdateExternalTransactionStatus(ctx, withdraw.ID, external.StatusCompleted, "0xdeposit")
		assert.ErrorIs(t, err, store.ErrConflict, "the hash collides with another external id")

		err = s.UpdateExternalTransactionStatus(ctx, id.NewExternalTransactionID(), external.StatusFailed, "")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ByHash", func(t *testing.T) {
		got, err := s.GetExternalTransactionByHash(ctx, "0xhash1")
		require.NoError(t, err)
		assert.Equal(t, deposit.ID, got.ID)

		got, err = s.GetExternalTransactionByHash(ctx, "0xsent")
		require.NoError(t, err)
		assert.Equal(t, withdraw.ID, got.ID)

		_, err = s.GetExternalTransactionByHash(ctx, "0xunknown")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("LastByBlockNumber", func(t *testing.T) {
		for _, n := range []int64{7, 99, 13} {
			block := n
			require.NoError(t, s.CreateExternalTransaction(ctx, &external.ExternalTransaction{
				Originator:            external.OriginatorDeposit,
				Status:                external.StatusCompleted,
				ExternalTransactionID: "0xblock" + strconv.FormatInt(n, 10),
				NetworkCode:           external.NetworkEthereum,
				BlockNumber:           &block,
			}))
		}

		got, err := s.GetLastExternalByBlockNumber(ctx, external.OriginatorDeposit, external.StatusCompleted, external.NetworkEthereum)
		require.NoError(t, err)
		require.NotNil(t, got.BlockNumber)
		assert.Equal(t, int64(99), *got.BlockNumber)

		_, err = s.GetLastExternalByBlockNumber(ctx, external.OriginatorWithdraw, external.StatusCompleted, external.NetworkEthereum)
		assert.ErrorIs(t, err, store.ErrNotFound, "the withdrawal carries no block number")
	})

	t.Run("List", func(t *testing.T) {
		list, err := s.ListExternalTransactions(ctx, external.ListOpts{
			Statuses: []external.Status{external.StatusCompleted},
		})
		require.NoError(t, err)
		assert.Len(t, list, 5)

		list, err = s.ListExternalTransactions(ctx, external.ListOpts{Originator: external.OriginatorWithdraw})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, withdraw.ID, list[0].ID)
	})

	t.Run("Logs", func(t *testing.T) {
		for _, v := range []string{"100", "250"} {
			require.NoError(t, s.AppendExternalLog(ctx, &external.Log{
				Originator:            external.OriginatorDeposit,
				Status:                external.StatusCompleted,
				ExternalTransactionID: "0xdeposit",
				NetworkCode:           external.NetworkEthereum,
				Symbol:                "WFAIR",
				Amount:                amt(v),
				InternalUserID:        "alice",
			}))
		}

		logs, err := s.ListExternalLogs(ctx, external.LogListOpts{ExternalTransactionID: "0xdeposit"})
		require.NoError(t, err)
		assert.Len(t, logs, 2)

		total, err := s.SumExternalLogAmount(ctx, external.OriginatorDeposit, "alice")
		require.NoError(t, err)
		assert.Equal(t, "350", total.String())

		total, err = s.SumExternalLogAmount(ctx, external.OriginatorWithdraw, "alice")
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})

	t.Run("LogByHash", func(t *testing.T) {
		for _, status := range []external.Status{external.StatusProcessing, external.StatusCompleted} {
			require.NoError(t, s.AppendExternalLog(ctx, &external.Log{
				Originator:            external.OriginatorWithdraw,
				Status:                status,
				ExternalTransactionID: "0xsent",
				TransactionHash:       "0xsent",
				NetworkCode:           external.NetworkEthereum,
				Symbol:                "WFAIR",
				Amount:                amt("5"),
				InternalUserID:        "alice",
			}))
			time.Sleep(2 * time.Millisecond)
		}

		got, err := s.GetExternalLogByHash(ctx, "0xsent")
		require.NoError(t, err)
		assert.Equal(t, external.StatusCompleted, got.Status, "the newest log wins")

		_, err = s.GetExternalLogByHash(ctx, "0xunknown")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

// testConcurrentDebits races two debits that each fit the balance alone
// but not together. Exactly one may succeed.
func testConcurrentDebits(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	a := account.NewBeneficiary("racer", account.NamespaceUser, "WFAIR")
	_, err := s.ApplyDeltas(ctx, []account.Delta{credit(a, "100")})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, 2)
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = s.ApplyDeltas(ctx, []account.Delta{debit(a, "60")})
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrNegativeBalance):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	balance, err := s.GetBalance(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "40", balance.String())
}

// testCrossingTransfers races transfers in both directions between the
// same two accounts. Each may only succeed or be refused for funds; the
// total never changes.
func testCrossingTransfers(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	a := account.NewBeneficiary("alice", account.NamespaceUser, "WFAIR")
	b := account.NewBeneficiary("bob", account.NamespaceUser, "WFAIR")
	_, err := s.ApplyDeltas(ctx, []account.Delta{credit(a, "50"), credit(b, "50")})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, 16)
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			deltas := []account.Delta{debit(a, "20"), credit(b, "20")}
			if i%2 == 1 {
				deltas = []account.Delta{debit(b, "20"), credit(a, "20")}
			}
			_, results[i] = s.ApplyDeltas(ctx, deltas)
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range results {
		if err != nil && !errors.Is(err, store.ErrNegativeBalance) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	balA, err := s.GetBalance(ctx, a)
	require.NoError(t, err)
	balB, err := s.GetBalance(ctx, b)
	require.NoError(t, err)
	assert.False(t, balA.IsNegative())
	assert.False(t, balB.IsNegative())
	assert.Equal(t, "100", balA.Add(balB).String())
}

// testOverflow pushes a balance past the widest amount.
func testOverflow(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	a := account.NewBeneficiary("whale", account.NamespaceUser, "WFAIR")
	top := amt(strings.Repeat("9", types.MaxDigits))

	_, err := s.ApplyDeltas(ctx, []account.Delta{{Beneficiary: a, Amount: top}})
	require.NoError(t, err)

	_, err = s.ApplyDeltas(ctx, []account.Delta{credit(a, "1")})
	require.ErrorIs(t, err, store.ErrOverflow)

	balance, err := s.GetBalance(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, top.String(), balance.String())
}

// RunWebhooks runs the webhook queue suite against stores built by newStore.
func RunWebhooks(t *testing.T, newStore func(t *testing.T) webhook.Store) {
	ctx := context.Background()
	s := newStore(t)

	first, err := s.EnqueueWebhook(ctx, &webhook.Entry{
		Originator:    webhook.OriginatorDeposit,
		Request:       json.RawMessage(`{"tx":"0x1"}`),
		RequestID:     "req-1",
		RequestStatus: "confirmed",
		Error:         "timeout",
	})
	require.NoError(t, err)
	assert.False(t, first.ID.IsNil())
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, webhook.StatusFailed, first.Status)
	assert.JSONEq(t, `{"tx":"0x1"}`, string(first.Request))

	again, err := s.EnqueueWebhook(ctx, &webhook.Entry{
		Originator:    webhook.OriginatorDeposit,
		RequestID:     "req-1",
		RequestStatus: "confirmed",
		Error:         "still failing",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID.String(), again.ID.String())
	assert.Equal(t, 2, again.Attempts)
	assert.Equal(t, "still failing", again.Error)

	_, err = s.EnqueueWebhook(ctx, &webhook.Entry{
		Originator:    webhook.OriginatorWithdraw,
		RequestID:     "req-2",
		RequestStatus: "sent",
	})
	require.NoError(t, err)

	failed, err := s.ListWebhooks(ctx, webhook.OriginatorDeposit, webhook.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "req-1", failed[0].RequestID)

	require.NoError(t, s.UpdateWebhookStatus(ctx, first.ID, webhook.StatusResolved))
	failed, err = s.ListWebhooks(ctx, webhook.OriginatorDeposit, webhook.StatusFailed)
	require.NoError(t, err)
	assert.Empty(t, failed)

	all, err := s.ListWebhooks(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, s.UpdateWebhookStatus(ctx, id.NewWebhookID(), webhook.StatusResolved), store.ErrNotFound)
}
