package wallet_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/wallet"
	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/store/memory"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
)

var (
	alice = wallet.NewBeneficiary("alice", wallet.NamespaceUser, wallet.DefaultSymbol)
	bob   = wallet.NewBeneficiary("bob", wallet.NamespaceUser, wallet.DefaultSymbol)
)

// recorder is a plugin that remembers the hooks it saw.
type recorder struct {
	mu     sync.Mutex
	events []string
	failed []error
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) OnMinted(_ context.Context, tx *transaction.Transaction, _ *account.Account) error {
	r.add("minted:" + tx.Amount.String())
	return nil
}

func (r *recorder) OnBurned(_ context.Context, tx *transaction.Transaction, _ *account.Account) error {
	r.add("burned:" + tx.Amount.String())
	return nil
}

func (r *recorder) OnTransferred(_ context.Context, tx *transaction.Transaction, _, _ *account.Account) error {
	r.add("transferred:" + tx.Amount.String())
	return nil
}

func (r *recorder) OnBurnedAll(_ context.Context, _ []string, _ account.Namespace, _ string, _ int64) error {
	r.add("burned_all")
	return nil
}

func (r *recorder) OnMutationFailed(_ context.Context, op string, err error) error {
	r.mu.Lock()
	r.failed = append(r.failed, err)
	r.mu.Unlock()
	r.add("failed:" + op)
	return nil
}

func (r *recorder) OnUnitOfWorkCommitted(_ context.Context, _ int) error {
	r.add("committed")
	return nil
}

func (r *recorder) OnUnitOfWorkRolledBack(_ context.Context, _ int) error {
	r.add("rolled_back")
	return nil
}

func newWallet(t *testing.T, opts ...wallet.Option) *wallet.Wallet {
	t.Helper()
	w := wallet.New(memory.New(), opts...)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func balanceOf(t *testing.T, w *wallet.Wallet, b wallet.Beneficiary) string {
	t.Helper()
	got, err := w.GetBalance(context.Background(), b)
	require.NoError(t, err)
	return got.String()
}

func TestMint(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	res, err := w.Mint(ctx, alice, "100")
	require.NoError(t, err)
	require.NotNil(t, res.Transaction)

	assert.Equal(t, transaction.KindMint, res.Transaction.Kind())
	assert.Equal(t, "100", res.Transaction.Amount.String())
	got, ok := res.Balance(alice)
	require.True(t, ok)
	assert.Equal(t, "100", got.String())

	_, err = w.Mint(ctx, alice, "5")
	require.NoError(t, err)
	assert.Equal(t, "105", balanceOf(t, w, alice))
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	_, err := w.Mint(ctx, alice, "100")
	require.NoError(t, err)

	res, err := w.Transfer(ctx, alice, bob, "30")
	require.NoError(t, err)

	assert.Equal(t, "70", balanceOf(t, w, alice))
	assert.Equal(t, "30", balanceOf(t, w, bob))
	assert.Equal(t, transaction.KindTransfer, res.Transaction.Kind())
	assert.Equal(t, "alice", res.Transaction.SenderAccount)
	assert.Equal(t, "bob", res.Transaction.ReceiverAccount)

	txs, err := w.ListTransactions(ctx, transaction.ListOpts{Account: "bob"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, res.Transaction.ID.String(), txs[0].ID.String())

	stored, err := w.GetTransaction(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, "30", stored.Amount.String())
}

func TestTransferAcrossNamespaces(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)
	casino := wallet.NewBeneficiary("alice", wallet.NamespaceCasino, wallet.DefaultSymbol)

	_, err := w.Mint(ctx, alice, "10")
	require.NoError(t, err)
	_, err = w.Transfer(ctx, alice, casino, "4")
	require.NoError(t, err)

	assert.Equal(t, "6", balanceOf(t, w, alice))
	assert.Equal(t, "4", balanceOf(t, w, casino))
}

func TestBurnToZero(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	_, err := w.Mint(ctx, alice, "100")
	require.NoError(t, err)
	res, err := w.Burn(ctx, alice, "100")
	require.NoError(t, err)

	assert.Equal(t, transaction.KindBurn, res.Transaction.Kind())
	assert.Equal(t, "0", balanceOf(t, w, alice))

	a, err := w.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.True(t, a.Balance.IsZero())
}

func TestZeroAmountIsNoop(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := newWallet(t, wallet.WithPlugin(rec))

	for name, op := range map[string]func() (*wallet.Result, error){
		"mint":     func() (*wallet.Result, error) { return w.Mint(ctx, alice, "0") },
		"burn":     func() (*wallet.Result, error) { return w.Burn(ctx, alice, "0") },
		"transfer": func() (*wallet.Result, error) { return w.Transfer(ctx, alice, bob, "0") },
	} {
		t.Run(name, func(t *testing.T) {
			res, err := op()
			require.NoError(t, err)
			assert.True(t, res.Empty())
		})
	}

	txs, err := w.ListTransactions(ctx, transaction.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, txs)
	_, err = w.GetAccount(ctx, alice)
	assert.ErrorIs(t, err, wallet.ErrAccountNotFound)
	assert.Empty(t, rec.seen())
}

func TestInvalidAmount(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	tooWide := "1" + strings.Repeat("0", types.MaxDigits)
	for _, raw := range []string{"-5", "abc", "", "1.5", "12abc", "1e3", "1e20000000", tooWide} {
		t.Run(raw, func(t *testing.T) {
			_, err := w.Mint(ctx, alice, raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
			assert.Equal(t, wallet.KindInvalidAmount, wallet.KindOf(err))

			_, err = w.Transfer(ctx, alice, bob, raw)
			assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
		})
	}
	assert.Equal(t, "0", balanceOf(t, w, alice))
}

func TestSymbolMismatch(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)
	usdc := wallet.NewBeneficiary("bob", wallet.NamespaceUser, "USDC")

	_, err := w.Mint(ctx, alice, "10")
	require.NoError(t, err)

	_, err = w.Transfer(ctx, alice, usdc, "5")
	var mismatch *wallet.SymbolMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "USDC", mismatch.Receiver.Symbol)
	assert.Equal(t, "10", balanceOf(t, w, alice))

	// Checked before the zero-amount shortcut.
	_, err = w.Transfer(ctx, alice, usdc, "0")
	assert.ErrorIs(t, err, wallet.ErrSymbolMismatch)
}

func TestInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := newWallet(t, wallet.WithPlugin(rec))

	_, err := w.Mint(ctx, alice, "50")
	require.NoError(t, err)

	_, err = w.Transfer(ctx, alice, bob, "80")
	var insufficient *wallet.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, alice, insufficient.Beneficiary)
	assert.Equal(t, "80", insufficient.Amount.String())
	assert.Equal(t, "50", insufficient.Available.String())
	assert.False(t, wallet.IsRetryable(err))

	assert.Equal(t, "50", balanceOf(t, w, alice))
	assert.Equal(t, "0", balanceOf(t, w, bob))
	_, err = w.GetAccount(ctx, bob)
	assert.ErrorIs(t, err, wallet.ErrAccountNotFound)

	txs, err := w.ListTransactions(ctx, transaction.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	assert.Contains(t, rec.seen(), "failed:transfer")
}

func TestBurnMissingAccount(t *testing.T) {
	w := newWallet(t)

	_, err := w.Burn(context.Background(), alice, "1")
	var insufficient *wallet.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.True(t, insufficient.Available.IsZero())
}

func TestInvalidBeneficiary(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	cases := map[string]wallet.Beneficiary{
		"empty owner":     wallet.NewBeneficiary("", wallet.NamespaceUser, wallet.DefaultSymbol),
		"empty symbol":    wallet.NewBeneficiary("alice", wallet.NamespaceUser, ""),
		"bad namespace":   wallet.NewBeneficiary("alice", "xyz", wallet.DefaultSymbol),
		"empty namespace": wallet.NewBeneficiary("alice", "", wallet.DefaultSymbol),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := w.Mint(ctx, b, "1")
			assert.ErrorIs(t, err, wallet.ErrInvalidBeneficiary)
			_, err = w.GetBalance(ctx, b)
			assert.ErrorIs(t, err, wallet.ErrInvalidBeneficiary)
		})
	}

	_, err := w.BurnAll(ctx, []string{"alice"}, "xyz", wallet.DefaultSymbol)
	assert.ErrorIs(t, err, wallet.ErrInvalidBeneficiary)
}

func TestSelfTransfer(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	_, err := w.Mint(ctx, alice, "10")
	require.NoError(t, err)

	res, err := w.Transfer(ctx, alice, alice, "4")
	require.NoError(t, err)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, "10", balanceOf(t, w, alice))

	txs, err := w.ListTransactions(ctx, transaction.ListOpts{Account: "alice"})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestBurnAll(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := newWallet(t, wallet.WithPlugin(rec))
	carol := wallet.NewBeneficiary("carol", wallet.NamespaceUser, wallet.DefaultSymbol)
	usdc := wallet.NewBeneficiary("alice", wallet.NamespaceUser, "USDC")

	for _, b := range []wallet.Beneficiary{alice, bob, carol, usdc} {
		_, err := w.Mint(ctx, b, "7")
		require.NoError(t, err)
	}

	affected, err := w.BurnAll(ctx, []string{"alice", "bob", "nobody"}, wallet.NamespaceUser, wallet.DefaultSymbol)
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)

	assert.Equal(t, "0", balanceOf(t, w, alice))
	assert.Equal(t, "0", balanceOf(t, w, bob))
	assert.Equal(t, "7", balanceOf(t, w, carol))
	assert.Equal(t, "7", balanceOf(t, w, usdc))

	txs, err := w.ListTransactions(ctx, transaction.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, txs, 4, "burn-all writes no log entries")
	assert.Contains(t, rec.seen(), "burned_all")

	affected, err = w.BurnAll(ctx, nil, wallet.NamespaceUser, wallet.DefaultSymbol)
	require.NoError(t, err)
	assert.Zero(t, affected)
}

func TestBigAmounts(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)
	huge := "1000000000000000000000000000000"

	_, err := w.Mint(ctx, alice, huge)
	require.NoError(t, err)
	_, err = w.Transfer(ctx, alice, bob, "999999999999999999999999999999")
	require.NoError(t, err)

	assert.Equal(t, "1", balanceOf(t, w, alice))
	assert.Equal(t, "999999999999999999999999999999", balanceOf(t, w, bob))
}

func TestBalanceOverflow(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)
	widest := strings.Repeat("9", types.MaxDigits)

	_, err := w.Mint(ctx, alice, widest)
	require.NoError(t, err)

	_, err = w.Mint(ctx, alice, "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
	assert.Equal(t, widest, balanceOf(t, w, alice))
}

func TestListBalances(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)
	usdc := wallet.NewBeneficiary("alice", wallet.NamespaceUser, "USDC")

	_, err := w.Mint(ctx, alice, "1")
	require.NoError(t, err)
	_, err = w.Mint(ctx, usdc, "2")
	require.NoError(t, err)
	_, err = w.Mint(ctx, bob, "3")
	require.NoError(t, err)

	mine, err := w.ListBalances(ctx, "alice", wallet.NamespaceUser)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	bySymbol, err := w.ListBalancesBySymbols(ctx, []string{wallet.DefaultSymbol}, wallet.NamespaceUser, "")
	require.NoError(t, err)
	assert.Len(t, bySymbol, 2)

	none, err := w.ListBalancesBySymbols(ctx, nil, wallet.NamespaceUser, "")
	require.NoError(t, err)
	assert.Empty(t, none)

	total, err := w.SumTransactions(ctx, transaction.SumOpts{
		ReceiverNamespace: wallet.NamespaceUser,
		Symbol:            wallet.DefaultSymbol,
	})
	require.NoError(t, err)
	assert.Equal(t, "4", total.String())
}

func TestConcurrentBurns(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	_, err := w.Mint(ctx, alice, "100")
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, shy  int
		failures []error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Burn(ctx, alice, "60")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, wallet.ErrInsufficientFunds):
				shy++
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, failures)
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, shy)
	assert.Equal(t, "40", balanceOf(t, w, alice))
}

func TestConcurrentCrossingTransfers(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t)

	_, err := w.Mint(ctx, alice, "50")
	require.NoError(t, err)
	_, err = w.Mint(ctx, bob, "50")
	require.NoError(t, err)

	const rounds = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	for i := range rounds {
		from, to := alice, bob
		if i%2 == 1 {
			from, to = bob, alice
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Transfer(ctx, from, to, "20")
			if err == nil || errors.Is(err, wallet.ErrInsufficientFunds) {
				return
			}
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Empty(t, failures)
	a := types.MustParseAmount(balanceOf(t, w, alice))
	b := types.MustParseAmount(balanceOf(t, w, bob))
	assert.Equal(t, "100", a.Add(b).String())
	assert.False(t, a.IsNegative())
	assert.False(t, b.IsNegative())
}

func TestHooksFireAfterWrite(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := newWallet(t, wallet.WithPlugin(rec))

	_, err := w.Mint(ctx, alice, "9")
	require.NoError(t, err)
	_, err = w.Burn(ctx, alice, "2")
	require.NoError(t, err)
	_, err = w.Transfer(ctx, alice, bob, "3")
	require.NoError(t, err)

	assert.Equal(t, []string{"minted:9", "burned:2", "transferred:3"}, rec.seen())
}

func TestGetTransactionNotFound(t *testing.T) {
	w := newWallet(t)
	res, err := w.Mint(context.Background(), alice, "1")
	require.NoError(t, err)

	other := wallet.New(memory.New())
	_, err = other.GetTransaction(context.Background(), res.Transaction.ID)
	require.Error(t, err)
	assert.Equal(t, wallet.KindNone, wallet.KindOf(err))
}
