package wallet_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/wallet"
	"github.com/xraph/wallet/external"
	"github.com/xraph/wallet/store/memory"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		w := wallet.New(store, wallet.WithLogger(slog.Default()))

		ctx := context.Background()
		if err := w.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer w.Stop()

		alice := wallet.NewBeneficiary("alice", wallet.NamespaceUser, wallet.DefaultSymbol)
		bob := wallet.NewBeneficiary("bob", wallet.NamespaceUser, wallet.DefaultSymbol)

		if _, err := w.Mint(ctx, alice, "100"); err != nil {
			t.Fatal(err)
		}

		res, err := w.Transfer(ctx, alice, bob, "30")
		if err != nil {
			t.Fatal(err)
		}

		balance, ok := res.Balance(bob)
		if !ok || balance.String() != "30" {
			t.Fatalf("bob balance = %s, want 30", balance)
		}
	})

	t.Run("UnitOfWorkExample", func(t *testing.T) {
		ctx := context.Background()
		w := wallet.New(memory.New())
		alice := wallet.NewBeneficiary("alice", wallet.NamespaceUser, wallet.DefaultSymbol)

		if _, err := w.Mint(ctx, alice, "100"); err != nil {
			t.Fatal(err)
		}

		withdrawal := &external.ExternalTransaction{
			Originator:            external.OriginatorWithdraw,
			ExternalSystem:        "ethereum",
			Status:                external.StatusNew,
			ExternalTransactionID: "withdraw-1",
			NetworkCode:           external.NetworkEthereum,
			InternalUserID:        "alice",
		}

		err := w.RunInUnitOfWork(ctx, func(u *wallet.UnitOfWork) error {
			if _, err := u.Burn(ctx, alice, "50"); err != nil {
				return err
			}
			return u.External().CreateExternalTransaction(ctx, withdrawal)
		})
		if err != nil {
			t.Fatal(err)
		}

		balance, err := w.GetBalance(ctx, alice)
		if err != nil {
			t.Fatal(err)
		}
		if balance.String() != "50" {
			t.Fatalf("alice balance = %s, want 50", balance)
		}
	})

	t.Run("ErrorExample", func(t *testing.T) {
		ctx := context.Background()
		w := wallet.New(memory.New())
		alice := wallet.NewBeneficiary("alice", wallet.NamespaceUser, wallet.DefaultSymbol)

		_, err := w.Burn(ctx, alice, "1")

		var insufficient *wallet.InsufficientFundsError
		if !errors.As(err, &insufficient) {
			t.Fatalf("expected InsufficientFundsError, got %v", err)
		}
		if wallet.KindOf(err) != wallet.KindInsufficientFunds {
			t.Fatalf("kind = %s", wallet.KindOf(err))
		}
	})

	t.Run("WeiExample", func(t *testing.T) {
		amount, err := wallet.ToWei("1.5")
		if err != nil {
			t.Fatal(err)
		}
		if amount.String() != "1500000000000000000" {
			t.Fatalf("ToWei(1.5) = %s", amount)
		}
		if got := wallet.FromWei(amount); got != "1.5" {
			t.Fatalf("FromWei = %s", got)
		}
	})
}
