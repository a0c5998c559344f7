package wallet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/external"
	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/plugin"
	"github.com/xraph/wallet/store"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
)

// TracerName is the instrumentation scope of the spans this package emits.
const TracerName = "github.com/xraph/wallet"

const (
	opMint     = "mint"
	opBurn     = "burn"
	opTransfer = "transfer"
	opBurnAll  = "burn_all"
)

var errNegativeAmount = errors.New("amount is negative")

// Wallet is the balance mutation engine. It holds no balance state of its
// own: every operation is one atomic write against the store, so a Wallet
// is safe for concurrent use and may run in many processes against the
// same database.
type Wallet struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	tracer  trace.Tracer

	opTimeout time.Duration
	now       func() time.Time
}

// New creates a new Wallet instance.
func New(s store.Store, opts ...Option) *Wallet {
	w := &Wallet{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		tracer:  otel.Tracer(TracerName),
		now:     func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Option configures a Wallet instance.
type Option func(*Wallet)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wallet) {
		w.logger = logger
		w.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(w *Wallet) {
		_ = w.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(w *Wallet) {
		w.tracer = t
	}
}

// WithOperationTimeout bounds every store call issued by one operation.
// A call cut short by the timeout fails with an unknown outcome.
func WithOperationTimeout(d time.Duration) Option {
	return func(w *Wallet) {
		w.opTimeout = d
	}
}

// WithClock sets the clock used for log entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Wallet) {
		w.now = now
	}
}

// WithHookTimeout bounds a single plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(w *Wallet) {
		w.plugins.WithHookTimeout(d)
	}
}

// Start migrates the store and initializes plugins.
func (w *Wallet) Start(ctx context.Context) error {
	if err := w.store.Migrate(ctx); err != nil {
		return err
	}

	w.plugins.EmitInit(ctx, w)

	w.logger.Info("wallet started",
		"plugins", w.plugins.Count(),
		"operation_timeout", w.opTimeout,
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (w *Wallet) Stop() error {
	ctx := context.Background()
	w.plugins.EmitShutdown(ctx)

	return w.store.Close()
}

// Store returns the underlying store.
func (w *Wallet) Store() store.Store { return w.store }

// Plugins returns the plugin registry.
func (w *Wallet) Plugins() *plugin.Registry { return w.plugins }

// External returns the external transaction collaborator. Each call
// commits on its own; use UnitOfWork.External to join a unit of work.
func (w *Wallet) External() external.Store { return w.store }

// ──────────────────────────────────────────────────
// Results
// ──────────────────────────────────────────────────

// Result is the outcome of a balance operation. A zero amount produces an
// empty Result and no error.
type Result struct {
	// Transaction is the log entry written, nil for burn-all.
	Transaction *transaction.Transaction

	// Balances holds the new balance of every account touched.
	Balances []*account.Account

	// Affected is the number of accounts reset by burn-all.
	Affected int64
}

// Empty reports whether nothing happened.
func (r *Result) Empty() bool {
	return r == nil || (r.Transaction == nil && len(r.Balances) == 0 && r.Affected == 0)
}

// Balance returns the new balance of b, if the operation touched it.
func (r *Result) Balance(b account.Beneficiary) (types.Amount, bool) {
	if r == nil {
		return types.Zero(), false
	}
	if a := account.Find(r.Balances, b); a != nil {
		return a.Balance, true
	}
	return types.Zero(), false
}

// ──────────────────────────────────────────────────
// Balance operations
// ──────────────────────────────────────────────────

// Mint credits amount to b, creating the account if needed.
func (w *Wallet) Mint(ctx context.Context, b account.Beneficiary, amount string) (*Result, error) {
	return w.do(ctx, opMint, beneficiaryAttrs(b, amount), func() (*mutation, error) {
		return w.prepareMint(b, amount)
	}, w.execute)
}

// Burn debits amount from b. It fails with InsufficientFundsError when the
// balance does not cover amount; a burn of the whole balance succeeds.
func (w *Wallet) Burn(ctx context.Context, b account.Beneficiary, amount string) (*Result, error) {
	return w.do(ctx, opBurn, beneficiaryAttrs(b, amount), func() (*mutation, error) {
		return w.prepareBurn(b, amount)
	}, w.execute)
}

// Transfer moves amount from sender to receiver in one atomic write. The
// namespaces may differ; the symbols may not.
func (w *Wallet) Transfer(ctx context.Context, sender, receiver account.Beneficiary, amount string) (*Result, error) {
	return w.do(ctx, opTransfer, transferAttrs(sender, receiver, amount), func() (*mutation, error) {
		return w.prepareTransfer(sender, receiver, amount)
	}, w.execute)
}

// BurnAll resets the balances of owners in ns for symbol to zero and
// returns how many accounts were reset. It writes no log entries.
func (w *Wallet) BurnAll(ctx context.Context, owners []string, ns account.Namespace, symbol string) (int64, error) {
	res, err := w.do(ctx, opBurnAll, burnAllAttrs(owners, ns, symbol), func() (*mutation, error) {
		return w.prepareBurnAll(owners, ns, symbol)
	}, w.execute)
	if err != nil {
		return 0, err
	}
	return res.Affected, nil
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// GetBalance returns the balance of b, zero when the account does not exist.
func (w *Wallet) GetBalance(ctx context.Context, b account.Beneficiary) (types.Amount, error) {
	return w.getBalance(ctx, w.store, b)
}

// GetAccount returns the account addressed by b. It fails with
// AccountNotFoundError when the account does not exist.
func (w *Wallet) GetAccount(ctx context.Context, b account.Beneficiary) (*account.Account, error) {
	return w.getAccount(ctx, w.store, b)
}

// ListBalances returns every balance of owner in ns.
func (w *Wallet) ListBalances(ctx context.Context, owner string, ns account.Namespace) ([]*account.Account, error) {
	return w.listBalances(ctx, w.store, owner, ns)
}

// ListBalancesBySymbols returns the balances in ns for the given symbols.
// An empty owner lists every owner.
func (w *Wallet) ListBalancesBySymbols(ctx context.Context, symbols []string, ns account.Namespace, owner string) ([]*account.Account, error) {
	return w.listBalancesBySymbols(ctx, w.store, symbols, ns, owner)
}

// GetTransaction returns one log entry.
func (w *Wallet) GetTransaction(ctx context.Context, txID id.TransactionID) (*transaction.Transaction, error) {
	return w.getTransaction(ctx, w.store, txID)
}

// ListTransactions queries the transaction log.
func (w *Wallet) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	return w.listTransactions(ctx, w.store, opts)
}

// SumTransactions sums log amounts matching opts.
func (w *Wallet) SumTransactions(ctx context.Context, opts transaction.SumOpts) (types.Amount, error) {
	return w.sumTransactions(ctx, w.store, opts)
}
