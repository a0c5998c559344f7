// Command walletctl operates a wallet database from the shell: it applies
// migrations, reads balances and issues mint, burn, transfer and burn-all
// operations.
//
// Usage:
//
//	walletctl -config wallet.yaml balance alice
//	walletctl -driver sqlite -dsn file:wallet.db mint -wei alice 1.5
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/xraph/wallet"
	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/store"
	"github.com/xraph/wallet/store/memory"
	"github.com/xraph/wallet/store/postgres"
	"github.com/xraph/wallet/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "walletctl:", err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error kind to a process status so scripts can branch
// without parsing output.
func exitCode(err error) int {
	switch wallet.KindOf(err) {
	case wallet.KindInsufficientFunds:
		return 3
	case wallet.KindStorageFailure:
		if wallet.IsUnknownOutcome(err) {
			return 5
		}
		return 4
	case wallet.KindNone:
		return 1
	default:
		return 2
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, rest, err := parseGlobal(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return errors.New("missing command; run walletctl -h")
	}
	cmd, cmdArgs := rest[0], rest[1:]

	// Conversions need no store.
	switch cmd {
	case "to-wei":
		return toWei(cmdArgs, stdout)
	case "from-wei":
		return fromWei(cmdArgs, stdout)
	}

	logger := newLogger(cfg.Log, stderr)
	s, err := openStore(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return err
	}

	opts := []wallet.Option{wallet.WithLogger(logger)}
	if cfg.OperationTimeout > 0 {
		opts = append(opts, wallet.WithOperationTimeout(cfg.OperationTimeout))
	}
	w := wallet.New(s, opts...)
	defer func() {
		if err := w.Stop(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	if cmd == "migrate" {
		if err := s.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("migrations applied", "driver", cfg.Driver)
		return nil
	}

	c := &cli{w: w, out: stdout}
	switch cmd {
	case "balance":
		return c.balance(ctx, cmdArgs)
	case "balances":
		return c.balances(ctx, cmdArgs)
	case "mint":
		return c.mintOrBurn(ctx, cmd, cmdArgs, w.Mint)
	case "burn":
		return c.mintOrBurn(ctx, cmd, cmdArgs, w.Burn)
	case "transfer":
		return c.transfer(ctx, cmdArgs)
	case "burn-all":
		return c.burnAll(ctx, cmdArgs)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openStore(ctx context.Context, driver, dsn string) (store.Store, error) {
	switch driver {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.Connect(ctx, dsn)
	case "sqlite":
		return sqlite.Connect(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}
}

func newLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ──────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────

type cli struct {
	w   *wallet.Wallet
	out io.Writer
}

// accountFlags are the flags shared by commands that address one account.
type accountFlags struct {
	ns     string
	symbol string
	wei    bool
}

func newFlagSet(name string, af *accountFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&af.ns, "ns", string(account.NamespaceUser), "account namespace")
	fs.StringVar(&af.symbol, "symbol", account.DefaultSymbol, "token symbol")
	fs.BoolVar(&af.wei, "wei", false, "amounts are token units scaled by 10^18")
	return fs
}

func (af *accountFlags) beneficiary(owner string) (account.Beneficiary, error) {
	ns, err := account.ParseNamespace(af.ns)
	if err != nil {
		return account.Beneficiary{}, err
	}
	return account.NewBeneficiary(owner, ns, af.symbol), nil
}

// amount converts a command line amount to minor units.
func (af *accountFlags) amount(raw string) (string, error) {
	if !af.wei {
		return raw, nil
	}
	a, err := wallet.ToWei(raw)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}

func (af *accountFlags) render(a wallet.Amount) string {
	if af.wei {
		return wallet.FromWei(a)
	}
	return a.String()
}

func (c *cli) balance(ctx context.Context, args []string) error {
	var af accountFlags
	fs := newFlagSet("balance", &af)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: balance [-ns usr] [-symbol WFAIR] [-wei] <owner>")
	}

	b, err := af.beneficiary(fs.Arg(0))
	if err != nil {
		return err
	}
	got, err := c.w.GetBalance(ctx, b)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, af.render(got))
	return nil
}

func (c *cli) balances(ctx context.Context, args []string) error {
	var af accountFlags
	fs := newFlagSet("balances", &af)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: balances [-ns usr] [-wei] <owner>")
	}

	ns, err := account.ParseNamespace(af.ns)
	if err != nil {
		return err
	}
	accounts, err := c.w.ListBalances(ctx, fs.Arg(0), ns)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		fmt.Fprintf(c.out, "%s\t%s\n", a.Symbol, af.render(a.Balance))
	}
	return nil
}

type singleOp func(ctx context.Context, b account.Beneficiary, amount string) (*wallet.Result, error)

func (c *cli) mintOrBurn(ctx context.Context, name string, args []string, op singleOp) error {
	var af accountFlags
	fs := newFlagSet(name, &af)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: %s [-ns usr] [-symbol WFAIR] [-wei] <owner> <amount>", name)
	}

	b, err := af.beneficiary(fs.Arg(0))
	if err != nil {
		return err
	}
	amount, err := af.amount(fs.Arg(1))
	if err != nil {
		return err
	}

	res, err := op(ctx, b, amount)
	if err != nil {
		return err
	}
	c.report(&af, res)
	return nil
}

func (c *cli) transfer(ctx context.Context, args []string) error {
	var af accountFlags
	fs := newFlagSet("transfer", &af)
	toNS := fs.String("to-ns", "", "receiver namespace (default: -ns)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return errors.New("usage: transfer [-ns usr] [-to-ns usr] [-symbol WFAIR] [-wei] <sender> <receiver> <amount>")
	}

	sender, err := af.beneficiary(fs.Arg(0))
	if err != nil {
		return err
	}
	receiver := sender
	receiver.Owner = fs.Arg(1)
	if *toNS != "" {
		if receiver.Namespace, err = account.ParseNamespace(*toNS); err != nil {
			return err
		}
	}
	amount, err := af.amount(fs.Arg(2))
	if err != nil {
		return err
	}

	res, err := c.w.Transfer(ctx, sender, receiver, amount)
	if err != nil {
		return err
	}
	c.report(&af, res)
	return nil
}

func (c *cli) burnAll(ctx context.Context, args []string) error {
	var af accountFlags
	fs := newFlagSet("burn-all", &af)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: burn-all [-ns usr] [-symbol WFAIR] <owner>...")
	}

	ns, err := account.ParseNamespace(af.ns)
	if err != nil {
		return err
	}
	affected, err := c.w.BurnAll(ctx, fs.Args(), ns, af.symbol)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "reset %d accounts\n", affected)
	return nil
}

func (c *cli) report(af *accountFlags, res *wallet.Result) {
	if res.Empty() {
		fmt.Fprintln(c.out, "nothing to do")
		return
	}
	fmt.Fprintf(c.out, "transaction %s\n", res.Transaction.ID)
	for _, a := range res.Balances {
		fmt.Fprintf(c.out, "%s\t%s\n", a.Beneficiary(), af.render(a.Balance))
	}
}

func toWei(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: to-wei <amount>")
	}
	a, err := wallet.ToWei(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, a.String())
	return nil
}

func fromWei(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: from-wei <amount>")
	}
	a, err := wallet.ParseAmount(strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, wallet.FromWei(a))
	return nil
}
