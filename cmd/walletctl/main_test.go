package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/wallet"
)

type session struct {
	t    *testing.T
	args []string
}

func newSession(t *testing.T) *session {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "wallet.db")
	s := &session{t: t, args: []string{"-driver", "sqlite", "-dsn", dsn}}
	s.run("migrate")
	return s
}

func (s *session) exec(args ...string) (string, error) {
	s.t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append(append([]string{}, s.args...), args...), &stdout, &stderr)
	return strings.TrimSpace(stdout.String()), err
}

func (s *session) run(args ...string) string {
	s.t.Helper()
	out, err := s.exec(args...)
	require.NoError(s.t, err)
	return out
}

func TestMintTransferBalance(t *testing.T) {
	s := newSession(t)

	out := s.run("mint", "alice", "100")
	assert.Contains(t, out, "transaction txn_")
	assert.Contains(t, out, "usr:alice/WFAIR\t100")

	s.run("transfer", "alice", "bob", "30")
	assert.Equal(t, "70", s.run("balance", "alice"))
	assert.Equal(t, "30", s.run("balance", "bob"))

	s.run("burn", "bob", "30")
	assert.Equal(t, "0", s.run("balance", "bob"))
}

func TestInsufficientFundsExitCode(t *testing.T) {
	s := newSession(t)

	_, err := s.exec("burn", "alice", "1")
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))
}

func TestWeiFlag(t *testing.T) {
	s := newSession(t)

	s.run("mint", "-wei", "alice", "1.5")
	assert.Equal(t, "1500000000000000000", s.run("balance", "alice"))
	assert.Equal(t, "1.5", s.run("balance", "-wei", "alice"))
}

func TestBalancesAndBurnAll(t *testing.T) {
	s := newSession(t)

	s.run("mint", "alice", "5")
	s.run("mint", "-symbol", "USDC", "alice", "7")
	s.run("mint", "-ns", "cas", "alice", "9")

	out := s.run("balances", "alice")
	assert.Equal(t, "USDC\t7\nWFAIR\t5", out)

	assert.Equal(t, "reset 1 accounts", s.run("burn-all", "alice", "bob"))
	assert.Equal(t, "0", s.run("balance", "alice"))
	assert.Equal(t, "9", s.run("balance", "-ns", "cas", "alice"))
}

func TestCrossNamespaceTransfer(t *testing.T) {
	s := newSession(t)

	s.run("mint", "alice", "5")
	s.run("transfer", "-to-ns", "bet", "alice", "alice", "2")
	assert.Equal(t, "3", s.run("balance", "alice"))
	assert.Equal(t, "2", s.run("balance", "-ns", "bet", "alice"))
}

func TestBadInput(t *testing.T) {
	s := newSession(t)

	_, err := s.exec("mint", "alice", "-5")
	assert.Equal(t, 2, exitCode(err))

	_, err = s.exec("mint", "-ns", "xyz", "alice", "5")
	assert.Error(t, err)

	_, err = s.exec("frobnicate")
	assert.ErrorContains(t, err, "unknown command")
}

func TestConversions(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"to-wei", "2.25"}, &out, &out))
	assert.Equal(t, "2250000000000000000\n", out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"from-wei", "2250000000000000000"}, &out, &out))
	assert.Equal(t, "2.25\n", out.String())
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.yaml")
	body := "driver: memory\noperation_timeout: 3s\nlog:\n  json: true\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, rest, err := parseGlobal([]string{"-config", path, "-dsn", "override", "balance", "alice"})
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Driver)
	assert.Equal(t, "override", cfg.DSN)
	assert.Equal(t, 3*time.Second, cfg.OperationTimeout)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, []string{"balance", "alice"}, rest)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, 4, exitCode(&wallet.StorageFailureError{Op: "mint"}))
	assert.Equal(t, 5, exitCode(&wallet.StorageFailureError{Op: "mint", Unknown: true}))
	assert.Equal(t, 2, exitCode(&wallet.SymbolMismatchError{}))
}
