package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the wallet SQLite store.
var Migrations = migrate.NewGroup("wallet")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_wallet_accounts",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS wallet_accounts (
    owner_account     TEXT NOT NULL,
    account_namespace TEXT NOT NULL,
    symbol            TEXT NOT NULL,
    balance           TEXT NOT NULL DEFAULT '0',
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL,
    PRIMARY KEY (owner_account, account_namespace, symbol),
    CONSTRAINT wallet_accounts_balance_non_negative CHECK (balance NOT LIKE '-%')
);

CREATE INDEX IF NOT EXISTS idx_wallet_accounts_ns_symbol ON wallet_accounts (account_namespace, symbol);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS wallet_accounts;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_wallet_transactions",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS wallet_transactions (
    id                 TEXT PRIMARY KEY,
    sender_namespace   TEXT,
    sender_account     TEXT,
    receiver_namespace TEXT,
    receiver_account   TEXT,
    symbol             TEXT NOT NULL,
    amount             TEXT NOT NULL,
    executed_at        TEXT NOT NULL,
    CONSTRAINT wallet_transactions_amount_positive CHECK (amount NOT LIKE '-%' AND amount <> '0'),
    CONSTRAINT wallet_transactions_party CHECK (sender_account IS NOT NULL OR receiver_account IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_wallet_transactions_sender ON wallet_transactions (sender_account);
CREATE INDEX IF NOT EXISTS idx_wallet_transactions_receiver ON wallet_transactions (receiver_account);
CREATE INDEX IF NOT EXISTS idx_wallet_transactions_executed_at ON wallet_transactions (executed_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS wallet_transactions;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_wallet_external",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS wallet_external_transactions (
    id                      TEXT PRIMARY KEY,
    originator              TEXT NOT NULL,
    external_system         TEXT NOT NULL DEFAULT '',
    status                  TEXT NOT NULL,
    external_transaction_id TEXT NOT NULL UNIQUE,
    transaction_hash        TEXT NOT NULL DEFAULT '',
    network_code            TEXT NOT NULL DEFAULT '',
    block_number            INTEGER,
    internal_user_id        TEXT NOT NULL DEFAULT '',
    created_at              TEXT NOT NULL,
    updated_at              TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_wallet_external_transactions_status ON wallet_external_transactions (status, network_code);

CREATE TABLE IF NOT EXISTS wallet_transaction_queue (
    id                      TEXT PRIMARY KEY,
    external_transaction_id TEXT NOT NULL UNIQUE REFERENCES wallet_external_transactions (id),
    network_code            TEXT NOT NULL DEFAULT '',
    receiver                TEXT NOT NULL,
    sender                  TEXT NOT NULL DEFAULT '',
    symbol                  TEXT NOT NULL,
    namespace               TEXT NOT NULL,
    amount                  TEXT NOT NULL,
    created_at              TEXT NOT NULL,
    updated_at              TEXT NOT NULL,
    CONSTRAINT wallet_transaction_queue_amount_positive CHECK (amount NOT LIKE '-%' AND amount <> '0')
);

CREATE TABLE IF NOT EXISTS wallet_external_transaction_logs (
    id                      TEXT PRIMARY KEY,
    originator              TEXT NOT NULL,
    external_system         TEXT NOT NULL DEFAULT '',
    status                  TEXT NOT NULL,
    external_transaction_id TEXT NOT NULL,
    transaction_hash        TEXT NOT NULL DEFAULT '',
    network_code            TEXT NOT NULL DEFAULT '',
    symbol                  TEXT NOT NULL DEFAULT '',
    sender                  TEXT NOT NULL DEFAULT '',
    receiver                TEXT NOT NULL DEFAULT '',
    amount                  TEXT NOT NULL DEFAULT '0',
    fee                     TEXT NOT NULL DEFAULT '0',
    fiat_currency           TEXT NOT NULL DEFAULT '',
    fiat_amount             TEXT NOT NULL DEFAULT '0',
    internal_user_id        TEXT NOT NULL DEFAULT '',
    created_at              TEXT NOT NULL,
    updated_at              TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_wallet_external_logs_external_id ON wallet_external_transaction_logs (external_transaction_id);
CREATE INDEX IF NOT EXISTS idx_wallet_external_logs_user ON wallet_external_transaction_logs (originator, internal_user_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS wallet_external_transaction_logs;
DROP TABLE IF EXISTS wallet_transaction_queue;
DROP TABLE IF EXISTS wallet_external_transactions;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_wallet_webhook_queue",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS wallet_webhook_queue (
    id             TEXT PRIMARY KEY,
    originator     TEXT NOT NULL,
    request        TEXT NOT NULL DEFAULT '{}',
    request_id     TEXT NOT NULL,
    request_status TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'failed',
    error          TEXT NOT NULL DEFAULT '',
    attempts       INTEGER NOT NULL DEFAULT 1,
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL,
    UNIQUE (request_id, request_status)
);

CREATE INDEX IF NOT EXISTS idx_wallet_webhook_queue_status ON wallet_webhook_queue (originator, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS wallet_webhook_queue;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "index_wallet_external_hashes",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE INDEX IF NOT EXISTS idx_wallet_external_transactions_hash ON wallet_external_transactions (transaction_hash);
CREATE INDEX IF NOT EXISTS idx_wallet_external_transactions_block ON wallet_external_transactions (originator, status, network_code, block_number);
CREATE INDEX IF NOT EXISTS idx_wallet_external_logs_hash ON wallet_external_transaction_logs (transaction_hash, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP INDEX IF EXISTS idx_wallet_external_logs_hash;
DROP INDEX IF EXISTS idx_wallet_external_transactions_block;
DROP INDEX IF EXISTS idx_wallet_external_transactions_hash;
`)
				return err
			},
		},
	)
}
