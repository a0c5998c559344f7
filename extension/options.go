package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/wallet"
	"github.com/xraph/wallet/plugin"
	"github.com/xraph/wallet/store"
)

// Option configures the Wallet Forge extension.
type Option func(*Extension)

// WithGroveDB builds the store on an open grove handle. The backend
// follows the grove driver; WithStore takes precedence.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithStore sets the store for the wallet engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithWalletOption passes a wallet.Option through to the underlying engine.
func WithWalletOption(opt wallet.Option) Option {
	return func(e *Extension) {
		e.walletOpts = append(e.walletOpts, opt)
	}
}

// WithPlugin registers a wallet plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.walletOpts = append(e.walletOpts, wallet.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDriver selects the store backend and its connection string.
func WithDriver(driver, dsn string) Option {
	return func(e *Extension) {
		e.config.Driver = driver
		e.config.DSN = dsn
	}
}

// WithOperationTimeout bounds the store calls of one balance operation.
func WithOperationTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.OperationTimeout = d }
}

// WithWebhookMongo keeps the webhook queue in MongoDB.
func WithWebhookMongo(uri, database string) Option {
	return func(e *Extension) {
		e.config.WebhookMongoURI = uri
		e.config.WebhookMongoDatabase = database
	}
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
