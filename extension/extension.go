// Package extension provides the Forge extension adapter for Wallet.
//
// It implements the forge.Extension interface to integrate Wallet
// into a Forge application with store construction, DI registration,
// and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.wallet" or "wallet" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/vessel"

	"github.com/xraph/wallet"
	"github.com/xraph/wallet/store"
	"github.com/xraph/wallet/store/memory"
	mongostore "github.com/xraph/wallet/store/mongo"
	"github.com/xraph/wallet/store/postgres"
	"github.com/xraph/wallet/store/sqlite"
	"github.com/xraph/wallet/webhook"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "wallet"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Double-entry ledger of fungible balances"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Wallet as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *wallet.Wallet
	store      store.Store
	groveDB    *grove.DB
	webhooks   webhook.Store
	mongo      *mongostore.Store
	walletOpts []wallet.Option
}

// New creates a new Wallet Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Wallet instance.
// This is nil until Register is called.
func (e *Extension) Engine() *wallet.Wallet { return e.engine }

// Webhooks returns the webhook queue, or nil when the store has none.
func (e *Extension) Webhooks() webhook.Store { return e.webhooks }

// Register implements [forge.Extension]. It loads configuration, opens the
// store, initializes the wallet engine and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	ctx := context.Background()
	if e.store == nil && e.groveDB != nil {
		s, err := storeFromGrove(e.groveDB)
		if err != nil {
			return err
		}
		e.store = s
	}
	if e.store == nil {
		s, err := openStore(ctx, e.config.Driver, e.config.DSN)
		if err != nil {
			return err
		}
		e.store = s
	}

	if e.config.WebhookMongoURI != "" {
		m, err := mongostore.Connect(ctx, e.config.WebhookMongoURI, e.config.WebhookMongoDatabase)
		if err != nil {
			return fmt.Errorf("wallet: webhook queue: %w", err)
		}
		e.mongo = m
		e.webhooks = m
	} else if ws, ok := e.store.(webhook.Store); ok {
		e.webhooks = ws
	}

	e.engine = wallet.New(e.store, e.buildWalletOpts()...)

	if err := vessel.Provide(fapp.Container(), func() (*wallet.Wallet, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	if e.webhooks == nil {
		return nil
	}
	return vessel.Provide(fapp.Container(), func() (webhook.Store, error) {
		return e.webhooks, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("wallet: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
		if e.mongo != nil {
			if err := e.mongo.Migrate(ctx); err != nil {
				return err
			}
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var errs []error
	if e.engine != nil {
		errs = append(errs, e.engine.Stop())
	}
	if e.mongo != nil {
		errs = append(errs, e.mongo.Close())
	}
	e.MarkStopped()
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("wallet: store not initialized")
	}
	if err := e.store.Ping(ctx); err != nil {
		return err
	}
	if e.mongo != nil {
		return e.mongo.Ping(ctx)
	}
	return nil
}

// openStore builds the store backend named by driver.
func openStore(ctx context.Context, driver, dsn string) (store.Store, error) {
	switch driver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("wallet: postgres driver requires a dsn")
		}
		return postgres.Connect(ctx, dsn)
	case DriverSQLite:
		if dsn == "" {
			return nil, errors.New("wallet: sqlite driver requires a dsn")
		}
		return sqlite.Connect(ctx, dsn)
	default:
		return nil, fmt.Errorf("wallet: unknown driver %q", driver)
	}
}

// storeFromGrove picks the store backend matching the grove driver.
func storeFromGrove(db *grove.DB) (store.Store, error) {
	switch db.Driver().(type) {
	case *pgdriver.PgDB:
		return postgres.New(db), nil
	case *sqlitedriver.SqliteDB:
		if err := sqlite.RegisterFunctions(); err != nil {
			return nil, fmt.Errorf("wallet: sqlite functions: %w", err)
		}
		return sqlite.New(db), nil
	default:
		return nil, fmt.Errorf("wallet: grove driver %q cannot hold balances", db.Driver().Name())
	}
}

// buildWalletOpts constructs wallet.Option values from the resolved config.
func (e *Extension) buildWalletOpts() []wallet.Option {
	opts := make([]wallet.Option, 0, len(e.walletOpts)+1)

	if e.config.OperationTimeout > 0 {
		opts = append(opts, wallet.WithOperationTimeout(e.config.OperationTimeout))
	}

	// Pass-through options last so they win.
	opts = append(opts, e.walletOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("wallet: configuration is required but not found in config files; " +
				"ensure 'extensions.wallet' or 'wallet' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("wallet: configuration loaded",
		forge.F("driver", e.config.Driver),
		forge.F("operation_timeout", e.config.OperationTimeout),
		forge.F("webhook_mongo", e.config.WebhookMongoURI != ""),
		forge.F("disable_migrate", e.config.DisableMigrate),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.wallet", "wallet"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("wallet: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("wallet: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.WebhookMongoDatabase == "" {
		cfg.WebhookMongoDatabase = defaults.WebhookMongoDatabase
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.Driver == "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}
	if yamlConfig.DSN == "" {
		yamlConfig.DSN = programmaticConfig.DSN
	}
	if yamlConfig.OperationTimeout == 0 {
		yamlConfig.OperationTimeout = programmaticConfig.OperationTimeout
	}
	if yamlConfig.WebhookMongoURI == "" {
		yamlConfig.WebhookMongoURI = programmaticConfig.WebhookMongoURI
	}
	if yamlConfig.WebhookMongoDatabase == "" {
		yamlConfig.WebhookMongoDatabase = programmaticConfig.WebhookMongoDatabase
	}

	return mergeWithDefaults(yamlConfig)
}
