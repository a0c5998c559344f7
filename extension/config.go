package extension

import "time"

// Driver names accepted in Config.Driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the Wallet extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.wallet" or "wallet" keys).
type Config struct {
	// Driver selects the store backend: memory, postgres or sqlite
	// (default: memory). Ignored when a store is passed with WithStore.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DSN is the connection string for the postgres and sqlite drivers.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`

	// OperationTimeout bounds the store calls of one balance operation
	// (default: 10s). A negative value disables the bound.
	OperationTimeout time.Duration `json:"operation_timeout" mapstructure:"operation_timeout" yaml:"operation_timeout"`

	// WebhookMongoURI, when set, keeps the webhook queue in MongoDB
	// instead of the main store.
	WebhookMongoURI string `json:"webhook_mongo_uri" mapstructure:"webhook_mongo_uri" yaml:"webhook_mongo_uri"`

	// WebhookMongoDatabase is the MongoDB database of the webhook queue
	// (default: "wallet").
	WebhookMongoDatabase string `json:"webhook_mongo_database" mapstructure:"webhook_mongo_database" yaml:"webhook_mongo_database"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Driver:               DriverMemory,
		OperationTimeout:     10 * time.Second,
		WebhookMongoDatabase: "wallet",
	}
}
