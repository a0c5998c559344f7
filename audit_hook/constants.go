package audithook

// Action constants for audit events.
const (
	// Balance actions
	ActionMinted      = "balance.minted"
	ActionBurned      = "balance.burned"
	ActionTransferred = "balance.transferred"
	ActionBurnedAll   = "balance.burned_all"
	ActionFailed      = "balance.failed"

	// Unit of work actions
	ActionUnitCommitted  = "uow.committed"
	ActionUnitRolledBack = "uow.rolled_back"
)

// Resource constants for audit events.
const (
	ResourceAccount     = "account"
	ResourceTransaction = "transaction"
	ResourceUnitOfWork  = "unit_of_work"
)

// Category constants for audit events.
const (
	CategoryBalance = "balance"
	CategoryStorage = "storage"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeUnknown = "unknown"
)
