// Package observability provides a metrics extension for Wallet that records
// balance operation counts via a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/wallet"
	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/plugin"
	"github.com/xraph/wallet/transaction"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnMinted               = (*MetricsExtension)(nil)
	_ plugin.OnBurned               = (*MetricsExtension)(nil)
	_ plugin.OnTransferred          = (*MetricsExtension)(nil)
	_ plugin.OnBurnedAll            = (*MetricsExtension)(nil)
	_ plugin.OnMutationFailed       = (*MetricsExtension)(nil)
	_ plugin.OnUnitOfWorkCommitted  = (*MetricsExtension)(nil)
	_ plugin.OnUnitOfWorkRolledBack = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records balance operation metrics.
// Register it as a Wallet plugin to track them automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Balance metrics
	Minted      Counter
	Burned      Counter
	Transferred Counter
	BurnedAll   Counter
	Reset       Counter

	// Failure metrics
	InsufficientFunds Counter
	Rejected          Counter
	StorageFailures   Counter
	UnknownOutcomes   Counter

	// Unit of work metrics
	UnitsCommitted  Counter
	UnitsRolledBack Counter
	UnitOperations  Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use NewPrometheusFactory outside of forge.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Balance metrics
		Minted:      factory.Counter("wallet.mint.total"),
		Burned:      factory.Counter("wallet.burn.total"),
		Transferred: factory.Counter("wallet.transfer.total"),
		BurnedAll:   factory.Counter("wallet.burn_all.total"),
		Reset:       factory.Counter("wallet.burn_all.accounts"),

		// Failure metrics
		InsufficientFunds: factory.Counter("wallet.failure.insufficient_funds"),
		Rejected:          factory.Counter("wallet.failure.rejected"),
		StorageFailures:   factory.Counter("wallet.failure.storage"),
		UnknownOutcomes:   factory.Counter("wallet.failure.unknown_outcome"),

		// Unit of work metrics
		UnitsCommitted:  factory.Counter("wallet.uow.committed"),
		UnitsRolledBack: factory.Counter("wallet.uow.rolled_back"),
		UnitOperations:  factory.Histogram("wallet.uow.operations"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnMinted implements plugin.OnMinted.
func (m *MetricsExtension) OnMinted(_ context.Context, _ *transaction.Transaction, _ *account.Account) error {
	m.Minted.Inc()
	return nil
}

// OnBurned implements plugin.OnBurned.
func (m *MetricsExtension) OnBurned(_ context.Context, _ *transaction.Transaction, _ *account.Account) error {
	m.Burned.Inc()
	return nil
}

// OnTransferred implements plugin.OnTransferred.
func (m *MetricsExtension) OnTransferred(_ context.Context, _ *transaction.Transaction, _, _ *account.Account) error {
	m.Transferred.Inc()
	return nil
}

// OnBurnedAll implements plugin.OnBurnedAll.
func (m *MetricsExtension) OnBurnedAll(_ context.Context, _ []string, _ account.Namespace, _ string, affected int64) error {
	m.BurnedAll.Inc()
	m.Reset.Add(float64(affected))
	return nil
}

// OnMutationFailed implements plugin.OnMutationFailed.
func (m *MetricsExtension) OnMutationFailed(_ context.Context, _ string, err error) error {
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds):
		m.InsufficientFunds.Inc()
	case errors.Is(err, wallet.ErrStorageFailure):
		m.StorageFailures.Inc()
		if wallet.IsUnknownOutcome(err) {
			m.UnknownOutcomes.Inc()
		}
	default:
		m.Rejected.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Unit of work hooks
// ──────────────────────────────────────────────────

// OnUnitOfWorkCommitted implements plugin.OnUnitOfWorkCommitted.
func (m *MetricsExtension) OnUnitOfWorkCommitted(_ context.Context, operations int) error {
	m.UnitsCommitted.Inc()
	m.UnitOperations.Observe(float64(operations))
	return nil
}

// OnUnitOfWorkRolledBack implements plugin.OnUnitOfWorkRolledBack.
func (m *MetricsExtension) OnUnitOfWorkRolledBack(_ context.Context, _ int) error {
	m.UnitsRolledBack.Inc()
	return nil
}
