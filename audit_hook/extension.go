// Package audithook bridges Wallet balance events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
//
// Burn-all writes no transaction log entries, so for that operation the
// audit trail is the only record.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/wallet"
	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/plugin"
	"github.com/xraph/wallet/transaction"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnMinted               = (*Extension)(nil)
	_ plugin.OnBurned               = (*Extension)(nil)
	_ plugin.OnTransferred          = (*Extension)(nil)
	_ plugin.OnBurnedAll            = (*Extension)(nil)
	_ plugin.OnMutationFailed       = (*Extension)(nil)
	_ plugin.OnUnitOfWorkCommitted  = (*Extension)(nil)
	_ plugin.OnUnitOfWorkRolledBack = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Wallet balance events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnMinted implements plugin.OnMinted.
func (e *Extension) OnMinted(ctx context.Context, tx *transaction.Transaction, balance *account.Account) error {
	return e.record(ctx, ActionMinted, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID.String(), CategoryBalance, nil,
		append(entryMeta(tx), "balance", balanceOf(balance))...,
	)
}

// OnBurned implements plugin.OnBurned.
func (e *Extension) OnBurned(ctx context.Context, tx *transaction.Transaction, balance *account.Account) error {
	return e.record(ctx, ActionBurned, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID.String(), CategoryBalance, nil,
		append(entryMeta(tx), "balance", balanceOf(balance))...,
	)
}

// OnTransferred implements plugin.OnTransferred.
func (e *Extension) OnTransferred(ctx context.Context, tx *transaction.Transaction, sender, receiver *account.Account) error {
	return e.record(ctx, ActionTransferred, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID.String(), CategoryBalance, nil,
		append(entryMeta(tx),
			"sender_balance", balanceOf(sender),
			"receiver_balance", balanceOf(receiver),
		)...,
	)
}

// OnBurnedAll implements plugin.OnBurnedAll.
func (e *Extension) OnBurnedAll(ctx context.Context, owners []string, ns account.Namespace, symbol string, affected int64) error {
	return e.record(ctx, ActionBurnedAll, SeverityWarning, OutcomeSuccess,
		ResourceAccount, "", CategoryBalance, nil,
		"owners", owners,
		"namespace", string(ns),
		"symbol", symbol,
		"affected", affected,
	)
}

// OnMutationFailed implements plugin.OnMutationFailed. Only storage
// failures are audited; rejected requests changed nothing.
func (e *Extension) OnMutationFailed(ctx context.Context, op string, err error) error {
	if wallet.KindOf(err) != wallet.KindStorageFailure {
		return nil
	}

	severity, outcome := SeverityError, OutcomeFailure
	if wallet.IsUnknownOutcome(err) {
		severity, outcome = SeverityCritical, OutcomeUnknown
	}
	return e.record(ctx, ActionFailed, severity, outcome,
		ResourceAccount, "", CategoryStorage, err,
		"op", op,
	)
}

// ──────────────────────────────────────────────────
// Unit of work hooks
// ──────────────────────────────────────────────────

// OnUnitOfWorkCommitted implements plugin.OnUnitOfWorkCommitted.
func (e *Extension) OnUnitOfWorkCommitted(ctx context.Context, operations int) error {
	return e.record(ctx, ActionUnitCommitted, SeverityInfo, OutcomeSuccess,
		ResourceUnitOfWork, "", CategoryBalance, nil,
		"operations", operations,
	)
}

// OnUnitOfWorkRolledBack implements plugin.OnUnitOfWorkRolledBack.
func (e *Extension) OnUnitOfWorkRolledBack(ctx context.Context, discarded int) error {
	return e.record(ctx, ActionUnitRolledBack, SeverityInfo, OutcomeSuccess,
		ResourceUnitOfWork, "", CategoryBalance, nil,
		"discarded", discarded,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func entryMeta(tx *transaction.Transaction) []any {
	meta := []any{
		"kind", string(tx.Kind()),
		"symbol", tx.Symbol,
		"amount", tx.Amount.String(),
	}
	if tx.SenderAccount != "" {
		meta = append(meta, "sender", string(tx.SenderNamespace)+":"+tx.SenderAccount)
	}
	if tx.ReceiverAccount != "" {
		meta = append(meta, "receiver", string(tx.ReceiverNamespace)+":"+tx.ReceiverAccount)
	}
	return meta
}

func balanceOf(a *account.Account) string {
	if a == nil {
		return ""
	}
	return a.Balance.String()
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
