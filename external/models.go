// Package external models transactions that cross the ledger boundary:
// deposits observed on a network and withdrawals queued for sending.
// The records are written alongside balance mutations, usually inside the
// same unit of work.
package external

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/types"
)

// ErrInvalidQueueAmount is returned when a queue item amount is not positive.
var ErrInvalidQueueAmount = errors.New("external: queue amount must be positive")

// Originator tells which flow produced the record.
type Originator string

const (
	OriginatorDeposit  Originator = "deposit"
	OriginatorWithdraw Originator = "withdraw"
)

// Status is the processing state of an external transaction.
type Status string

const (
	StatusInReview       Status = "in_review"
	StatusReviewRejected Status = "review_rejected"
	StatusNew            Status = "new"
	StatusProcessing     Status = "processing"
	StatusScheduled      Status = "scheduled"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusInReview, StatusReviewRejected, StatusNew, StatusProcessing,
		StatusScheduled, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusReviewRejected
}

// NetworkCode identifies the chain an external transaction lives on.
type NetworkCode string

const NetworkEthereum NetworkCode = "ETH"

// ExternalTransaction tracks one deposit or withdrawal.
type ExternalTransaction struct {
	ID                    id.ExternalTransactionID `json:"id"`
	Originator            Originator               `json:"originator"`
	ExternalSystem        string                   `json:"external_system"`
	Status                Status                   `json:"status"`
	ExternalTransactionID string                   `json:"external_transaction_id"`
	TransactionHash       string                   `json:"transaction_hash,omitempty"`
	NetworkCode           NetworkCode              `json:"network_code"`
	BlockNumber           *int64                   `json:"block_number,omitempty"`
	InternalUserID        string                   `json:"internal_user_id,omitempty"`
	Queue                 *QueueItem               `json:"transaction_queue,omitempty"`
	types.Entity
}

// Validate checks the fields the schema requires.
func (t *ExternalTransaction) Validate() error {
	if t.ExternalTransactionID == "" {
		return fmt.Errorf("external: external_transaction_id is empty")
	}
	if t.Originator != OriginatorDeposit && t.Originator != OriginatorWithdraw {
		return fmt.Errorf("external: unknown originator %q", t.Originator)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("external: unknown status %q", t.Status)
	}
	if t.Queue != nil && !t.Queue.Amount.IsPositive() {
		return ErrInvalidQueueAmount
	}
	return nil
}

// QueueItem is an outgoing transfer waiting to be sent on a network.
type QueueItem struct {
	ID          id.QueueItemID    `json:"id"`
	NetworkCode NetworkCode       `json:"network_code"`
	Receiver    string            `json:"receiver"`
	Sender      string            `json:"sender,omitempty"`
	Symbol      string            `json:"symbol"`
	Namespace   account.Namespace `json:"namespace"`
	Amount      types.Amount      `json:"amount"`
	types.Entity
}

// Log is an immutable snapshot of an external transaction state change.
type Log struct {
	ID                    id.ExternalLogID `json:"id"`
	Originator            Originator       `json:"originator"`
	ExternalSystem        string           `json:"external_system"`
	Status                Status           `json:"status"`
	ExternalTransactionID string           `json:"external_transaction_id"`
	TransactionHash       string           `json:"transaction_hash,omitempty"`
	NetworkCode           NetworkCode      `json:"network_code"`
	Symbol                string           `json:"symbol,omitempty"`
	Sender                string           `json:"sender,omitempty"`
	Receiver              string           `json:"receiver,omitempty"`
	Amount                types.Amount     `json:"amount"`
	Fee                   types.Amount     `json:"fee"`
	FiatCurrency          string           `json:"fiat_currency,omitempty"`
	FiatAmount            decimal.Decimal  `json:"fiat_amount"`
	InternalUserID        string           `json:"internal_user_id,omitempty"`
	types.Entity
}
