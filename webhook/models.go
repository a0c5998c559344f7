// Package webhook stores inbound webhook requests that could not be
// processed, so an operator or a separate job can replay them. It has no
// dependency on the balance engine.
package webhook

import (
	"encoding/json"

	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/types"
)

// Originator names the upstream system that sent the webhook.
type Originator string

const (
	OriginatorDeposit  Originator = "deposit"
	OriginatorWithdraw Originator = "withdraw"
)

// Status of a queued webhook.
type Status string

const (
	StatusFailed   Status = "failed"
	StatusResolved Status = "resolved"
)

// Entry is one queued webhook request. (RequestID, RequestStatus) is unique;
// enqueuing the same pair again bumps Attempts.
type Entry struct {
	ID            id.WebhookID    `json:"id"`
	Originator    Originator      `json:"originator"`
	Request       json.RawMessage `json:"request"`
	RequestID     string          `json:"request_id"`
	RequestStatus string          `json:"request_status"`
	Status        Status          `json:"status"`
	Error         string          `json:"error,omitempty"`
	Attempts      int             `json:"attempts"`
	types.Entity
}
