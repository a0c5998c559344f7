package transaction

import (
	"errors"
	"time"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/types"
)

var (
	// ErrNonPositiveAmount is returned when an entry amount is zero or negative.
	ErrNonPositiveAmount = errors.New("transaction: amount must be positive")

	// ErrNoParty is returned when neither sender nor receiver is set.
	ErrNoParty = errors.New("transaction: sender and receiver are both empty")
)

// Kind classifies an entry by which side is empty.
type Kind string

const (
	KindMint     Kind = "mint"
	KindBurn     Kind = "burn"
	KindTransfer Kind = "transfer"
)

// Transaction is one immutable transaction log entry. An empty sender
// means value entered the ledger (mint), an empty receiver means value
// left it (burn).
type Transaction struct {
	ID                id.TransactionID  `json:"id"`
	SenderNamespace   account.Namespace `json:"sender_namespace,omitempty"`
	SenderAccount     string            `json:"sender_account,omitempty"`
	ReceiverNamespace account.Namespace `json:"receiver_namespace,omitempty"`
	ReceiverAccount   string            `json:"receiver_account,omitempty"`
	Symbol            string            `json:"symbol"`
	Amount            types.Amount      `json:"amount"`
	ExecutedAt        time.Time         `json:"executed_at"`
}

// NewMint builds the entry for value credited to b.
func NewMint(b account.Beneficiary, amount types.Amount) *Transaction {
	return &Transaction{
		ReceiverNamespace: b.Namespace,
		ReceiverAccount:   b.Owner,
		Symbol:            b.Symbol,
		Amount:            amount,
	}
}

// NewBurn builds the entry for value debited from b.
func NewBurn(b account.Beneficiary, amount types.Amount) *Transaction {
	return &Transaction{
		SenderNamespace: b.Namespace,
		SenderAccount:   b.Owner,
		Symbol:          b.Symbol,
		Amount:          amount,
	}
}

// NewTransfer builds the entry for value moved from sender to receiver.
// The sender's symbol is recorded; callers check that both symbols match.
func NewTransfer(sender, receiver account.Beneficiary, amount types.Amount) *Transaction {
	return &Transaction{
		SenderNamespace:   sender.Namespace,
		SenderAccount:     sender.Owner,
		ReceiverNamespace: receiver.Namespace,
		ReceiverAccount:   receiver.Owner,
		Symbol:            sender.Symbol,
		Amount:            amount,
	}
}

// Validate enforces the log invariants.
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if t.SenderAccount == "" && t.ReceiverAccount == "" {
		return ErrNoParty
	}
	return nil
}

// Kind reports whether the entry is a mint, burn or transfer.
func (t *Transaction) Kind() Kind {
	switch {
	case t.SenderAccount == "":
		return KindMint
	case t.ReceiverAccount == "":
		return KindBurn
	default:
		return KindTransfer
	}
}

// Sender returns the debited beneficiary, if any.
func (t *Transaction) Sender() (account.Beneficiary, bool) {
	if t.SenderAccount == "" {
		return account.Beneficiary{}, false
	}
	return account.NewBeneficiary(t.SenderAccount, t.SenderNamespace, t.Symbol), true
}

// Receiver returns the credited beneficiary, if any.
func (t *Transaction) Receiver() (account.Beneficiary, bool) {
	if t.ReceiverAccount == "" {
		return account.Beneficiary{}, false
	}
	return account.NewBeneficiary(t.ReceiverAccount, t.ReceiverNamespace, t.Symbol), true
}
