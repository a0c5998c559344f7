package postgres

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"

	"github.com/xraph/wallet/account"
	"github.com/xraph/wallet/external"
	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/transaction"
	"github.com/xraph/wallet/types"
	"github.com/xraph/wallet/webhook"
)

// Amount columns are NUMERIC(78,0). Reads cast them to text and the models
// carry them as strings, so no value passes through a float.

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:wallet_accounts"`

	Owner     string    `grove:"owner_account,pk"`
	Namespace string    `grove:"account_namespace,pk"`
	Symbol    string    `grove:"symbol,pk"`
	Balance   string    `grove:"balance"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	balance, err := types.ParseAmount(m.Balance)
	if err != nil {
		return nil, err
	}
	return &account.Account{
		Owner:     m.Owner,
		Namespace: account.Namespace(m.Namespace),
		Symbol:    m.Symbol,
		Balance:   balance,
		Entity:    types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
	}, nil
}

func fromAccountModels(models []accountModel) ([]*account.Account, error) {
	result := make([]*account.Account, 0, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:wallet_transactions"`

	ID                string    `grove:"id,pk"`
	SenderNamespace   *string   `grove:"sender_namespace"`
	SenderAccount     *string   `grove:"sender_account"`
	ReceiverNamespace *string   `grove:"receiver_namespace"`
	ReceiverAccount   *string   `grove:"receiver_account"`
	Symbol            string    `grove:"symbol"`
	Amount            string    `grove:"amount"`
	ExecutedAt        time.Time `grove:"executed_at"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	return &transactionModel{
		ID:                t.ID.String(),
		SenderNamespace:   optional(string(t.SenderNamespace)),
		SenderAccount:     optional(t.SenderAccount),
		ReceiverNamespace: optional(string(t.ReceiverNamespace)),
		ReceiverAccount:   optional(t.ReceiverAccount),
		Symbol:            t.Symbol,
		Amount:            t.Amount.String(),
		ExecutedAt:        t.ExecutedAt,
	}
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	return &transaction.Transaction{
		ID:                txID,
		SenderNamespace:   account.Namespace(deref(m.SenderNamespace)),
		SenderAccount:     deref(m.SenderAccount),
		ReceiverNamespace: account.Namespace(deref(m.ReceiverNamespace)),
		ReceiverAccount:   deref(m.ReceiverAccount),
		Symbol:            m.Symbol,
		Amount:            amount,
		ExecutedAt:        m.ExecutedAt,
	}, nil
}

// ==================== External transaction models ====================

type externalModel struct {
	grove.BaseModel `grove:"table:wallet_external_transactions"`

	ID                    string    `grove:"id,pk"`
	Originator            string    `grove:"originator"`
	ExternalSystem        string    `grove:"external_system"`
	Status                string    `grove:"status"`
	ExternalTransactionID string    `grove:"external_transaction_id"`
	TransactionHash       string    `grove:"transaction_hash"`
	NetworkCode           string    `grove:"network_code"`
	BlockNumber           *int64    `grove:"block_number"`
	InternalUserID        string    `grove:"internal_user_id"`
	CreatedAt             time.Time `grove:"created_at"`
	UpdatedAt             time.Time `grove:"updated_at"`
}

func toExternalModel(t *external.ExternalTransaction) *externalModel {
	return &externalModel{
		ID:                    t.ID.String(),
		Originator:            string(t.Originator),
		ExternalSystem:        t.ExternalSystem,
		Status:                string(t.Status),
		ExternalTransactionID: t.ExternalTransactionID,
		TransactionHash:       t.TransactionHash,
		NetworkCode:           string(t.NetworkCode),
		BlockNumber:           t.BlockNumber,
		InternalUserID:        t.InternalUserID,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

func fromExternalModel(m *externalModel) (*external.ExternalTransaction, error) {
	txID, err := id.ParseExternalTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	return &external.ExternalTransaction{
		ID:                    txID,
		Originator:            external.Originator(m.Originator),
		ExternalSystem:        m.ExternalSystem,
		Status:                external.Status(m.Status),
		ExternalTransactionID: m.ExternalTransactionID,
		TransactionHash:       m.TransactionHash,
		NetworkCode:           external.NetworkCode(m.NetworkCode),
		BlockNumber:           m.BlockNumber,
		InternalUserID:        m.InternalUserID,
		Entity:                types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
	}, nil
}

type queueModel struct {
	grove.BaseModel `grove:"table:wallet_transaction_queue"`

	ID                    string    `grove:"id,pk"`
	ExternalTransactionID string    `grove:"external_transaction_id"`
	NetworkCode           string    `grove:"network_code"`
	Receiver              string    `grove:"receiver"`
	Sender                string    `grove:"sender"`
	Symbol                string    `grove:"symbol"`
	Namespace             string    `grove:"namespace"`
	Amount                string    `grove:"amount"`
	CreatedAt             time.Time `grove:"created_at"`
	UpdatedAt             time.Time `grove:"updated_at"`
}

func toQueueModel(externalID string, q *external.QueueItem) *queueModel {
	return &queueModel{
		ID:                    q.ID.String(),
		ExternalTransactionID: externalID,
		NetworkCode:           string(q.NetworkCode),
		Receiver:              q.Receiver,
		Sender:                q.Sender,
		Symbol:                q.Symbol,
		Namespace:             string(q.Namespace),
		Amount:                q.Amount.String(),
		CreatedAt:             q.CreatedAt,
		UpdatedAt:             q.UpdatedAt,
	}
}

func fromQueueModel(m *queueModel) (*external.QueueItem, error) {
	queueID, err := id.ParseQueueItemID(m.ID)
	if err != nil {
		return nil, err
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	return &external.QueueItem{
		ID:          queueID,
		NetworkCode: external.NetworkCode(m.NetworkCode),
		Receiver:    m.Receiver,
		Sender:      m.Sender,
		Symbol:      m.Symbol,
		Namespace:   account.Namespace(m.Namespace),
		Amount:      amount,
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
	}, nil
}

type externalLogModel struct {
	grove.BaseModel `grove:"table:wallet_external_transaction_logs"`

	ID                    string    `grove:"id,pk"`
	Originator            string    `grove:"originator"`
	ExternalSystem        string    `grove:"external_system"`
	Status                string    `grove:"status"`
	ExternalTransactionID string    `grove:"external_transaction_id"`
	TransactionHash       string    `grove:"transaction_hash"`
	NetworkCode           string    `grove:"network_code"`
	Symbol                string    `grove:"symbol"`
	Sender                string    `grove:"sender"`
	Receiver              string    `grove:"receiver"`
	Amount                string    `grove:"amount"`
	Fee                   string    `grove:"fee"`
	FiatCurrency          string    `grove:"fiat_currency"`
	FiatAmount            string    `grove:"fiat_amount"`
	InternalUserID        string    `grove:"internal_user_id"`
	CreatedAt             time.Time `grove:"created_at"`
	UpdatedAt             time.Time `grove:"updated_at"`
}

func toExternalLogModel(l *external.Log) *externalLogModel {
	return &externalLogModel{
		ID:                    l.ID.String(),
		Originator:            string(l.Originator),
		ExternalSystem:        l.ExternalSystem,
		Status:                string(l.Status),
		ExternalTransactionID: l.ExternalTransactionID,
		TransactionHash:       l.TransactionHash,
		NetworkCode:           string(l.NetworkCode),
		Symbol:                l.Symbol,
		Sender:                l.Sender,
		Receiver:              l.Receiver,
		Amount:                l.Amount.String(),
		Fee:                   l.Fee.String(),
		FiatCurrency:          l.FiatCurrency,
		FiatAmount:            l.FiatAmount.String(),
		InternalUserID:        l.InternalUserID,
		CreatedAt:             l.CreatedAt,
		UpdatedAt:             l.UpdatedAt,
	}
}

func fromExternalLogModel(m *externalLogModel) (*external.Log, error) {
	logID, err := id.ParseExternalLogID(m.ID)
	if err != nil {
		return nil, err
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	fee, err := types.ParseAmount(m.Fee)
	if err != nil {
		return nil, err
	}
	fiat, err := decimal.NewFromString(m.FiatAmount)
	if err != nil {
		return nil, err
	}
	return &external.Log{
		ID:                    logID,
		Originator:            external.Originator(m.Originator),
		ExternalSystem:        m.ExternalSystem,
		Status:                external.Status(m.Status),
		ExternalTransactionID: m.ExternalTransactionID,
		TransactionHash:       m.TransactionHash,
		NetworkCode:           external.NetworkCode(m.NetworkCode),
		Symbol:                m.Symbol,
		Sender:                m.Sender,
		Receiver:              m.Receiver,
		Amount:                amount,
		Fee:                   fee,
		FiatCurrency:          m.FiatCurrency,
		FiatAmount:            fiat,
		InternalUserID:        m.InternalUserID,
		Entity:                types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
	}, nil
}

// ==================== Webhook models ====================

type webhookModel struct {
	grove.BaseModel `grove:"table:wallet_webhook_queue"`

	ID            string    `grove:"id,pk"`
	Originator    string    `grove:"originator"`
	Request       string    `grove:"request,type:jsonb"`
	RequestID     string    `grove:"request_id"`
	RequestStatus string    `grove:"request_status"`
	Status        string    `grove:"status"`
	Error         string    `grove:"error"`
	Attempts      int       `grove:"attempts"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func fromWebhookModel(m *webhookModel) (*webhook.Entry, error) {
	webhookID, err := id.ParseWebhookID(m.ID)
	if err != nil {
		return nil, err
	}
	return &webhook.Entry{
		ID:            webhookID,
		Originator:    webhook.Originator(m.Originator),
		Request:       json.RawMessage(m.Request),
		RequestID:     m.RequestID,
		RequestStatus: m.RequestStatus,
		Status:        webhook.Status(m.Status),
		Error:         m.Error,
		Attempts:      m.Attempts,
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
	}, nil
}

// optional maps "" to NULL.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
