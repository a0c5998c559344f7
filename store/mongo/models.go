package mongo

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/wallet/id"
	"github.com/xraph/wallet/types"
	"github.com/xraph/wallet/webhook"
)

// ==================== Webhook models ====================

type webhookModel struct {
	grove.BaseModel `grove:"table:wallet_webhook_queue"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	Originator    string    `grove:"originator"     bson:"originator"`
	Request       string    `grove:"request"        bson:"request"`
	RequestID     string    `grove:"request_id"     bson:"request_id"`
	RequestStatus string    `grove:"request_status" bson:"request_status"`
	Status        string    `grove:"status"         bson:"status"`
	Error         string    `grove:"error"          bson:"error"`
	Attempts      int       `grove:"attempts"       bson:"attempts"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
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
		Entity:        types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
	}, nil
}
