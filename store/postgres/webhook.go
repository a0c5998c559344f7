package postgres

import (
	"context"
	"encoding/json"

	"github.com/xraph/wallet/id"
	walletstore "github.com/xraph/wallet/store"
	"github.com/xraph/wallet/webhook"
)

// ==================== Webhook Store ====================

const webhookColumns = `id, originator, request::text AS request, request_id, request_status, status, error, attempts, created_at, updated_at`

func (s *Store) EnqueueWebhook(ctx context.Context, e *webhook.Entry) (*webhook.Entry, error) {
	entryID := e.ID
	if entryID.IsNil() {
		entryID = id.NewWebhookID()
	}
	status := e.Status
	if status == "" {
		status = webhook.StatusFailed
	}
	request := e.Request
	if len(request) == 0 {
		request = json.RawMessage("{}")
	}

	var models []webhookModel
	err := s.pg.NewRaw(`
INSERT INTO wallet_webhook_queue (id, originator, request, request_id, request_status, status, error)
VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7)
ON CONFLICT (request_id, request_status) DO UPDATE
SET error = EXCLUDED.error,
    attempts = wallet_webhook_queue.attempts + 1,
    updated_at = NOW()
RETURNING `+webhookColumns,
		entryID.String(), string(e.Originator), string(request), e.RequestID,
		e.RequestStatus, string(status), e.Error,
	).Scan(ctx, &models)
	if err != nil {
		return nil, classify(err)
	}
	if len(models) == 0 {
		return nil, walletstore.ErrNotFound
	}
	return fromWebhookModel(&models[0])
}

func (s *Store) ListWebhooks(ctx context.Context, originator webhook.Originator, status webhook.Status) ([]*webhook.Entry, error) {
	w := &where{}
	if originator != "" {
		w.add("originator = " + w.arg(string(originator)))
	}
	if status != "" {
		w.add("status = " + w.arg(string(status)))
	}

	var models []webhookModel
	err := s.pg.NewRaw(`SELECT `+webhookColumns+` FROM wallet_webhook_queue`+w.String()+` ORDER BY created_at, id`, w.args...).
		Scan(ctx, &models)
	if err != nil {
		return nil, classify(err)
	}

	result := make([]*webhook.Entry, 0, len(models))
	for i := range models {
		e, err := fromWebhookModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *Store) UpdateWebhookStatus(ctx context.Context, webhookID id.WebhookID, status webhook.Status) error {
	res, err := s.pg.NewRaw(
		`UPDATE wallet_webhook_queue SET status = $2, updated_at = NOW() WHERE id = $1`,
		webhookID.String(), string(status),
	).Exec(ctx)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return walletstore.ErrNotFound
	}
	return nil
}
