package sqlite

import (
	"context"
	"encoding/json"

	"github.com/xraph/wallet/id"
	walletstore "github.com/xraph/wallet/store"
	"github.com/xraph/wallet/webhook"
)

// ==================== Webhook Store ====================

const webhookColumns = `id, originator, request, request_id, request_status, status, error, attempts, created_at, updated_at`

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
	ts := formatTime(s.now())

	var models []webhookModel
	err := s.sdb.NewRaw(`
INSERT INTO wallet_webhook_queue
    (id, originator, request, request_id, request_status, status, error, attempts, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
ON CONFLICT (request_id, request_status) DO UPDATE
SET error = excluded.error,
    attempts = wallet_webhook_queue.attempts + 1,
    updated_at = excluded.updated_at
RETURNING `+webhookColumns,
		entryID.String(), string(e.Originator), string(request), e.RequestID,
		e.RequestStatus, string(status), e.Error, ts, ts,
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
		w.add("originator = ?", string(originator))
	}
	if status != "" {
		w.add("status = ?", string(status))
	}

	var models []webhookModel
	err := s.sdb.NewRaw(`SELECT `+webhookColumns+` FROM wallet_webhook_queue`+w.String()+` ORDER BY created_at, id`, w.args...).
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
	res, err := s.sdb.NewRaw(
		`UPDATE wallet_webhook_queue SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(s.now()), webhookID.String(),
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
