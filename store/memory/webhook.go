package memory

import (
	"context"
	"sort"

	"github.com/xraph/wallet/id"
	walletstore "github.com/xraph/wallet/store"
	"github.com/xraph/wallet/webhook"
)

// ==================== Webhook Store ====================

func webhookKey(requestID, requestStatus string) string {
	return requestID + "\x00" + requestStatus
}

func (s *Store) EnqueueWebhook(_ context.Context, e *webhook.Entry) (*webhook.Entry, error) {
	s.webhookMu.Lock()
	defer s.webhookMu.Unlock()

	now := s.now()
	key := webhookKey(e.RequestID, e.RequestStatus)
	if existing, ok := s.webhooks[key]; ok {
		existing.Error = e.Error
		existing.Attempts++
		existing.UpdatedAt = now
		out := *existing
		return &out, nil
	}

	stored := *e
	if stored.ID.IsNil() {
		stored.ID = id.NewWebhookID()
	}
	if stored.Status == "" {
		stored.Status = webhook.StatusFailed
	}
	stored.Attempts = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.webhooks[key] = &stored

	out := stored
	return &out, nil
}

func (s *Store) ListWebhooks(_ context.Context, originator webhook.Originator, status webhook.Status) ([]*webhook.Entry, error) {
	s.webhookMu.Lock()
	defer s.webhookMu.Unlock()

	result := make([]*webhook.Entry, 0)
	for _, e := range s.webhooks {
		if originator != "" && e.Originator != originator {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		out := *e
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) UpdateWebhookStatus(_ context.Context, webhookID id.WebhookID, status webhook.Status) error {
	s.webhookMu.Lock()
	defer s.webhookMu.Unlock()

	for _, e := range s.webhooks {
		if e.ID.String() == webhookID.String() {
			e.Status = status
			e.UpdatedAt = s.now()
			return nil
		}
	}
	return walletstore.ErrNotFound
}
