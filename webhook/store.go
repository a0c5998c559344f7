package webhook

import (
	"context"

	"github.com/xraph/wallet/id"
)

type Store interface {
	// EnqueueWebhook inserts e, or when (RequestID, RequestStatus) already
	// exists replaces its error and increments its attempts. An empty
	// Status defaults to StatusFailed. The stored entry is returned.
	EnqueueWebhook(ctx context.Context, e *Entry) (*Entry, error)
	ListWebhooks(ctx context.Context, originator Originator, status Status) ([]*Entry, error)
	UpdateWebhookStatus(ctx context.Context, webhookID id.WebhookID, status Status) error
}
