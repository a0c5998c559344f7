// Package mongo implements webhook.Store on MongoDB through the grove
// mongodriver. Balances and the transaction log need a relational store;
// the webhook queue has no such constraint and can live in a document
// database.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/wallet/id"
	walletstore "github.com/xraph/wallet/store"
	"github.com/xraph/wallet/webhook"
)

// Collection name constants.
const (
	colWebhooks = "wallet_webhook_queue"
)

// compile-time interface check
var _ webhook.Store = (*Store)(nil)

// Store implements webhook.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
	now func() time.Time
}

// New creates a MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Connect opens uri and uses the named database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	mdb := mongodriver.New()
	if err := mdb.Open(ctx, uri, mongodriver.WithDatabase(database)); err != nil {
		return nil, fmt.Errorf("wallet/mongo: open: %w", err)
	}
	db, err := grove.Open(mdb)
	if err != nil {
		_ = mdb.Close()
		return nil, fmt.Errorf("wallet/mongo: open grove: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("wallet/mongo: ping: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all wallet collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("wallet/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Webhook Store ====================

// EnqueueWebhook upserts on (request_id, request_status). A repeat
// delivery replaces the error and bumps attempts.
func (s *Store) EnqueueWebhook(ctx context.Context, e *webhook.Entry) (*webhook.Entry, error) {
	entryID := e.ID
	if entryID.IsNil() {
		entryID = id.NewWebhookID()
	}
	status := e.Status
	if status == "" {
		status = webhook.StatusFailed
	}
	request := string(e.Request)
	if request == "" {
		request = "{}"
	}
	now := s.now()

	filter := bson.M{"request_id": e.RequestID, "request_status": e.RequestStatus}
	update := bson.M{
		"$set": bson.M{"error": e.Error, "updated_at": now},
		"$inc": bson.M{"attempts": 1},
		"$setOnInsert": bson.M{
			"_id":        entryID.String(),
			"originator": string(e.Originator),
			"request":    request,
			"status":     string(status),
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var m webhookModel
	err := s.mdb.Collection(colWebhooks).FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err != nil {
		return nil, classify("enqueue webhook", err)
	}
	return fromWebhookModel(&m)
}

func (s *Store) ListWebhooks(ctx context.Context, originator webhook.Originator, status webhook.Status) ([]*webhook.Entry, error) {
	filter := bson.M{}
	if originator != "" {
		filter["originator"] = string(originator)
	}
	if status != "" {
		filter["status"] = string(status)
	}

	var models []webhookModel
	err := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, classify("list webhooks", err)
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
	res, err := s.mdb.NewUpdate((*webhookModel)(nil)).
		Filter(bson.M{"_id": webhookID.String()}).
		Set("status", string(status)).
		Set("updated_at", s.now()).
		Exec(ctx)
	if err != nil {
		return classify("update webhook status", err)
	}
	if res.MatchedCount() == 0 {
		return walletstore.ErrNotFound
	}
	return nil
}

// classify maps driver errors onto the store sentinels.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return walletstore.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: wallet/mongo: %s: %w", walletstore.ErrConflict, op, err)
	case mongo.IsTimeout(err):
		return fmt.Errorf("%w: wallet/mongo: %s: %w", walletstore.ErrTimeout, op, err)
	}
	return fmt.Errorf("wallet/mongo: %s: %w", op, err)
}

// migrationIndexes returns the index definitions for all wallet collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colWebhooks: {
			{
				Keys:    bson.D{{Key: "request_id", Value: 1}, {Key: "request_status", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "originator", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
	}
}
