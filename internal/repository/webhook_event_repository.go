package repository

import (
	"context"
	"database/sql"

	"github.com/avelora/checkout/internal/model"
)

// WebhookEventRepo is the append-only ledger of payment processor
// events. The primary key on event_id is the idempotency mechanism: an
// insert that collides means the event was already processed and the
// caller must acknowledge it without applying side effects.
type WebhookEventRepo struct {
	db *sql.DB
}

// NewWebhookEventRepo returns a WebhookEventRepo bound to the given
// database.
func NewWebhookEventRepo(db *sql.DB) *WebhookEventRepo { return &WebhookEventRepo{db: db} }

// Insert appends the event to the ledger. Returns ErrDuplicateEvent
// when a row with the same event id already exists; rows are never
// updated or deleted.
func (r *WebhookEventRepo) Insert(ctx context.Context, ev *model.WebhookEvent) error {
	const q = `INSERT INTO webhook_events (event_id, intent_id, event_type, received_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, ev.EventID, ev.IntentID, ev.Type, ev.ReceivedAt.UTC())
	if isDuplicateKey(err) {
		return ErrDuplicateEvent
	}
	return err
}
