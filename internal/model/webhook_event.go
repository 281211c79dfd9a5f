package model

import "time"

// Webhook event types delivered by the payment processor.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
)

// WebhookEvent is one asynchronous notification from the payment
// processor. Rows are append-only: the primary key on EventID is the
// idempotency guarantee, so an event that is already in the ledger is
// acknowledged without re-applying any state change.
type WebhookEvent struct {
	EventID    string    // webhook_events.event_id (processor assigned, globally unique)
	IntentID   string    // webhook_events.intent_id
	Type       string    // webhook_events.event_type
	ReceivedAt time.Time // webhook_events.received_at
}
