package model

import "time"

// IntentStatus mirrors the payment processor's intent lifecycle. The
// processor is authoritative for these values; the local row is only a
// cache of the last status it reported.
type IntentStatus string

const (
	IntentCreated        IntentStatus = "created"
	IntentRequiresAction IntentStatus = "requires_action"
	IntentSucceeded      IntentStatus = "succeeded"
	IntentFailed         IntentStatus = "failed"
	IntentCanceled       IntentStatus = "canceled"
)

// PaymentIntent is the locally cached view of an external payment
// intent. ID is the opaque identifier assigned by the processor.
// ClientSecret is returned to the client so it can complete the payment
// leg directly with the processor; it is never persisted.
type PaymentIntent struct {
	ID           string       // payment_intents.id
	OrderID      string       // payment_intents.order_id
	AmountCents  int64        // payment_intents.amount_cents
	Currency     string       // payment_intents.currency
	Status       IntentStatus // payment_intents.status
	ClientSecret string       // transient, from the processor response
	UpdatedAt    time.Time    // payment_intents.updated_at
}
