// Package queue defines message payloads exchanged over the message
// broker and the background consumer that turns them into customer
// notifications.
package queue

// Notification queue name. All order lifecycle events share one durable
// queue; consumers dispatch on the Type field.
const OrderNotificationsQueue = "order.notifications"

// Event types published to the notification queue.
const (
	TypeOrderPaid          = "order.paid"
	TypeOrderPaymentFailed = "order.payment_failed"
	TypeOrderShipped       = "order.shipped"
	TypeRefundRequired     = "refund.required"
)

// OrderEvent is published when an order crosses a notify-worthy
// transition. It carries enough information for downstream consumers to
// notify the customer or open a manual followup without querying the
// primary database. Publishing is fire and forget: a failed publish
// never rolls the transition back.
type OrderEvent struct {
	Type       string `json:"type"`
	OrderID    string `json:"order_id"`
	UserID     uint64 `json:"user_id"`
	IntentID   string `json:"intent_id,omitempty"`
	TotalCents int64  `json:"total_cents"`
	Currency   string `json:"currency"`
	OccurredAt string `json:"occurred_at"`
}
