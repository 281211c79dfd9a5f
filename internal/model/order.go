package model

import "time"

// OrderStatus enumerates the order lifecycle. Transitions only ever move
// forward along the graph encoded in validNext; once a payment outcome
// is recorded it can never be rewritten.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	StatusPaid           OrderStatus = "PAID"
	StatusPaymentFailed  OrderStatus = "PAYMENT_FAILED"
	StatusExpired        OrderStatus = "EXPIRED"
	StatusCancelled      OrderStatus = "CANCELLED"
	StatusProcessing     OrderStatus = "PROCESSING"
	StatusShipped        OrderStatus = "SHIPPED"
	StatusDelivered      OrderStatus = "DELIVERED"
)

// validNext maps each status to the statuses reachable from it.
// PENDING_PAYMENT is the only state from which a payment outcome may be
// recorded; PAID continues downstream into fulfillment. Cancellation is
// allowed only before shipping.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPendingPayment: {StatusPaid: true, StatusPaymentFailed: true, StatusExpired: true, StatusCancelled: true},
	StatusPaid:           {StatusProcessing: true},
	StatusProcessing:     {StatusShipped: true, StatusCancelled: true},
	StatusShipped:        {StatusDelivered: true},
	StatusDelivered:      {},
	StatusPaymentFailed:  {},
	StatusExpired:        {},
	StatusCancelled:      {},
}

// CanTransition reports whether moving from one status to another is
// legal under the lifecycle graph.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// LineItemSnapshot is an immutable (product, quantity, unit price)
// tuple captured when the cart was frozen. An order's total is always
// the sum over its snapshot and is never recomputed from live catalog
// prices.
type LineItemSnapshot struct {
	ProductID      string // order_items.product_id
	Quantity       int    // order_items.quantity
	UnitPriceCents int64  // order_items.unit_price_cents
}

// Subtotal returns quantity times unit price for this line.
func (l LineItemSnapshot) Subtotal() int64 {
	return int64(l.Quantity) * l.UnitPriceCents
}

// SnapshotTotal sums the subtotals of a frozen line item set.
func SnapshotTotal(items []LineItemSnapshot) int64 {
	var total int64
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}

// Order is the durable record produced by a successful checkout. It is
// created exactly once, in PENDING_PAYMENT, after a stock reservation
// succeeded; every later change is a status transition. Orders are never
// deleted.
//
// Fields:
//  ID            – locally generated order identifier (UUID).
//  UserID        – owner of the order.
//  Items         – frozen line items; prices never change after creation.
//  ReservationID – stock reservation backing this order.
//  IntentID      – external payment intent, empty until one is created.
//  Status        – current lifecycle state.
//  TotalCents    – sum over Items at freeze time.
//  Currency      – ISO 4217 code the intent was created in.
type Order struct {
	ID            string             // orders.id
	UserID        uint64             // orders.user_id
	Items         []LineItemSnapshot // order_items rows
	ReservationID string             // orders.reservation_id
	IntentID      string             // orders.intent_id
	Status        OrderStatus        // orders.status
	TotalCents    int64              // orders.total_cents
	Currency      string             // orders.currency
	CreatedAt     time.Time          // orders.created_at
	UpdatedAt     time.Time          // orders.updated_at
}
