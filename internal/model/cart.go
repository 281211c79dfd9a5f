package model

import "time"

// CartLine is a single product/quantity pair in a user's cart. Carts are
// mutable right up until checkout freezes them into line item snapshots;
// after that the cart contents play no further role in the order.
type CartLine struct {
	UserID    uint64    // cart_items.user_id
	ProductID string    // cart_items.product_id
	Quantity  int       // cart_items.quantity
	CreatedAt time.Time // cart_items.created_at
}
