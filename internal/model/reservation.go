package model

import "time"

// ReservationItem is one product hold inside a reservation.
type ReservationItem struct {
	ReservationID string // reservation_items.reservation_id
	ProductID     string // reservation_items.product_id
	Quantity      int    // reservation_items.quantity
}

// Reservation is a temporary, expiring hold on stock quantities taken
// while a checkout is in flight. It is created all-or-nothing for every
// line item of the order and is deleted when it is either released
// (quantities returned to available) or committed (quantities consumed
// on payment success). A reservation past ExpiresAt is collected by the
// background sweep, never by request-path code.
type Reservation struct {
	ID        string            // reservations.id
	Items     []ReservationItem // reservation_items rows
	ExpiresAt time.Time         // reservations.expires_at
	CreatedAt time.Time         // reservations.created_at
}
