// Package repository implements data access over the durable store.
// This file defines sentinel error values reused across repositories.
// Higher layers compare against them with errors.Is to distinguish
// failure scenarios: the checkout service turns ErrInsufficientStock
// into a 409 rejection, while ErrDuplicateEvent is how the webhook
// ledger reports that an event was already ingested.
package repository

import (
	"errors"
	"strings"
)

// ErrInsufficientStock is returned when a reservation would drive a
// product's available count negative. The whole reservation fails; no
// partial holds are left behind.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrProductUnavailable is returned when a cart references a product
// that has been deleted or deactivated.
var ErrProductUnavailable = errors.New("product unavailable")

// ErrEmptyCart is returned when a freeze is attempted on a cart with no
// lines.
var ErrEmptyCart = errors.New("cart is empty")

// ErrDuplicateEvent is returned by the webhook ledger when a row with
// the same event id already exists. Callers treat it as a successful
// no-op acknowledgement.
var ErrDuplicateEvent = errors.New("duplicate webhook event")

// ErrNotFound is returned when a requested row does not exist. It wraps
// the common "no rows" case so handlers do not need to import
// database/sql.
var ErrNotFound = errors.New("not found")

// isDuplicateKey reports whether the error is a MySQL duplicate-entry
// violation (error 1062).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
