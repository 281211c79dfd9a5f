package model

import "time"

// StockEntry tracks the available and reserved counts for one product.
// The invariant available + reserved == total owned stock holds at all
// times; both counters stay non-negative. Rows are only ever mutated by
// the stock ledger while the row is locked, so the struct itself carries
// no synchronization.
type StockEntry struct {
	ProductID string    // stock_entries.product_id
	Available int       // stock_entries.available
	Reserved  int       // stock_entries.reserved
	UpdatedAt time.Time // stock_entries.updated_at
}

// CanReserve reports whether qty units can be moved from available to
// reserved without driving available negative.
func (e *StockEntry) CanReserve(qty int) bool {
	return qty > 0 && e.Available >= qty
}
