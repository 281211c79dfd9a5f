// Package service contains the checkout core: the stock ledger, cart
// snapshotter, payment intent coordinator, order state machine, webhook
// reconciler and the background sweep that ties their failure paths
// together.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avelora/checkout/internal/model"
	"github.com/avelora/checkout/internal/repository"
)

// Ledger is the stock ownership contract the rest of the core depends
// on. Reserve is all-or-nothing across every requested product; Release
// and Commit are idempotent so timeout paths and failure-webhook paths
// can race to resolve the same reservation without harm.
type Ledger interface {
	Reserve(ctx context.Context, items []model.ReservationItem) (*model.Reservation, error)
	Release(ctx context.Context, reservationID string) error
	Commit(ctx context.Context, reservationID string) error
}

// StockLedger owns the available/reserved counters for every product.
// All mutation happens inside one transaction per call, with stock rows
// locked in ascending product-id order so two reservations over
// overlapping product sets can never deadlock.
type StockLedger struct {
	store repository.LedgerStore
	ttl   time.Duration
}

// NewStockLedger returns a ledger whose reservations expire after ttl.
func NewStockLedger(store repository.LedgerStore, ttl time.Duration) *StockLedger {
	return &StockLedger{store: store, ttl: ttl}
}

// Reserve moves the requested quantities from available to reserved for
// every product, or for none of them. Duplicate product ids are merged
// before locking. Any shortfall fails the whole call with
// ErrInsufficientStock and the transaction rolls back, leaving no
// partial holds.
func (l *StockLedger) Reserve(ctx context.Context, items []model.ReservationItem) (*model.Reservation, error) {
	merged, err := mergeItems(items)
	if err != nil {
		return nil, err
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock in sorted order; mergeItems already sorted by product id.
	for i := range merged {
		entry, err := tx.StockForUpdate(ctx, merged[i].ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("product %s: %w", merged[i].ProductID, repository.ErrInsufficientStock)
		}
		if err != nil {
			return nil, err
		}
		if !entry.CanReserve(merged[i].Quantity) {
			return nil, fmt.Errorf("product %s: %w", merged[i].ProductID, repository.ErrInsufficientStock)
		}
		entry.Available -= merged[i].Quantity
		entry.Reserved += merged[i].Quantity
		if err := tx.UpdateStock(ctx, entry); err != nil {
			return nil, err
		}
	}

	res := &model.Reservation{
		ID:        uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(l.ttl),
		CreatedAt: time.Now().UTC(),
	}
	for i := range merged {
		merged[i].ReservationID = res.ID
	}
	res.Items = merged
	if err := tx.InsertReservation(ctx, res); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

// Release returns the reserved quantities to available and deletes the
// reservation. A reservation that no longer exists (already committed
// or already released) is a no-op, not an error.
func (l *StockLedger) Release(ctx context.Context, reservationID string) error {
	return l.resolve(ctx, reservationID, func(entry *model.StockEntry, qty int) {
		entry.Available += qty
		entry.Reserved -= qty
	})
}

// Commit permanently removes the reserved quantities without touching
// available: the stock has been sold. Idempotent on a missing
// reservation like Release.
func (l *StockLedger) Commit(ctx context.Context, reservationID string) error {
	return l.resolve(ctx, reservationID, func(entry *model.StockEntry, qty int) {
		entry.Reserved -= qty
	})
}

// resolve loads the reservation under lock, applies apply to each stock
// row in product-id order, and deletes the reservation.
func (l *StockLedger) resolve(ctx context.Context, reservationID string, apply func(*model.StockEntry, int)) error {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ReservationForUpdate(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil // already resolved by a racing path
	}
	if err != nil {
		return err
	}
	for _, it := range res.Items {
		entry, err := tx.StockForUpdate(ctx, it.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			// Product deleted while the hold was outstanding; nothing
			// left to return the quantity to.
			log.Warn().Str("product_id", it.ProductID).Str("reservation_id", reservationID).
				Msg("stock ledger: stock row gone while resolving reservation")
			continue
		}
		if err != nil {
			return err
		}
		apply(entry, it.Quantity)
		if entry.Reserved < 0 {
			entry.Reserved = 0
		}
		if err := tx.UpdateStock(ctx, entry); err != nil {
			return err
		}
	}
	if err := tx.DeleteReservation(ctx, reservationID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// mergeItems validates quantities, merges duplicate product ids and
// returns the result sorted by product id, which is the global lock
// acquisition order.
func mergeItems(items []model.ReservationItem) ([]model.ReservationItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("reserve: no items")
	}
	byProduct := make(map[string]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("reserve: product %s: quantity must be positive", it.ProductID)
		}
		byProduct[it.ProductID] += it.Quantity
	}
	merged := make([]model.ReservationItem, 0, len(byProduct))
	for id, qty := range byProduct {
		merged = append(merged, model.ReservationItem{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}
