package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avelora/checkout/internal/model"
	"github.com/avelora/checkout/internal/repository"
)

// Catalog is the narrow view of the catalog collaborator the
// snapshotter needs: current price and active flag, read once at freeze
// time and never again.
type Catalog interface {
	GetActivePrice(ctx context.Context, productID string) (int64, error)
}

// CartSource reads a user's current cart lines.
type CartSource interface {
	LinesByUser(ctx context.Context, userID uint64) ([]model.CartLine, error)
}

// CartSnapshotter freezes a cart into an immutable, priced line item
// set. The whole freeze fails if any product is inactive or gone; a
// partially valid cart never produces a partial order.
type CartSnapshotter struct {
	carts   CartSource
	catalog Catalog
}

// NewCartSnapshotter wires the snapshotter to its collaborators.
func NewCartSnapshotter(carts CartSource, catalog Catalog) *CartSnapshotter {
	return &CartSnapshotter{carts: carts, catalog: catalog}
}

// Freeze reads the user's cart and captures each line's unit price at
// this moment. Later catalog price changes never alter the returned
// snapshot: the order total is always computed from it, never from live
// catalog data.
func (s *CartSnapshotter) Freeze(ctx context.Context, userID uint64) ([]model.LineItemSnapshot, error) {
	lines, err := s.carts.LinesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, repository.ErrEmptyCart
	}
	items := make([]model.LineItemSnapshot, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("product %s: invalid quantity %d", line.ProductID, line.Quantity)
		}
		price, err := s.catalog.GetActivePrice(ctx, line.ProductID)
		if errors.Is(err, repository.ErrProductUnavailable) {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, repository.ErrProductUnavailable)
		}
		if err != nil {
			return nil, err
		}
		items = append(items, model.LineItemSnapshot{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPriceCents: price,
		})
	}
	return items, nil
}
