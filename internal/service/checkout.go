package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avelora/checkout/internal/model"
	"github.com/avelora/checkout/internal/repository"
)

// CartClearer empties a user's cart once the order is durably created.
type CartClearer interface {
	Clear(ctx context.Context, userID uint64) error
}

// CheckoutService is the full cart-to-order path: freeze the cart,
// reserve stock, open a payment intent, persist the order. Any failure
// after the reservation was created releases it before returning; no
// failure path leaves stock in an orphaned reserved state.
type CheckoutService struct {
	snapshotter *CartSnapshotter
	ledger      Ledger
	payments    PaymentGateway
	orders      repository.OrderStore
	carts       CartClearer
}

// NewCheckoutService wires the checkout orchestration.
func NewCheckoutService(snapshotter *CartSnapshotter, ledger Ledger, payments PaymentGateway, orders repository.OrderStore, carts CartClearer) *CheckoutService {
	return &CheckoutService{
		snapshotter: snapshotter,
		ledger:      ledger,
		payments:    payments,
		orders:      orders,
		carts:       carts,
	}
}

// PlaceOrder runs one checkout for the user's current cart and returns
// the created order together with the intent the client must complete
// with the processor. The order starts in PENDING_PAYMENT and is
// resolved later by webhook or by the reconciliation poll.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID uint64, currency string) (*model.Order, *model.PaymentIntent, error) {
	items, err := s.snapshotter.Freeze(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	holds := make([]model.ReservationItem, 0, len(items))
	for _, it := range items {
		holds = append(holds, model.ReservationItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	res, err := s.ledger.Reserve(ctx, holds)
	if err != nil {
		return nil, nil, err
	}

	orderID := uuid.NewString()
	total := model.SnapshotTotal(items)

	intent, err := s.payments.CreateIntent(ctx, orderID, total, currency)
	if err != nil {
		// The payment leg could not even begin; give the stock back now.
		if relErr := s.ledger.Release(ctx, res.ID); relErr != nil {
			log.Error().Err(relErr).Str("reservation_id", res.ID).
				Msg("checkout: reservation release failed after intent creation failure")
		}
		return nil, nil, err
	}

	order := &model.Order{
		ID:            orderID,
		UserID:        userID,
		Items:         items,
		ReservationID: res.ID,
		IntentID:      intent.ID,
		Status:        model.StatusPendingPayment,
		TotalCents:    total,
		Currency:      currency,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if relErr := s.ledger.Release(ctx, res.ID); relErr != nil {
			log.Error().Err(relErr).Str("reservation_id", res.ID).
				Msg("checkout: reservation release failed after order create failure")
		}
		if cancelErr := s.payments.Cancel(ctx, intent.ID); cancelErr != nil {
			log.Warn().Err(cancelErr).Str("intent_id", intent.ID).
				Msg("checkout: intent cancel failed after order create failure")
		}
		return nil, nil, err
	}

	// The cart is no longer the source of anything; clearing it is best
	// effort.
	if err := s.carts.Clear(ctx, userID); err != nil {
		log.Warn().Err(err).Uint64("user_id", userID).Msg("checkout: cart clear failed")
	}

	log.Info().Str("order_id", orderID).Uint64("user_id", userID).
		Int64("total_cents", total).Str("intent_id", intent.ID).Msg("order placed")
	return order, intent, nil
}
