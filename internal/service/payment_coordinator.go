package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/avelora/checkout/internal/model"
	"github.com/avelora/checkout/internal/payment"
)

// PaymentGateway is what the rest of the core sees of the payment leg.
// The coordinator behind it never infers success from local state; every
// status it hands out was reported by the processor.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, orderID string, amountCents int64, currency string) (*model.PaymentIntent, error)
	Reconcile(ctx context.Context, intentID string) (model.IntentStatus, error)
	Cancel(ctx context.Context, intentID string) error
}

// IntentCache stores the last processor-reported snapshot of each
// intent for fast reads. It is a cache, never the source of truth.
type IntentCache interface {
	Upsert(ctx context.Context, in *model.PaymentIntent) error
}

// PaymentCoordinator talks to the external processor and keeps the
// local intent cache in step with whatever the processor last said.
type PaymentCoordinator struct {
	provider payment.Provider
	cache    IntentCache
}

// NewPaymentCoordinator wires the coordinator to the provider client
// and the local cache.
func NewPaymentCoordinator(provider payment.Provider, cache IntentCache) *PaymentCoordinator {
	return &PaymentCoordinator{provider: provider, cache: cache}
}

// CreateIntent opens a payment intent scoped to the reserved total. A
// transport failure or timeout is returned untouched so the caller can
// release its stock reservation immediately; no order is allowed to
// hold stock hostage because the payment leg could not even begin.
func (c *PaymentCoordinator) CreateIntent(ctx context.Context, orderID string, amountCents int64, currency string) (*model.PaymentIntent, error) {
	intent, err := c.provider.CreateIntent(ctx, orderID, amountCents, currency)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Upsert(ctx, intent); err != nil {
		// Cache only; the processor has the intent either way.
		log.Warn().Err(err).Str("intent_id", intent.ID).Msg("payment coordinator: intent cache write failed")
	}
	return intent, nil
}

// Reconcile fetches the authoritative status from the processor,
// refreshes the cache and returns the status. Used as the fallback poll
// when no webhook arrived within the grace window.
func (c *PaymentCoordinator) Reconcile(ctx context.Context, intentID string) (model.IntentStatus, error) {
	intent, err := c.provider.GetIntent(ctx, intentID)
	if err != nil {
		return "", err
	}
	if err := c.cache.Upsert(ctx, intent); err != nil {
		log.Warn().Err(err).Str("intent_id", intentID).Msg("payment coordinator: intent cache write failed")
	}
	return intent.Status, nil
}

// Cancel asks the processor to cancel the intent, refunding it if money
// already moved.
func (c *PaymentCoordinator) Cancel(ctx context.Context, intentID string) error {
	return c.provider.CancelIntent(ctx, intentID)
}
