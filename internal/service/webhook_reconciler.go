package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avelora/checkout/internal/model"
	"github.com/avelora/checkout/internal/queue"
	"github.com/avelora/checkout/internal/repository"
)

// ErrUnknownIntent is returned when an event references an intent no
// local order knows about. It indicates a data integrity problem
// between local and processor state and is escalated for manual
// investigation, never retried automatically.
var ErrUnknownIntent = errors.New("unknown payment intent")

// WebhookLedger is the append-only event store that gives ingestion its
// at-most-once semantics.
type WebhookLedger interface {
	Insert(ctx context.Context, ev *model.WebhookEvent) error
}

// WebhookReconciler ingests asynchronous processor events and drives
// the order state machine to the outcome they report. The ledger insert
// comes first: a duplicate event id is acknowledged without reapplying
// anything, so redelivered events have exactly one observable effect.
type WebhookReconciler struct {
	events   WebhookLedger
	orders   repository.OrderStore
	machine  *OrderMachine
	payments PaymentGateway
	notifier Notifier
}

// NewWebhookReconciler wires the reconciler to its collaborators.
func NewWebhookReconciler(events WebhookLedger, orders repository.OrderStore, machine *OrderMachine, payments PaymentGateway, notifier Notifier) *WebhookReconciler {
	return &WebhookReconciler{events: events, orders: orders, machine: machine, payments: payments, notifier: notifier}
}

// Ingest processes one verified webhook event. Signature verification
// happened in middleware before this point. A nil return means the
// delivery should be acknowledged to the processor.
func (r *WebhookReconciler) Ingest(ctx context.Context, ev model.WebhookEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	if err := r.events.Insert(ctx, &ev); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			log.Debug().Str("event_id", ev.EventID).Msg("webhook: duplicate event acknowledged")
			return nil
		}
		return err
	}

	order, err := r.orders.GetByIntentID(ctx, ev.IntentID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Error().Str("event_id", ev.EventID).Str("intent_id", ev.IntentID).
			Msg("webhook: event for unknown intent, escalating")
		return ErrUnknownIntent
	}
	if err != nil {
		return err
	}

	switch ev.Type {
	case model.EventIntentSucceeded:
		return r.applySuccess(ctx, ev, order)
	case model.EventIntentFailed, model.EventIntentCanceled:
		return r.applyFailure(ctx, ev, order)
	default:
		// Unrecognized types stay in the ledger but drive nothing.
		log.Info().Str("event_id", ev.EventID).Str("type", ev.Type).Msg("webhook: ignoring unhandled event type")
		return nil
	}
}

func (r *WebhookReconciler) applySuccess(ctx context.Context, ev model.WebhookEvent, order *model.Order) error {
	err := r.machine.MarkPaid(ctx, order.ID)
	if errors.Is(err, ErrOrderClosed) {
		// The order expired, failed or was cancelled and its stock was
		// released, possibly resold, before the success arrived. The
		// customer was charged for goods we no longer hold, so ask the
		// processor to cancel/refund the intent and open a manual
		// followup.
		log.Error().Str("event_id", ev.EventID).Str("order_id", order.ID).Str("intent_id", ev.IntentID).
			Str("order_status", string(order.Status)).
			Msg("webhook: success arrived after order closed, requesting refund")
		if cancelErr := r.payments.Cancel(ctx, ev.IntentID); cancelErr != nil {
			log.Error().Err(cancelErr).Str("intent_id", ev.IntentID).Msg("webhook: refund request failed")
		}
		if r.notifier != nil {
			_ = r.notifier.PublishOrderEvent(ctx, queue.OrderEvent{
				Type:       queue.TypeRefundRequired,
				OrderID:    order.ID,
				UserID:     order.UserID,
				IntentID:   ev.IntentID,
				TotalCents: order.TotalCents,
				Currency:   order.Currency,
				OccurredAt: time.Now().UTC().Format(time.RFC3339),
			})
		}
		return nil
	}
	return err
}

func (r *WebhookReconciler) applyFailure(ctx context.Context, ev model.WebhookEvent, order *model.Order) error {
	err := r.machine.MarkPaymentFailed(ctx, order.ID)
	if errors.Is(err, ErrAlreadyPaid) {
		// Success is sticky once recorded; a late failure for the same
		// intent is logged and discarded.
		log.Warn().Str("event_id", ev.EventID).Str("order_id", order.ID).
			Msg("webhook: failure event after recorded success, discarding")
		return nil
	}
	return err
}
