package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avelora/checkout/internal/model"
	"github.com/avelora/checkout/internal/queue"
	"github.com/avelora/checkout/internal/repository"
)

// ErrIllegalTransition marks an attempted status change the lifecycle
// graph forbids. It is a programming-contract failure, not something a
// user sees.
var ErrIllegalTransition = errors.New("illegal order status transition")

// ErrAlreadyPaid is returned when a failure outcome arrives for an
// order whose success was already recorded. Success is sticky: money
// has moved, so the late failure is discarded by the caller.
var ErrAlreadyPaid = errors.New("order already paid")

// ErrOrderClosed is returned when a success outcome arrives for an
// order that independently reached a terminal non-paid state and
// released its stock. The caller owes the customer a refund.
var ErrOrderClosed = errors.New("order already closed")

// ErrNotOrderOwner is returned when a user acts on an order that is not
// theirs.
var ErrNotOrderOwner = errors.New("order belongs to another user")

// Notifier delivers fire-and-forget order lifecycle events to the
// notification collaborator.
type Notifier interface {
	PublishOrderEvent(ctx context.Context, event queue.OrderEvent) error
}

// OrderMachine owns order status transitions. Every transition is a
// status-guarded conditional write, so a race between a webhook-driven
// and a poll-driven reconciliation resolves to exactly one recorded
// payment outcome; the loser observes the guard miss and re-reads.
type OrderMachine struct {
	orders   repository.OrderStore
	ledger   Ledger
	notifier Notifier
}

// NewOrderMachine wires the state machine to its stores.
func NewOrderMachine(orders repository.OrderStore, ledger Ledger, notifier Notifier) *OrderMachine {
	return &OrderMachine{orders: orders, ledger: ledger, notifier: notifier}
}

// MarkPaid records the payment success outcome. Legal only from
// PENDING_PAYMENT; on the winning transition the stock reservation is
// committed and an order.paid notification goes out. Calling it again
// for an already paid order is a no-op.
func (m *OrderMachine) MarkPaid(ctx context.Context, orderID string) error {
	o, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	applied, err := m.orders.UpdateStatus(ctx, orderID, model.StatusPendingPayment, model.StatusPaid)
	if err != nil {
		return err
	}
	if !applied {
		return m.classifyLostPaidRace(ctx, orderID)
	}
	// Consume the hold. Commit is idempotent; if it fails here the
	// recovery sweep finishes the job using the paid status as witness.
	if err := m.ledger.Commit(ctx, o.ReservationID); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Str("reservation_id", o.ReservationID).
			Msg("order machine: reservation commit failed after paid transition")
		return err
	}
	log.Info().Str("order_id", orderID).Int64("total_cents", o.TotalCents).Msg("order paid")
	m.publish(ctx, queue.TypeOrderPaid, o)
	return nil
}

func (m *OrderMachine) classifyLostPaidRace(ctx context.Context, orderID string) error {
	o, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	switch {
	case o.Status == model.StatusPaid || o.Status == model.StatusProcessing ||
		o.Status == model.StatusShipped || o.Status == model.StatusDelivered:
		return nil // success already recorded; idempotent
	case !model.CanTransition(o.Status, model.StatusPaid):
		// EXPIRED, PAYMENT_FAILED or CANCELLED: the order was closed and
		// its stock released before the success landed.
		return ErrOrderClosed
	default:
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, model.StatusPaid)
	}
}

// MarkPaymentFailed records the failure outcome, releasing the stock
// reservation and notifying the customer. A failure arriving after
// success returns ErrAlreadyPaid so the caller can discard it; a
// failure arriving after the order already failed, expired or was
// cancelled is a no-op.
func (m *OrderMachine) MarkPaymentFailed(ctx context.Context, orderID string) error {
	o, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	applied, err := m.orders.UpdateStatus(ctx, orderID, model.StatusPendingPayment, model.StatusPaymentFailed)
	if err != nil {
		return err
	}
	if !applied {
		current, err := m.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		switch current.Status {
		case model.StatusPaid, model.StatusProcessing, model.StatusShipped, model.StatusDelivered:
			return ErrAlreadyPaid
		case model.StatusPaymentFailed, model.StatusExpired, model.StatusCancelled:
			return nil
		default:
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, model.StatusPaymentFailed)
		}
	}
	if err := m.ledger.Release(ctx, o.ReservationID); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("order machine: reservation release failed after payment failure")
		return err
	}
	log.Info().Str("order_id", orderID).Msg("order payment failed")
	m.publish(ctx, queue.TypeOrderPaymentFailed, o)
	return nil
}

// MarkExpired is the sweep-side terminal outcome for orders whose
// reservation TTL elapsed with no payment resolution. Losing the guard
// to a racing webhook is fine: whoever won has already resolved the
// reservation.
func (m *OrderMachine) MarkExpired(ctx context.Context, orderID string) error {
	o, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	applied, err := m.orders.UpdateStatus(ctx, orderID, model.StatusPendingPayment, model.StatusExpired)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	if err := m.ledger.Release(ctx, o.ReservationID); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("order machine: reservation release failed after expiry")
		return err
	}
	log.Info().Str("order_id", orderID).Msg("order expired")
	return nil
}

// Cancel handles a user-initiated cancellation. Allowed only while the
// order is PENDING_PAYMENT or PROCESSING, never after shipping. A
// pending order still holds stock, so its reservation is released; a
// processing order's stock was already consumed on payment.
func (m *OrderMachine) Cancel(ctx context.Context, orderID string, userID uint64) error {
	o, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return ErrNotOrderOwner
	}
	applied, err := m.orders.UpdateStatus(ctx, orderID, model.StatusPendingPayment, model.StatusCancelled)
	if err != nil {
		return err
	}
	if applied {
		if err := m.ledger.Release(ctx, o.ReservationID); err != nil {
			log.Error().Err(err).Str("order_id", orderID).Msg("order machine: reservation release failed after cancel")
			return err
		}
		log.Info().Str("order_id", orderID).Msg("order cancelled before payment")
		return nil
	}
	applied, err = m.orders.UpdateStatus(ctx, orderID, model.StatusProcessing, model.StatusCancelled)
	if err != nil {
		return err
	}
	if applied {
		log.Info().Str("order_id", orderID).Msg("order cancelled during processing")
		return nil
	}
	current, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if current.Status == model.StatusCancelled {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, model.StatusCancelled)
}

// MarkProcessing moves a paid order into fulfillment.
func (m *OrderMachine) MarkProcessing(ctx context.Context, orderID string) error {
	return m.simpleTransition(ctx, orderID, model.StatusPaid, model.StatusProcessing, "")
}

// MarkShipped records shipment and notifies the customer.
func (m *OrderMachine) MarkShipped(ctx context.Context, orderID string) error {
	return m.simpleTransition(ctx, orderID, model.StatusProcessing, model.StatusShipped, queue.TypeOrderShipped)
}

// MarkDelivered records final delivery.
func (m *OrderMachine) MarkDelivered(ctx context.Context, orderID string) error {
	return m.simpleTransition(ctx, orderID, model.StatusShipped, model.StatusDelivered, "")
}

func (m *OrderMachine) simpleTransition(ctx context.Context, orderID string, from, to model.OrderStatus, eventType string) error {
	o, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	applied, err := m.orders.UpdateStatus(ctx, orderID, from, to)
	if err != nil {
		return err
	}
	if !applied {
		current, err := m.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status == to {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, to)
	}
	if eventType != "" {
		m.publish(ctx, eventType, o)
	}
	return nil
}

// publish delivers a lifecycle event; failures are logged and dropped,
// never rolled back into the transition.
func (m *OrderMachine) publish(ctx context.Context, eventType string, o *model.Order) {
	if m.notifier == nil {
		return
	}
	ev := queue.OrderEvent{
		Type:       eventType,
		OrderID:    o.ID,
		UserID:     o.UserID,
		IntentID:   o.IntentID,
		TotalCents: o.TotalCents,
		Currency:   o.Currency,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := m.notifier.PublishOrderEvent(ctx, ev); err != nil {
		log.Warn().Err(err).Str("order_id", o.ID).Str("type", eventType).Msg("order machine: notification publish failed")
	}
}
