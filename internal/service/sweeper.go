package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avelora/checkout/internal/model"
	"github.com/avelora/checkout/internal/repository"
)

// ExpiredReservationLister finds reservations whose TTL has elapsed.
type ExpiredReservationLister interface {
	ExpiredReservations(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// Sweeper is the out-of-band pass that keeps the system honest when
// webhooks never arrive: it releases expired reservations, expires
// their orders, and polls the processor for orders that sat in
// PENDING_PAYMENT past the webhook grace window. A missed sweep run
// degrades to stock being held slightly too long; it never blocks
// checkout traffic.
type Sweeper struct {
	reservations ExpiredReservationLister
	orders       repository.OrderStore
	ledger       Ledger
	machine      *OrderMachine
	payments     PaymentGateway

	interval time.Duration
	grace    time.Duration
	batch    int
}

// NewSweeper builds a sweeper that runs every interval and polls the
// processor for pending orders older than grace.
func NewSweeper(reservations ExpiredReservationLister, orders repository.OrderStore, ledger Ledger, machine *OrderMachine, payments PaymentGateway, interval, grace time.Duration) *Sweeper {
	return &Sweeper{
		reservations: reservations,
		orders:       orders,
		ledger:       ledger,
		machine:      machine,
		payments:     payments,
		interval:     interval,
		grace:        grace,
		batch:        100,
	}
}

// Run loops until the context is cancelled. Each tick's errors are
// logged and retried on the next tick; nothing here is allowed to kill
// the process.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Info().Dur("interval", s.interval).Dur("grace", s.grace).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single pass: expired reservations first, then
// the reconciliation poll.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	s.sweepExpired(ctx)
	s.pollStale(ctx)
}

func (s *Sweeper) sweepExpired(ctx context.Context) {
	ids, err := s.reservations.ExpiredReservations(ctx, time.Now().UTC(), s.batch)
	if err != nil {
		log.Error().Err(err).Msg("sweeper: listing expired reservations failed")
		return
	}
	for _, resID := range ids {
		if err := s.resolveExpired(ctx, resID); err != nil {
			log.Error().Err(err).Str("reservation_id", resID).Msg("sweeper: resolving expired reservation failed")
		}
	}
}

// resolveExpired decides what an expired reservation means by looking
// at its order. Pending orders expire and release; a reservation left
// behind by a crash after a terminal transition is finished according
// to that recorded outcome; a reservation with no order at all is an
// orphan from a failed checkout and is simply released.
func (s *Sweeper) resolveExpired(ctx context.Context, reservationID string) error {
	order, err := s.orders.GetByReservationID(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.ledger.Release(ctx, reservationID)
	}
	if err != nil {
		return err
	}
	switch order.Status {
	case model.StatusPendingPayment:
		return s.machine.MarkExpired(ctx, order.ID)
	case model.StatusPaid, model.StatusProcessing, model.StatusShipped, model.StatusDelivered:
		// Paid but the commit never landed; finish it.
		return s.ledger.Commit(ctx, reservationID)
	default:
		return s.ledger.Release(ctx, reservationID)
	}
}

func (s *Sweeper) pollStale(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.grace)
	stale, err := s.orders.ListStalePending(ctx, cutoff, s.batch)
	if err != nil {
		log.Error().Err(err).Msg("sweeper: listing stale pending orders failed")
		return
	}
	for _, o := range stale {
		if o.IntentID == "" {
			continue // expiry will collect it
		}
		status, err := s.payments.Reconcile(ctx, o.IntentID)
		if err != nil {
			// Timed-out polls are retried on a later tick, not here.
			log.Warn().Err(err).Str("order_id", o.ID).Str("intent_id", o.IntentID).
				Msg("sweeper: reconcile poll failed")
			continue
		}
		if err := s.applyPolled(ctx, o.ID, status); err != nil {
			log.Error().Err(err).Str("order_id", o.ID).Str("status", string(status)).
				Msg("sweeper: applying polled status failed")
		}
	}
}

func (s *Sweeper) applyPolled(ctx context.Context, orderID string, status model.IntentStatus) error {
	switch status {
	case model.IntentSucceeded:
		err := s.machine.MarkPaid(ctx, orderID)
		if errors.Is(err, ErrOrderClosed) {
			// The order closed while we were polling; the late success
			// path is handled when the webhook lands.
			return nil
		}
		return err
	case model.IntentFailed, model.IntentCanceled:
		err := s.machine.MarkPaymentFailed(ctx, orderID)
		if errors.Is(err, ErrAlreadyPaid) {
			return nil
		}
		return err
	default:
		return nil // still in flight; leave it for the next pass
	}
}
