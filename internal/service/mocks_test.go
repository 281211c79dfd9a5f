package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avelora/checkout/internal/model"
	"github.com/avelora/checkout/internal/queue"
	"github.com/avelora/checkout/internal/repository"
)

// fakeOrderStore keeps orders in a map and implements the same
// status-guarded conditional write the real repository gets from the
// database.
type fakeOrderStore struct {
	mu        sync.Mutex
	orders    map[string]*model.Order
	createErr error
}

func newFakeOrderStore(orders ...*model.Order) *fakeOrderStore {
	s := &fakeOrderStore{orders: make(map[string]*model.Order)}
	for _, o := range orders {
		cp := *o
		s.orders[o.ID] = &cp
	}
	return s
}

func (s *fakeOrderStore) Create(ctx context.Context, o *model.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *fakeOrderStore) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeOrderStore) GetByIntentID(ctx context.Context, intentID string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intentID == "" {
		return nil, repository.ErrNotFound
	}
	for _, o := range s.orders {
		if o.IntentID == intentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeOrderStore) GetByReservationID(ctx context.Context, reservationID string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ReservationID == reservationID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeOrderStore) UpdateStatus(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (s *fakeOrderStore) ListByUser(ctx context.Context, userID uint64) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *fakeOrderStore) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.Status == model.StatusPendingPayment && !o.CreatedAt.After(olderThan) {
			out = append(out, *o)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeOrderStore) status(orderID string) model.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[orderID].Status
}

// fakeLedger records which reservations were resolved and how instead
// of touching stock counters.
type fakeLedger struct {
	mu         sync.Mutex
	nextID     int
	reserveErr error
	reserved   []string
	released   []string
	committed  []string
}

func (l *fakeLedger) Reserve(ctx context.Context, items []model.ReservationItem) (*model.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reserveErr != nil {
		return nil, l.reserveErr
	}
	l.nextID++
	id := fmt.Sprintf("res-%d", l.nextID)
	l.reserved = append(l.reserved, id)
	return &model.Reservation{ID: id, Items: items, ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (l *fakeLedger) Release(ctx context.Context, reservationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, reservationID)
	return nil
}

func (l *fakeLedger) Commit(ctx context.Context, reservationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.committed = append(l.committed, reservationID)
	return nil
}

// fakeNotifier captures published lifecycle events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []queue.OrderEvent
}

func (n *fakeNotifier) PublishOrderEvent(ctx context.Context, event queue.OrderEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

// fakeGateway implements PaymentGateway with canned responses.
type fakeGateway struct {
	mu        sync.Mutex
	nextID    int
	createErr error
	statuses  map[string]model.IntentStatus
	cancelled []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]model.IntentStatus)}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, orderID string, amountCents int64, currency string) (*model.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.nextID++
	id := fmt.Sprintf("pi-%d", g.nextID)
	g.statuses[id] = model.IntentCreated
	return &model.PaymentIntent{
		ID:           id,
		OrderID:      orderID,
		AmountCents:  amountCents,
		Currency:     currency,
		Status:       model.IntentCreated,
		ClientSecret: id + "_secret",
	}, nil
}

func (g *fakeGateway) Reconcile(ctx context.Context, intentID string) (model.IntentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.statuses[intentID]
	if !ok {
		return "", fmt.Errorf("intent %s not found", intentID)
	}
	return status, nil
}

func (g *fakeGateway) Cancel(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, intentID)
	return nil
}

func (g *fakeGateway) setStatus(intentID string, status model.IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[intentID] = status
}

// fakeWebhookLedger deduplicates on event id like the real table's
// primary key.
type fakeWebhookLedger struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeWebhookLedger() *fakeWebhookLedger {
	return &fakeWebhookLedger{seen: make(map[string]bool)}
}

func (l *fakeWebhookLedger) Insert(ctx context.Context, ev *model.WebhookEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[ev.EventID] {
		return repository.ErrDuplicateEvent
	}
	l.seen[ev.EventID] = true
	return nil
}

// fakeCatalog serves prices from a map; missing products are
// unavailable.
type fakeCatalog struct {
	prices map[string]int64
}

func (c *fakeCatalog) GetActivePrice(ctx context.Context, productID string) (int64, error) {
	price, ok := c.prices[productID]
	if !ok {
		return 0, repository.ErrProductUnavailable
	}
	return price, nil
}

// fakeCartSource returns the same lines for every user.
type fakeCartSource struct {
	lines []model.CartLine
	err   error
}

func (c *fakeCartSource) LinesByUser(ctx context.Context, userID uint64) ([]model.CartLine, error) {
	return c.lines, c.err
}

// fakeCartClearer records clears.
type fakeCartClearer struct {
	cleared []uint64
}

func (c *fakeCartClearer) Clear(ctx context.Context, userID uint64) error {
	c.cleared = append(c.cleared, userID)
	return nil
}

// fakeReservationLister returns a fixed list of expired reservations.
type fakeReservationLister struct {
	ids []string
}

func (l *fakeReservationLister) ExpiredReservations(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return l.ids, nil
}
