package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelora/checkout/internal/model"
	"github.com/avelora/checkout/internal/repository"
)

// fakeLedgerStore is an in-memory LedgerStore. A transaction holds the
// store mutex from Begin until Commit or Rollback, which mirrors the
// row-lock serialization the real store gets from SELECT ... FOR UPDATE.
type fakeLedgerStore struct {
	mu           sync.Mutex
	stock        map[string]*model.StockEntry
	reservations map[string]*model.Reservation
}

func newFakeLedgerStore(stock map[string]*model.StockEntry) *fakeLedgerStore {
	return &fakeLedgerStore{
		stock:        stock,
		reservations: make(map[string]*model.Reservation),
	}
}

func (s *fakeLedgerStore) Begin(ctx context.Context) (repository.LedgerTx, error) {
	s.mu.Lock()
	tx := &fakeLedgerTx{
		store:     s,
		stockSnap: make(map[string]*model.StockEntry, len(s.stock)),
		resSnap:   make(map[string]*model.Reservation, len(s.reservations)),
	}
	for k, v := range s.stock {
		cp := *v
		tx.stockSnap[k] = &cp
	}
	for k, v := range s.reservations {
		cp := *v
		cp.Items = append([]model.ReservationItem(nil), v.Items...)
		tx.resSnap[k] = &cp
	}
	return tx, nil
}

type fakeLedgerTx struct {
	store     *fakeLedgerStore
	stockSnap map[string]*model.StockEntry
	resSnap   map[string]*model.Reservation
	done      bool
}

func (t *fakeLedgerTx) StockForUpdate(ctx context.Context, productID string) (*model.StockEntry, error) {
	e, ok := t.store.stock[productID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return e, nil
}

func (t *fakeLedgerTx) UpdateStock(ctx context.Context, entry *model.StockEntry) error {
	t.store.stock[entry.ProductID] = entry
	return nil
}

func (t *fakeLedgerTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	t.store.reservations[res.ID] = res
	return nil
}

func (t *fakeLedgerTx) ReservationForUpdate(ctx context.Context, reservationID string) (*model.Reservation, error) {
	res, ok := t.store.reservations[reservationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return res, nil
}

func (t *fakeLedgerTx) DeleteReservation(ctx context.Context, reservationID string) error {
	delete(t.store.reservations, reservationID)
	return nil
}

func (t *fakeLedgerTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *fakeLedgerTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.stock = t.stockSnap
	t.store.reservations = t.resSnap
	t.store.mu.Unlock()
	return nil
}

func entryQty(t *testing.T, s *fakeLedgerStore, productID string) (available, reserved int) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.stock[productID]
	require.True(t, ok, "stock row for %s", productID)
	return e.Available, e.Reserved
}

func TestStockLedger_Reserve_MovesAvailableToReserved(t *testing.T) {
	store := newFakeLedgerStore(map[string]*model.StockEntry{
		"sku-a": {ProductID: "sku-a", Available: 10},
		"sku-b": {ProductID: "sku-b", Available: 5},
	})
	ledger := NewStockLedger(store, 15*time.Minute)

	res, err := ledger.Reserve(context.Background(), []model.ReservationItem{
		{ProductID: "sku-a", Quantity: 3},
		{ProductID: "sku-b", Quantity: 2},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)
	assert.True(t, res.ExpiresAt.After(time.Now()))

	avail, reserved := entryQty(t, store, "sku-a")
	assert.Equal(t, 7, avail)
	assert.Equal(t, 3, reserved)
	avail, reserved = entryQty(t, store, "sku-b")
	assert.Equal(t, 3, avail)
	assert.Equal(t, 2, reserved)
}

func TestStockLedger_Reserve_MergesDuplicateProducts(t *testing.T) {
	store := newFakeLedgerStore(map[string]*model.StockEntry{
		"sku-a": {ProductID: "sku-a", Available: 10},
	})
	ledger := NewStockLedger(store, time.Minute)

	res, err := ledger.Reserve(context.Background(), []model.ReservationItem{
		{ProductID: "sku-a", Quantity: 2},
		{ProductID: "sku-a", Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 5, res.Items[0].Quantity)

	avail, reserved := entryQty(t, store, "sku-a")
	assert.Equal(t, 5, avail)
	assert.Equal(t, 5, reserved)
}

func TestStockLedger_Reserve_AllOrNothing(t *testing.T) {
	store := newFakeLedgerStore(map[string]*model.StockEntry{
		"sku-a": {ProductID: "sku-a", Available: 10},
		"sku-b": {ProductID: "sku-b", Available: 1},
	})
	ledger := NewStockLedger(store, time.Minute)

	_, err := ledger.Reserve(context.Background(), []model.ReservationItem{
		{ProductID: "sku-a", Quantity: 3},
		{ProductID: "sku-b", Quantity: 2}, // more than available
	})
	require.ErrorIs(t, err, repository.ErrInsufficientStock)

	// The shortfall on sku-b must undo the hold already taken on sku-a.
	avail, reserved := entryQty(t, store, "sku-a")
	assert.Equal(t, 10, avail)
	assert.Equal(t, 0, reserved)
	avail, reserved = entryQty(t, store, "sku-b")
	assert.Equal(t, 1, avail)
	assert.Equal(t, 0, reserved)
}

func TestStockLedger_Reserve_MissingStockRow(t *testing.T) {
	store := newFakeLedgerStore(map[string]*model.StockEntry{})
	ledger := NewStockLedger(store, time.Minute)

	_, err := ledger.Reserve(context.Background(), []model.ReservationItem{
		{ProductID: "sku-x", Quantity: 1},
	})
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
}

func TestStockLedger_Reserve_RejectsNonPositiveQuantity(t *testing.T) {
	store := newFakeLedgerStore(map[string]*model.StockEntry{
		"sku-a": {ProductID: "sku-a", Available: 10},
	})
	ledger := NewStockLedger(store, time.Minute)

	_, err := ledger.Reserve(context.Background(), []model.ReservationItem{
		{ProductID: "sku-a", Quantity: 0},
	})
	assert.Error(t, err)
	_, err = ledger.Reserve(context.Background(), nil)
	assert.Error(t, err)
}

func TestStockLedger_Release_ReturnsStock(t *testing.T) {
	store := newFakeLedgerStore(map[string]*model.StockEntry{
		"sku-a": {ProductID: "sku-a", Available: 10},
	})
	ledger := NewStockLedger(store, time.Minute)

	res, err := ledger.Reserve(context.Background(), []model.ReservationItem{
		{ProductID: "sku-a", Quantity: 4},
	})
	require.NoError(t, err)

	require.NoError(t, ledger.Release(context.Background(), res.ID))
	avail, reserved := entryQty(t, store, "sku-a")
	assert.Equal(t, 10, avail)
	assert.Equal(t, 0, reserved)
}

func TestStockLedger_Commit_RemovesReservedOnly(t *testing.T) {
	store := newFakeLedgerStore(map[string]*model.StockEntry{
		"sku-a": {ProductID: "sku-a", Available: 10},
	})
	ledger := NewStockLedger(store, time.Minute)

	res, err := ledger.Reserve(context.Background(), []model.ReservationItem{
		{ProductID: "sku-a", Quantity: 4},
	})
	require.NoError(t, err)

	require.NoError(t, ledger.Commit(context.Background(), res.ID))
	avail, reserved := entryQty(t, store, "sku-a")
	assert.Equal(t, 6, avail)
	assert.Equal(t, 0, reserved)
}

func TestStockLedger_ReleaseAndCommit_IdempotentOnMissingReservation(t *testing.T) {
	store := newFakeLedgerStore(map[string]*model.StockEntry{
		"sku-a": {ProductID: "sku-a", Available: 10},
	})
	ledger := NewStockLedger(store, time.Minute)

	res, err := ledger.Reserve(context.Background(), []model.ReservationItem{
		{ProductID: "sku-a", Quantity: 4},
	})
	require.NoError(t, err)
	require.NoError(t, ledger.Commit(context.Background(), res.ID))

	// Second resolution of the same reservation is a no-op either way.
	require.NoError(t, ledger.Commit(context.Background(), res.ID))
	require.NoError(t, ledger.Release(context.Background(), res.ID))
	require.NoError(t, ledger.Release(context.Background(), "never-existed"))

	avail, reserved := entryQty(t, store, "sku-a")
	assert.Equal(t, 6, avail)
	assert.Equal(t, 0, reserved)
}

func TestStockLedger_Reserve_ConcurrentNoOversell(t *testing.T) {
	store := newFakeLedgerStore(map[string]*model.StockEntry{
		"sku-a": {ProductID: "sku-a", Available: 10},
	})
	ledger := NewStockLedger(store, time.Minute)

	const workers = 20
	var wg sync.WaitGroup
	var okCount int32
	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Reserve(context.Background(), []model.ReservationItem{
				{ProductID: "sku-a", Quantity: 3},
			})
			if err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, repository.ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()

	// 10 units at 3 apiece admits exactly 3 reservations.
	assert.EqualValues(t, 3, okCount)
	avail, reserved := entryQty(t, store, "sku-a")
	assert.Equal(t, 1, avail)
	assert.Equal(t, 9, reserved)
}
