package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avelora/checkout/internal/model"
)

// OrderStore is the persistence contract the order state machine and
// checkout service depend on. UpdateStatus is the status-guarded
// conditional write that serializes concurrent transitions on the same
// order: only one writer observes applied == true for a given
// from-status.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, orderID string) (*model.Order, error)
	GetByIntentID(ctx context.Context, intentID string) (*model.Order, error)
	GetByReservationID(ctx context.Context, reservationID string) (*model.Order, error)
	UpdateStatus(ctx context.Context, orderID string, from, to model.OrderStatus) (applied bool, err error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Order, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error)
}

// OrderRepo provides data access to the orders and order_items tables.
// Orders are insert-once rows: the intent id is known before the row is
// written, so after creation the only mutable column is the status.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// Create inserts the order and its frozen line items in one transaction.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO orders (id, user_id, reservation_id, intent_id, status, total_cents, currency)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		o.ID, o.UserID, o.ReservationID, o.IntentID, string(o.Status), o.TotalCents, o.Currency,
	); err != nil {
		return err
	}
	if len(o.Items) > 0 {
		query := `INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents) VALUES `
		args := make([]interface{}, 0, len(o.Items)*4)
		for i, it := range o.Items {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			args = append(args, o.ID, it.ProductID, it.Quantity, it.UnitPriceCents)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetByID loads an order and its line items. Returns ErrNotFound when no
// order with that id exists.
func (r *OrderRepo) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	return r.getOne(ctx, `WHERE id = ?`, orderID)
}

// GetByIntentID looks an order up through the secondary index on
// intent_id; this is the lookup webhook ingestion relies on.
func (r *OrderRepo) GetByIntentID(ctx context.Context, intentID string) (*model.Order, error) {
	if intentID == "" {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, `WHERE intent_id = ?`, intentID)
}

// GetByReservationID looks an order up by its stock reservation. The
// sweep uses it to find the order backing an expired hold.
func (r *OrderRepo) GetByReservationID(ctx context.Context, reservationID string) (*model.Order, error) {
	return r.getOne(ctx, `WHERE reservation_id = ?`, reservationID)
}

func (r *OrderRepo) getOne(ctx context.Context, where string, arg interface{}) (*model.Order, error) {
	q := `SELECT id, user_id, reservation_id, intent_id, status, total_cents, currency, created_at, updated_at
	      FROM orders ` + where
	var o model.Order
	var status string
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&o.ID, &o.UserID, &o.ReservationID, &o.IntentID, &status,
		&o.TotalCents, &o.Currency, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *OrderRepo) loadItems(ctx context.Context, orderID string) ([]model.LineItemSnapshot, error) {
	const q = `SELECT product_id, quantity, unit_price_cents FROM order_items WHERE order_id = ? ORDER BY product_id`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.LineItemSnapshot
	for rows.Next() {
		var it model.LineItemSnapshot
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateStatus moves an order from one status to another with a single
// conditional write. When the guard does not match (a concurrent writer
// already moved the order) it reports applied == false and no error; the
// caller decides whether that is fine or a contract violation.
func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error) {
	const q = `UPDATE orders SET status = ? WHERE id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, q, string(to), orderID, string(from))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListByUser returns the user's orders, newest first, with line items
// populated.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Order, error) {
	const q = `SELECT id, user_id, reservation_id, intent_id, status, total_cents, currency, created_at, updated_at
	           FROM orders WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// ListStalePending returns orders still in PENDING_PAYMENT created
// before olderThan. The sweep polls the processor for these when no
// webhook arrived within the grace window.
func (r *OrderRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error) {
	const q = `SELECT id, user_id, reservation_id, intent_id, status, total_cents, currency, created_at, updated_at
	           FROM orders WHERE status = ? AND created_at <= ? ORDER BY created_at LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, string(model.StatusPendingPayment), olderThan.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]model.Order, error) {
	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var status string
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.ReservationID, &o.IntentID, &status,
			&o.TotalCents, &o.Currency, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		o.Status = model.OrderStatus(status)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
