package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avelora/checkout/internal/model"
)

// LedgerStore opens serialized units of work against the stock tables.
// The stock ledger service owns all mutation logic; the store only
// provides row access under the locking discipline the ledger needs.
type LedgerStore interface {
	Begin(ctx context.Context) (LedgerTx, error)
}

// LedgerTx is one transaction over stock_entries, reservations and
// reservation_items. StockForUpdate takes a row lock that is held until
// Commit or Rollback, which is what serializes concurrent reserve,
// release and commit calls touching the same product.
type LedgerTx interface {
	StockForUpdate(ctx context.Context, productID string) (*model.StockEntry, error)
	UpdateStock(ctx context.Context, entry *model.StockEntry) error
	InsertReservation(ctx context.Context, res *model.Reservation) error
	ReservationForUpdate(ctx context.Context, reservationID string) (*model.Reservation, error)
	DeleteReservation(ctx context.Context, reservationID string) error
	Commit() error
	Rollback() error
}

// StockRepo provides data access to stock_entries and reservations.
// Mutations happen exclusively through LedgerTx; the plain methods are
// read-only and safe outside a transaction.
type StockRepo struct {
	db *sql.DB
}

// NewStockRepo returns a StockRepo bound to the provided database.
func NewStockRepo(db *sql.DB) *StockRepo { return &StockRepo{db: db} }

// Begin starts a new ledger transaction.
func (r *StockRepo) Begin(ctx context.Context) (LedgerTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &stockTx{tx: tx}, nil
}

// ExpiredReservations returns up to limit reservation IDs whose deadline
// passed at or before cutoff. The sweep resolves each one individually,
// so this read takes no locks.
func (r *StockRepo) ExpiredReservations(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	const q = `SELECT id FROM reservations WHERE expires_at <= ? ORDER BY expires_at LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// stockTx implements LedgerTx over a *sql.Tx.
type stockTx struct {
	tx *sql.Tx
}

func (t *stockTx) StockForUpdate(ctx context.Context, productID string) (*model.StockEntry, error) {
	const q = `SELECT product_id, available, reserved, updated_at FROM stock_entries WHERE product_id = ? FOR UPDATE`
	var e model.StockEntry
	err := t.tx.QueryRowContext(ctx, q, productID).Scan(&e.ProductID, &e.Available, &e.Reserved, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *stockTx) UpdateStock(ctx context.Context, entry *model.StockEntry) error {
	const q = `UPDATE stock_entries SET available = ?, reserved = ? WHERE product_id = ?`
	_, err := t.tx.ExecContext(ctx, q, entry.Available, entry.Reserved, entry.ProductID)
	return err
}

func (t *stockTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (id, expires_at) VALUES (?, ?)`
	if _, err := t.tx.ExecContext(ctx, q, res.ID, res.ExpiresAt.UTC()); err != nil {
		return err
	}
	if len(res.Items) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_items (reservation_id, product_id, quantity) VALUES `
	args := make([]interface{}, 0, len(res.Items)*3)
	for i, it := range res.Items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, res.ID, it.ProductID, it.Quantity)
	}
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

// ReservationForUpdate locks the reservation row and loads its items.
// Returns ErrNotFound when the reservation was already released or
// committed; release and commit rely on that to stay idempotent.
func (t *stockTx) ReservationForUpdate(ctx context.Context, reservationID string) (*model.Reservation, error) {
	const q = `SELECT id, expires_at, created_at FROM reservations WHERE id = ? FOR UPDATE`
	var res model.Reservation
	err := t.tx.QueryRowContext(ctx, q, reservationID).Scan(&res.ID, &res.ExpiresAt, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	const itemQ = `SELECT reservation_id, product_id, quantity FROM reservation_items WHERE reservation_id = ? ORDER BY product_id`
	rows, err := t.tx.QueryContext(ctx, itemQ, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it model.ReservationItem
		if err := rows.Scan(&it.ReservationID, &it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		res.Items = append(res.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &res, nil
}

func (t *stockTx) DeleteReservation(ctx context.Context, reservationID string) error {
	// reservation_items rows go with it via ON DELETE CASCADE
	_, err := t.tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, reservationID)
	return err
}

func (t *stockTx) Commit() error   { return t.tx.Commit() }
func (t *stockTx) Rollback() error { return t.tx.Rollback() }
