package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ProductRepo provides read access to the products table. Checkout only
// ever reads price and active flag at freeze time; catalog management is
// another service's job.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo returns a ProductRepo bound to the given database.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// GetActivePrice returns the current unit price for an active product.
// A missing or deactivated product yields ErrProductUnavailable, which
// rejects the whole freeze.
func (r *ProductRepo) GetActivePrice(ctx context.Context, productID string) (int64, error) {
	const q = `SELECT price_cents, is_active FROM products WHERE id = ?`
	var price int64
	var active bool
	err := r.db.QueryRowContext(ctx, q, productID).Scan(&price, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductUnavailable
	}
	if err != nil {
		return 0, err
	}
	if !active {
		return 0, ErrProductUnavailable
	}
	return price, nil
}
