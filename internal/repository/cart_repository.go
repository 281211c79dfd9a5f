package repository

import (
	"context"
	"database/sql"

	"github.com/avelora/checkout/internal/model"
)

// CartRepo provides data access to the cart_items table. The checkout
// path only reads lines and clears the cart after an order is created;
// adding and removing lines is handled by the storefront API.
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a CartRepo bound to the given database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

// LinesByUser returns the user's cart lines ordered by product id.
// An empty cart yields an empty slice, not an error; the snapshotter
// decides whether that is acceptable.
func (r *CartRepo) LinesByUser(ctx context.Context, userID uint64) ([]model.CartLine, error) {
	const q = `SELECT user_id, product_id, quantity, created_at FROM cart_items WHERE user_id = ? ORDER BY product_id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []model.CartLine
	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(&l.UserID, &l.ProductID, &l.Quantity, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Clear removes all lines from the user's cart. Called after the order
// row is durably created; a failure here is logged, not rolled back.
func (r *CartRepo) Clear(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID)
	return err
}
