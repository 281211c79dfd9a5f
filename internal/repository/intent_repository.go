package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/avelora/checkout/internal/model"
)

// IntentRepo caches the last processor-reported state of each payment
// intent. The cache exists for fast reads only; the processor remains
// the source of truth and rows are overwritten freely with whatever it
// last reported.
type IntentRepo struct {
	db *sql.DB
}

// NewIntentRepo returns an IntentRepo bound to the given database.
func NewIntentRepo(db *sql.DB) *IntentRepo { return &IntentRepo{db: db} }

// Upsert stores the intent row, replacing any previous snapshot of the
// same intent.
func (r *IntentRepo) Upsert(ctx context.Context, in *model.PaymentIntent) error {
	const q = `INSERT INTO payment_intents (id, order_id, amount_cents, currency, status)
	           VALUES (?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE status = VALUES(status)`
	_, err := r.db.ExecContext(ctx, q, in.ID, in.OrderID, in.AmountCents, in.Currency, string(in.Status))
	return err
}

// GetByID returns the cached intent row. Returns ErrNotFound when the
// intent was never seen locally.
func (r *IntentRepo) GetByID(ctx context.Context, intentID string) (*model.PaymentIntent, error) {
	const q = `SELECT id, order_id, amount_cents, currency, status, updated_at FROM payment_intents WHERE id = ?`
	var in model.PaymentIntent
	var status string
	err := r.db.QueryRowContext(ctx, q, intentID).Scan(
		&in.ID, &in.OrderID, &in.AmountCents, &in.Currency, &status, &in.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	in.Status = model.IntentStatus(status)
	return &in, nil
}
