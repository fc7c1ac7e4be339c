package cart

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DurableStore is the per-user cart_items mirror for authenticated shoppers.
type DurableStore interface {
	Upsert(ctx context.Context, userID, productID int64, qty int) error
	Delete(ctx context.Context, userID, productID int64) error
	DeleteMany(ctx context.Context, userID int64, productIDs []int64) error
	Clear(ctx context.Context, userID int64) error
	List(ctx context.Context, userID int64) ([]Line, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ DurableStore = (*Repo)(nil)

// Upsert sets the absolute quantity for (user, product).
func (r *Repo) Upsert(ctx context.Context, userID, productID int64, qty int) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		userID, productID, qty)
	return err
}

func (r *Repo) Delete(ctx context.Context, userID, productID int64) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	return err
}

func (r *Repo) DeleteMany(ctx context.Context, userID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)`,
		userID, productIDs)
	return err
}

func (r *Repo) Clear(ctx context.Context, userID int64) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

func (r *Repo) List(ctx context.Context, userID int64) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, quantity FROM cart_items
		WHERE user_id = $1 ORDER BY product_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Qty); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
