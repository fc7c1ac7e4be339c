package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrBadTransition = errors.New("illegal order status transition")
)

type Repo struct{ DB *pgxpool.Pool }

const orderWithItemsSQL = `
	SELECT o.order_id, o.user_id, o.total_amount, o.order_date, o.status,
	       oi.item_id, oi.product_id, oi.quantity, oi.price_at_time_of_purchase,
	       COALESCE(p.product_name, '')
	FROM orders o
	LEFT JOIN order_items oi ON oi.order_id = o.order_id
	LEFT JOIN products p ON p.id = oi.product_id`

// GetByID loads one order with its lines. userID > 0 enforces ownership.
func (r *Repo) GetByID(ctx context.Context, orderID, userID int64) (*Order, error) {
	q := orderWithItemsSQL + ` WHERE o.order_id = $1`
	args := []any{orderID}
	if userID > 0 {
		q += ` AND o.user_id = $2`
		args = append(args, userID)
	}
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := groupRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	q := orderWithItemsSQL + `
	WHERE o.user_id = $1
	ORDER BY o.order_date DESC, o.order_id DESC`
	rows, err := r.DB.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return groupRows(rows)
}

// UpdateStatus applies one transition under a row lock so concurrent admin
// actions cannot skip states.
func (r *Repo) UpdateStatus(ctx context.Context, orderID int64, to Status) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE order_id = $1 FOR UPDATE`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !CanTransition(cur, to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, cur, to)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE order_id = $1`, orderID, to); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) Cancel(ctx context.Context, orderID int64) error {
	return r.UpdateStatus(ctx, orderID, StatusCancelled)
}

// groupRows folds the left-joined rows back into orders with item slices,
// preserving row order.
func groupRows(rows pgx.Rows) ([]Order, error) {
	var out []Order
	idx := map[int64]int{}
	for rows.Next() {
		var (
			o         Order
			itemID    *int64
			productID *int64
			qty       *int
			price     *int64
			name      string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalCents, &o.OrderDate, &o.Status,
			&itemID, &productID, &qty, &price, &name); err != nil {
			return nil, err
		}
		i, seen := idx[o.ID]
		if !seen {
			out = append(out, o)
			i = len(out) - 1
			idx[o.ID] = i
		}
		if itemID != nil {
			out[i].Items = append(out[i].Items, Item{
				ItemID:      *itemID,
				OrderID:     out[i].ID,
				ProductID:   *productID,
				ProductName: name,
				Qty:         *qty,
				PriceCents:  *price,
			})
		}
	}
	return out, rows.Err()
}
