package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prasidya/minimart/internal/cart"
	"github.com/prasidya/minimart/internal/orders"
)

const pgLockNotAvailable = "55P03"

// Repo runs the whole checkout as one transaction: lock and validate every
// product row, decrement stock with a fail-closed guard, write the order and
// its lines with prices frozen at validation time, commit. Any failure rolls
// the whole thing back.
type Repo struct {
	DB       *pgxpool.Pool
	LockWait time.Duration // SET LOCAL lock_timeout per checkout tx
}

type lockedLine struct {
	productID  int64
	qty        int
	name       string
	priceCents int64
}

func (r *Repo) ValidateAndCommit(ctx context.Context, userID int64, lines []cart.Line) (*orders.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptySelection
	}
	// Deterministic lock order across transactions: two checkouts sharing
	// products always lock them in the same sequence.
	sorted := make([]cart.Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, &PersistenceError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if r.LockWait > 0 {
		// SET LOCAL takes no bind parameters; the value is a trusted duration.
		q := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.LockWait.Milliseconds())
		if _, err := tx.Exec(ctx, q); err != nil {
			return nil, &PersistenceError{Op: "lock_timeout", Err: err}
		}
	}

	locked, err := r.validate(ctx, tx, sorted)
	if err != nil {
		return nil, err
	}
	order, err := r.commit(ctx, tx, userID, locked)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &PersistenceError{Op: "commit", Err: err}
	}
	return order, nil
}

// validate locks each product row and checks availability, failing fast on
// the first missing or short product. Locks are held until commit/rollback.
func (r *Repo) validate(ctx context.Context, tx pgx.Tx, lines []cart.Line) ([]lockedLine, error) {
	out := make([]lockedLine, 0, len(lines))
	for _, l := range lines {
		var ll lockedLine
		err := tx.QueryRow(ctx, `
			SELECT id, product_name, quantity, price
			FROM products WHERE id = $1 FOR UPDATE`, l.ProductID).
			Scan(&ll.productID, &ll.name, &ll.qty, &ll.priceCents)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ProductNotFoundError{ProductID: l.ProductID}
		}
		if err != nil {
			return nil, r.mapErr("validate", err)
		}
		available := ll.qty
		if available < l.Qty {
			return nil, &OutOfStockError{ProductID: l.ProductID, Requested: l.Qty, Available: available}
		}
		ll.qty = l.Qty
		out = append(out, ll)
	}
	return out, nil
}

// commit decrements stock and writes orders + order_items. The decrement is
// guarded by quantity >= qty: even with the rows locked it refuses to go
// negative, and a zero-row update aborts everything.
func (r *Repo) commit(ctx context.Context, tx pgx.Tx, userID int64, locked []lockedLine) (*orders.Order, error) {
	var total int64
	for _, ll := range locked {
		ct, err := tx.Exec(ctx, `
			UPDATE products SET quantity = quantity - $2, updated_at = now()
			WHERE id = $1 AND quantity >= $2`, ll.productID, ll.qty)
		if err != nil {
			return nil, r.mapErr("decrement", err)
		}
		if ct.RowsAffected() != 1 {
			return nil, ErrStockRaceLost
		}
		total += int64(ll.qty) * ll.priceCents
	}

	order := &orders.Order{UserID: userID, TotalCents: total, Status: orders.StatusCompleted}
	err := tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, total_amount, order_date, status)
		VALUES ($1, $2, now(), $3)
		RETURNING order_id, order_date`, userID, total, orders.StatusCompleted).
		Scan(&order.ID, &order.OrderDate)
	if err != nil {
		return nil, r.mapErr("insert order", err)
	}

	for _, ll := range locked {
		item := orders.Item{
			OrderID:     order.ID,
			ProductID:   ll.productID,
			ProductName: ll.name,
			Qty:         ll.qty,
			PriceCents:  ll.priceCents, // frozen at validation time
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price_at_time_of_purchase)
			VALUES ($1, $2, $3, $4)
			RETURNING item_id`, order.ID, ll.productID, ll.qty, ll.priceCents).
			Scan(&item.ItemID)
		if err != nil {
			return nil, r.mapErr("insert order item", err)
		}
		order.Items = append(order.Items, item)
	}
	return order, nil
}

func (r *Repo) mapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return &TimeoutError{Wait: r.LockWait}
	}
	return &PersistenceError{Op: op, Err: err}
}
