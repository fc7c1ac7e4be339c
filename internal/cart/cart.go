package cart

import "fmt"

// Line is one product+quantity entry in a shopper's cart. Prices are not
// stored on lines; checkout reads them live under lock.
type Line struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"quantity"`
}

// Identity scopes a cart. Anonymous shoppers (UserID == 0) only have the
// redis session copy; authenticated ones also get durable cart_items rows.
type Identity struct {
	UserID    int64
	SessionID string
}

func (id Identity) Authenticated() bool { return id.UserID > 0 }

// InsufficientStockError is the advisory rejection at cart-mutation time.
// It is best-effort only; the checkout validator has the final say.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
