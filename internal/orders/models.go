package orders

import "time"

type Order struct {
	ID         int64     `json:"order_id"`
	UserID     int64     `json:"user_id"`
	TotalCents int64     `json:"total_amount"`
	OrderDate  time.Time `json:"order_date"`
	Status     Status    `json:"status"`
	Items      []Item    `json:"items,omitempty"`
}

// Item is the audit record of one purchased line. PriceCents is frozen at
// checkout and never tracks later product price changes.
type Item struct {
	ItemID      int64  `json:"item_id,omitempty"`
	OrderID     int64  `json:"order_id,omitempty"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Qty         int    `json:"quantity"`
	PriceCents  int64  `json:"price_at_time_of_purchase"`
}
