package orders

import (
	"encoding/json"
	"time"
)

const (
	EventCheckoutCompleted = "CheckoutCompleted"
	EventStockLow          = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID  int64 `json:"product_id"`
	Qty        int   `json:"qty"`
	PriceCents int64 `json:"price_cents"`
}

type CheckoutCompletedPayload struct {
	OrderID    int64       `json:"order_id"`
	UserID     int64       `json:"user_id"`
	Items      []ItemPrice `json:"items"`
	TotalCents int64       `json:"total_cents"`
}

type StockLowPayload struct {
	ProductID int64 `json:"product_id"`
	Remaining int   `json:"remaining"`
	Threshold int   `json:"threshold"`
}
