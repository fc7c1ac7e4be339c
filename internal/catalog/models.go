package catalog

import "time"

type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"product_name"`
	Stock      int       `json:"quantity"`
	PriceCents int64     `json:"price_cents"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
