package redisx

import "time"

const (
	// Session cart mirror: cart:sess:{session_id} -> hash {product_id: qty}
	KeyCartSession = "cart:sess:%s"

	// Catalog read cache: product:{id} -> product JSON
	KeyProduct = "product:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Low-stock alert sent marker: stocklow:{product_id}
	KeyLowStockSent = "stocklow:%d"
)

var (
	TTLProductCache = 1 * time.Minute
	TTLDedup        = 48 * time.Hour
	TTLLowStockSent = 6 * time.Hour
)
