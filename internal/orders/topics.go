package orders

import "strconv"

const (
	TopicCheckoutCompleted = "checkout.completed"
	TopicStockLow          = "stock.low"
)

// Partition key = order_id so events for one order stay ordered.
func PartitionKey(orderID int64) []byte {
	return []byte(strconv.FormatInt(orderID, 10))
}
