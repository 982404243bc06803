package enum

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusOnHold     OrderStatus = "on-hold"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusFailed     OrderStatus = "failed"
)

// Paid reports whether the order's payment has been captured.
func (s OrderStatus) Paid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusCompleted, OrderStatusRefunded:
		return true
	}
	return false
}
