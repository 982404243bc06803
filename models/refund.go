package models

import (
	"time"

	"github.com/stripe/stripe-go/v79"
)

// Refund is a local refund record against an order.
type Refund struct {
	ID        string              `json:"id"`
	OrderID   string              `json:"order_id"`
	Amount    string              `json:"amount"`
	Reason    string              `json:"reason,omitempty"`
	Items     []RefundItem        `json:"items,omitempty"`
	Status    stripe.RefundStatus `json:"status,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

type RefundItem struct {
	OrderItemID string `json:"order_item_id"`
	Quantity    int64  `json:"quantity"`
	Amount      string `json:"amount"`
}
