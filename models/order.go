package models

import (
	"time"

	"github.com/stripe/stripe-go/v79"

	"goflare.io/paysync/models/enum"
)

// Order is a local purchase. Amounts are kept as the store formats them and
// are normalized with money.Format when they cross into the remote model.
type Order struct {
	ID             string           `json:"id"`
	Status         enum.OrderStatus `json:"status"`
	Currency       stripe.Currency  `json:"currency"`
	Total          string           `json:"total"`
	ShippingTotal  string           `json:"shipping_total,omitempty"`
	ShippingMethod string           `json:"shipping_method,omitempty"`
	TaxTotal       string           `json:"tax_total,omitempty"`
	TaxLabel       string           `json:"tax_label,omitempty"`
	DiscountTotal  string           `json:"discount_total,omitempty"`
	CouponCode     string           `json:"coupon_code,omitempty"`
	Email          string           `json:"email,omitempty"`
	FirstName      string           `json:"first_name,omitempty"`
	LastName       string           `json:"last_name,omitempty"`
	Items          []OrderItem      `json:"items"`
	Fees           []OrderFee       `json:"fees,omitempty"`
	TransactionID  string           `json:"transaction_id,omitempty"`
	Notes          []string         `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type OrderItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	Subtotal  string `json:"subtotal"`
	Total     string `json:"total"`
}

type OrderFee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Total string `json:"total"`
}

// Item returns the line with the given id.
func (o *Order) Item(id string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], true
		}
	}
	return nil, false
}
