package resource

import "context"

// inline resources are sent as part of a checkout session and have no remote
// lifecycle of their own.
type inline struct{}

func (inline) ID() string { return "" }

func (inline) Needs() Action { return ActionNone }

func (inline) Can(action Action) bool { return action == ActionNone }

func (inline) Exec(context.Context, Action) error { return nil }

type amountPayload struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

type ShippingOption struct {
	inline
	Label  string
	Amount int64
}

func (s *ShippingOption) Kind() string { return "shipping_option" }

func (s *ShippingOption) Serialize() any {
	return amountPayload{Name: s.Label, Amount: s.Amount}
}

// TaxRate carries the tax already computed for the order as a flat amount.
type TaxRate struct {
	inline
	Label  string
	Amount int64
}

func (t *TaxRate) Kind() string { return "tax_rate" }

func (t *TaxRate) Serialize() any {
	return amountPayload{Name: t.Label, Amount: t.Amount}
}

type Fee struct {
	inline
	Label  string
	Amount int64
}

func (f *Fee) Kind() string { return "fee" }

func (f *Fee) Serialize() any {
	return amountPayload{Name: f.Label, Amount: f.Amount}
}
