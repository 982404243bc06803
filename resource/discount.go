package resource

import "context"

type discountPayload struct {
	Coupon string `json:"coupon"`
}

// Discount applies a coupon to a checkout session. It only passes its
// coupon's needs through.
type Discount struct {
	Coupon *Coupon
}

func (d *Discount) Kind() string { return "discount" }

func (d *Discount) ID() string { return "" }

func (d *Discount) Serialize() any {
	return discountPayload{Coupon: d.Coupon.ID()}
}

func (d *Discount) Needs() Action {
	if d.Coupon.Needs() != ActionNone {
		return ActionDependency
	}
	return ActionNone
}

func (d *Discount) Can(action Action) bool {
	return action == ActionNone || action == ActionDependency
}

func (d *Discount) Exec(ctx context.Context, action Action) error {
	if action != ActionDependency {
		return nil
	}
	return resolveDependencies(ctx, d.Coupon.env, d, []Resource{d.Coupon})
}
