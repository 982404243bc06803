package resource

import (
	"context"
	"fmt"
	"net/http"

	"goflare.io/paysync/store"
)

type appliesTo struct {
	Prices []string `json:"prices"`
}

type couponPayload struct {
	Name      string     `json:"name"`
	AmountOff int64      `json:"amount_off"`
	AppliesTo *appliesTo `json:"applies_to,omitempty"`
}

type couponResponse struct {
	couponPayload
	CouponID string `json:"coupon_id"`
}

// Coupon is a fixed amount off, scoped to the prices of one order. Coupons
// cannot be edited remotely, so any change creates a new one.
type Coupon struct {
	env     Env
	orderID string
	prices  []*Price

	CouponID  string
	Name      string
	AmountOff int64

	hash string
}

func NewCoupon(ctx context.Context, env Env, orderID, name string, amountOff int64, prices []*Price) (*Coupon, error) {
	meta, err := env.Store.Meta(ctx, store.KindOrder, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon meta: %w", err)
	}

	return &Coupon{
		env:       env,
		orderID:   orderID,
		prices:    prices,
		CouponID:  meta[env.key("coupon_id")],
		Name:      name,
		AmountOff: amountOff,
		hash:      meta[env.key("coupon_hash")],
	}, nil
}

func (c *Coupon) Kind() string { return "coupon" }

func (c *Coupon) ID() string { return c.CouponID }

func (c *Coupon) Serialize() any {
	payload := couponPayload{Name: c.Name, AmountOff: c.AmountOff}
	if len(c.prices) > 0 {
		ids := make([]string, 0, len(c.prices))
		for _, p := range c.prices {
			ids = append(ids, p.ID())
		}
		payload.AppliesTo = &appliesTo{Prices: ids}
	}
	return payload
}

func (c *Coupon) Needs() Action {
	if c.AmountOff == 0 {
		return ActionNone
	}
	for _, p := range c.prices {
		if p.Needs() != ActionNone {
			return ActionDependency
		}
	}
	if c.CouponID == "" || Hash(c.Serialize()) != c.hash {
		return ActionCreate
	}
	return ActionNone
}

func (c *Coupon) Can(action Action) bool {
	switch action {
	case ActionNone:
		return true
	case ActionDependency:
		return len(c.prices) > 0
	case ActionCreate:
		if c.AmountOff <= 0 {
			return false
		}
		for _, p := range c.prices {
			if p.ID() == "" {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (c *Coupon) Exec(ctx context.Context, action Action) error {
	if !c.Can(action) || action == ActionNone {
		return nil
	}

	switch action {
	case ActionDependency:
		children := make([]Resource, 0, len(c.prices))
		for _, p := range c.prices {
			children = append(children, p)
		}
		return resolveDependencies(ctx, c.env, c, children)
	case ActionCreate:
		c.env.logAction(c, action)
		return c.create(ctx)
	}
	return nil
}

func (c *Coupon) create(ctx context.Context) error {
	var out couponResponse
	if err := c.env.Client.Request(ctx, http.MethodPost, "/v1/coupons", wrap(c.Kind(), c.Serialize()), c.Kind(), &out); err != nil {
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	if out.CouponID == "" {
		return &IntegrityError{Resource: c.Kind(), ID: c.orderID, Message: "remote response is missing coupon_id"}
	}

	c.CouponID = out.CouponID
	c.hash = Hash(c.Serialize())

	err := c.env.Store.UpdateMeta(ctx, store.KindOrder, c.orderID, map[string]string{
		c.env.key("coupon_id"):   c.CouponID,
		c.env.key("coupon_hash"): c.hash,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to save coupon meta: %w", err)
	}
	return nil
}
