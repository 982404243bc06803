package resource

import (
	"context"
	"fmt"

	"goflare.io/paysync/models"
	"goflare.io/paysync/store"
)

type lineItemPayload struct {
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

// LineItem is one order line. Until the order is paid its price follows the
// catalog; afterwards it is pinned to the price the customer paid.
type LineItem struct {
	env         Env
	orderItemID string

	Quantity int64
	Price    *Price
}

// LineItemFromOrderItem builds the line for item. Lines of the same product
// share one Price from catalog, keyed by local product id, so the product and
// price are created remotely once. A nil catalog disables sharing.
func LineItemFromOrderItem(ctx context.Context, env Env, order *models.Order, item *models.OrderItem, catalog map[string]*Price) (*LineItem, error) {
	li := &LineItem{env: env, orderItemID: item.ID, Quantity: item.Quantity}

	if order.Status.Paid() {
		meta, err := env.Store.Meta(ctx, store.KindOrderItem, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load line item meta: %w", err)
		}
		if id := meta[env.key("price_id")]; id != "" {
			li.Price = PinnedPrice(env, id)
			return li, nil
		}
	}

	if price, ok := catalog[item.ProductID]; ok {
		li.Price = price
		return li, nil
	}

	local, err := env.Store.Product(ctx, item.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", item.ProductID, err)
	}
	product, err := ProductFromLocal(ctx, env, local)
	if err != nil {
		return nil, err
	}
	li.Price, err = PriceFromProduct(ctx, env, product, local)
	if err != nil {
		return nil, err
	}
	if catalog != nil {
		catalog[item.ProductID] = li.Price
	}
	return li, nil
}

func (l *LineItem) Kind() string { return "line_item" }

func (l *LineItem) ID() string { return l.orderItemID }

func (l *LineItem) OrderItemID() string { return l.orderItemID }

func (l *LineItem) Amount() int64 {
	return l.Price.UnitAmount * l.Quantity
}

func (l *LineItem) Serialize() any {
	return lineItemPayload{Price: l.Price.ID(), Quantity: l.Quantity}
}

func (l *LineItem) Needs() Action {
	if l.Price.Needs() != ActionNone {
		return ActionDependency
	}
	return ActionNone
}

func (l *LineItem) Can(action Action) bool {
	return action == ActionNone || action == ActionDependency
}

func (l *LineItem) Exec(ctx context.Context, action Action) error {
	if action != ActionDependency {
		return nil
	}
	return resolveDependencies(ctx, l.env, l, []Resource{l.Price})
}
