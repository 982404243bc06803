package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
)

var testCheckout = CheckoutOptions{
	SuccessURL: "https://shop.test/checkout/complete?order={order_id}",
	CancelURL:  "https://shop.test/cart",
}

// newOrder saves an order for 2 mats and a strap with shipping, tax, a fee
// and a discount: 5000 + 1050 + 500 + 325 + 100 - 200 = 6775.
func (f *fixture) newOrder(t *testing.T) *models.Order {
	t.Helper()
	f.product(t, "10", "Yoga Mat", "25.00")
	f.product(t, "11", "Strap", "10.50")

	order := &models.Order{
		ID:             "100",
		Status:         enum.OrderStatusPending,
		Currency:       "usd",
		Total:          "67.75",
		ShippingTotal:  "5.00",
		ShippingMethod: "Flat rate",
		TaxTotal:       "3.25",
		TaxLabel:       "Sales tax",
		DiscountTotal:  "2.00",
		CouponCode:     "spring",
		Email:          "jo@example.com",
		Items: []models.OrderItem{
			{ID: "1001", ProductID: "10", Name: "Yoga Mat", Quantity: 2, Subtotal: "50.00", Total: "50.00"},
			{ID: "1002", ProductID: "11", Name: "Strap", Quantity: 1, Subtotal: "10.50", Total: "10.50"},
		},
		Fees: []models.OrderFee{{ID: "f1", Name: "Handling", Total: "1.00"}},
	}
	require.NoError(t, f.store.SaveOrder(context.Background(), order))
	return order
}

func TestCheckoutSession_TotalMismatchFailsBeforeAnyRequest(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t)
	order.Total = "99.00"

	_, err := CheckoutSessionFromOrder(context.Background(), f.env, order, testCheckout)

	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "checkout_session", ie.Resource)
	assert.Equal(t, "6775", ie.Details["amount_total"])
	assert.Equal(t, "9900", ie.Details["order_total"])
	assert.Empty(t, f.remote.Requests())
}

func TestCheckoutSession_CreateResolvesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	cs, err := CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)
	assert.Equal(t, int64(6775), cs.AmountTotal)
	assert.Equal(t, ActionDependency, cs.Needs())

	require.NoError(t, Reconcile(ctx, cs))

	require.NotEmpty(t, cs.ID())
	assert.Equal(t, ActionNone, cs.Needs())
	assert.Equal(t, "https://checkout.test/pay/"+cs.ID(), cs.RedirectURL)
	assert.Equal(t, 2, f.remote.Count(http.MethodPost, "/v1/products"))
	assert.Equal(t, 2, f.remote.Count(http.MethodPost, "/v1/prices"))
	assert.Equal(t, 1, f.remote.Count(http.MethodPost, "/v1/coupons"))
	assert.Equal(t, 1, f.remote.Count(http.MethodPost, "/v1/checkout/sessions"))

	obj, ok := f.remote.Object("/v1/checkout/sessions/" + cs.ID())
	require.True(t, ok)
	assert.Equal(t, "100", obj["client_reference_id"])
	assert.Equal(t, "https://shop.test/checkout/complete?order=100", obj["success_url"])
	lines := obj["line_items"].([]any)
	require.Len(t, lines, 2)
	assert.Equal(t, cs.LineItems[0].Price.ID(), lines[0].(map[string]any)["price"])
	assert.EqualValues(t, 2, lines[0].(map[string]any)["quantity"])
	discounts := obj["discounts"].([]any)
	assert.Equal(t, cs.Discounts[0].Coupon.ID(), discounts[0].(map[string]any)["coupon"])

	meta := f.meta(t, "order", "100")
	assert.Equal(t, cs.ID(), meta["_paysync_test_checkout_session_id"])
	assert.Equal(t, "6775", meta["_paysync_test_checkout_session_amount_total"])
	assert.Equal(t, "open", meta["_paysync_test_checkout_session_status"])
	assert.Equal(t, cs.LineItems[1].Price.ID(), f.meta(t, "order_item", "1002")["_paysync_test_price_id"])

	// A second pass, in memory or rebuilt from the store, sends nothing.
	writes := f.remote.Writes()
	require.NoError(t, Reconcile(ctx, cs))
	rebuilt, err := CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, rebuilt.Needs())
	require.NoError(t, Reconcile(ctx, rebuilt))
	assert.Equal(t, writes, f.remote.Writes())
}

func TestCheckoutSession_ChangedTotalRecreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	cs, err := CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)
	require.NoError(t, Reconcile(ctx, cs))
	first := cs.ID()

	order.Items[1].Quantity = 2
	order.Total = "78.25"
	cs, err = CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, cs.Needs())

	require.NoError(t, Reconcile(ctx, cs))
	assert.NotEqual(t, first, cs.ID())
	assert.Equal(t, ActionNone, cs.Needs())
}

func TestCheckoutSession_DependencyOutranksCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	require.NoError(t, f.store.UpdateMeta(ctx, "order", "100", map[string]string{
		"_paysync_test_checkout_session_id":     "fcs_done",
		"_paysync_test_checkout_session_status": "complete",
	}, nil))

	cs, err := CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)
	require.True(t, cs.Complete())
	assert.Equal(t, ActionDependency, cs.LineItems[0].Needs())
	assert.Equal(t, ActionDependency, cs.Needs())
	assert.False(t, cs.Can(ActionCreate))

	require.NoError(t, Reconcile(ctx, cs))
	assert.Equal(t, ActionNone, cs.Needs())
	assert.Zero(t, f.remote.Count(http.MethodPost, "/v1/checkout/sessions"))
}

func TestCheckoutSession_PaidOrderPinsPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)

	cs, err := CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)
	require.NoError(t, Reconcile(ctx, cs))
	paidPrice := cs.LineItems[0].Price.ID()

	// The catalog moves on after payment.
	mat, err := f.store.Product(ctx, "10")
	require.NoError(t, err)
	mat.Price = "30.00"
	require.NoError(t, f.store.SaveProduct(ctx, mat))
	_, current := f.load(t, mat)
	require.NoError(t, Reconcile(ctx, current))
	require.NotEqual(t, paidPrice, current.ID())

	order.Status = enum.OrderStatusProcessing
	paid, err := CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)

	assert.True(t, paid.LineItems[0].Price.Pinned())
	assert.Equal(t, paidPrice, paid.LineItems[0].Price.ID())
	assert.Equal(t, int64(6775), paid.AmountTotal)
	assert.Equal(t, ActionNone, paid.Needs())
}

func TestCheckoutSession_ExtractPinsRemotePrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t)
	order.Status = enum.OrderStatusProcessing

	cs, err := CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)

	var payload CheckoutSessionPayload
	require.NoError(t, json.Unmarshal([]byte(`{
		"checkout_session_id": "fcs_9",
		"client_reference_id": "100",
		"redirect_url": "https://checkout.test/pay/fcs_9",
		"amount_total": 6775,
		"status": "complete",
		"test_mode": true,
		"line_items": [
			{"price": "fprice_a", "quantity": 2},
			{"price": {"price_id": "fprice_b", "unit_amount": 1050}, "quantity": 1}
		]
	}`), &payload))

	require.NoError(t, cs.Extract(payload))
	require.NoError(t, cs.ApplyTo(ctx))

	assert.True(t, cs.Complete())
	assert.Equal(t, "fprice_a", f.meta(t, "order_item", "1001")["_paysync_test_price_id"])
	assert.Equal(t, "fprice_b", f.meta(t, "order_item", "1002")["_paysync_test_price_id"])

	meta := f.meta(t, "order", "100")
	assert.Equal(t, "fcs_9", meta["_paysync_test_checkout_session_id"])
	assert.Equal(t, "complete", meta["_paysync_test_checkout_session_status"])
	assert.Equal(t, "true", meta["_paysync_test_checkout_session_test_mode"])
}

func TestCheckoutSession_ExtractRejectsForeignSession(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t)

	cs, err := CheckoutSessionFromOrder(context.Background(), f.env, order, testCheckout)
	require.NoError(t, err)

	err = cs.Extract(CheckoutSessionPayload{CheckoutSessionID: "fcs_x", ClientReferenceID: "999"})
	assert.True(t, IsIntegrityError(err))
}

func TestCheckoutSession_LinesOfOneProductSharePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "10", "Yoga Mat", "25.00")

	order := &models.Order{
		ID:            "200",
		Status:        enum.OrderStatusPending,
		Currency:      "usd",
		Total:         "73.00",
		DiscountTotal: "2.00",
		Items: []models.OrderItem{
			{ID: "2001", ProductID: "10", Name: "Yoga Mat", Quantity: 2, Subtotal: "50.00", Total: "50.00"},
			{ID: "2002", ProductID: "10", Name: "Yoga Mat", Quantity: 1, Subtotal: "25.00", Total: "25.00"},
		},
	}
	require.NoError(t, f.store.SaveOrder(ctx, order))

	cs, err := CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)
	require.Same(t, cs.LineItems[0].Price, cs.LineItems[1].Price)

	require.NoError(t, Reconcile(ctx, cs))

	assert.Equal(t, 1, f.remote.Count(http.MethodPost, "/v1/products"))
	assert.Equal(t, 1, f.remote.Count(http.MethodPost, "/v1/prices"))

	priceID := cs.LineItems[0].Price.ID()
	meta := f.meta(t, "product", "10")
	assert.Equal(t, priceID, meta["_paysync_test_price_id"])
	assert.Equal(t, cs.LineItems[0].Price.product.ID(), meta["_paysync_test_product_id"])
	assert.Equal(t, priceID, f.meta(t, "order_item", "2001")["_paysync_test_price_id"])
	assert.Equal(t, priceID, f.meta(t, "order_item", "2002")["_paysync_test_price_id"])

	coupon, ok := f.remote.Object("/v1/coupons/" + cs.Discounts[0].Coupon.ID())
	require.True(t, ok)
	assert.Equal(t, []any{priceID}, coupon["applies_to"].(map[string]any)["prices"])

	// Once paid, both lines pin the same price and the coupon is unchanged.
	writes := f.remote.Writes()
	order.Status = enum.OrderStatusProcessing
	paid, err := CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, paid.Needs())
	require.NoError(t, Reconcile(ctx, paid))
	assert.Equal(t, writes, f.remote.Writes())
}
