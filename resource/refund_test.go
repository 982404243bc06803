package resource

import (
	"context"
	"testing"

	"github.com/stripe/stripe-go/v79"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
)

func (f *fixture) paidSession(t *testing.T) (*models.Order, *CheckoutSession) {
	t.Helper()
	ctx := context.Background()
	order := f.newOrder(t)

	cs, err := CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)
	require.NoError(t, Reconcile(ctx, cs))

	order.Status = enum.OrderStatusProcessing
	require.NoError(t, f.store.SaveOrder(ctx, order))
	cs, err = CheckoutSessionFromOrder(ctx, f.env, order, testCheckout)
	require.NoError(t, err)
	return order, cs
}

func TestRefund_LineAmountsAddUpToRefund(t *testing.T) {
	f := newFixture(t)
	order, cs := f.paidSession(t)

	tests := []struct {
		name   string
		amount string
		items  []models.RefundItem
		want   []int64
	}{
		{
			name:   "scaled down",
			amount: "20.00",
			items:  []models.RefundItem{{OrderItemID: "1001", Amount: "40.00"}, {OrderItemID: "1002", Amount: "10.00"}},
			want:   []int64{1600, 400},
		},
		{
			name:   "topped up with penny correction",
			amount: "10.00",
			items:  []models.RefundItem{{OrderItemID: "1001", Amount: "3.00"}, {OrderItemID: "1002", Amount: "3.00"}},
			want:   []int64{500, 500},
		},
		{
			name:   "uneven split",
			amount: "10.01",
			items:  []models.RefundItem{{OrderItemID: "1001", Amount: "1.00"}, {OrderItemID: "1002", Amount: "2.00"}},
			want:   []int64{334, 667},
		},
		{
			name:   "zero lines are dropped",
			amount: "7.00",
			items:  []models.RefundItem{{OrderItemID: "1001", Amount: "0"}, {OrderItemID: "1002", Amount: "7.00"}},
			want:   []int64{700},
		},
		{
			name:   "order level only",
			amount: "7.00",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &models.Refund{ID: "r-" + tt.name, OrderID: order.ID, Amount: tt.amount, Items: tt.items}
			r, err := RefundFromLocal(context.Background(), f.env, cs, order, local)
			require.NoError(t, err)

			var got []int64
			var sum int64
			for _, li := range r.LineItems {
				assert.NotEmpty(t, li.Price)
				assert.GreaterOrEqual(t, li.AmountToRefund, int64(0))
				got = append(got, li.AmountToRefund)
				sum += li.AmountToRefund
			}
			assert.Equal(t, tt.want, got)
			if len(got) > 0 {
				assert.Equal(t, r.Amount, sum)
			}
		})
	}
}

func TestRefund_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, cs := f.paidSession(t)

	local := &models.Refund{ID: "r1", OrderID: order.ID, Amount: "15.00", Reason: "damaged",
		Items: []models.RefundItem{{OrderItemID: "1002", Quantity: 1, Amount: "10.50"}}}
	require.NoError(t, f.store.SaveRefund(ctx, local))

	r, err := RefundFromLocal(ctx, f.env, cs, order, local)
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, r.Needs())

	require.NoError(t, Reconcile(ctx, r))
	require.NotEmpty(t, r.ID())
	assert.Equal(t, stripe.RefundStatusPending, r.Status)
	assert.Equal(t, ActionNone, r.Needs())

	reqs := f.remote.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, "/v1/checkout/sessions/"+cs.ID()+"/refund", last.Path)
	assert.NotEmpty(t, last.Header.Get("Idempotency-Key"))
	body := last.Body["refund"].(map[string]any)
	assert.EqualValues(t, 1500, body["amount"])
	assert.Equal(t, map[string]any{"order_id": "100", "refund_id": "r1", "reason": "damaged"}, body["metadata"])

	meta := f.meta(t, "refund", "r1")
	assert.Equal(t, r.ID(), meta["_paysync_test_refund_id"])
	assert.Equal(t, "pending", meta["_paysync_test_refund_status"])

	again, err := RefundFromLocal(ctx, f.env, cs, order, local)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, again.Needs())
}

func TestRefund_UnknownItemIsIntegrityError(t *testing.T) {
	f := newFixture(t)
	order, cs := f.paidSession(t)

	local := &models.Refund{ID: "r1", OrderID: order.ID, Amount: "1.00",
		Items: []models.RefundItem{{OrderItemID: "nope", Amount: "1.00"}}}
	_, err := RefundFromLocal(context.Background(), f.env, cs, order, local)
	assert.True(t, IsIntegrityError(err))
}

func TestRefundFromRemote(t *testing.T) {
	f := newFixture(t)

	for status, failed := range map[stripe.RefundStatus]bool{
		stripe.RefundStatusPending:        false,
		stripe.RefundStatusRequiresAction: false,
		stripe.RefundStatusSucceeded:      false,
		stripe.RefundStatusFailed:         true,
		stripe.RefundStatusCanceled:       true,
	} {
		r := RefundFromRemote(f.env, RefundPayload{RefundID: "fref_1", Status: status, Metadata: map[string]string{"refund_id": "r1"}})
		assert.Equal(t, failed, r.Failed(), status)
		assert.Equal(t, "r1", r.LocalID())
		assert.Equal(t, ActionNone, r.Needs())
	}
}
