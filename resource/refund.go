package resource

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"

	"goflare.io/paysync/models"
	"goflare.io/paysync/money"
	"goflare.io/paysync/remote"
	"goflare.io/paysync/store"
)

type refundLineItemPayload struct {
	Price          string `json:"price"`
	AmountToRefund int64  `json:"amount_to_refund"`
}

type refundPayload struct {
	Amount    int64                   `json:"amount"`
	LineItems []refundLineItemPayload `json:"line_items,omitempty"`
	Metadata  map[string]string       `json:"metadata,omitempty"`
}

// RefundPayload is the remote representation of a refund.
type RefundPayload struct {
	RefundID          string              `json:"refund_id"`
	CheckoutSessionID string              `json:"checkout_session_id"`
	Amount            int64               `json:"amount"`
	Status            stripe.RefundStatus `json:"status"`
	Metadata          map[string]string   `json:"metadata"`
}

// Refund is either an outbound refund against a completed checkout session,
// or the status of a refund reported back by the platform.
type Refund struct {
	env       Env
	localID   string
	orderID   string
	sessionID string

	RefundID  string
	Amount    int64
	LineItems []refundLineItemPayload
	Metadata  map[string]string
	Status    stripe.RefundStatus
}

// RefundFromLocal builds the outbound refund for a local refund record. Line
// amounts are scaled so they add up to exactly the refund amount.
func RefundFromLocal(ctx context.Context, env Env, session *CheckoutSession, order *models.Order, local *models.Refund) (*Refund, error) {
	meta, err := env.Store.Meta(ctx, store.KindRefund, local.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load refund meta: %w", err)
	}

	r := &Refund{
		env:       env,
		localID:   local.ID,
		orderID:   order.ID,
		sessionID: session.ID(),
		RefundID:  meta[env.key("refund_id")],
		Amount:    env.Money.ToMinorUnits(local.Amount),
		Status:    stripe.RefundStatus(meta[env.key("refund_status")]),
		Metadata: map[string]string{
			"order_id":  order.ID,
			"refund_id": local.ID,
		},
	}
	if local.Reason != "" {
		r.Metadata["reason"] = local.Reason
	}

	prices := make(map[string]string, len(session.LineItems))
	for _, li := range session.LineItems {
		prices[li.OrderItemID()] = li.Price.ID()
	}

	var (
		items   []refundLineItemPayload
		weights []int64
	)
	for _, item := range local.Items {
		amount := env.Money.ToMinorUnits(item.Amount)
		if amount == 0 {
			continue
		}
		price, ok := prices[item.OrderItemID]
		if !ok || price == "" {
			return nil, &IntegrityError{
				Resource: r.Kind(),
				ID:       local.ID,
				Message:  "refunded item has no checkout price",
				Details:  map[string]string{"order_item_id": item.OrderItemID},
			}
		}
		items = append(items, refundLineItemPayload{Price: price})
		weights = append(weights, amount)
	}

	for i, amount := range money.Allocate(r.Amount, weights) {
		if amount == 0 {
			continue
		}
		items[i].AmountToRefund = amount
		r.LineItems = append(r.LineItems, items[i])
	}
	return r, nil
}

// RefundFromRemote wraps a refund reported by the platform.
func RefundFromRemote(env Env, payload RefundPayload) *Refund {
	return &Refund{
		env:       env,
		sessionID: payload.CheckoutSessionID,
		RefundID:  payload.RefundID,
		Amount:    payload.Amount,
		Metadata:  payload.Metadata,
		Status:    payload.Status,
	}
}

func (r *Refund) Kind() string { return "refund" }

func (r *Refund) ID() string { return r.RefundID }

// LocalID is the local refund this refund was created for, if known.
func (r *Refund) LocalID() string {
	if r.localID != "" {
		return r.localID
	}
	return r.Metadata["refund_id"]
}

// Failed reports a terminal status after which no money moves.
func (r *Refund) Failed() bool {
	return r.Status == stripe.RefundStatusFailed || r.Status == stripe.RefundStatusCanceled
}

func (r *Refund) Serialize() any {
	return refundPayload{Amount: r.Amount, LineItems: r.LineItems, Metadata: r.Metadata}
}

func (r *Refund) Needs() Action {
	if r.RefundID == "" {
		return ActionCreate
	}
	return ActionNone
}

func (r *Refund) Can(action Action) bool {
	switch action {
	case ActionNone:
		return true
	case ActionCreate:
		return r.RefundID == "" && r.sessionID != "" && r.localID != "" && r.Amount > 0
	default:
		return false
	}
}

func (r *Refund) Exec(ctx context.Context, action Action) error {
	if action != ActionCreate || !r.Can(action) {
		return nil
	}
	r.env.logAction(r, action)

	ctx = remote.WithIdempotencyKey(ctx, Hash([]any{r.localID, r.env.Mode, r.Serialize()}))

	var out RefundPayload
	path := "/v1/checkout/sessions/" + r.sessionID + "/refund"
	if err := r.env.Client.Request(ctx, http.MethodPost, path, wrap(r.Kind(), r.Serialize()), r.Kind(), &out); err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	if out.RefundID == "" {
		return &IntegrityError{Resource: r.Kind(), ID: r.localID, Message: "remote response is missing refund_id"}
	}

	r.RefundID = out.RefundID
	r.Status = out.Status
	return r.ApplyTo(ctx)
}

func (r *Refund) ApplyTo(ctx context.Context) error {
	err := r.env.Store.UpdateMeta(ctx, store.KindRefund, r.LocalID(), map[string]string{
		r.env.key("refund_id"):     r.RefundID,
		r.env.key("refund_status"): string(r.Status),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to save refund meta: %w", err)
	}
	return nil
}
