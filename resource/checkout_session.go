package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"goflare.io/paysync/models"
	"goflare.io/paysync/remote"
	"goflare.io/paysync/store"
)

type customerDefaults struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type checkoutSessionPayload struct {
	ClientReferenceID string                     `json:"client_reference_id"`
	Mode              stripe.CheckoutSessionMode `json:"mode"`
	SuccessURL        string                     `json:"success_url"`
	CancelURL         string                     `json:"cancel_url,omitempty"`
	Defaults          *customerDefaults          `json:"defaults,omitempty"`
	LineItems         []any                      `json:"line_items"`
	ShippingOptions   []any                      `json:"shipping_options,omitempty"`
	TaxRate           any                        `json:"tax_rate,omitempty"`
	Fees              []any                      `json:"fees,omitempty"`
	Discounts         []any                      `json:"discounts,omitempty"`
}

type remoteLineItem struct {
	Price    json.RawMessage `json:"price"`
	Quantity int64           `json:"quantity"`
}

// CheckoutSessionPayload is the remote representation of a checkout session,
// as returned by the API and embedded in completion events.
type CheckoutSessionPayload struct {
	CheckoutSessionID string                       `json:"checkout_session_id"`
	ClientReferenceID string                       `json:"client_reference_id"`
	RedirectURL       string                       `json:"redirect_url"`
	AmountTotal       int64                        `json:"amount_total"`
	Status            stripe.CheckoutSessionStatus `json:"status"`
	Mode              stripe.CheckoutSessionMode   `json:"mode"`
	TestMode          bool                         `json:"test_mode"`
	LineItems         []remoteLineItem             `json:"line_items"`
}

type CheckoutOptions struct {
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is one local order's purchase attempt. Open sessions cannot
// be edited remotely, so any change to the total or content creates a new one.
type CheckoutSession struct {
	env     Env
	orderID string
	paid    bool

	SessionID       string
	SuccessURL      string
	CancelURL       string
	Defaults        *customerDefaults
	LineItems       []*LineItem
	ShippingOptions []*ShippingOption
	TaxRate         *TaxRate
	Fees            []*Fee
	Discounts       []*Discount
	AmountTotal     int64
	Mode            stripe.CheckoutSessionMode
	Status          stripe.CheckoutSessionStatus
	TestMode        bool
	RedirectURL     string

	remoteAmount int64
	syncedAmount int64
	hash         string
}

// CheckoutSessionFromOrder builds the session for order. For an unpaid order
// the computed total must equal the order total; otherwise an IntegrityError
// is returned before anything is sent.
func CheckoutSessionFromOrder(ctx context.Context, env Env, order *models.Order, opts CheckoutOptions) (*CheckoutSession, error) {
	meta, err := env.Store.Meta(ctx, store.KindOrder, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout session meta: %w", err)
	}

	cs := &CheckoutSession{
		env:         env,
		orderID:     order.ID,
		paid:        order.Status.Paid(),
		SessionID:   meta[env.key("checkout_session_id")],
		SuccessURL:  ExpandURL(opts.SuccessURL, order.ID),
		CancelURL:   ExpandURL(opts.CancelURL, order.ID),
		Mode:        stripe.CheckoutSessionModePayment,
		Status:      stripe.CheckoutSessionStatus(meta[env.key("checkout_session_status")]),
		TestMode:    env.Mode.TestMode(),
		RedirectURL: meta[env.key("checkout_session_redirect_url")],
		hash:        meta[env.key("checkout_session_hash")],
	}
	cs.syncedAmount, _ = strconv.ParseInt(meta[env.key("checkout_session_amount_total")], 10, 64)
	cs.remoteAmount = cs.syncedAmount

	if order.Email != "" || order.FirstName != "" || order.LastName != "" {
		cs.Defaults = &customerDefaults{Email: order.Email, FirstName: order.FirstName, LastName: order.LastName}
	}

	catalog := make(map[string]*Price, len(order.Items))
	prices := make([]*Price, 0, len(order.Items))
	for i := range order.Items {
		li, err := LineItemFromOrderItem(ctx, env, order, &order.Items[i], catalog)
		if err != nil {
			return nil, err
		}
		cs.LineItems = append(cs.LineItems, li)
		if !slices.ContainsFunc(prices, li.Price.same) {
			prices = append(prices, li.Price)
		}
	}

	if amount := env.Money.ToMinorUnits(order.ShippingTotal); amount > 0 {
		cs.ShippingOptions = append(cs.ShippingOptions, &ShippingOption{Label: order.ShippingMethod, Amount: amount})
	}
	if amount := env.Money.ToMinorUnits(order.TaxTotal); amount > 0 {
		cs.TaxRate = &TaxRate{Label: order.TaxLabel, Amount: amount}
	}
	for _, fee := range order.Fees {
		if amount := env.Money.ToMinorUnits(fee.Total); amount > 0 {
			cs.Fees = append(cs.Fees, &Fee{Label: fee.Name, Amount: amount})
		}
	}
	if amount := env.Money.ToMinorUnits(order.DiscountTotal); amount > 0 {
		name := order.CouponCode
		if name == "" {
			name = "Order " + order.ID
		}
		coupon, err := NewCoupon(ctx, env, order.ID, name, amount, prices)
		if err != nil {
			return nil, err
		}
		cs.Discounts = append(cs.Discounts, &Discount{Coupon: coupon})
	}

	cs.AmountTotal = cs.computeTotal()

	if cs.paid {
		// Pinned prices carry no amount; the total paid is what was recorded.
		if cs.syncedAmount > 0 {
			cs.AmountTotal = cs.syncedAmount
		}
		return cs, nil
	}

	if expected := env.Money.ToMinorUnits(order.Total); cs.AmountTotal != expected {
		err := &IntegrityError{
			Resource: cs.Kind(),
			ID:       order.ID,
			Message:  "amount total does not match order total",
			Details: map[string]string{
				"amount_total": strconv.FormatInt(cs.AmountTotal, 10),
				"order_total":  strconv.FormatInt(expected, 10),
			},
		}
		env.Logger.Error("checkout session integrity check failed",
			zap.String("order_id", order.ID),
			zap.Int64("amount_total", cs.AmountTotal),
			zap.Int64("order_total", expected))
		return nil, err
	}
	return cs, nil
}

// ExpandURL substitutes orderID for {order_id} in template.
func ExpandURL(template, orderID string) string {
	return strings.ReplaceAll(template, "{order_id}", orderID)
}

func (cs *CheckoutSession) computeTotal() int64 {
	var total int64
	for _, li := range cs.LineItems {
		total += li.Amount()
	}
	for _, s := range cs.ShippingOptions {
		total += s.Amount
	}
	if cs.TaxRate != nil {
		total += cs.TaxRate.Amount
	}
	for _, f := range cs.Fees {
		total += f.Amount
	}
	for _, d := range cs.Discounts {
		total -= d.Coupon.AmountOff
	}
	if total < 0 {
		return 0
	}
	return total
}

func (cs *CheckoutSession) Kind() string { return "checkout_session" }

func (cs *CheckoutSession) ID() string { return cs.SessionID }

func (cs *CheckoutSession) OrderID() string { return cs.orderID }

func (cs *CheckoutSession) Complete() bool {
	return cs.Status == stripe.CheckoutSessionStatusComplete
}

func (cs *CheckoutSession) children() []Resource {
	children := make([]Resource, 0, len(cs.LineItems)+len(cs.ShippingOptions)+len(cs.Fees)+len(cs.Discounts)+1)
	for _, li := range cs.LineItems {
		children = append(children, li)
	}
	for _, s := range cs.ShippingOptions {
		children = append(children, s)
	}
	if cs.TaxRate != nil {
		children = append(children, cs.TaxRate)
	}
	for _, f := range cs.Fees {
		children = append(children, f)
	}
	for _, d := range cs.Discounts {
		children = append(children, d)
	}
	return children
}

func (cs *CheckoutSession) Serialize() any {
	payload := checkoutSessionPayload{
		ClientReferenceID: cs.orderID,
		Mode:              cs.Mode,
		SuccessURL:        cs.SuccessURL,
		CancelURL:         cs.CancelURL,
		Defaults:          cs.Defaults,
		LineItems:         make([]any, 0, len(cs.LineItems)),
	}
	for _, li := range cs.LineItems {
		payload.LineItems = append(payload.LineItems, li.Serialize())
	}
	for _, s := range cs.ShippingOptions {
		payload.ShippingOptions = append(payload.ShippingOptions, s.Serialize())
	}
	if cs.TaxRate != nil {
		payload.TaxRate = cs.TaxRate.Serialize()
	}
	for _, f := range cs.Fees {
		payload.Fees = append(payload.Fees, f.Serialize())
	}
	for _, d := range cs.Discounts {
		payload.Discounts = append(payload.Discounts, d.Serialize())
	}
	return payload
}

func (cs *CheckoutSession) Needs() Action {
	for _, child := range cs.children() {
		if child.Needs() != ActionNone {
			return ActionDependency
		}
	}

	switch {
	case cs.Complete():
		return ActionNone
	case cs.SessionID == "":
		return ActionCreate
	case cs.Status == stripe.CheckoutSessionStatusExpired:
		return ActionCreate
	case cs.AmountTotal != cs.syncedAmount:
		return ActionCreate
	case Hash(cs.Serialize()) != cs.hash:
		return ActionCreate
	default:
		return ActionNone
	}
}

func (cs *CheckoutSession) Can(action Action) bool {
	switch action {
	case ActionNone, ActionDependency:
		return true
	case ActionCreate:
		if cs.Complete() || len(cs.LineItems) == 0 {
			return false
		}
		for _, li := range cs.LineItems {
			if li.Price.ID() == "" {
				return false
			}
		}
		return true
	case ActionRefresh:
		return cs.SessionID != ""
	default:
		return false
	}
}

func (cs *CheckoutSession) Exec(ctx context.Context, action Action) error {
	if !cs.Can(action) || action == ActionNone {
		return nil
	}

	switch action {
	case ActionDependency:
		return resolveDependencies(ctx, cs.env, cs, cs.children())
	case ActionCreate:
		cs.env.logAction(cs, action)
		return cs.create(ctx)
	case ActionRefresh:
		cs.env.logAction(cs, action)
		return cs.refresh(ctx)
	}
	return nil
}

func (cs *CheckoutSession) create(ctx context.Context) error {
	body := cs.Serialize()
	ctx = remote.WithIdempotencyKey(ctx, Hash([]any{cs.orderID, cs.SessionID, cs.env.Mode, body}))

	var out CheckoutSessionPayload
	if err := cs.env.Client.Request(ctx, http.MethodPost, "/v1/checkout/sessions", wrap(cs.Kind(), body), cs.Kind(), &out); err != nil {
		return fmt.Errorf("failed to create checkout session: %w", err)
	}
	if err := cs.Extract(out); err != nil {
		return err
	}
	cs.syncedAmount = cs.AmountTotal
	cs.hash = Hash(cs.Serialize())
	return cs.ApplyTo(ctx)
}

func (cs *CheckoutSession) refresh(ctx context.Context) error {
	var out CheckoutSessionPayload
	if err := cs.env.Client.Request(ctx, http.MethodGet, "/v1/checkout/sessions/"+cs.SessionID, nil, cs.Kind(), &out); err != nil {
		return fmt.Errorf("failed to refresh checkout session: %w", err)
	}
	if out.CheckoutSessionID == "" {
		out.CheckoutSessionID = cs.SessionID
	}
	if err := cs.Extract(out); err != nil {
		return err
	}
	return cs.ApplyTo(ctx)
}

// Extract folds a remote checkout session into cs, pinning each line item to
// the price the remote session actually charged.
func (cs *CheckoutSession) Extract(payload CheckoutSessionPayload) error {
	if payload.CheckoutSessionID == "" {
		return &IntegrityError{Resource: cs.Kind(), ID: cs.orderID, Message: "remote payload is missing checkout_session_id"}
	}
	if payload.ClientReferenceID != "" && payload.ClientReferenceID != cs.orderID {
		return &IntegrityError{
			Resource: cs.Kind(),
			ID:       payload.CheckoutSessionID,
			Message:  "client reference does not match order",
			Details:  map[string]string{"client_reference_id": payload.ClientReferenceID, "order_id": cs.orderID},
		}
	}

	if !cs.paid && payload.AmountTotal > 0 && payload.AmountTotal != cs.AmountTotal {
		return &IntegrityError{
			Resource: cs.Kind(),
			ID:       payload.CheckoutSessionID,
			Message:  "remote amount total does not match order total",
			Details: map[string]string{
				"remote_amount_total": strconv.FormatInt(payload.AmountTotal, 10),
				"amount_total":        strconv.FormatInt(cs.AmountTotal, 10),
			},
		}
	}

	cs.SessionID = payload.CheckoutSessionID
	if payload.RedirectURL != "" {
		cs.RedirectURL = payload.RedirectURL
	}
	if payload.Status != "" {
		cs.Status = payload.Status
	}
	cs.TestMode = payload.TestMode
	cs.remoteAmount = payload.AmountTotal

	if len(payload.LineItems) == len(cs.LineItems) {
		for i, item := range payload.LineItems {
			id := referenceID(item.Price, "price_id")
			if id != "" && id != cs.LineItems[i].Price.ID() {
				cs.LineItems[i].Price = PinnedPrice(cs.env, id)
			}
		}
	}
	return nil
}

// ApplyTo writes the session state back onto the order and pins every line
// item's price.
func (cs *CheckoutSession) ApplyTo(ctx context.Context) error {
	amount := cs.syncedAmount
	if cs.remoteAmount > 0 {
		amount = cs.remoteAmount
	}

	err := cs.env.Store.UpdateMeta(ctx, store.KindOrder, cs.orderID, map[string]string{
		cs.env.key("checkout_session_id"):           cs.SessionID,
		cs.env.key("checkout_session_hash"):         cs.hash,
		cs.env.key("checkout_session_redirect_url"): cs.RedirectURL,
		cs.env.key("checkout_session_amount_total"): strconv.FormatInt(amount, 10),
		cs.env.key("checkout_session_status"):       string(cs.Status),
		cs.env.key("checkout_session_test_mode"):    strconv.FormatBool(cs.TestMode),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to save checkout session meta: %w", err)
	}

	for _, li := range cs.LineItems {
		if li.Price.ID() == "" {
			continue
		}
		err := cs.env.Store.UpdateMeta(ctx, store.KindOrderItem, li.OrderItemID(), map[string]string{
			cs.env.key("price_id"): li.Price.ID(),
		}, nil)
		if err != nil {
			return fmt.Errorf("failed to pin line item price: %w", err)
		}
	}
	return nil
}

// referenceID accepts either a bare id or an expanded object carrying field.
func referenceID(raw json.RawMessage, field string) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	id, _ = obj[field].(string)
	return id
}
