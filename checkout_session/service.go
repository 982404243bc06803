package checkout_session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"goflare.io/paysync/gateway"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/resource"
	"goflare.io/paysync/store"
)

type Options struct {
	// SuccessURL is where the platform sends the customer after paying,
	// normally this service's completion endpoint. {order_id} is expanded.
	SuccessURL string `mapstructure:"success_url"`
	CancelURL  string `mapstructure:"cancel_url"`
	// ReturnURL is the store's order-received page the completion endpoint
	// redirects to.
	ReturnURL string `mapstructure:"return_url"`
}

type Service interface {
	// Create returns the URL the customer should be redirected to for payment.
	Create(ctx context.Context, orderID string) (string, error)
	// Complete checks a returning customer's session and always returns
	// where to send them next.
	Complete(ctx context.Context, orderID string) string
}

type service struct {
	gateway *gateway.Gateway
	store   store.Store
	opts    Options
	logger  *zap.Logger
}

func NewService(gw *gateway.Gateway, st store.Store, opts Options, logger *zap.Logger) Service {
	return &service{
		gateway: gw,
		store:   st,
		opts:    opts,
		logger:  logger,
	}
}

func (s *service) checkoutOptions() resource.CheckoutOptions {
	return resource.CheckoutOptions{SuccessURL: s.opts.SuccessURL, CancelURL: s.opts.CancelURL}
}

func (s *service) Create(ctx context.Context, orderID string) (string, error) {
	order, err := s.store.Order(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.Status.Paid() {
		return resource.ExpandURL(s.opts.ReturnURL, orderID), nil
	}
	if order.Status != enum.OrderStatusPending {
		return "", fmt.Errorf("order %s is %s and cannot be paid", orderID, order.Status)
	}

	cs, err := resource.CheckoutSessionFromOrder(ctx, s.gateway.Env(), order, s.checkoutOptions())
	if err != nil {
		return "", err
	}
	if err := resource.Reconcile(ctx, cs); err != nil {
		return "", err
	}
	if cs.RedirectURL == "" {
		return "", &resource.IntegrityError{Resource: cs.Kind(), ID: cs.ID(), Message: "checkout session has no redirect url"}
	}
	return cs.RedirectURL, nil
}

func (s *service) Complete(ctx context.Context, orderID string) string {
	target := resource.ExpandURL(s.opts.ReturnURL, orderID)
	logger := s.logger.With(zap.String("order_id", orderID))

	order, err := s.store.Order(ctx, orderID)
	if err != nil {
		logger.Error("failed to load order for completion", zap.Error(err))
		return target
	}
	if order.Status != enum.OrderStatusPending {
		return target
	}

	env, err := s.gateway.EnvForOrder(ctx, orderID)
	if err != nil {
		logger.Error("failed to resolve checkout mode", zap.Error(err))
		return target
	}
	cs, err := resource.CheckoutSessionFromOrder(ctx, env, order, s.checkoutOptions())
	if err != nil {
		logger.Error("failed to load checkout session", zap.Error(err))
		return target
	}
	if err := cs.Exec(ctx, resource.ActionRefresh); err != nil {
		logger.Error("failed to refresh checkout session", zap.Error(err))
		return target
	}
	if !cs.Complete() {
		logger.Info("checkout session not complete yet", zap.String("status", string(cs.Status)))
		return target
	}

	if _, err := CompletePayment(ctx, s.store, orderID, cs.ID()); err != nil {
		logger.Error("failed to complete payment", zap.Error(err))
	}
	return target
}

// CompletePayment marks a pending order paid by sessionID. It reports false
// when the order had already left pending, which makes repeated completions
// from the return redirect and the event receiver harmless.
func CompletePayment(ctx context.Context, st store.Store, orderID, sessionID string) (bool, error) {
	order, err := st.Order(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to reload order %s: %w", orderID, err)
	}
	if order.Status != enum.OrderStatusPending {
		return false, nil
	}

	done, err := st.MarkPaymentComplete(ctx, orderID, sessionID)
	if err != nil || !done {
		return done, err
	}
	if err := st.AddOrderNote(ctx, orderID, fmt.Sprintf("Payment completed by checkout session %s.", sessionID)); err != nil {
		return true, fmt.Errorf("failed to add order note: %w", err)
	}
	return true, nil
}
