package refund

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"goflare.io/paysync/checkout_session"
	"goflare.io/paysync/gateway"
	"goflare.io/paysync/resource"
	"goflare.io/paysync/store"
)

// ErrNoCheckoutSession is returned when refunding an order that was never
// paid through the platform.
var ErrNoCheckoutSession = errors.New("order has no checkout session")

type Service interface {
	// Create sends a local refund to the platform. Refunds already sent are
	// left alone.
	Create(ctx context.Context, refundID string) error
}

type service struct {
	gateway *gateway.Gateway
	store   store.Store
	opts    checkout_session.Options
	logger  *zap.Logger
}

func NewService(gw *gateway.Gateway, st store.Store, opts checkout_session.Options, logger *zap.Logger) Service {
	return &service{
		gateway: gw,
		store:   st,
		opts:    opts,
		logger:  logger,
	}
}

func (s *service) Create(ctx context.Context, refundID string) error {
	local, err := s.store.Refund(ctx, refundID)
	if err != nil {
		return fmt.Errorf("failed to load refund %s: %w", refundID, err)
	}
	order, err := s.store.Order(ctx, local.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", local.OrderID, err)
	}

	env, err := s.gateway.EnvForOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	session, err := resource.CheckoutSessionFromOrder(ctx, env, order, resource.CheckoutOptions{
		SuccessURL: s.opts.SuccessURL,
		CancelURL:  s.opts.CancelURL,
	})
	if err != nil {
		return err
	}
	if session.ID() == "" {
		return fmt.Errorf("%w: order %s", ErrNoCheckoutSession, order.ID)
	}

	r, err := resource.RefundFromLocal(ctx, env, session, order, local)
	if err != nil {
		return err
	}
	if r.Needs() == resource.ActionNone {
		return nil
	}
	if err := resource.Reconcile(ctx, r); err != nil {
		return err
	}

	local.Status = r.Status
	if err := s.store.SaveRefund(ctx, local); err != nil {
		return fmt.Errorf("failed to save refund status: %w", err)
	}
	note := fmt.Sprintf("Refund %s of %s sent to the payment platform as %s.", local.ID, local.Amount, r.ID())
	if err := s.store.AddOrderNote(ctx, order.ID, note); err != nil {
		s.logger.Warn("failed to add refund note", zap.String("order_id", order.ID), zap.Error(err))
	}
	return nil
}
