package event

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"goflare.io/paysync/checkout_session"
	"goflare.io/paysync/gateway"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/resource"
	"goflare.io/paysync/store"
)

type Service interface {
	// Resolve sets ev.Mode, so the delivery can be checked against that
	// mode's signing secret before it is applied.
	Resolve(ctx context.Context, ev *Event) error
	// Handle applies ev. Events that can never apply fail with a
	// ValidationError; anything else is worth a redelivery.
	Handle(ctx context.Context, ev *Event) error
}

type service struct {
	gateway *gateway.Gateway
	store   store.Store
	opts    checkout_session.Options
	dedup   Deduplicator
	logger  *zap.Logger
}

// NewService returns the event handler. dedup may be nil.
func NewService(gw *gateway.Gateway, st store.Store, opts checkout_session.Options, dedup Deduplicator, logger *zap.Logger) Service {
	return &service{
		gateway: gw,
		store:   st,
		opts:    opts,
		dedup:   dedup,
		logger:  logger,
	}
}

func (s *service) Handle(ctx context.Context, ev *Event) error {
	logger := s.logger.With(zap.String("event_id", ev.ID), zap.String("event_type", string(ev.Type)))

	if s.dedup != nil && ev.ID != "" {
		seen, err := s.dedup.Processed(ctx, ev.ID)
		if err != nil {
			logger.Warn("event dedup lookup failed", zap.Error(err))
		}
		if seen {
			logger.Debug("event already processed")
			return nil
		}
	}

	if ev.Mode == "" {
		if err := s.Resolve(ctx, ev); err != nil {
			logger.Error("failed to resolve event mode", zap.Error(err))
			return err
		}
	}

	var err error
	switch ev.Type {
	case TypeCheckoutSessionCompleted:
		err = s.checkoutSessionCompleted(ctx, ev)
	case TypeRefundUpdated:
		err = s.refundUpdated(ctx, ev)
	default:
		err = invalid("unrecognized event type %q", ev.Type)
	}
	if err != nil {
		logger.Error("failed to handle event", zap.Error(err))
		return err
	}

	if s.dedup != nil && ev.ID != "" {
		if err := s.dedup.MarkProcessed(ctx, ev.ID); err != nil {
			logger.Warn("failed to record processed event", zap.Error(err))
		}
	}
	logger.Info("event handled")
	return nil
}

// Resolve takes the mode of a checkout session event from its test_mode flag
// and the mode of a refund event from the mode that recorded the refund.
func (s *service) Resolve(ctx context.Context, ev *Event) error {
	switch ev.Type {
	case TypeCheckoutSessionCompleted:
		payload := ev.Object.CheckoutSession
		if payload == nil || payload.CheckoutSessionID == "" {
			return invalid("missing checkout_session")
		}
		ev.Mode = enum.ModeLive
		if payload.TestMode {
			ev.Mode = enum.ModeTest
		}
		return nil

	case TypeRefundUpdated:
		payload := ev.Object.Refund
		if payload == nil || payload.RefundID == "" {
			return invalid("missing refund")
		}
		for _, mode := range enum.Modes() {
			_, err := s.store.FindByMeta(ctx, store.KindRefund, store.MetaKey(mode, "refund_id"), payload.RefundID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to find refund: %w", err)
			}
			ev.Mode = mode
			return nil
		}
		return invalid("unknown refund %s", payload.RefundID)

	default:
		return invalid("unrecognized event type %q", ev.Type)
	}
}

func (s *service) checkoutSessionCompleted(ctx context.Context, ev *Event) error {
	payload := ev.Object.CheckoutSession
	if payload == nil || payload.CheckoutSessionID == "" {
		return invalid("missing checkout_session")
	}
	if payload.TestMode != ev.Mode.TestMode() {
		return invalid("checkout session %s does not belong to %s mode", payload.CheckoutSessionID, ev.Mode)
	}

	mode := ev.Mode
	env := s.gateway.EnvFor(mode)

	orderID, err := s.store.FindByMeta(ctx, store.KindOrder, store.MetaKey(mode, "checkout_session_id"), payload.CheckoutSessionID)
	if errors.Is(err, store.ErrNotFound) {
		return invalid("unknown checkout session %s", payload.CheckoutSessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to find order: %w", err)
	}

	if _, err := checkout_session.CompletePayment(ctx, s.store, orderID, payload.CheckoutSessionID); err != nil {
		return err
	}

	order, err := s.store.Order(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to reload order %s: %w", orderID, err)
	}
	cs, err := resource.CheckoutSessionFromOrder(ctx, env, order, resource.CheckoutOptions{
		SuccessURL: s.opts.SuccessURL,
		CancelURL:  s.opts.CancelURL,
	})
	if resource.IsIntegrityError(err) {
		return invalid("%v", err)
	}
	if err != nil {
		return err
	}
	if err := cs.Extract(*payload); err != nil {
		if resource.IsIntegrityError(err) {
			return invalid("%v", err)
		}
		return err
	}
	return cs.ApplyTo(ctx)
}

func (s *service) refundUpdated(ctx context.Context, ev *Event) error {
	payload := ev.Object.Refund
	if payload == nil || payload.RefundID == "" {
		return invalid("missing refund")
	}

	localID, err := s.store.FindByMeta(ctx, store.KindRefund, store.MetaKey(ev.Mode, "refund_id"), payload.RefundID)
	if errors.Is(err, store.ErrNotFound) {
		return invalid("unknown %s refund %s", ev.Mode, payload.RefundID)
	}
	if err != nil {
		return fmt.Errorf("failed to find refund: %w", err)
	}
	r := resource.RefundFromRemote(s.gateway.EnvFor(ev.Mode), withLocalID(*payload, localID))

	local, err := s.store.Refund(ctx, localID)
	if errors.Is(err, store.ErrNotFound) {
		return invalid("refund %s no longer exists locally", localID)
	}
	if err != nil {
		return fmt.Errorf("failed to load refund %s: %w", localID, err)
	}

	if r.Failed() {
		if err := s.store.DeleteRefund(ctx, localID); err != nil {
			return fmt.Errorf("failed to delete refund %s: %w", localID, err)
		}
		note := fmt.Sprintf("Refund %s of %s was %s by the payment platform and has been removed.", localID, local.Amount, r.Status)
		return s.store.AddOrderNote(ctx, local.OrderID, note)
	}

	local.Status = r.Status
	if err := s.store.SaveRefund(ctx, local); err != nil {
		return fmt.Errorf("failed to save refund %s: %w", localID, err)
	}
	return r.ApplyTo(ctx)
}

func withLocalID(payload resource.RefundPayload, id string) resource.RefundPayload {
	metadata := make(map[string]string, len(payload.Metadata)+1)
	for k, v := range payload.Metadata {
		metadata[k] = v
	}
	metadata["refund_id"] = id
	payload.Metadata = metadata
	return payload
}
