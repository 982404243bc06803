// Package paysync keeps a store's catalog, orders and refunds reconciled
// with the payment platform.
package paysync

import (
	"context"

	"goflare.io/paysync/event"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/product"
)

type Reconciler interface {
	SyncProduct(ctx context.Context, productID string) error
	PlanProduct(ctx context.Context, productID string) (*product.Plan, error)

	// CreateCheckout returns the payment page for a pending order.
	CreateCheckout(ctx context.Context, orderID string) (string, error)
	// CompleteCheckout is the customer's return from the payment page; it
	// always yields a redirect target.
	CompleteCheckout(ctx context.Context, orderID string) string

	CreateRefund(ctx context.Context, refundID string) error

	SyncWebhooks(ctx context.Context) error
	WebhookSecrets(ctx context.Context) (map[enum.Mode]string, error)
	// ResolveEvent sets the mode whose signing secret must have signed ev.
	ResolveEvent(ctx context.Context, ev *event.Event) error
	HandleEvent(ctx context.Context, ev *event.Event) error

	// Enqueue defers a reconciliation to the job workers.
	Enqueue(ctx context.Context, kind JobKind, entityID string) error

	Start() error
	Close()
}
