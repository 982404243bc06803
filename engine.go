package paysync

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"goflare.io/paysync/checkout_session"
	"goflare.io/paysync/event"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/product"
	"goflare.io/paysync/refund"
	"goflare.io/paysync/remote"
	"goflare.io/paysync/resource"
	"goflare.io/paysync/store"
	"goflare.io/paysync/webhook"
)

var ErrUnknownJob = errors.New("unknown job kind")

type Engine struct {
	product         product.Service
	checkoutSession checkout_session.Service
	refund          refund.Service
	webhook         webhook.Service
	event           event.Service

	handlers   map[JobKind]JobHandler
	dispatcher *Dispatcher
	queue      *Queue
	jobs       JobsConfig
	logger     *zap.Logger
}

// NewEngine wires the services to the job workers. natsConn and locker may be
// nil for a single in-process instance.
func NewEngine(jobs JobsConfig,
	ps product.Service,
	cs checkout_session.Service,
	rs refund.Service,
	ws webhook.Service,
	es event.Service,
	natsConn *nats.Conn,
	locker Locker,
	logger *zap.Logger) *Engine {
	jobs = jobs.withDefaults()

	e := &Engine{
		product:         ps,
		checkoutSession: cs,
		refund:          rs,
		webhook:         ws,
		event:           es,
		jobs:            jobs,
		logger:          logger,
	}
	e.dispatcher = NewDispatcher(jobs.Workers, jobs.QueueSize, e, logger)
	e.queue = NewQueue(natsConn, locker, e.dispatcher, jobs.LockTTL, logger)
	e.registerJobHandlers()
	return e
}

func (e *Engine) registerJobHandlers() {
	e.handlers = map[JobKind]JobHandler{
		JobProductSync: func(ctx context.Context, job *Job) error {
			return e.product.Sync(ctx, job.EntityID)
		},
		JobWebhookSync: func(ctx context.Context, _ *Job) error {
			return e.webhook.Sync(ctx)
		},
		JobRefundCreate: func(ctx context.Context, job *Job) error {
			return e.refund.Create(ctx, job.EntityID)
		},
		JobCheckoutRefresh: func(ctx context.Context, job *Job) error {
			e.checkoutSession.Complete(ctx, job.EntityID)
			return nil
		},
	}
}

func (e *Engine) Start() error {
	e.dispatcher.Run()
	return e.queue.Subscribe()
}

func (e *Engine) Close() {
	if err := e.queue.Close(); err != nil {
		e.logger.Warn("failed to close job queue", zap.Error(err))
	}
	e.dispatcher.Stop()
}

func (e *Engine) Enqueue(ctx context.Context, kind JobKind, entityID string) error {
	if _, ok := e.handlers[kind]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, kind)
	}
	return e.queue.Enqueue(ctx, &Job{Kind: kind, EntityID: entityID})
}

// Process runs job and schedules a retry with backoff when it fails with an
// error that might go away.
func (e *Engine) Process(ctx context.Context, job *Job) {
	logger := e.logger.With(
		zap.String("kind", string(job.Kind)),
		zap.String("entity_id", job.EntityID),
		zap.Int("attempt", job.Attempt+1))

	handler, ok := e.handlers[job.Kind]
	if !ok {
		logger.Error("dropping job of unknown kind")
		e.queue.Release(ctx, job)
		return
	}

	err := handler(ctx, job)
	if err == nil {
		logger.Info("job done")
		e.queue.Release(ctx, job)
		return
	}

	job.Attempt++
	switch {
	case permanent(err):
		logger.Error("job failed permanently", zap.Error(err))
		e.queue.Release(ctx, job)
	case job.Attempt >= e.jobs.MaxAttempts:
		logger.Error("job failed, giving up", zap.Error(err))
		e.queue.Release(ctx, job)
	default:
		delay := e.jobs.Backoff(job.Attempt)
		logger.Warn("job failed, retrying", zap.Duration("delay", delay), zap.Error(err))
		e.queue.Retry(job, delay)
	}
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	switch {
	case resource.IsIntegrityError(err),
		event.IsValidationError(err),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, refund.ErrNoCheckoutSession),
		errors.Is(err, remote.ErrNoAPIKey):
		return true
	}

	switch code := remote.StatusCode(err); {
	case code == http.StatusRequestTimeout, code == http.StatusConflict, code == http.StatusTooManyRequests:
		return false
	case code >= 400 && code < 500:
		return true
	}
	return false
}

func (e *Engine) SyncProduct(ctx context.Context, productID string) error {
	return e.product.Sync(ctx, productID)
}

func (e *Engine) PlanProduct(ctx context.Context, productID string) (*product.Plan, error) {
	return e.product.Plan(ctx, productID)
}

func (e *Engine) CreateCheckout(ctx context.Context, orderID string) (string, error) {
	return e.checkoutSession.Create(ctx, orderID)
}

func (e *Engine) CompleteCheckout(ctx context.Context, orderID string) string {
	return e.checkoutSession.Complete(ctx, orderID)
}

func (e *Engine) CreateRefund(ctx context.Context, refundID string) error {
	return e.refund.Create(ctx, refundID)
}

func (e *Engine) SyncWebhooks(ctx context.Context) error {
	return e.webhook.Sync(ctx)
}

func (e *Engine) WebhookSecrets(ctx context.Context) (map[enum.Mode]string, error) {
	return e.webhook.Secrets(ctx)
}

func (e *Engine) ResolveEvent(ctx context.Context, ev *event.Event) error {
	return e.event.Resolve(ctx, ev)
}

func (e *Engine) HandleEvent(ctx context.Context, ev *event.Event) error {
	return e.event.Handle(ctx, ev)
}

var _ Reconciler = (*Engine)(nil)
