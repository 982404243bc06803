package remote

import "context"

type traceKey struct{}

type idempotencyKey struct{}

// WithTraceID attaches a correlation id that is sent as X-Request-Id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// WithIdempotencyKey attaches a key sent on POST requests so a retried
// create is collapsed by the platform.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey{}).(string)
	return key
}
