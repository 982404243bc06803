package resource

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) webhook(t *testing.T, opts WebhookOptions) *Webhook {
	t.Helper()
	w, err := WebhookFromSettings(context.Background(), f.env, opts)
	require.NoError(t, err)
	return w
}

var hookOptions = WebhookOptions{URL: "https://shop.test/paysync/webhook", Enabled: true}

func TestWebhook_CreateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := f.webhook(t, hookOptions)
	assert.Equal(t, ActionCreate, w.Needs())
	require.NoError(t, Reconcile(ctx, w))

	assert.NotEmpty(t, w.ID())
	assert.NotEmpty(t, w.SigningSecret)
	assert.Equal(t, ActionNone, w.Needs())

	again := f.webhook(t, hookOptions)
	assert.Equal(t, w.ID(), again.ID())
	assert.Equal(t, w.SigningSecret, again.SigningSecret)
	assert.Equal(t, ActionNone, again.Needs())
}

func TestWebhook_UpdateNotFoundRecreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := f.webhook(t, hookOptions)
	require.NoError(t, Reconcile(ctx, w))
	oldID := w.ID()
	f.remote.Remove("/v1/webhooks/" + oldID)

	opts := hookOptions
	opts.Events = []string{"checkout.session.completed"}
	w = f.webhook(t, opts)
	assert.Equal(t, ActionUpdate, w.Needs())

	require.NoError(t, Reconcile(ctx, w))
	assert.NotEqual(t, oldID, w.ID())
	assert.Equal(t, ActionNone, w.Needs())
	assert.Equal(t, 1, f.remote.Count(http.MethodPost, "/v1/webhooks/"+oldID))
	assert.Equal(t, 2, f.remote.Count(http.MethodPost, "/v1/webhooks"))

	assert.Equal(t, w.ID(), f.meta(t, "settings", "paysync")["_paysync_test_webhook_id"])
}

func TestWebhook_URLChangeRecreatesAndRetiresOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := f.webhook(t, hookOptions)
	require.NoError(t, Reconcile(ctx, w))
	oldID := w.ID()

	opts := hookOptions
	opts.URL = "https://shop.example/paysync/webhook"
	w = f.webhook(t, opts)
	assert.Equal(t, ActionCreate, w.Needs())

	require.NoError(t, Reconcile(ctx, w))
	assert.NotEqual(t, oldID, w.ID())

	old, ok := f.remote.Object("/v1/webhooks/" + oldID)
	require.True(t, ok)
	assert.Equal(t, false, old["active"])
	assert.Equal(t, hookOptions.URL, old["url"])
	assert.Zero(t, f.remote.Count(http.MethodDelete, "/v1/webhooks/"+oldID))
}

func TestWebhook_DisableDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := f.webhook(t, hookOptions)
	require.NoError(t, Reconcile(ctx, w))
	id := w.ID()

	opts := hookOptions
	opts.Enabled = false
	w = f.webhook(t, opts)
	assert.Equal(t, ActionDelete, w.Needs())

	require.NoError(t, Reconcile(ctx, w))
	assert.Empty(t, w.ID())
	assert.Equal(t, ActionNone, w.Needs())
	_, ok := f.remote.Object("/v1/webhooks/" + id)
	assert.False(t, ok)
	assert.Empty(t, f.meta(t, "settings", "paysync"))
}

func TestWebhook_DeleteNotFoundIsSatisfied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := f.webhook(t, hookOptions)
	require.NoError(t, Reconcile(ctx, w))
	f.remote.Remove("/v1/webhooks/" + w.ID())

	opts := hookOptions
	opts.Enabled = false
	w = f.webhook(t, opts)
	require.NoError(t, Reconcile(ctx, w))
	assert.Empty(t, w.ID())
	assert.Empty(t, f.meta(t, "settings", "paysync"))
}

func TestWebhook_InsecureURLIsFrozen(t *testing.T) {
	f := newFixture(t)

	opts := WebhookOptions{URL: "http://shop.test/paysync/webhook", Enabled: true}
	w := f.webhook(t, opts)
	assert.Equal(t, ActionNone, w.Needs())
	assert.False(t, w.Can(ActionCreate))
	require.NoError(t, w.Exec(context.Background(), ActionCreate))
	assert.Empty(t, f.remote.Requests())

	opts.AllowInsecure = true
	w = f.webhook(t, opts)
	assert.Equal(t, ActionCreate, w.Needs())
}

func TestWebhook_UpdateErrorPropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := f.webhook(t, hookOptions)
	require.NoError(t, Reconcile(ctx, w))
	f.remote.Handle(http.MethodPost, "/v1/webhooks/"+w.ID(), func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	})

	opts := hookOptions
	opts.Events = []string{"refund.updated"}
	w = f.webhook(t, opts)
	assert.Error(t, Reconcile(ctx, w))
}
