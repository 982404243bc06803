package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"goflare.io/paysync/remote"
	"goflare.io/paysync/store"
)

// DefaultWebhookEvents are the events the receiver knows how to handle.
var DefaultWebhookEvents = []string{"checkout.session.completed", "refund.updated"}

type webhookPayload struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Active bool     `json:"active"`
}

type webhookResponse struct {
	webhookPayload
	WebhookID     string `json:"webhook_id"`
	SigningSecret string `json:"signing_secret"`
	TestMode      bool   `json:"test_mode"`
}

type WebhookOptions struct {
	URL    string
	Events []string
	// Enabled false removes the webhook remotely.
	Enabled bool
	// AllowInsecure permits a non-HTTPS URL.
	AllowInsecure bool
}

// Webhook is the platform's subscription to this store's event receiver, one
// per mode. It heals itself when removed remotely.
type Webhook struct {
	env Env

	WebhookID     string
	URL           string
	Events        []string
	SigningSecret string
	Enabled       bool
	AllowInsecure bool

	syncedURL string
	hash      string
	retired   bool
}

func WebhookFromSettings(ctx context.Context, env Env, opts WebhookOptions) (*Webhook, error) {
	meta, err := env.Store.Meta(ctx, store.KindSettings, store.SettingsID)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook meta: %w", err)
	}

	events := opts.Events
	if len(events) == 0 {
		events = DefaultWebhookEvents
	}

	return &Webhook{
		env:           env,
		WebhookID:     meta[env.key("webhook_id")],
		URL:           opts.URL,
		Events:        events,
		SigningSecret: meta[env.key("webhook_secret")],
		Enabled:       opts.Enabled,
		AllowInsecure: opts.AllowInsecure,
		syncedURL:     meta[env.key("webhook_url")],
		hash:          meta[env.key("webhook_hash")],
	}, nil
}

func (w *Webhook) Kind() string { return "webhook" }

func (w *Webhook) ID() string { return w.WebhookID }

func (w *Webhook) Serialize() any {
	return webhookPayload{URL: w.URL, Events: w.Events, Active: !w.retired}
}

func (w *Webhook) secure() bool {
	if w.AllowInsecure {
		return true
	}
	u, err := url.Parse(w.URL)
	return err == nil && u.Scheme == "https" && u.Host != ""
}

func (w *Webhook) Needs() Action {
	if !w.Enabled {
		if w.WebhookID != "" {
			return ActionDelete
		}
		return ActionNone
	}

	switch {
	case !w.secure():
		return ActionNone
	case w.WebhookID == "":
		return ActionCreate
	case w.URL != w.syncedURL:
		return ActionCreate
	case Hash(w.Serialize()) != w.hash:
		return ActionUpdate
	default:
		return ActionNone
	}
}

func (w *Webhook) Can(action Action) bool {
	switch action {
	case ActionNone:
		return true
	case ActionCreate:
		return !w.retired && w.Enabled && w.URL != "" && w.secure()
	case ActionUpdate:
		return w.WebhookID != "" && (w.retired || w.secure())
	case ActionDelete, ActionRefresh:
		return w.WebhookID != ""
	default:
		return false
	}
}

func (w *Webhook) Exec(ctx context.Context, action Action) error {
	if !w.Can(action) || action == ActionNone {
		return nil
	}
	w.env.logAction(w, action)

	switch action {
	case ActionCreate:
		return w.create(ctx)
	case ActionUpdate:
		return w.update(ctx)
	case ActionDelete:
		return w.delete(ctx)
	case ActionRefresh:
		return w.refresh(ctx)
	}
	return nil
}

func (w *Webhook) create(ctx context.Context) error {
	var body any = w.Serialize()

	var existing *Webhook
	if w.WebhookID != "" {
		payload, found, err := enrich(ctx, w.env, "/v1/webhooks/"+w.WebhookID, w.Kind(), "webhook_id", body)
		if err != nil {
			return err
		}
		body = payload
		if found {
			existing = w.snapshot()
		}
	}

	var out webhookResponse
	if err := w.env.Client.Request(ctx, http.MethodPost, "/v1/webhooks", wrap(w.Kind(), body), w.Kind(), &out); err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	if err := w.extract(out); err != nil {
		return err
	}
	if err := w.applyTo(ctx); err != nil {
		return err
	}

	if existing != nil {
		if err := existing.Exec(ctx, ActionUpdate); err != nil && !remote.IsNotFound(err) {
			w.env.Logger.Warn("failed to deactivate previous webhook",
				zap.String("webhook_id", existing.WebhookID),
				zap.String("replaced_by", w.WebhookID),
				zap.Error(err))
		}
	}
	return nil
}

// snapshot returns the previous remote webhook, to be marked inactive.
func (w *Webhook) snapshot() *Webhook {
	old := *w
	old.URL = w.syncedURL
	old.retired = true
	return &old
}

// update falls back to creation when the webhook was removed remotely.
func (w *Webhook) update(ctx context.Context) error {
	var out webhookResponse
	path := "/v1/webhooks/" + w.WebhookID
	err := w.env.Client.Request(ctx, http.MethodPost, path, wrap(w.Kind(), w.Serialize()), w.Kind(), &out)
	if err != nil {
		if remote.IsNotFound(err) && !w.retired {
			w.env.Logger.Warn("webhook is gone remotely, creating it again", zap.String("webhook_id", w.WebhookID))
			w.WebhookID = ""
			return w.Exec(ctx, ActionCreate)
		}
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	if w.retired {
		return nil
	}
	if err := w.extract(out); err != nil {
		return err
	}
	return w.applyTo(ctx)
}

// delete treats a webhook that is already gone remotely as deleted.
func (w *Webhook) delete(ctx context.Context) error {
	err := w.env.Client.Request(ctx, http.MethodDelete, "/v1/webhooks/"+w.WebhookID, nil, "", nil)
	if err != nil && !remote.IsNotFound(err) {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	w.WebhookID = ""
	w.SigningSecret = ""
	return w.forget(ctx)
}

func (w *Webhook) refresh(ctx context.Context) error {
	var out webhookResponse
	err := w.env.Client.Request(ctx, http.MethodGet, "/v1/webhooks/"+w.WebhookID, nil, w.Kind(), &out)
	if remote.IsNotFound(err) {
		w.WebhookID = ""
		return w.forget(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to refresh webhook: %w", err)
	}
	if out.SigningSecret != "" && out.SigningSecret != w.SigningSecret {
		w.SigningSecret = out.SigningSecret
		return w.applyTo(ctx)
	}
	return nil
}

func (w *Webhook) extract(out webhookResponse) error {
	if out.WebhookID == "" {
		return &IntegrityError{Resource: w.Kind(), ID: string(w.env.Mode), Message: "remote response is missing webhook_id"}
	}
	w.WebhookID = out.WebhookID
	if out.SigningSecret != "" {
		w.SigningSecret = out.SigningSecret
	}
	w.syncedURL = w.URL
	w.hash = Hash(w.Serialize())
	return nil
}

func (w *Webhook) applyTo(ctx context.Context) error {
	err := w.env.Store.UpdateMeta(ctx, store.KindSettings, store.SettingsID, map[string]string{
		w.env.key("webhook_id"):     w.WebhookID,
		w.env.key("webhook_url"):    w.syncedURL,
		w.env.key("webhook_hash"):   w.hash,
		w.env.key("webhook_secret"): w.SigningSecret,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to save webhook meta: %w", err)
	}
	return nil
}

func (w *Webhook) forget(ctx context.Context) error {
	err := w.env.Store.UpdateMeta(ctx, store.KindSettings, store.SettingsID, nil, []string{
		w.env.key("webhook_id"),
		w.env.key("webhook_url"),
		w.env.key("webhook_hash"),
		w.env.key("webhook_secret"),
	})
	if err != nil {
		return fmt.Errorf("failed to clear webhook meta: %w", err)
	}
	return nil
}
