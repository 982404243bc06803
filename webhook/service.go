package webhook

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"goflare.io/paysync/gateway"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/resource"
	"goflare.io/paysync/store"
)

type Options struct {
	URL           string   `mapstructure:"url"`
	Events        []string `mapstructure:"events"`
	Enabled       bool     `mapstructure:"enabled"`
	AllowInsecure bool     `mapstructure:"allow_insecure"`
}

type Service interface {
	// Sync reconciles the webhook of every mode that has an API key.
	Sync(ctx context.Context) error
	// Secrets returns the signing secret of each mode's webhook. Modes
	// without a webhook are absent.
	Secrets(ctx context.Context) (map[enum.Mode]string, error)
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

func (s *service) Sync(ctx context.Context) error {
	var errs error
	for _, mode := range s.gateway.Configured() {
		if err := s.sync(ctx, mode); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s webhook: %w", mode, err))
		}
	}
	return errs
}

func (s *service) sync(ctx context.Context, mode enum.Mode) error {
	w, err := resource.WebhookFromSettings(ctx, s.gateway.EnvFor(mode), resource.WebhookOptions{
		URL:           s.opts.URL,
		Events:        s.opts.Events,
		Enabled:       s.opts.Enabled,
		AllowInsecure: s.opts.AllowInsecure,
	})
	if err != nil {
		return err
	}

	s.logger.Debug("syncing webhook",
		zap.String("mode", string(mode)),
		zap.String("webhook_id", w.ID()),
		zap.Stringer("action", w.Needs()))
	return resource.Reconcile(ctx, w)
}

func (s *service) Secrets(ctx context.Context) (map[enum.Mode]string, error) {
	meta, err := s.store.Meta(ctx, store.KindSettings, store.SettingsID)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook secrets: %w", err)
	}

	secrets := make(map[enum.Mode]string)
	for _, mode := range enum.Modes() {
		if secret := meta[store.MetaKey(mode, "webhook_secret")]; secret != "" {
			secrets[mode] = secret
		}
	}
	return secrets, nil
}
