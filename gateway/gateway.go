// Package gateway builds the per-mode resource environments: one remote
// client per API key, all sharing the same store and money format.
package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/money"
	"goflare.io/paysync/remote"
	"goflare.io/paysync/resource"
	"goflare.io/paysync/store"
)

type Config struct {
	BaseURL    string        `mapstructure:"base_url"`
	LiveAPIKey string        `mapstructure:"live_api_key"`
	TestAPIKey string        `mapstructure:"test_api_key"`
	TestMode   bool          `mapstructure:"test_mode"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Gateway struct {
	envs    map[enum.Mode]resource.Env
	clients map[enum.Mode]*remote.Client
	active  enum.Mode
	store   store.Store
}

func New(cfg Config, st store.Store, format money.Format, logger *zap.Logger) *Gateway {
	keys := map[enum.Mode]string{
		enum.ModeLive: cfg.LiveAPIKey,
		enum.ModeTest: cfg.TestAPIKey,
	}

	clients := make(map[enum.Mode]*remote.Client, len(keys))
	for mode, key := range keys {
		clients[mode] = remote.New(remote.Config{APIKey: key, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, logger.With(zap.String("mode", string(mode))))
	}
	return newGateway(clients, cfg.TestMode, st, format, logger)
}

// NewWithClients is New for callers that already hold remote clients.
func NewWithClients(live, test *remote.Client, testMode bool, st store.Store, format money.Format, logger *zap.Logger) *Gateway {
	return newGateway(map[enum.Mode]*remote.Client{enum.ModeLive: live, enum.ModeTest: test}, testMode, st, format, logger)
}

func newGateway(clients map[enum.Mode]*remote.Client, testMode bool, st store.Store, format money.Format, logger *zap.Logger) *Gateway {
	g := &Gateway{
		envs:    make(map[enum.Mode]resource.Env, len(clients)),
		clients: clients,
		active:  enum.ModeLive,
		store:   st,
	}
	if testMode {
		g.active = enum.ModeTest
	}

	for mode, client := range clients {
		g.envs[mode] = resource.Env{
			Client: client,
			Store:  st,
			Money:  format,
			Mode:   mode,
			Logger: logger,
		}
	}
	return g
}

// Mode is the mode new checkouts are created in.
func (g *Gateway) Mode() enum.Mode {
	return g.active
}

// Env returns the environment of the active mode.
func (g *Gateway) Env() resource.Env {
	return g.envs[g.active]
}

func (g *Gateway) EnvFor(mode enum.Mode) resource.Env {
	return g.envs[mode]
}

// Configured lists the modes that have an API key, active mode first.
func (g *Gateway) Configured() []enum.Mode {
	var modes []enum.Mode
	for _, mode := range g.ordered() {
		if c := g.clients[mode]; c != nil && c.Configured() {
			modes = append(modes, mode)
		}
	}
	return modes
}

func (g *Gateway) ordered() []enum.Mode {
	if g.active == enum.ModeTest {
		return []enum.Mode{enum.ModeTest, enum.ModeLive}
	}
	return []enum.Mode{enum.ModeLive, enum.ModeTest}
}

// EnvForOrder returns the environment the order was checked out in, falling
// back to the active mode when it never was.
func (g *Gateway) EnvForOrder(ctx context.Context, orderID string) (resource.Env, error) {
	meta, err := g.store.Meta(ctx, store.KindOrder, orderID)
	if err != nil {
		return resource.Env{}, fmt.Errorf("failed to load order meta: %w", err)
	}
	for _, mode := range g.ordered() {
		if meta[store.MetaKey(mode, "checkout_session_id")] != "" {
			return g.envs[mode], nil
		}
	}
	return g.Env(), nil
}
