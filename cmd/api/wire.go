//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"goflare.io/paysync"
	"goflare.io/paysync/checkout_session"
	"goflare.io/paysync/config"
	"goflare.io/paysync/event"
	"goflare.io/paysync/handlers"
	"goflare.io/paysync/product"
	"goflare.io/paysync/refund"
	"goflare.io/paysync/server"
	"goflare.io/paysync/webhook"
)

func InitializeServer() (*server.Server, func(), error) {

	wire.Build(
		config.ProvideApplicationConfig,
		config.NewLogger,
		config.ProvideStore,
		config.ProvideGateway,
		config.ProvideCheckoutOptions,
		config.ProvideWebhookOptions,
		config.ProvideJobsConfig,
		config.ProvideRedis,
		config.ProvideNATS,
		config.ProvideLocker,
		config.ProvideDeduplicator,
		product.NewService,
		checkout_session.NewService,
		refund.NewService,
		webhook.NewService,
		event.NewService,
		paysync.NewEngine,
		wire.Bind(new(paysync.Reconciler), new(*paysync.Engine)),
		handlers.NewCheckoutHandler,
		handlers.NewProductHandler,
		handlers.NewRefundHandler,
		handlers.NewWebhookHandler,
		server.NewServer,
	)

	return &server.Server{}, nil, nil
}
