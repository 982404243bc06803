package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"goflare.io/paysync/checkout_session"
	"goflare.io/paysync/config"
	"goflare.io/paysync/product"
	"goflare.io/paysync/refund"
	"goflare.io/paysync/webhook"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Format     string // "yaml" | "json"
}

var ValidFormats = []string{"yaml", "json"}

// app is the set of services one command invocation works with.
type app struct {
	config          *config.Config
	logger          *zap.Logger
	product         product.Service
	checkoutSession checkout_session.Service
	refund          refund.Service
	webhook         webhook.Service
	close           func()
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "paysyncctl",
		Short: "Inspect and drive payment platform reconciliation",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", config.DefaultConfigFile, "config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "yaml", "output format (yaml|json)")

	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewRefundCommand(opts))
	return cmd
}

func newApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(cfg)

	st, closeStore, err := config.ProvideStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	gw := config.ProvideGateway(cfg, st, logger)

	return &app{
		config:          cfg,
		logger:          logger,
		product:         product.NewService(gw, logger),
		checkoutSession: checkout_session.NewService(gw, st, cfg.Checkout, logger),
		refund:          refund.NewService(gw, st, cfg.Checkout, logger),
		webhook:         webhook.NewService(gw, st, cfg.Webhook.Options, logger),
		close: func() {
			closeStore()
			_ = logger.Sync()
		},
	}, nil
}

// withApp runs fn against a freshly built app and closes it afterwards.
func withApp(opts *RootOptions, fn func(a *app) error) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func write(w io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
