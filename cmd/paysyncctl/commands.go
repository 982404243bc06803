package main

import (
	"github.com/spf13/cobra"
)

type result struct {
	Status   string `json:"status" yaml:"status"`
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	Redirect string `json:"redirect,omitempty" yaml:"redirect,omitempty"`
}

func NewPlanCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a sync would do without doing it",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "product <id>",
		Short: "Plan the sync of one product and its price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				plan, err := a.product.Plan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return write(cmd.OutOrStdout(), opts.Format, plan)
			})
		},
	})
	return cmd
}

func NewSyncCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local state with the payment platform",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "product <id>...",
		Short: "Sync products and their prices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				results := make([]result, 0, len(args))
				for _, id := range args {
					if err := a.product.Sync(cmd.Context(), id); err != nil {
						return err
					}
					results = append(results, result{Status: "synced", ID: id})
				}
				return write(cmd.OutOrStdout(), opts.Format, results)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "webhooks",
		Short: "Create, update or remove the event webhook of every configured mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := a.webhook.Sync(cmd.Context()); err != nil {
					return err
				}
				return write(cmd.OutOrStdout(), opts.Format, result{Status: "synced"})
			})
		},
	})
	return cmd
}

func NewCheckoutCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Work with order checkout sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <order-id>",
		Short: "Create or reuse the checkout session of a pending order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				url, err := a.checkoutSession.Create(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return write(cmd.OutOrStdout(), opts.Format, result{Status: "ready", ID: args[0], Redirect: url})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh <order-id>",
		Short: "Check a pending order's session and record a completed payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				target := a.checkoutSession.Complete(cmd.Context(), args[0])
				return write(cmd.OutOrStdout(), opts.Format, result{Status: "refreshed", ID: args[0], Redirect: target})
			})
		},
	})
	return cmd
}

func NewRefundCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refund",
		Short: "Work with refunds",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <refund-id>",
		Short: "Send a local refund to the payment platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := a.refund.Create(cmd.Context(), args[0]); err != nil {
					return err
				}
				return write(cmd.OutOrStdout(), opts.Format, result{Status: "sent", ID: args[0]})
			})
		},
	})
	return cmd
}
