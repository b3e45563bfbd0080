package main

import (
	"context"
	"fmt"

	costingdomain "github.com/railzwaylabs/recon/internal/costing/domain"
	"github.com/railzwaylabs/recon/internal/extract"
	"github.com/railzwaylabs/recon/internal/platform"
	"github.com/spf13/cobra"
)

func newCostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Manage product unit costs",
	}
	cmd.AddCommand(newCostsImportCmd(), newCostsSetCmd(), newCostsRecalcCmd())
	return cmd
}

func newCostsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load a product cost table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := extract.For(platform.ProductCosts)
			if err != nil {
				return err
			}
			res, err := ex.Extract(extract.Source{Path: args[0], Label: platform.ProductCosts})
			if err != nil {
				return err
			}

			reqs := make([]costingdomain.SetCostRequest, 0, len(res.Costs))
			for _, c := range res.Costs {
				reqs = append(reqs, costingdomain.SetCostRequest{SKU: c.SKU, ProductName: c.ProductName, Cost: c.Cost})
			}

			var svc costingdomain.Service
			return withServices(func(ctx context.Context) error {
				result, err := svc.SetCosts(ctx, reqs)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows read, %d costs saved, %d rejected, %d skipped",
					res.RowsRead, result.Saved, result.Rejected, res.Skipped())
				if res.Skipped() > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), " (%s)", res.SkipSummary())
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			}, &svc)
		},
	}
}

func newCostsSetCmd() *cobra.Command {
	var req costingdomain.SetCostRequest
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the unit cost of one product",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc costingdomain.Service
			return withServices(func(ctx context.Context) error {
				item, err := svc.SetCost(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %q = %.2f\n", item.SKU, item.ProductName, item.Cost)
				return nil
			}, &svc)
		},
	}
	cmd.Flags().StringVar(&req.SKU, "sku", "", "product sku (generated from --name when empty)")
	cmd.Flags().StringVar(&req.ProductName, "name", "", "product name")
	cmd.Flags().Float64Var(&req.Cost, "cost", 0, "unit cost")
	_ = cmd.MarkFlagRequired("cost")
	return cmd
}

func newCostsRecalcCmd() *cobra.Command {
	var snapshotID int64
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Re-cost every order of a snapshot from the cost table",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc costingdomain.Service
			return withServices(func(ctx context.Context) error {
				var (
					report costingdomain.RecalcReport
					err    error
				)
				if cmd.Flags().Changed("snapshot") {
					report, err = svc.Recalculate(ctx, snapshotID)
				} else {
					report, err = svc.RecalculateActive(ctx)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "snapshot %d: %d/%d items matched, %d of %d orders updated\n",
					report.SnapshotID, report.ItemsMatched, report.ItemsChecked, report.OrdersUpdated, report.OrdersScanned)
				return nil
			}, &svc)
		},
	}
	cmd.Flags().Int64Var(&snapshotID, "snapshot", 0, "snapshot id (default: active)")
	return cmd
}
