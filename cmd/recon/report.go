package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/railzwaylabs/recon/internal/config"
	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read the reconciliation ledger",
	}
	cmd.AddCommand(newReportStatsCmd(), newReportExportCmd())
	return cmd
}

func resolveSnapshot(ctx context.Context, cmd *cobra.Command, svc ledgerdomain.Service, id int64) (*ledgerdomain.Snapshot, error) {
	if cmd.Flags().Changed("snapshot") {
		return svc.GetSnapshot(ctx, id)
	}
	return svc.ActiveSnapshot(ctx)
}

func newReportStatsCmd() *cobra.Command {
	var snapshotID int64
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print totals, status counts and the per-platform breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc ledgerdomain.Service
			return withServices(func(ctx context.Context) error {
				snap, err := resolveSnapshot(ctx, cmd, svc, snapshotID)
				if err != nil {
					return err
				}
				stats, err := svc.Stats(ctx, snap.ID)
				if err != nil {
					return err
				}
				platforms, err := svc.PlatformBreakdown(ctx, snap.ID)
				if err != nil {
					return err
				}
				printStats(cmd, snap, stats, platforms)
				return nil
			}, &svc)
		},
	}
	cmd.Flags().Int64Var(&snapshotID, "snapshot", 0, "snapshot id (default: active)")
	return cmd
}

func printStats(cmd *cobra.Command, snap *ledgerdomain.Snapshot, stats ledgerdomain.Stats, platforms []ledgerdomain.PlatformStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "snapshot %d (%s)\n", snap.ID, snap.Label)
	fmt.Fprintf(out, "orders %d, collections %d\n", stats.OrderCount, stats.CollectionCount)
	fmt.Fprintf(out, "expected %.2f, collected %.2f, uncollected %.2f, rate %.1f%%\n",
		stats.TotalExpected, stats.TotalCollected, stats.TotalUncollected, stats.CollectionRate)
	fmt.Fprintf(out, "net profit %.2f, margin %.1f%%, average order %.2f\n",
		stats.NetProfit, stats.ProfitMargin, stats.AverageOrderValue)
	fmt.Fprintf(out, "orphan collections %d (%.2f)\n", stats.OrphanCount, stats.OrphanAmount)

	statuses := make([]string, 0, len(stats.StatusCounts))
	for st := range stats.StatusCounts {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		fmt.Fprintf(out, "  %-9s %d\n", st, stats.StatusCounts[ledgerdomain.Status(st)])
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PLATFORM\tORDERS\tEXPECTED\tCOLLECTED\tCOST\tNET\tRATE\t")
	for _, p := range platforms {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f%%\t\n",
			p.Platform, p.OrderCount, p.TotalExpected, p.TotalCollected, p.TotalCost, p.NetProfit, p.CollectionRate)
	}
	_ = tw.Flush()
}

func newReportExportCmd() *cobra.Command {
	var (
		snapshotID  int64
		outstanding bool
		platform    string
		outDir      string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the report rows of a snapshot to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				svc ledgerdomain.Service
				cfg config.Config
			)
			return withServices(func(ctx context.Context) error {
				snap, err := resolveSnapshot(ctx, cmd, svc, snapshotID)
				if err != nil {
					return err
				}
				rows, err := svc.ReportRows(ctx, snap.ID, ledgerdomain.ReportFilter{
					Outstanding: outstanding,
					Platform:    platform,
				})
				if err != nil {
					return err
				}

				dir := outDir
				if dir == "" {
					dir = cfg.ReportsDir
				}
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
				path := filepath.Join(dir, report.FileName(*snap, time.Now()))
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := report.WriteCSV(f, rows); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows written to %s\n", len(rows), path)
				return nil
			}, &svc, &cfg)
		},
	}
	cmd.Flags().Int64Var(&snapshotID, "snapshot", 0, "snapshot id (default: active)")
	cmd.Flags().BoolVar(&outstanding, "outstanding", false, "only orders that are not PAID")
	cmd.Flags().StringVar(&platform, "platform", "", "only one platform")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: configured reports dir)")
	return cmd
}
