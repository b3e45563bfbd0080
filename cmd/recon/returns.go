package main

import (
	"context"
	"fmt"

	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/spf13/cobra"
)

func newReturnsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "returns",
		Short: "Track physically received returns",
	}
	cmd.AddCommand(newReturnsScanCmd(), newReturnsWarningsCmd())
	return cmd
}

func newReturnsScanCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "scan <code>...",
		Short: "Record scanned return parcels by tracking number or order id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc ledgerdomain.Service
			return withServices(func(ctx context.Context) error {
				for _, code := range args {
					inserted, err := svc.RecordReturnScan(ctx, code, note)
					if err != nil {
						return fmt.Errorf("scan %q: %w", code, err)
					}
					state := "recorded"
					if !inserted {
						state = "already scanned"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", code, state)
				}
				return nil
			}, &svc)
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note stored with every scan")
	return cmd
}

func newReturnsWarningsCmd() *cobra.Command {
	var snapshotID int64
	cmd := &cobra.Command{
		Use:   "warnings",
		Short: "Compare financial returns with scanned parcels",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc ledgerdomain.Service
			return withServices(func(ctx context.Context) error {
				snap, err := resolveSnapshot(ctx, cmd, svc, snapshotID)
				if err != nil {
					return err
				}
				w, err := svc.ReturnWarnings(ctx, snap.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "returned but not scanned: %d\n", len(w.ReturnedNotScanned))
				for _, r := range w.ReturnedNotScanned {
					fmt.Fprintf(out, "  %s %s %s\n", r.Platform, r.OrderID, r.TrackingNumber)
				}
				fmt.Fprintf(out, "scanned but not returned: %d\n", len(w.ScannedNotReturned))
				for _, r := range w.ScannedNotReturned {
					fmt.Fprintf(out, "  %s %s %s (%s)\n", r.Platform, r.OrderID, r.TrackingNumber, r.Status)
				}
				return nil
			}, &svc)
		},
	}
	cmd.Flags().Int64Var(&snapshotID, "snapshot", 0, "snapshot id (default: active)")
	return cmd
}
