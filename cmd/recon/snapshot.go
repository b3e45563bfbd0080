package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage weekly snapshots",
	}
	cmd.AddCommand(newSnapshotNewCmd(), newSnapshotListCmd(), newSnapshotResetCmd())
	return cmd
}

func newSnapshotNewCmd() *cobra.Command {
	var label, notes string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new week; later imports go to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc ledgerdomain.Service
			return withServices(func(ctx context.Context) error {
				snap, err := svc.CreateSnapshot(ctx, ledgerdomain.CreateSnapshotRequest{Label: label, Notes: notes})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "snapshot %d created: %s\n", snap.ID, snap.Label)
				return nil
			}, &svc)
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "snapshot label (default: \"Week N - YYYY\")")
	cmd.Flags().StringVar(&notes, "notes", "", "free text notes")
	return cmd
}

func newSnapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc ledgerdomain.Service
			return withServices(func(ctx context.Context) error {
				snaps, err := svc.ListSnapshots(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tLABEL\tWEEK\tYEAR\tCREATED")
				for _, s := range snaps {
					fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", s.ID, s.Label, s.WeekNumber, s.Year, s.CreatedAt.Format("2006-01-02"))
				}
				return tw.Flush()
			}, &svc)
		},
	}
}

func newSnapshotResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>",
		Short: "Delete every order and collection of one snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid snapshot id %q", args[0])
			}
			var svc ledgerdomain.Service
			return withServices(func(ctx context.Context) error {
				res, err := svc.ResetSnapshot(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "snapshot %d reset: %d orders, %d collections deleted\n",
					res.SnapshotID, res.OrdersDeleted, res.CollectionsDeleted)
				return nil
			}, &svc)
		},
	}
}
