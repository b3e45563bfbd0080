package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	pipelinedomain "github.com/railzwaylabs/recon/internal/pipeline/domain"
	"github.com/spf13/cobra"
)

func newProcessCmd() *cobra.Command {
	var (
		dir        string
		snapshotID int64
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "process [files...]",
		Short: "Classify, extract and ingest export files",
		Long: "Processes the given files, or every supported file in --dir (default: the " +
			"configured samples directory), into the active snapshot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc pipelinedomain.Service
			return withServices(func(ctx context.Context) error {
				req := pipelinedomain.RunRequest{Paths: args, Dir: dir}
				if cmd.Flags().Changed("snapshot") {
					req.SnapshotID = &snapshotID
				}
				out, err := svc.Run(ctx, req)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), out)
				}
				fmt.Fprint(cmd.OutOrStdout(), out.Log)
				return nil
			}, &svc)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of export files")
	cmd.Flags().Int64Var(&snapshotID, "snapshot", 0, "target snapshot id (default: active)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the structured outcome")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
