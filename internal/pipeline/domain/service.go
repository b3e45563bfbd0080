package domain

import (
	"context"
	"errors"

	costingdomain "github.com/railzwaylabs/recon/internal/costing/domain"
	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
)

type Service interface {
	// Run classifies, extracts and ingests every input file into one
	// snapshot, then recalculates costs and refreshes the weekly report.
	// File and row problems end up in the outcome log; only storage
	// failures are returned as errors.
	Run(ctx context.Context, req RunRequest) (*Outcome, error)
}

var ErrNoInput = errors.New("no_input_files")

type RunRequest struct {
	// Paths lists the files to process. When empty every supported file in
	// Dir is used.
	Paths []string
	Dir   string
	// SnapshotID targets a specific snapshot instead of the active one.
	SnapshotID *int64
}

// FileOutcome is what happened to one input file.
type FileOutcome struct {
	Name          string                    `json:"name"`
	Label         string                    `json:"label"`
	Account       string                    `json:"account,omitempty"`
	RowsRead      int                       `json:"rows_read"`
	Ingest        ledgerdomain.BatchSummary `json:"ingest"`
	CostsSaved    int                       `json:"costs_saved"`
	CostsRejected int                       `json:"costs_rejected"`
	Skipped       int                       `json:"rows_skipped"`
	SkipReasons   map[string]int            `json:"skip_reasons,omitempty"`
	Notes         []string                  `json:"notes,omitempty"`
	Error         string                    `json:"error,omitempty"`
}

// Outcome is the structured result of a run. Success is true whenever the
// run reached the end, including runs that wrote nothing new.
type Outcome struct {
	RunID      string                       `json:"run_id"`
	SnapshotID int64                        `json:"snapshot_id"`
	Success    bool                         `json:"success"`
	Log        string                       `json:"log"`
	Files      []FileOutcome                `json:"files"`
	Stats      *ledgerdomain.Stats          `json:"stats"`
	Platforms  []ledgerdomain.PlatformStats `json:"platforms"`
	Recalc     *costingdomain.RecalcReport  `json:"recalc,omitempty"`
	Report     *ledgerdomain.WeeklyReport   `json:"weekly_report,omitempty"`
}
