package service

import (
	"context"
	"fmt"
	"path/filepath"

	costingdomain "github.com/railzwaylabs/recon/internal/costing/domain"
	"github.com/railzwaylabs/recon/internal/extract"
	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/observability"
	"github.com/railzwaylabs/recon/internal/pipeline/domain"
	"github.com/railzwaylabs/recon/internal/platform"
	"github.com/railzwaylabs/recon/internal/tabular"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// input is a file after classification.
type input struct {
	path    string
	label   platform.Label
	account string
	sheet   *tabular.Sheet
	openErr error
}

func (in input) name() string {
	return filepath.Base(in.path)
}

// phase orders files so orders exist before the collections that settle
// them, and costs come last.
func phase(label platform.Label) int {
	switch label {
	case platform.NoonOrders, platform.IlasouqOrders, platform.WebsiteOrders, platform.AmazonTransactions:
		return 0
	case platform.ProductCosts:
		return 2
	case platform.Unknown:
		return 3
	}
	return 1
}

func (s *Service) classify(path string) input {
	in := input{path: path}
	name := in.name()
	in.account = platform.DetectAccount(name)

	sheet, err := tabular.Open(path)
	if err != nil {
		// Amazon text exports often fail strict parsing but are read line
		// by line by their extractor.
		in.label = platform.Classify(platform.Input{Filename: name})
		if in.label != platform.AmazonTransactions {
			in.openErr = err
		}
		return in
	}
	in.sheet = sheet
	in.label = platform.Classify(platform.Input{Columns: sheet.Columns(), Filename: name})
	return in
}

func (s *Service) process(ctx context.Context, runID string, snapshotID int64, in input, logb *runLog) (domain.FileOutcome, error) {
	fo := domain.FileOutcome{Name: in.name(), Label: string(in.label), Account: in.account}
	ctx, span := observability.Tracer("pipeline").Start(ctx, "pipeline.process_file")
	span.SetAttributes(
		attribute.String("file.name", fo.Name),
		attribute.String("file.label", fo.Label),
	)
	defer span.End()
	log := s.log.With(zap.String("file", fo.Name), zap.String("label", fo.Label))

	if in.openErr != nil {
		fo.Error = in.openErr.Error()
		logb.line("%s: unreadable: %v", fo.Name, in.openErr)
		log.Warn("file unreadable", zap.Error(in.openErr))
		observability.FilesProcessed.WithLabelValues(fo.Label, "error").Inc()
		return fo, s.record(ctx, runID, snapshotID, fo)
	}
	if in.label == platform.Unknown {
		logb.line("%s: format not recognised, skipped", fo.Name)
		log.Info("file not recognised")
		observability.FilesProcessed.WithLabelValues(fo.Label, "skipped").Inc()
		return fo, nil
	}

	ex, err := extract.For(in.label)
	if err != nil {
		return fo, err
	}
	res, err := ex.Extract(extract.Source{
		Path:    in.path,
		Label:   in.label,
		Account: in.account,
		Sheet:   in.sheet,
		Now:     s.clock.Now(ctx),
	})
	fo.RowsRead = res.RowsRead
	fo.Skipped = res.Skipped()
	fo.SkipReasons = res.SkipReasons()
	fo.Notes = res.Notes
	for _, n := range res.Notes {
		logb.line("%s", n)
	}
	if err != nil {
		fo.Error = err.Error()
		logb.line("%s: %s rejected: %v", fo.Name, in.label, err)
		log.Warn("file rejected", zap.Error(err))
		observability.FilesProcessed.WithLabelValues(fo.Label, "error").Inc()
		return fo, s.record(ctx, runID, snapshotID, fo)
	}
	for reason, n := range fo.SkipReasons {
		observability.RowsSkipped.WithLabelValues(reason).Add(float64(n))
	}

	if len(res.Orders) > 0 || len(res.Collections) > 0 {
		summary, err := s.ledger.IngestBatch(ctx, snapshotID, ledgerdomain.Batch{
			Orders:      res.Orders,
			Collections: res.Collections,
		})
		if err != nil {
			return fo, fmt.Errorf("ingest %s: %w", fo.Name, err)
		}
		fo.Ingest = summary
		observability.RecordsIngested.WithLabelValues("order", "inserted").Add(float64(summary.OrdersInserted))
		observability.RecordsIngested.WithLabelValues("order", "updated").Add(float64(summary.OrdersUpdated))
		observability.RecordsIngested.WithLabelValues("order", "unchanged").Add(float64(summary.OrdersUnchanged))
		observability.RecordsIngested.WithLabelValues("collection", "inserted").Add(float64(summary.CollectionsInserted))
		observability.RecordsIngested.WithLabelValues("collection", "duplicate").Add(float64(summary.CollectionsDuplicate))
	}

	if len(res.Costs) > 0 {
		reqs := make([]costingdomain.SetCostRequest, 0, len(res.Costs))
		for _, c := range res.Costs {
			reqs = append(reqs, costingdomain.SetCostRequest{SKU: c.SKU, ProductName: c.ProductName, Cost: c.Cost})
		}
		bulk, err := s.costing.SetCosts(ctx, reqs)
		if err != nil {
			return fo, fmt.Errorf("save costs from %s: %w", fo.Name, err)
		}
		fo.CostsSaved = bulk.Saved
		fo.CostsRejected = bulk.Rejected
	}

	logb.line("%s: %s, %d rows read, orders +%d ~%d =%d, collections +%d dup %d, costs %d, skipped %d%s",
		fo.Name, in.label, fo.RowsRead,
		fo.Ingest.OrdersInserted, fo.Ingest.OrdersUpdated, fo.Ingest.OrdersUnchanged,
		fo.Ingest.CollectionsInserted, fo.Ingest.CollectionsDuplicate,
		fo.CostsSaved, fo.Skipped, skipDetail(res))
	log.Info("file processed",
		zap.Int("rows_read", fo.RowsRead),
		zap.Int("inserted", fo.Ingest.Inserted()),
		zap.Int("costs_saved", fo.CostsSaved),
		zap.Int("skipped", fo.Skipped),
	)
	observability.FilesProcessed.WithLabelValues(fo.Label, "ok").Inc()
	return fo, s.record(ctx, runID, snapshotID, fo)
}

func skipDetail(res extract.Result) string {
	if res.Skipped() == 0 {
		return ""
	}
	return " (" + res.SkipSummary() + ")"
}

func (s *Service) record(ctx context.Context, runID string, snapshotID int64, fo domain.FileOutcome) error {
	reasons := make(datatypes.JSONMap, len(fo.SkipReasons))
	for k, v := range fo.SkipReasons {
		reasons[k] = v
	}
	err := s.ledger.RecordFileImport(ctx, ledgerdomain.FileImport{
		RunID:                runID,
		SnapshotID:           snapshotID,
		FileName:             fo.Name,
		Label:                fo.Label,
		AccountName:          fo.Account,
		RowsRead:             fo.RowsRead,
		OrdersInserted:       fo.Ingest.OrdersInserted,
		OrdersUpdated:        fo.Ingest.OrdersUpdated,
		OrdersUnchanged:      fo.Ingest.OrdersUnchanged,
		CollectionsInserted:  fo.Ingest.CollectionsInserted,
		CollectionsDuplicate: fo.Ingest.CollectionsDuplicate,
		CostsUpserted:        fo.CostsSaved,
		RowsSkipped:          fo.Skipped,
		SkipReasons:          reasons,
		Error:                fo.Error,
	})
	if err != nil {
		return fmt.Errorf("record import of %s: %w", fo.Name, err)
	}
	return nil
}
