package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/railzwaylabs/recon/internal/clock"
	"github.com/railzwaylabs/recon/internal/config"
	costingdomain "github.com/railzwaylabs/recon/internal/costing/domain"
	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/observability"
	"github.com/railzwaylabs/recon/internal/pipeline/domain"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Ledger  ledgerdomain.Service
	Costing costingdomain.Service
	Clock   clock.Clock
	Cfg     config.Config
}

type Service struct {
	log        *zap.Logger
	ledger     ledgerdomain.Service
	costing    costingdomain.Service
	clock      clock.Clock
	samplesDir string

	// one run at a time
	mu sync.Mutex
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("pipeline.service"),
		ledger:     p.Ledger,
		costing:    p.Costing,
		clock:      p.Clock,
		samplesDir: p.Cfg.SamplesDir,
	}
}

var supportedExt = map[string]bool{
	".csv":  true,
	".txt":  true,
	".tsv":  true,
	".xlsx": true,
	".xlsm": true,
}

func (s *Service) Run(ctx context.Context, req domain.RunRequest) (*domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := observability.Tracer("pipeline").Start(ctx, "pipeline.run")
	defer span.End()

	out, err := s.run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.PipelineRuns.WithLabelValues("error").Inc()
		s.log.Error("pipeline run failed", zap.Error(err))
		return nil, err
	}
	observability.PipelineRuns.WithLabelValues("ok").Inc()
	return out, nil
}

func (s *Service) run(ctx context.Context, req domain.RunRequest) (*domain.Outcome, error) {
	snap, err := s.targetSnapshot(ctx, req.SnapshotID)
	if err != nil {
		return nil, err
	}

	paths, err := s.inputs(req)
	if err != nil {
		return nil, err
	}

	out := &domain.Outcome{RunID: ulid.Make().String(), SnapshotID: snap.ID}
	var logb runLog
	logb.line("run %s into snapshot %d (%s)", out.RunID, snap.ID, snap.Label)
	s.log.Info("pipeline run started",
		zap.String("run_id", out.RunID),
		zap.Int64("snapshot_id", snap.ID),
		zap.Int("files", len(paths)),
	)

	if len(paths) == 0 {
		logb.line("no input files found")
	}

	inputs := make([]input, 0, len(paths))
	for _, path := range paths {
		inputs = append(inputs, s.classify(path))
	}
	sort.SliceStable(inputs, func(i, j int) bool {
		return phase(inputs[i].label) < phase(inputs[j].label)
	})

	inserted := 0
	for _, in := range inputs {
		fo, err := s.process(ctx, out.RunID, snap.ID, in, &logb)
		if err != nil {
			return nil, err
		}
		inserted += fo.Ingest.Inserted() + fo.CostsSaved
		out.Files = append(out.Files, fo)
	}
	if len(paths) > 0 && inserted == 0 {
		logb.line("no new records: every row was already in the ledger or skipped")
	}

	recalc, err := s.costing.Recalculate(ctx, snap.ID)
	switch {
	case errors.Is(err, costingdomain.ErrRecalcInProgress):
		logb.line("cost recalculation skipped: another run holds the lock")
	case err != nil:
		return nil, fmt.Errorf("recalculate costs: %w", err)
	default:
		out.Recalc = &recalc
		logb.line("costs: %d/%d items matched, %d of %d orders updated",
			recalc.ItemsMatched, recalc.ItemsChecked, recalc.OrdersUpdated, recalc.OrdersScanned)
	}

	report, err := s.ledger.RefreshWeeklyReport(ctx, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh weekly report: %w", err)
	}
	out.Report = report

	stats, err := s.ledger.Stats(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	out.Stats = &stats
	platforms, err := s.ledger.PlatformBreakdown(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	out.Platforms = platforms

	logb.line("snapshot %d: %d orders, %d collections, collection rate %.1f%%",
		snap.ID, stats.OrderCount, stats.CollectionCount, stats.CollectionRate)
	out.Success = true
	out.Log = logb.String()

	s.log.Info("pipeline run finished",
		zap.String("run_id", out.RunID),
		zap.Int("files", len(out.Files)),
		zap.Int("inserted", inserted),
	)
	return out, nil
}

func (s *Service) targetSnapshot(ctx context.Context, id *int64) (*ledgerdomain.Snapshot, error) {
	if id != nil {
		return s.ledger.GetSnapshot(ctx, *id)
	}
	return s.ledger.ActiveSnapshot(ctx)
}

// inputs lists the files of a run in name order.
func (s *Service) inputs(req domain.RunRequest) ([]string, error) {
	if len(req.Paths) > 0 {
		return req.Paths, nil
	}
	dir := req.Dir
	if dir == "" {
		dir = s.samplesDir
	}
	if dir == "" {
		return nil, domain.ErrNoInput
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if supportedExt[strings.ToLower(filepath.Ext(name))] {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// runLog is the human readable account of a run returned to callers.
type runLog struct {
	b strings.Builder
}

func (l *runLog) line(format string, args ...any) {
	fmt.Fprintf(&l.b, format, args...)
	l.b.WriteByte('\n')
}

func (l *runLog) String() string {
	return l.b.String()
}
