package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recon"

var (
	FilesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_processed_total",
		Help:      "Input files handled by the pipeline, by label and outcome.",
	}, []string{"label", "outcome"})

	RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_ingested_total",
		Help:      "Ledger writes by record kind and result.",
	}, []string{"kind", "result"})

	RowsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_skipped_total",
		Help:      "Rows dropped during extraction, by reason.",
	}, []string{"reason"})

	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Reconciliation runs by outcome.",
	}, []string{"outcome"})

	RecalcRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cost_recalculations_total",
		Help:      "Cost recalculation runs by outcome.",
	}, []string{"outcome"})

	OrdersCosted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_costed_total",
		Help:      "Orders whose cost was rewritten by a recalculation.",
	})

	RecalcDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cost_recalculation_seconds",
		Help:      "Duration of cost recalculation runs.",
		Buckets:   prometheus.DefBuckets,
	})
)
