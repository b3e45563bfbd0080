package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	CreateSnapshot(ctx context.Context, req CreateSnapshotRequest) (*Snapshot, error)
	ActiveSnapshot(ctx context.Context) (*Snapshot, error)
	GetSnapshot(ctx context.Context, id int64) (*Snapshot, error)
	ListSnapshots(ctx context.Context) ([]Snapshot, error)
	ResetSnapshot(ctx context.Context, id int64) (ResetResult, error)

	IngestOrder(ctx context.Context, snapshotID int64, rec OrderRecord) (WriteOutcome, error)
	IngestCollection(ctx context.Context, snapshotID int64, rec CollectionRecord) (bool, error)
	IngestBatch(ctx context.Context, snapshotID int64, batch Batch) (BatchSummary, error)

	Stats(ctx context.Context, snapshotID int64) (Stats, error)
	PlatformBreakdown(ctx context.Context, snapshotID int64) ([]PlatformStats, error)
	ReportRows(ctx context.Context, snapshotID int64, filter ReportFilter) ([]ReportRow, error)
	RefreshWeeklyReport(ctx context.Context, snapshotID int64) (*WeeklyReport, error)
	ListWeeklyReports(ctx context.Context) ([]WeeklyReport, error)

	RecordReturnScan(ctx context.Context, code, note string) (bool, error)
	ReturnWarnings(ctx context.Context, snapshotID int64) (ReturnWarnings, error)

	ListPlatforms(ctx context.Context) ([]Platform, error)
	SavePlatform(ctx context.Context, p Platform) error
	ListAccounts(ctx context.Context) ([]Account, error)
	SaveAccount(ctx context.Context, a Account) error

	RecordFileImport(ctx context.Context, f FileImport) error
	ListFileImports(ctx context.Context, runID string) ([]FileImport, error)
}

var (
	ErrSnapshotNotFound = errors.New("snapshot_not_found")
	ErrInvalidOrderID   = errors.New("invalid_order_id")
	ErrNegativePrice    = errors.New("negative_price")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidScanCode  = errors.New("invalid_scan_code")
)

// DedupTolerance is the absolute amount difference under which two
// collections for the same order are the same record.
const DedupTolerance = 0.001

type CreateSnapshotRequest struct {
	Label string `json:"label"`
	Notes string `json:"notes"`
}

type ResetResult struct {
	SnapshotID         int64 `json:"snapshot_id"`
	OrdersDeleted      int64 `json:"orders_deleted"`
	CollectionsDeleted int64 `json:"collections_deleted"`
}

// WriteOutcome is what the writer did with one order.
type WriteOutcome string

const (
	OrderInserted  WriteOutcome = "inserted"
	OrderUpdated   WriteOutcome = "updated"
	OrderUnchanged WriteOutcome = "unchanged"
)

// Batch is the output of one file.
type Batch struct {
	Orders      []OrderRecord
	Collections []CollectionRecord
}

type BatchSummary struct {
	OrdersInserted       int `json:"orders_inserted"`
	OrdersUpdated        int `json:"orders_updated"`
	OrdersUnchanged      int `json:"orders_unchanged"`
	OrdersRejected       int `json:"orders_rejected"`
	CollectionsInserted  int `json:"collections_inserted"`
	CollectionsDuplicate int `json:"collections_duplicate"`
	CollectionsRejected  int `json:"collections_rejected"`
	// RepeatedInFile counts collections identical to an earlier line of the
	// same batch that were kept as separate tranches.
	RepeatedInFile int      `json:"repeated_in_file"`
	Rejections     []string `json:"rejections,omitempty"`
}

// Inserted is the number of new records written.
func (b BatchSummary) Inserted() int {
	return b.OrdersInserted + b.CollectionsInserted
}

type Stats struct {
	SnapshotID        int64            `json:"snapshot_id"`
	OrderCount        int64            `json:"order_count"`
	CollectionCount   int64            `json:"collection_count"`
	TotalExpected     float64          `json:"total_expected"`
	TotalCollected    float64          `json:"total_collected"`
	TotalUncollected  float64          `json:"total_uncollected"`
	CollectionRate    float64          `json:"collection_rate"`
	NetProfit         float64          `json:"net_profit"`
	ProfitMargin      float64          `json:"profit_margin"`
	AverageOrderValue float64          `json:"average_order_value"`
	OrphanCount       int64            `json:"orphan_collection_count"`
	OrphanAmount      float64          `json:"orphan_collection_amount"`
	StatusCounts      map[Status]int64 `json:"status_counts"`
}

type PlatformStats struct {
	Platform        string  `json:"platform"`
	OrderCount      int64   `json:"order_count"`
	CollectionCount int64   `json:"collection_count"`
	TotalExpected   float64 `json:"total_expected"`
	TotalCollected  float64 `json:"total_collected"`
	TotalCost       float64 `json:"total_cost"`
	NetProfit       float64 `json:"net_profit"`
	CollectionRate  float64 `json:"collection_rate"`
}

type ReportFilter struct {
	// Outstanding keeps only orders that are not PAID.
	Outstanding bool
	Platform    string
}

// ReportRow is one flat, denormalized order line for spreadsheet export.
type ReportRow struct {
	OrderID         string     `json:"order_id"`
	Platform        string     `json:"platform"`
	AccountName     string     `json:"account_name"`
	Country         string     `json:"country"`
	OrderDate       *time.Time `json:"order_date,omitempty"`
	WeekNumber      int        `json:"week_number"`
	Expected        float64    `json:"expected_amount"`
	Collected       float64    `json:"collected_amount"`
	Returned        float64    `json:"returned_amount"`
	Difference      float64    `json:"difference"`
	Cost            float64    `json:"cost"`
	Shipping        float64    `json:"shipping"`
	Commission      float64    `json:"commission"`
	Tax             float64    `json:"tax"`
	CollectionFee   float64    `json:"collection_fee"`
	NetProfit       float64    `json:"net_profit"`
	Status          Status     `json:"status"`
	Transactions    int64      `json:"transaction_count"`
	ItemsSummary    string     `json:"items_summary"`
	PaymentMethod   string     `json:"payment_method"`
	UpstreamStatus  string     `json:"upstream_status"`
	TrackingNumber  string     `json:"tracking_number"`
	City            string     `json:"city"`
	ShippingCompany string     `json:"shipping_company"`
}

type ReturnWarning struct {
	OrderID        string `json:"order_id"`
	Platform       string `json:"platform"`
	TrackingNumber string `json:"tracking_number"`
	Status         Status `json:"status"`
}

type ReturnWarnings struct {
	// ReturnedNotScanned are financially returned orders with no physical scan.
	ReturnedNotScanned []ReturnWarning `json:"returned_not_scanned"`
	// ScannedNotReturned are scanned orders with no return collection.
	ScannedNotReturned []ReturnWarning `json:"scanned_not_returned"`
}
