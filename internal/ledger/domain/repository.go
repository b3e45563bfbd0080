package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// LedgerRow is an order joined with the aggregate of its collections.
type LedgerRow struct {
	OrderID         string
	SnapshotID      int64
	Platform        string
	AccountName     string
	Country         string
	OrderDate       *time.Time
	WeekNumber      int
	Year            int
	Price           float64
	Cost            float64
	Shipping        float64
	CODFee          float64
	Commission      float64
	Tax             float64
	ItemsSummary    string
	PaymentMethod   string
	UpstreamStatus  string
	TrackingNumber  string
	City            string
	ShippingCompany string
	CollectedNet    float64
	ReturnedAmount  float64
	CollectionFees  float64
	ForwardCount    int64
	ReturnCount     int64
}

// CollectionTotals are snapshot-wide collection sums.
type CollectionTotals struct {
	Count int64
	// Net is forward amounts minus absolute return amounts.
	Net float64
}

type Repository interface {
	InsertSnapshot(ctx context.Context, db *gorm.DB, s *Snapshot) error
	FindSnapshot(ctx context.Context, db *gorm.DB, id int64) (*Snapshot, error)
	MaxSnapshotID(ctx context.Context, db *gorm.DB) (*int64, error)
	ListSnapshots(ctx context.Context, db *gorm.DB) ([]Snapshot, error)
	DeleteSnapshotData(ctx context.Context, db *gorm.DB, snapshotID int64) (orders int64, collections int64, err error)

	FindOrder(ctx context.Context, db *gorm.DB, snapshotID int64, orderID string) (*Order, error)
	InsertOrder(ctx context.Context, db *gorm.DB, o *Order) error
	UpdateOrder(ctx context.Context, db *gorm.DB, o *Order) error
	CountOrders(ctx context.Context, db *gorm.DB, snapshotID int64) (int64, error)

	CountMatchingCollections(ctx context.Context, db *gorm.DB, snapshotID int64, rec CollectionRecord, tolerance float64) (int64, error)
	InsertCollection(ctx context.Context, db *gorm.DB, c *Collection) error
	CollectionTotals(ctx context.Context, db *gorm.DB, snapshotID int64) (CollectionTotals, error)
	OrphanCollectionTotals(ctx context.Context, db *gorm.DB, snapshotID int64) (CollectionTotals, error)
	ListCollections(ctx context.Context, db *gorm.DB, snapshotID int64, orderID string) ([]Collection, error)

	LedgerRows(ctx context.Context, db *gorm.DB, snapshotID int64) ([]LedgerRow, error)

	FindPlatform(ctx context.Context, db *gorm.DB, name string) (*Platform, error)
	ListPlatforms(ctx context.Context, db *gorm.DB) ([]Platform, error)
	UpsertPlatform(ctx context.Context, db *gorm.DB, p *Platform) error
	FindAccount(ctx context.Context, db *gorm.DB, name string) (*Account, error)
	ListAccounts(ctx context.Context, db *gorm.DB) ([]Account, error)
	UpsertAccount(ctx context.Context, db *gorm.DB, a *Account) error

	UpsertWeeklyReport(ctx context.Context, db *gorm.DB, r *WeeklyReport) error
	FindWeeklyReport(ctx context.Context, db *gorm.DB, snapshotID int64) (*WeeklyReport, error)
	ListWeeklyReports(ctx context.Context, db *gorm.DB) ([]WeeklyReport, error)

	InsertReturnScan(ctx context.Context, db *gorm.DB, s *ReturnScan) (bool, error)
	ListReturnScanCodes(ctx context.Context, db *gorm.DB) ([]string, error)

	InsertFileImport(ctx context.Context, db *gorm.DB, f *FileImport) error
	ListFileImports(ctx context.Context, db *gorm.DB, runID string) ([]FileImport, error)
}
