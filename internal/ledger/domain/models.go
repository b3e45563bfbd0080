package domain

import (
	"time"

	"gorm.io/datatypes"
)

// LegacySnapshotID is the snapshot seeded with the schema; data imported
// before weekly snapshots existed lives there.
const LegacySnapshotID int64 = 0

// Snapshot is one weekly period of the ledger.
type Snapshot struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Label      string    `gorm:"type:text;not null" json:"label"`
	WeekNumber int       `gorm:"not null;default:0" json:"week_number"`
	Year       int       `gorm:"not null;default:0" json:"year"`
	Notes      string    `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Snapshot) TableName() string { return "weekly_snapshots" }

// Order is a single sale on one platform within one snapshot.
type Order struct {
	OrderID         string     `gorm:"primaryKey;type:text"`
	SnapshotID      int64      `gorm:"primaryKey;autoIncrement:false"`
	Platform        string     `gorm:"type:text;not null;index"`
	AccountName     string     `gorm:"type:text"`
	Country         string     `gorm:"type:text"`
	OrderDate       *time.Time `gorm:"type:date"`
	WeekNumber      int
	Year            int
	Price           float64 `gorm:"not null;default:0"`
	Cost            float64 `gorm:"not null;default:0"`
	Shipping        float64 `gorm:"not null;default:0"`
	CODFee          float64 `gorm:"column:cod_fee;not null;default:0"`
	Commission      float64 `gorm:"not null;default:0"`
	Tax             float64 `gorm:"not null;default:0"`
	ItemsSummary    string  `gorm:"type:text"`
	PaymentMethod   string  `gorm:"type:text"`
	UpstreamStatus  string  `gorm:"type:text"`
	OrderURL        string  `gorm:"column:order_url;type:text"`
	City            string  `gorm:"type:text"`
	ShippingCompany string  `gorm:"type:text"`
	TrackingNumber  string  `gorm:"type:text;index"`
	DiscountValue   float64 `gorm:"not null;default:0"`
	MarketingSource string  `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// Collection is one settlement line; returns carry IsReturn.
type Collection struct {
	ID              int64      `gorm:"primaryKey;autoIncrement:false"`
	SnapshotID      int64      `gorm:"not null;index:idx_collections_snapshot_order"`
	OrderID         string     `gorm:"type:text;not null;index:idx_collections_snapshot_order"`
	OriginalAmount  float64    `gorm:"not null;default:0"`
	CollectionFee   float64    `gorm:"not null;default:0"`
	CollectedAmount float64    `gorm:"not null;default:0"`
	CollectionDate  *time.Time `gorm:"type:date"`
	IsReturn        bool       `gorm:"not null;default:false"`
	AccountName     string     `gorm:"type:text"`
	Source          string     `gorm:"type:text"`
	WeekNumber      int
	Year            int
	CreatedAt       time.Time
}

// TableName sets the database table name.
func (Collection) TableName() string { return "collections" }

// Platform holds fee defaults applied when an export has no fee column.
type Platform struct {
	Name            string  `gorm:"primaryKey;type:text" json:"name"`
	CommissionRate  float64 `gorm:"not null;default:0" json:"commission_rate"`
	TaxRate         float64 `gorm:"not null;default:0" json:"tax_rate"`
	ShippingDefault float64 `gorm:"not null;default:0" json:"shipping_default"`
}

// TableName sets the database table name.
func (Platform) TableName() string { return "platforms" }

// Account is a configured store or branch.
type Account struct {
	Name                  string  `gorm:"primaryKey;type:text" json:"name"`
	Country               string  `gorm:"type:text" json:"country"`
	FixedShipping         float64 `gorm:"not null;default:0" json:"fixed_shipping"`
	CostIncludesTax       bool    `gorm:"not null;default:false" json:"cost_includes_tax"`
	PaymentCommissionRate float64 `gorm:"not null;default:0" json:"payment_commission_rate"`
	TaxRate               float64 `gorm:"not null;default:0" json:"tax_rate"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// WeeklyReport caches the aggregate of one snapshot.
type WeeklyReport struct {
	ID               int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	SnapshotID       int64     `gorm:"not null;uniqueIndex" json:"snapshot_id"`
	Label            string    `json:"label"`
	WeekNumber       int       `json:"week_number"`
	Year             int       `json:"year"`
	TotalOrders      int64     `json:"total_orders"`
	TotalSales       float64   `json:"total_sales"`
	TotalCollected   float64   `json:"total_collected"`
	TotalUncollected float64   `json:"total_uncollected"`
	NetProfit        float64   `json:"net_profit"`
	CollectionRate   float64   `json:"collection_rate"`
	PaidCount        int64     `json:"paid_count"`
	UnpaidCount      int64     `json:"unpaid_count"`
	OverpaidCount    int64     `json:"overpaid_count"`
	ReturnedCount    int64     `json:"returned_count"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// TableName sets the database table name.
func (WeeklyReport) TableName() string { return "weekly_reports" }

// ReturnScan is a physically received return parcel.
type ReturnScan struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Code      string    `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Note      string    `gorm:"type:text" json:"note"`
	ScannedAt time.Time `gorm:"not null" json:"scanned_at"`
}

// TableName sets the database table name.
func (ReturnScan) TableName() string { return "return_scans" }

// FileImport records what one pipeline run did with one file.
type FileImport struct {
	ID                   int64             `gorm:"primaryKey;autoIncrement:false" json:"id"`
	RunID                string            `gorm:"type:text;not null;index" json:"run_id"`
	SnapshotID           int64             `gorm:"not null;index" json:"snapshot_id"`
	FileName             string            `gorm:"type:text;not null" json:"file_name"`
	Label                string            `gorm:"type:text;not null" json:"label"`
	AccountName          string            `gorm:"type:text" json:"account_name"`
	RowsRead             int               `json:"rows_read"`
	OrdersInserted       int               `json:"orders_inserted"`
	OrdersUpdated        int               `json:"orders_updated"`
	OrdersUnchanged      int               `json:"orders_unchanged"`
	CollectionsInserted  int               `json:"collections_inserted"`
	CollectionsDuplicate int               `json:"collections_duplicate"`
	CostsUpserted        int               `json:"costs_upserted"`
	RowsSkipped          int               `json:"rows_skipped"`
	SkipReasons          datatypes.JSONMap `json:"skip_reasons"`
	Error                string            `gorm:"type:text" json:"error"`
	CreatedAt            time.Time         `json:"created_at"`
}

// TableName sets the database table name.
func (FileImport) TableName() string { return "file_imports" }

// OrderRecord is an order as produced by an extractor, before enrichment.
type OrderRecord struct {
	OrderID         string
	Platform        string
	AccountName     string
	OrderDate       *time.Time
	Price           float64
	Cost            float64
	Shipping        float64
	CODFee          float64
	Commission      float64
	Tax             float64
	ItemsSummary    string
	PaymentMethod   string
	UpstreamStatus  string
	OrderURL        string
	City            string
	ShippingCompany string
	TrackingNumber  string
	DiscountValue   float64
	MarketingSource string

	// Set when the export carried the matching fee column, so platform
	// defaults must not be applied.
	HasShipping   bool
	HasCommission bool
	HasTax        bool
}

// CollectionRecord is a settlement line as produced by an extractor.
type CollectionRecord struct {
	OrderID         string
	OriginalAmount  float64
	CollectionFee   float64
	CollectedAmount float64
	CollectionDate  *time.Time
	IsReturn        bool
	AccountName     string
	Source          string
}
