package repository

import (
	"context"

	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const orderColumns = `order_id, snapshot_id, platform, account_name, country, order_date, week_number, year,
	price, cost, shipping, cod_fee, commission, tax, items_summary, payment_method, upstream_status,
	order_url, city, shipping_company, tracking_number, discount_value, marketing_source, created_at, updated_at`

const collectionColumns = `id, snapshot_id, order_id, original_amount, collection_fee, collected_amount,
	collection_date, is_return, account_name, source, week_number, year, created_at`

func (r *repo) InsertSnapshot(ctx context.Context, db *gorm.DB, s *domain.Snapshot) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO weekly_snapshots (id, label, week_number, year, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.Label,
		s.WeekNumber,
		s.Year,
		s.Notes,
		s.CreatedAt,
	).Error
}

func (r *repo) FindSnapshot(ctx context.Context, db *gorm.DB, id int64) (*domain.Snapshot, error) {
	var s domain.Snapshot
	res := db.WithContext(ctx).Raw(
		`SELECT id, label, week_number, year, notes, created_at
		 FROM weekly_snapshots WHERE id = ?`,
		id,
	).Scan(&s)
	if res.Error != nil {
		return nil, res.Error
	}
	// snapshot 0 is a real row, so the zero id cannot signal absence.
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) MaxSnapshotID(ctx context.Context, db *gorm.DB) (*int64, error) {
	var row struct {
		MaxID *int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT MAX(id) AS max_id FROM weekly_snapshots`,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.MaxID, nil
}

func (r *repo) ListSnapshots(ctx context.Context, db *gorm.DB) ([]domain.Snapshot, error) {
	var items []domain.Snapshot
	err := db.WithContext(ctx).Raw(
		`SELECT id, label, week_number, year, notes, created_at
		 FROM weekly_snapshots ORDER BY id DESC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DeleteSnapshotData(ctx context.Context, db *gorm.DB, snapshotID int64) (int64, int64, error) {
	cols := db.WithContext(ctx).Exec(`DELETE FROM collections WHERE snapshot_id = ?`, snapshotID)
	if cols.Error != nil {
		return 0, 0, cols.Error
	}
	orders := db.WithContext(ctx).Exec(`DELETE FROM orders WHERE snapshot_id = ?`, snapshotID)
	if orders.Error != nil {
		return 0, 0, orders.Error
	}
	return orders.RowsAffected, cols.RowsAffected, nil
}

func (r *repo) FindOrder(ctx context.Context, db *gorm.DB, snapshotID int64, orderID string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders WHERE snapshot_id = ? AND order_id = ?`,
		snapshotID,
		orderID,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.OrderID == "" {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID,
		o.SnapshotID,
		o.Platform,
		o.AccountName,
		o.Country,
		o.OrderDate,
		o.WeekNumber,
		o.Year,
		o.Price,
		o.Cost,
		o.Shipping,
		o.CODFee,
		o.Commission,
		o.Tax,
		o.ItemsSummary,
		o.PaymentMethod,
		o.UpstreamStatus,
		o.OrderURL,
		o.City,
		o.ShippingCompany,
		o.TrackingNumber,
		o.DiscountValue,
		o.MarketingSource,
		o.CreatedAt,
		o.UpdatedAt,
	).Error
}

// UpdateOrder rewrites every field except cost, which belongs to the
// recalculator.
func (r *repo) UpdateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	if o == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET platform = ?, account_name = ?, country = ?, order_date = ?, week_number = ?, year = ?,
		     price = ?, shipping = ?, cod_fee = ?, commission = ?, tax = ?, items_summary = ?,
		     payment_method = ?, upstream_status = ?, order_url = ?, city = ?, shipping_company = ?,
		     tracking_number = ?, discount_value = ?, marketing_source = ?, updated_at = ?
		 WHERE snapshot_id = ? AND order_id = ?`,
		o.Platform,
		o.AccountName,
		o.Country,
		o.OrderDate,
		o.WeekNumber,
		o.Year,
		o.Price,
		o.Shipping,
		o.CODFee,
		o.Commission,
		o.Tax,
		o.ItemsSummary,
		o.PaymentMethod,
		o.UpstreamStatus,
		o.OrderURL,
		o.City,
		o.ShippingCompany,
		o.TrackingNumber,
		o.DiscountValue,
		o.MarketingSource,
		o.UpdatedAt,
		o.SnapshotID,
		o.OrderID,
	).Error
}

func (r *repo) CountOrders(ctx context.Context, db *gorm.DB, snapshotID int64) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM orders WHERE snapshot_id = ?`,
		snapshotID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountMatchingCollections(ctx context.Context, db *gorm.DB, snapshotID int64, rec domain.CollectionRecord, tolerance float64) (int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Collection{}).
		Where("snapshot_id = ? AND order_id = ?", snapshotID, rec.OrderID).
		Where("ABS(collected_amount - ?) < ?", rec.CollectedAmount, tolerance).
		Where("is_return = ?", rec.IsReturn)

	if rec.CollectionDate != nil {
		stmt = stmt.Where("(collection_date = ? OR collection_date IS NULL)", *rec.CollectionDate)
	} else {
		stmt = stmt.Where("collection_date IS NULL")
	}

	var count int64
	if err := stmt.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) InsertCollection(ctx context.Context, db *gorm.DB, c *domain.Collection) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO collections (`+collectionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.SnapshotID,
		c.OrderID,
		c.OriginalAmount,
		c.CollectionFee,
		c.CollectedAmount,
		c.CollectionDate,
		c.IsReturn,
		c.AccountName,
		c.Source,
		c.WeekNumber,
		c.Year,
		c.CreatedAt,
	).Error
}

func (r *repo) CollectionTotals(ctx context.Context, db *gorm.DB, snapshotID int64) (domain.CollectionTotals, error) {
	var totals domain.CollectionTotals
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS count,
		        COALESCE(SUM(CASE WHEN is_return THEN -ABS(collected_amount) ELSE collected_amount END), 0) AS net
		 FROM collections WHERE snapshot_id = ?`,
		snapshotID,
	).Scan(&totals).Error
	return totals, err
}

// OrphanCollectionTotals sums collections whose order is not in the snapshot.
func (r *repo) OrphanCollectionTotals(ctx context.Context, db *gorm.DB, snapshotID int64) (domain.CollectionTotals, error) {
	var totals domain.CollectionTotals
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS count,
		        COALESCE(SUM(CASE WHEN c.is_return THEN -ABS(c.collected_amount) ELSE c.collected_amount END), 0) AS net
		 FROM collections c
		 WHERE c.snapshot_id = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM orders o
		     WHERE o.snapshot_id = c.snapshot_id
		       AND (o.order_id = c.order_id OR (o.tracking_number <> '' AND o.tracking_number = c.order_id))
		   )`,
		snapshotID,
	).Scan(&totals).Error
	return totals, err
}

func (r *repo) ListCollections(ctx context.Context, db *gorm.DB, snapshotID int64, orderID string) ([]domain.Collection, error) {
	var items []domain.Collection
	err := db.WithContext(ctx).Raw(
		`SELECT `+collectionColumns+`
		 FROM collections WHERE snapshot_id = ? AND order_id = ? ORDER BY created_at ASC, id ASC`,
		snapshotID,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// LedgerRows joins every order of the snapshot with its collections. Courier
// settlements keyed by waybill attach through the order's tracking number.
func (r *repo) LedgerRows(ctx context.Context, db *gorm.DB, snapshotID int64) ([]domain.LedgerRow, error) {
	var rows []domain.LedgerRow
	err := db.WithContext(ctx).Raw(
		`SELECT o.order_id, o.snapshot_id, o.platform, o.account_name, o.country, o.order_date,
		        o.week_number, o.year, o.price, o.cost, o.shipping, o.cod_fee, o.commission, o.tax,
		        o.items_summary, o.payment_method, o.upstream_status, o.tracking_number, o.city,
		        o.shipping_company,
		        COALESCE(c.forward_total, 0) AS collected_net,
		        COALESCE(c.returned_total, 0) AS returned_amount,
		        COALESCE(c.fee_total, 0) AS collection_fees,
		        COALESCE(c.forward_count, 0) AS forward_count,
		        COALESCE(c.return_count, 0) AS return_count
		 FROM orders o
		 LEFT JOIN (
		   SELECT m.order_id,
		          SUM(CASE WHEN col.is_return THEN 0 ELSE col.collected_amount END) AS forward_total,
		          SUM(CASE WHEN col.is_return THEN ABS(col.collected_amount) ELSE 0 END) AS returned_total,
		          SUM(col.collection_fee) AS fee_total,
		          SUM(CASE WHEN col.is_return THEN 0 ELSE 1 END) AS forward_count,
		          SUM(CASE WHEN col.is_return THEN 1 ELSE 0 END) AS return_count
		   FROM collections col
		   JOIN orders m ON m.snapshot_id = col.snapshot_id
		    AND (m.order_id = col.order_id
		         OR (m.tracking_number <> '' AND m.tracking_number <> m.order_id AND m.tracking_number = col.order_id))
		   WHERE col.snapshot_id = ?
		   GROUP BY m.order_id
		 ) c ON c.order_id = o.order_id
		 WHERE o.snapshot_id = ?
		 ORDER BY o.platform ASC, o.order_id ASC`,
		snapshotID,
		snapshotID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FindPlatform(ctx context.Context, db *gorm.DB, name string) (*domain.Platform, error) {
	var p domain.Platform
	err := db.WithContext(ctx).Raw(
		`SELECT name, commission_rate, tax_rate, shipping_default FROM platforms WHERE name = ?`,
		name,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) ListPlatforms(ctx context.Context, db *gorm.DB) ([]domain.Platform, error) {
	var items []domain.Platform
	err := db.WithContext(ctx).Raw(
		`SELECT name, commission_rate, tax_rate, shipping_default FROM platforms ORDER BY name ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertPlatform(ctx context.Context, db *gorm.DB, p *domain.Platform) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO platforms (name, commission_rate, tax_rate, shipping_default)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE
		 SET commission_rate = excluded.commission_rate,
		     tax_rate = excluded.tax_rate,
		     shipping_default = excluded.shipping_default`,
		p.Name,
		p.CommissionRate,
		p.TaxRate,
		p.ShippingDefault,
	).Error
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, name string) (*domain.Account, error) {
	var a domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT name, country, fixed_shipping, cost_includes_tax, payment_commission_rate, tax_rate
		 FROM accounts WHERE name = ?`,
		name,
	).Scan(&a).Error
	if err != nil {
		return nil, err
	}
	if a.Name == "" {
		return nil, nil
	}
	return &a, nil
}

func (r *repo) ListAccounts(ctx context.Context, db *gorm.DB) ([]domain.Account, error) {
	var items []domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT name, country, fixed_shipping, cost_includes_tax, payment_commission_rate, tax_rate
		 FROM accounts ORDER BY name ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertAccount(ctx context.Context, db *gorm.DB, a *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (name, country, fixed_shipping, cost_includes_tax, payment_commission_rate, tax_rate)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE
		 SET country = excluded.country,
		     fixed_shipping = excluded.fixed_shipping,
		     cost_includes_tax = excluded.cost_includes_tax,
		     payment_commission_rate = excluded.payment_commission_rate,
		     tax_rate = excluded.tax_rate`,
		a.Name,
		a.Country,
		a.FixedShipping,
		a.CostIncludesTax,
		a.PaymentCommissionRate,
		a.TaxRate,
	).Error
}

const weeklyReportColumns = `id, snapshot_id, label, week_number, year, total_orders, total_sales,
	total_collected, total_uncollected, net_profit, collection_rate, paid_count, unpaid_count,
	overpaid_count, returned_count, generated_at`

func (r *repo) UpsertWeeklyReport(ctx context.Context, db *gorm.DB, w *domain.WeeklyReport) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO weekly_reports (`+weeklyReportColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (snapshot_id) DO UPDATE
		 SET label = excluded.label,
		     week_number = excluded.week_number,
		     year = excluded.year,
		     total_orders = excluded.total_orders,
		     total_sales = excluded.total_sales,
		     total_collected = excluded.total_collected,
		     total_uncollected = excluded.total_uncollected,
		     net_profit = excluded.net_profit,
		     collection_rate = excluded.collection_rate,
		     paid_count = excluded.paid_count,
		     unpaid_count = excluded.unpaid_count,
		     overpaid_count = excluded.overpaid_count,
		     returned_count = excluded.returned_count,
		     generated_at = excluded.generated_at`,
		w.ID,
		w.SnapshotID,
		w.Label,
		w.WeekNumber,
		w.Year,
		w.TotalOrders,
		w.TotalSales,
		w.TotalCollected,
		w.TotalUncollected,
		w.NetProfit,
		w.CollectionRate,
		w.PaidCount,
		w.UnpaidCount,
		w.OverpaidCount,
		w.ReturnedCount,
		w.GeneratedAt,
	).Error
}

func (r *repo) FindWeeklyReport(ctx context.Context, db *gorm.DB, snapshotID int64) (*domain.WeeklyReport, error) {
	var w domain.WeeklyReport
	err := db.WithContext(ctx).Raw(
		`SELECT `+weeklyReportColumns+` FROM weekly_reports WHERE snapshot_id = ?`,
		snapshotID,
	).Scan(&w).Error
	if err != nil {
		return nil, err
	}
	if w.ID == 0 {
		return nil, nil
	}
	return &w, nil
}

func (r *repo) ListWeeklyReports(ctx context.Context, db *gorm.DB) ([]domain.WeeklyReport, error) {
	var items []domain.WeeklyReport
	err := db.WithContext(ctx).Raw(
		`SELECT ` + weeklyReportColumns + ` FROM weekly_reports ORDER BY snapshot_id DESC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// InsertReturnScan reports false when the code was already scanned.
func (r *repo) InsertReturnScan(ctx context.Context, db *gorm.DB, s *domain.ReturnScan) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO return_scans (id, code, note, scanned_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (code) DO NOTHING`,
		s.ID,
		s.Code,
		s.Note,
		s.ScannedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListReturnScanCodes(ctx context.Context, db *gorm.DB) ([]string, error) {
	var codes []string
	err := db.WithContext(ctx).Raw(
		`SELECT code FROM return_scans ORDER BY scanned_at ASC`,
	).Scan(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *repo) InsertFileImport(ctx context.Context, db *gorm.DB, f *domain.FileImport) error {
	return db.WithContext(ctx).Create(f).Error
}

func (r *repo) ListFileImports(ctx context.Context, db *gorm.DB, runID string) ([]domain.FileImport, error) {
	var items []domain.FileImport
	stmt := db.WithContext(ctx).Model(&domain.FileImport{})
	if runID != "" {
		stmt = stmt.Where("run_id = ?", runID)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
