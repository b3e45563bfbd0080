package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/recon/internal/clock"
	"github.com/railzwaylabs/recon/internal/config"
	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/ledger/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

func day(d int) *time.Time {
	t := time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Snapshot{},
		&domain.Order{},
		&domain.Collection{},
		&domain.Platform{},
		&domain.Account{},
		&domain.WeeklyReport{},
		&domain.ReturnScan{},
		&domain.FileImport{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.Fixed(testNow),
		Cfg:   config.Config{DefaultCountry: "SA"},
	}).(*Service)
	return svc, db
}

func mustSnapshot(t *testing.T, svc *Service) *domain.Snapshot {
	t.Helper()
	snap, err := svc.CreateSnapshot(context.Background(), domain.CreateSnapshotRequest{})
	require.NoError(t, err)
	return snap
}

func sampleBatch() domain.Batch {
	return domain.Batch{
		Orders: []domain.OrderRecord{
			{OrderID: "N-1", Platform: "Noon", AccountName: "Noon Account", OrderDate: day(1), Price: 100},
			{OrderID: "N-2", Platform: "Noon", AccountName: "Noon Account", OrderDate: day(2), Price: 50},
		},
		Collections: []domain.CollectionRecord{
			{OrderID: "N-1", OriginalAmount: 100, CollectionFee: 5, CollectedAmount: 95, CollectionDate: day(4)},
			{OrderID: "N-2", OriginalAmount: 50, CollectedAmount: 50, CollectionDate: day(4)},
		},
	}
}

func TestCreateSnapshotAssignsSequentialIDs(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	first := mustSnapshot(t, svc)
	second := mustSnapshot(t, svc)

	assert.Equal(t, domain.LegacySnapshotID, first.ID)
	assert.Equal(t, int64(1), second.ID)
	assert.Equal(t, "Week 10 - 2024", second.Label)

	active, err := svc.ActiveSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), active.ID)

	_, err = svc.GetSnapshot(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestActiveSnapshotOnEmptyStore(t *testing.T) {
	svc, _ := setupService(t)

	snap, err := svc.ActiveSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.LegacySnapshotID, snap.ID)
	assert.Equal(t, "Legacy", snap.Label)
}

func TestIngestBatchIsIdempotent(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	snap := mustSnapshot(t, svc)

	first, err := svc.IngestBatch(ctx, snap.ID, sampleBatch())
	require.NoError(t, err)
	assert.Equal(t, 4, first.Inserted())

	statsBefore, err := svc.Stats(ctx, snap.ID)
	require.NoError(t, err)

	second, err := svc.IngestBatch(ctx, snap.ID, sampleBatch())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted())
	assert.Equal(t, 2, second.OrdersUnchanged)
	assert.Equal(t, 2, second.CollectionsDuplicate)

	statsAfter, err := svc.Stats(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, statsBefore, statsAfter)
	assert.Equal(t, int64(2), statsAfter.CollectionCount)
	assert.InDelta(t, 145, statsAfter.TotalCollected, 1e-9)
}

func TestIdenticalTranchesInOneBatchSurvive(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	snap := mustSnapshot(t, svc)

	tranche := domain.CollectionRecord{OrderID: "T-1", OriginalAmount: 25, CollectedAmount: 25, CollectionDate: day(3)}
	batch := domain.Batch{
		Orders:      []domain.OrderRecord{{OrderID: "T-1", Platform: "Trendyol", Price: 50}},
		Collections: []domain.CollectionRecord{tranche, tranche},
	}

	first, err := svc.IngestBatch(ctx, snap.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, first.CollectionsInserted)
	assert.Equal(t, 1, first.RepeatedInFile)

	second, err := svc.IngestBatch(ctx, snap.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.CollectionsInserted)
	assert.Equal(t, 2, second.CollectionsDuplicate)

	stats, err := svc.Stats(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.CollectionCount)
	assert.Equal(t, int64(1), stats.StatusCounts[domain.StatusPaid])
}

func TestIngestCollectionDedupRules(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	snap := mustSnapshot(t, svc)

	stored := domain.CollectionRecord{OrderID: "A-1", CollectedAmount: 100, CollectionDate: day(4)}
	inserted, err := svc.IngestCollection(ctx, snap.ID, stored)
	require.NoError(t, err)
	require.True(t, inserted)

	undated := domain.CollectionRecord{OrderID: "A-2", CollectedAmount: 10}
	inserted, err = svc.IngestCollection(ctx, snap.ID, undated)
	require.NoError(t, err)
	require.True(t, inserted)

	tests := []struct {
		name     string
		rec      domain.CollectionRecord
		inserted bool
	}{
		{name: "exact repeat", rec: stored, inserted: false},
		{name: "within tolerance", rec: domain.CollectionRecord{OrderID: "A-1", CollectedAmount: 100.0005, CollectionDate: day(4)}, inserted: false},
		{name: "padded order id", rec: domain.CollectionRecord{OrderID: " A-1 ", CollectedAmount: 100, CollectionDate: day(4)}, inserted: false},
		{name: "dated repeat of undated row", rec: domain.CollectionRecord{OrderID: "A-2", CollectedAmount: 10, CollectionDate: day(9)}, inserted: false},
		{name: "different amount", rec: domain.CollectionRecord{OrderID: "A-1", CollectedAmount: 100.01, CollectionDate: day(4)}, inserted: true},
		{name: "different date", rec: domain.CollectionRecord{OrderID: "A-1", CollectedAmount: 100, CollectionDate: day(5)}, inserted: true},
		{name: "return flag differs", rec: domain.CollectionRecord{OrderID: "A-1", CollectedAmount: 100, CollectionDate: day(4), IsReturn: true}, inserted: true},
		{name: "other order", rec: domain.CollectionRecord{OrderID: "A-3", CollectedAmount: 100, CollectionDate: day(4)}, inserted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IngestCollection(ctx, snap.ID, tt.rec)
			require.NoError(t, err)
			assert.Equal(t, tt.inserted, got)
		})
	}

	_, err = svc.IngestCollection(ctx, snap.ID, domain.CollectionRecord{OrderID: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidOrderID)
}

func TestSnapshotIsolation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	weekA := mustSnapshot(t, svc)
	weekB := mustSnapshot(t, svc)

	_, err := svc.IngestBatch(ctx, weekA.ID, sampleBatch())
	require.NoError(t, err)

	other := domain.Batch{
		Orders:      []domain.OrderRecord{{OrderID: "N-1", Platform: "Noon", Price: 300}},
		Collections: []domain.CollectionRecord{{OrderID: "N-1", CollectedAmount: 300, CollectionDate: day(4)}},
	}
	summary, err := svc.IngestBatch(ctx, weekB.ID, other)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OrdersInserted)
	assert.Equal(t, 1, summary.CollectionsInserted)

	statsA, err := svc.Stats(ctx, weekA.ID)
	require.NoError(t, err)
	statsB, err := svc.Stats(ctx, weekB.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), statsA.OrderCount)
	assert.InDelta(t, 150, statsA.TotalExpected, 1e-9)
	assert.Equal(t, int64(1), statsB.OrderCount)
	assert.InDelta(t, 300, statsB.TotalExpected, 1e-9)

	reset, err := svc.ResetSnapshot(ctx, weekB.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset.OrdersDeleted)
	assert.Equal(t, int64(1), reset.CollectionsDeleted)

	statsAAfter, err := svc.Stats(ctx, weekA.ID)
	require.NoError(t, err)
	assert.Equal(t, statsA, statsAAfter)

	statsB, err = svc.Stats(ctx, weekB.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), statsB.OrderCount)

	_, err = svc.ResetSnapshot(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestStatsStatusBoundaries(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	snap := mustSnapshot(t, svc)

	batch := domain.Batch{
		Orders: []domain.OrderRecord{
			{OrderID: "B-1", Platform: "Website", Price: 100},
			{OrderID: "B-2", Platform: "Website", Price: 100},
			{OrderID: "B-3", Platform: "Website", Price: 100},
			{OrderID: "B-4", Platform: "Website", Price: 100},
		},
		Collections: []domain.CollectionRecord{
			{OrderID: "B-1", CollectedAmount: 100.10, CollectionDate: day(4)},
			{OrderID: "B-2", CollectedAmount: 100.11, CollectionDate: day(4)},
			{OrderID: "B-4", CollectedAmount: -40, CollectionDate: day(4), IsReturn: true},
			{OrderID: "X-9", CollectedAmount: 12, CollectionDate: day(4)},
		},
	}
	_, err := svc.IngestBatch(ctx, snap.ID, batch)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, snap.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.OrderCount)
	assert.Equal(t, int64(4), stats.CollectionCount)
	assert.Equal(t, map[domain.Status]int64{
		domain.StatusPaid:     1,
		domain.StatusOverpaid: 1,
		domain.StatusUnpaid:   1,
		domain.StatusReturned: 1,
	}, stats.StatusCounts)
	assert.InDelta(t, 400, stats.TotalExpected, 1e-9)
	assert.InDelta(t, 172.21, stats.TotalCollected, 1e-9)
	assert.InDelta(t, 100, stats.TotalUncollected, 1e-9)
	assert.InDelta(t, 43.1, stats.CollectionRate, 1e-9)
	assert.InDelta(t, 100, stats.AverageOrderValue, 1e-9)
	assert.Equal(t, int64(1), stats.OrphanCount)
	assert.InDelta(t, 12, stats.OrphanAmount, 1e-9)
}

func TestNetProfitIsConsistentAcrossReports(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	snap := mustSnapshot(t, svc)

	batch := domain.Batch{
		Orders: []domain.OrderRecord{{
			OrderID: "P-1", Platform: "Ilasouq", Price: 100,
			Cost: 10, Shipping: 5, Commission: 3, Tax: 2, CODFee: 1,
			HasShipping: true, HasCommission: true, HasTax: true,
		}},
		Collections: []domain.CollectionRecord{{OrderID: "P-1", CollectedAmount: 100, CollectionDate: day(4)}},
	}
	_, err := svc.IngestBatch(ctx, snap.ID, batch)
	require.NoError(t, err)

	rows, err := svc.ReportRows(ctx, snap.ID, domain.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 79, rows[0].NetProfit, 1e-9)
	assert.Equal(t, domain.StatusPaid, rows[0].Status)
	assert.InDelta(t, 0, rows[0].Difference, 1e-9)

	breakdown, err := svc.PlatformBreakdown(ctx, snap.ID)
	require.NoError(t, err)
	require.Len(t, breakdown, 1)
	assert.Equal(t, "Ilasouq", breakdown[0].Platform)
	assert.InDelta(t, 79, breakdown[0].NetProfit, 1e-9)
	assert.InDelta(t, 21, breakdown[0].TotalCost, 1e-9)
	assert.InDelta(t, 100, breakdown[0].CollectionRate, 1e-9)

	stats, err := svc.Stats(ctx, snap.ID)
	require.NoError(t, err)
	assert.InDelta(t, 79, stats.NetProfit, 1e-9)
	assert.InDelta(t, 79, stats.ProfitMargin, 1e-9)

	outstanding, err := svc.ReportRows(ctx, snap.ID, domain.ReportFilter{Outstanding: true})
	require.NoError(t, err)
	assert.Empty(t, outstanding)
}

func TestOrderEnrichment(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	snap := mustSnapshot(t, svc)

	require.NoError(t, svc.SavePlatform(ctx, domain.Platform{Name: "Noon", CommissionRate: 0.1, TaxRate: 0.15, ShippingDefault: 12}))
	require.NoError(t, svc.SaveAccount(ctx, domain.Account{Name: "Gulf Store", Country: "ae"}))
	require.NoError(t, svc.SaveAccount(ctx, domain.Account{Name: "Fixed", FixedShipping: 9, CostIncludesTax: true, PaymentCommissionRate: 0.02}))
	assert.ErrorIs(t, svc.SavePlatform(ctx, domain.Platform{Name: " "}), domain.ErrInvalidName)

	batch := domain.Batch{Orders: []domain.OrderRecord{
		{OrderID: "E-1", Platform: "Noon", AccountName: "Gulf Store", Price: 200},
		{OrderID: "E-2", Platform: "Noon", AccountName: "Fixed", Price: 200},
		{OrderID: "E-3", Platform: "Noon", Price: 200, HasCommission: true, HasShipping: true, Shipping: 7},
	}}
	_, err := svc.IngestBatch(ctx, snap.ID, batch)
	require.NoError(t, err)

	tests := []struct {
		name       string
		orderID    string
		country    string
		shipping   float64
		commission float64
		tax        float64
	}{
		{name: "platform defaults with account country", orderID: "E-1", country: "AE", shipping: 12, commission: 20, tax: 30},
		{name: "account overrides", orderID: "E-2", country: "SA", shipping: 9, commission: 4, tax: 0},
		{name: "export columns win", orderID: "E-3", country: "SA", shipping: 7, commission: 0, tax: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := svc.repo.FindOrder(ctx, svc.db, snap.ID, tt.orderID)
			require.NoError(t, err)
			require.NotNil(t, o)
			assert.Equal(t, tt.country, o.Country)
			assert.InDelta(t, tt.shipping, o.Shipping, 1e-9)
			assert.InDelta(t, tt.commission, o.Commission, 1e-9)
			assert.InDelta(t, tt.tax, o.Tax, 1e-9)
		})
	}
}

func TestIngestOrderUpdateKeepsCost(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	snap := mustSnapshot(t, svc)

	rec := domain.OrderRecord{OrderID: "U-1", Platform: "Website", Price: 100, OrderDate: day(1)}
	outcome, err := svc.IngestOrder(ctx, snap.ID, rec)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderInserted, outcome)

	require.NoError(t, db.Exec(`UPDATE orders SET cost = 15 WHERE order_id = ?`, "U-1").Error)

	outcome, err = svc.IngestOrder(ctx, snap.ID, rec)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderUnchanged, outcome)

	rec.Price = 130
	outcome, err = svc.IngestOrder(ctx, snap.ID, rec)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderUpdated, outcome)

	o, err := svc.repo.FindOrder(ctx, db, snap.ID, "U-1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.InDelta(t, 130, o.Price, 1e-9)
	assert.InDelta(t, 15, o.Cost, 1e-9)
	assert.Equal(t, 9, o.WeekNumber)
}

func TestIngestBatchRejectsInvalidRecords(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	snap := mustSnapshot(t, svc)

	batch := domain.Batch{
		Orders: []domain.OrderRecord{
			{OrderID: "", Platform: "Noon", Price: 10},
			{OrderID: "R-1", Platform: "Noon", Price: -5},
			{OrderID: "R-2", Platform: "Noon", Price: 5},
		},
		Collections: []domain.CollectionRecord{
			{OrderID: " ", CollectedAmount: 5},
			{OrderID: "R-2", CollectedAmount: 5},
		},
	}
	summary, err := svc.IngestBatch(ctx, snap.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.OrdersRejected)
	assert.Equal(t, 1, summary.OrdersInserted)
	assert.Equal(t, 1, summary.CollectionsRejected)
	assert.Equal(t, 1, summary.CollectionsInserted)
	assert.Len(t, summary.Rejections, 3)
}

func TestReturnWarnings(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	snap := mustSnapshot(t, svc)

	batch := domain.Batch{
		Orders: []domain.OrderRecord{
			{OrderID: "R-1", Platform: "Noon", Price: 80, TrackingNumber: "TRK1"},
			{OrderID: "R-2", Platform: "Noon", Price: 60},
			{OrderID: "R-3", Platform: "Noon", Price: 40},
		},
		Collections: []domain.CollectionRecord{
			{OrderID: "R-1", CollectedAmount: -80, CollectionDate: day(4), IsReturn: true},
			{OrderID: "R-2", CollectedAmount: -60, CollectionDate: day(4), IsReturn: true},
			{OrderID: "R-3", CollectedAmount: 40, CollectionDate: day(4)},
		},
	}
	_, err := svc.IngestBatch(ctx, snap.ID, batch)
	require.NoError(t, err)

	inserted, err := svc.RecordReturnScan(ctx, " trk1 ", "box 4")
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = svc.RecordReturnScan(ctx, "TRK1", "")
	require.NoError(t, err)
	assert.False(t, inserted)
	_, err = svc.RecordReturnScan(ctx, "r-3", "")
	require.NoError(t, err)
	_, err = svc.RecordReturnScan(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidScanCode)

	warnings, err := svc.ReturnWarnings(ctx, snap.ID)
	require.NoError(t, err)
	require.Len(t, warnings.ReturnedNotScanned, 1)
	assert.Equal(t, "R-2", warnings.ReturnedNotScanned[0].OrderID)
	assert.Equal(t, domain.StatusReturned, warnings.ReturnedNotScanned[0].Status)
	require.Len(t, warnings.ScannedNotReturned, 1)
	assert.Equal(t, "R-3", warnings.ScannedNotReturned[0].OrderID)
}

func TestRefreshWeeklyReportUpserts(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	snap := mustSnapshot(t, svc)

	_, err := svc.IngestBatch(ctx, snap.ID, sampleBatch())
	require.NoError(t, err)

	first, err := svc.RefreshWeeklyReport(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.TotalOrders)
	assert.Equal(t, int64(2), first.PaidCount)

	_, err = svc.IngestOrder(ctx, snap.ID, domain.OrderRecord{OrderID: "N-3", Platform: "Noon", Price: 20})
	require.NoError(t, err)

	second, err := svc.RefreshWeeklyReport(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), second.UnpaidCount)

	reports, err := svc.ListWeeklyReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, int64(3), reports[0].TotalOrders)
}

func TestFileImportHistory(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordFileImport(ctx, domain.FileImport{
		RunID:       "run-1",
		FileName:    "noon.csv",
		Label:       "noon_orders",
		RowsRead:    10,
		RowsSkipped: 1,
		SkipReasons: datatypes.JSONMap{"non_numeric_amount": 1},
	}))
	require.NoError(t, svc.RecordFileImport(ctx, domain.FileImport{RunID: "run-2", FileName: "x.csv", Label: "unknown"}))

	items, err := svc.ListFileImports(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "noon.csv", items[0].FileName)
	assert.Equal(t, 1, items[0].RowsSkipped)
	assert.NotZero(t, items[0].ID)

	all, err := svc.ListFileImports(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCourierSettlementMatchesTrackingNumber(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	snap := mustSnapshot(t, svc)

	batch := domain.Batch{
		Orders: []domain.OrderRecord{{OrderID: "S-1", Platform: "Ilasouq", Price: 90, TrackingNumber: "290011223344"}},
		Collections: []domain.CollectionRecord{
			{OrderID: "290011223344", OriginalAmount: 90, CollectionFee: 5, CollectedAmount: 85, CollectionDate: day(6), Source: "smsa_collections"},
		},
	}
	_, err := svc.IngestBatch(ctx, snap.ID, batch)
	require.NoError(t, err)

	rows, err := svc.ReportRows(ctx, snap.ID, domain.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 85, rows[0].Collected, 1e-9)
	assert.Equal(t, domain.StatusPaid, rows[0].Status)

	stats, err := svc.Stats(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.OrphanCount)
}
