package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/recon/internal/clock"
	"github.com/railzwaylabs/recon/internal/config"
	"github.com/railzwaylabs/recon/internal/costing/domain"
	"github.com/railzwaylabs/recon/internal/costing/repository"
	"github.com/railzwaylabs/recon/internal/costmatch"
	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	ledgerrepo "github.com/railzwaylabs/recon/internal/ledger/repository"
	ledgerservice "github.com/railzwaylabs/recon/internal/ledger/service"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	ledger ledgerdomain.Service
	svc    *Service
	snap   *ledgerdomain.Snapshot
}

func setup(t *testing.T, rdb *redis.Client) fixture {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Background recalculations use the same store.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.Snapshot{},
		&ledgerdomain.Order{},
		&ledgerdomain.Collection{},
		&ledgerdomain.Platform{},
		&ledgerdomain.Account{},
		&domain.ProductCost{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	cfg := config.Config{DefaultCountry: "SA", RecalcLockTTL: time.Minute}

	ledger := ledgerservice.New(ledgerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  ledgerrepo.Provide(),
		Clock: clock.Fixed(testNow),
		Cfg:   cfg,
	})
	snap, err := ledger.CreateSnapshot(context.Background(), ledgerdomain.CreateSnapshotRequest{})
	require.NoError(t, err)

	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Repo:   repository.Provide(),
		Ledger: ledger,
		Clock:  clock.Fixed(testNow),
		Cfg:    cfg,
		Redis:  rdb,
	}).(*Service)
	t.Cleanup(svc.Wait)

	return fixture{db: db, ledger: ledger, svc: svc, snap: snap}
}

func (f fixture) orders(t *testing.T, records ...ledgerdomain.OrderRecord) {
	t.Helper()
	_, err := f.ledger.IngestBatch(context.Background(), f.snap.ID, ledgerdomain.Batch{Orders: records})
	require.NoError(t, err)
}

func (f fixture) cost(t *testing.T, orderID string) float64 {
	t.Helper()
	var cost float64
	require.NoError(t, f.db.Raw(
		`SELECT cost FROM orders WHERE snapshot_id = ? AND order_id = ?`, f.snap.ID, orderID,
	).Scan(&cost).Error)
	return cost
}

func TestRecalculateCostsMatchedOrders(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.orders(t,
		ledgerdomain.OrderRecord{OrderID: "A-1", Platform: "Noon", Price: 100, ItemsSummary: "Shirt x2 | Blue Shirt x1"},
		ledgerdomain.OrderRecord{OrderID: "A-2", Platform: "Noon", Price: 60, ItemsSummary: "(SKU: MUG-1) Coffee mug x3"},
		ledgerdomain.OrderRecord{OrderID: "A-3", Platform: "Noon", Price: 40, ItemsSummary: "Desk Lamp x1", Cost: 15},
		ledgerdomain.OrderRecord{OrderID: "A-4", Platform: "Noon", Price: 10},
	)

	_, err := f.svc.SetCosts(ctx, []domain.SetCostRequest{
		{SKU: "BS-100", ProductName: "Blue Shirt", Cost: 20},
		{SKU: "SH-1", ProductName: "Shirt", Cost: 5},
		{SKU: "MUG-1", Cost: 4},
	})
	require.NoError(t, err)
	f.svc.Wait()

	report, err := f.svc.Recalculate(ctx, f.snap.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Products)
	assert.Equal(t, 3, report.OrdersScanned)
	assert.Equal(t, 0, report.OrdersUpdated, "the triggered run already wrote the costs")
	assert.Equal(t, 4, report.ItemsChecked)
	assert.Equal(t, 3, report.ItemsMatched)

	assert.InDelta(t, 30, f.cost(t, "A-1"), 1e-9)
	assert.InDelta(t, 12, f.cost(t, "A-2"), 1e-9)
	assert.InDelta(t, 15, f.cost(t, "A-3"), 1e-9)
	assert.InDelta(t, 0, f.cost(t, "A-4"), 1e-9)
}

func TestRecalculateKeepsCostWhenNothingMatches(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.orders(t, ledgerdomain.OrderRecord{OrderID: "K-1", Platform: "Noon", Price: 50, ItemsSummary: "Mystery box x1", Cost: 15})

	_, err := f.svc.save(ctx, domain.SetCostRequest{SKU: "SH-1", ProductName: "Shirt", Cost: 5})
	require.NoError(t, err)

	report, err := f.svc.Recalculate(ctx, f.snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrdersScanned)
	assert.Equal(t, 0, report.OrdersUpdated)
	assert.Equal(t, 0, report.ItemsMatched)
	assert.InDelta(t, 15, f.cost(t, "K-1"), 1e-9)
}

func TestRecalculateExactNameBeatsSubstring(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.orders(t, ledgerdomain.OrderRecord{OrderID: "S-1", Platform: "Noon", Price: 50, ItemsSummary: "Shirt x1"})

	for _, req := range []domain.SetCostRequest{
		{SKU: "BS-100", ProductName: "Blue Shirt", Cost: 20},
		{SKU: "SH-1", ProductName: "Shirt", Cost: 5},
	} {
		_, err := f.svc.save(ctx, req)
		require.NoError(t, err)
	}

	_, err := f.svc.Recalculate(ctx, f.snap.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5, f.cost(t, "S-1"), 1e-9)
}

func TestSetCostValidationAndUpsert(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     domain.SetCostRequest
		wantSKU string
		wantErr error
	}{
		{name: "sku and name", req: domain.SetCostRequest{SKU: " SH-1 ", ProductName: "Shirt", Cost: 5.004}, wantSKU: "SH-1"},
		{name: "name only", req: domain.SetCostRequest{ProductName: "Mug", Cost: 4}, wantSKU: costmatch.AutoSKU("Mug")},
		{name: "nothing to key on", req: domain.SetCostRequest{Cost: 4}, wantErr: domain.ErrInvalidSKU},
		{name: "negative", req: domain.SetCostRequest{SKU: "X-1", Cost: -1}, wantErr: domain.ErrNegativeCost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.SetCost(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSKU, got.SKU)
		})
	}
	f.svc.Wait()

	updated, err := f.svc.SetCost(ctx, domain.SetCostRequest{SKU: "SH-1", Cost: 6})
	require.NoError(t, err)
	f.svc.Wait()
	assert.Equal(t, "Shirt", updated.ProductName)
	assert.InDelta(t, 6, updated.Cost, 1e-9)

	items, err := f.svc.ListCosts(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	require.NoError(t, f.svc.DeleteCost(ctx, "SH-1"))
	f.svc.Wait()
	assert.ErrorIs(t, f.svc.DeleteCost(ctx, "SH-1"), domain.ErrCostNotFound)
}

func TestSetCostsCountsRejections(t *testing.T) {
	f := setup(t, nil)

	result, err := f.svc.SetCosts(context.Background(), []domain.SetCostRequest{
		{SKU: "A", Cost: 1},
		{SKU: "", Cost: 2},
		{SKU: "B", Cost: -3},
		{ProductName: "Plate", Cost: 4},
	})
	require.NoError(t, err)
	f.svc.Wait()
	assert.Equal(t, domain.BulkResult{Saved: 2, Rejected: 2}, result)
}

func TestRecalculateRespectsRedisLease(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	f := setup(t, rdb)
	ctx := context.Background()
	key := lockKey(f.snap.ID)

	require.NoError(t, mr.Set(key, "other-process"))
	_, err = f.svc.Recalculate(ctx, f.snap.ID)
	assert.ErrorIs(t, err, domain.ErrRecalcInProgress)
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-process", got)

	mr.Del(key)
	_, err = f.svc.Recalculate(ctx, f.snap.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(key), "lease is released after the run")
}

func TestTriggerRecalculationCoalesces(t *testing.T) {
	f := setup(t, nil)
	f.orders(t, ledgerdomain.OrderRecord{OrderID: "C-1", Platform: "Noon", Price: 50, ItemsSummary: "Shirt x2"})
	_, err := f.svc.save(context.Background(), domain.SetCostRequest{SKU: "SH-1", ProductName: "Shirt", Cost: 5})
	require.NoError(t, err)

	release, err := f.svc.lock.acquire(context.Background(), f.snap.ID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		f.svc.TriggerRecalculation(f.snap.ID)
	}
	f.svc.mu.Lock()
	assert.True(t, f.svc.running[f.snap.ID])
	assert.True(t, f.svc.pending[f.snap.ID])
	f.svc.mu.Unlock()

	release()
	f.svc.Wait()

	f.svc.mu.Lock()
	assert.Empty(t, f.svc.running)
	assert.Empty(t, f.svc.pending)
	f.svc.mu.Unlock()
	assert.InDelta(t, 10, f.cost(t, "C-1"), 1e-9)
}

func TestTriggerWaitsForLeaseHeldElsewhere(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	f := setup(t, rdb)
	f.svc.retryDelay = 5 * time.Millisecond
	f.svc.retryAttempts = 200
	f.orders(t, ledgerdomain.OrderRecord{OrderID: "L-1", Platform: "Noon", Price: 50, ItemsSummary: "Shirt x2"})
	_, err = f.svc.save(context.Background(), domain.SetCostRequest{SKU: "SH-1", ProductName: "Shirt", Cost: 5})
	require.NoError(t, err)

	key := lockKey(f.snap.ID)
	require.NoError(t, mr.Set(key, "other-process"))

	f.svc.TriggerRecalculation(f.snap.ID)
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, f.cost(t, "L-1"))
	f.svc.mu.Lock()
	assert.True(t, f.svc.running[f.snap.ID])
	f.svc.mu.Unlock()

	mr.Del(key)
	f.svc.Wait()

	assert.InDelta(t, 10, f.cost(t, "L-1"), 1e-9)
	assert.False(t, mr.Exists(key))
}

func TestTriggerGivesUpAfterRetries(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	f := setup(t, rdb)
	f.svc.retryDelay = time.Millisecond
	f.svc.retryAttempts = 2
	f.orders(t, ledgerdomain.OrderRecord{OrderID: "L-2", Platform: "Noon", Price: 50, ItemsSummary: "Shirt x1"})
	_, err = f.svc.save(context.Background(), domain.SetCostRequest{SKU: "SH-1", ProductName: "Shirt", Cost: 5})
	require.NoError(t, err)
	require.NoError(t, mr.Set(lockKey(f.snap.ID), "other-process"))

	f.svc.TriggerRecalculation(f.snap.ID)
	f.svc.Wait()

	f.svc.mu.Lock()
	assert.Empty(t, f.svc.running)
	f.svc.mu.Unlock()
	assert.Zero(t, f.cost(t, "L-2"))
}

func TestRetryBudgetCoversLeaseTTL(t *testing.T) {
	f := setup(t, nil)
	assert.Equal(t, triggerRetryDelay, f.svc.retryDelay)
	assert.GreaterOrEqual(t, time.Duration(f.svc.retryAttempts)*f.svc.retryDelay, f.svc.lock.ttl)
}
