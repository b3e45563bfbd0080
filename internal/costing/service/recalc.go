package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/railzwaylabs/recon/internal/costing/domain"
	"github.com/railzwaylabs/recon/internal/costmatch"
	"github.com/railzwaylabs/recon/internal/observability"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// costEpsilon is below the cent precision costs are stored with.
const costEpsilon = 0.005

func (s *Service) RecalculateActive(ctx context.Context) (domain.RecalcReport, error) {
	snap, err := s.ledger.ActiveSnapshot(ctx)
	if err != nil {
		return domain.RecalcReport{}, err
	}
	return s.Recalculate(ctx, snap.ID)
}

func (s *Service) Recalculate(ctx context.Context, snapshotID int64) (domain.RecalcReport, error) {
	report := domain.RecalcReport{SnapshotID: snapshotID}

	release, err := s.lock.acquire(ctx, snapshotID)
	if err != nil {
		observability.RecalcRuns.WithLabelValues("locked").Inc()
		return report, err
	}
	defer release()

	start := time.Now()
	report, err = s.recalculate(ctx, snapshotID)
	observability.RecalcDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.RecalcRuns.WithLabelValues("error").Inc()
		return report, err
	}
	observability.RecalcRuns.WithLabelValues("ok").Inc()
	observability.OrdersCosted.Add(float64(report.OrdersUpdated))

	s.log.Info("costs recalculated",
		zap.Int64("snapshot_id", snapshotID),
		zap.Int("orders_scanned", report.OrdersScanned),
		zap.Int("orders_updated", report.OrdersUpdated),
		zap.Int("items_checked", report.ItemsChecked),
		zap.Int("items_matched", report.ItemsMatched),
	)
	return report, nil
}

func (s *Service) recalculate(ctx context.Context, snapshotID int64) (domain.RecalcReport, error) {
	report := domain.RecalcReport{SnapshotID: snapshotID}

	costs, err := s.repo.ListProductCosts(ctx, s.db)
	if err != nil {
		return report, err
	}
	products := make([]costmatch.Product, 0, len(costs))
	for _, c := range costs {
		products = append(products, costmatch.Product{SKU: c.SKU, Name: c.ProductName, Cost: c.Cost})
	}
	resolver := costmatch.NewResolver(products)
	report.Products = len(costs)

	lines, err := s.repo.ListOrderCostLines(ctx, s.db, snapshotID)
	if err != nil {
		return report, err
	}

	now := s.clock.Now(ctx)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			report.OrdersScanned++
			oc := resolver.Cost(line.ItemsSummary)
			report.ItemsChecked += oc.Items
			report.ItemsMatched += oc.Matched
			if oc.Matched == 0 || math.Abs(oc.Cost-line.Cost) < costEpsilon {
				continue
			}
			if err := s.repo.UpdateOrderCost(ctx, tx, snapshotID, line.OrderID, oc.Cost, now); err != nil {
				return err
			}
			report.OrdersUpdated++
		}
		return nil
	})
	return report, err
}

func (s *Service) TriggerRecalculation(snapshotID int64) {
	s.mu.Lock()
	if s.running[snapshotID] {
		s.pending[snapshotID] = true
		s.mu.Unlock()
		return
	}
	s.running[snapshotID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runTriggered(snapshotID)
}

// runTriggered reruns once per queued trigger. A lease held by another
// process keeps the trigger queued and is retried until the lease can have
// expired.
func (s *Service) runTriggered(snapshotID int64) {
	defer s.wg.Done()
	busy := 0
	for {
		_, err := s.Recalculate(context.Background(), snapshotID)
		switch {
		case errors.Is(err, domain.ErrRecalcInProgress) && busy < s.retryAttempts:
			busy++
			s.log.Info("recalculation lease held elsewhere, retrying",
				zap.Int64("snapshot_id", snapshotID),
				zap.Int("attempt", busy),
				zap.Duration("delay", s.retryDelay),
			)
			time.Sleep(s.retryDelay)
			continue
		case err != nil:
			s.log.Warn("background recalculation failed",
				zap.Int64("snapshot_id", snapshotID),
				zap.Error(err),
			)
		}
		busy = 0

		s.mu.Lock()
		if !s.pending[snapshotID] {
			delete(s.running, snapshotID)
			s.mu.Unlock()
			return
		}
		delete(s.pending, snapshotID)
		s.mu.Unlock()
	}
}

func (s *Service) Wait() {
	s.wg.Wait()
}
