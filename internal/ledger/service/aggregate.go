package service

import (
	"context"
	"strings"

	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/normalize"
	"go.uber.org/zap"
)

func settlementOf(r domain.LedgerRow) domain.Settlement {
	return domain.Settlement{
		CollectedNet:   r.CollectedNet,
		ReturnedAmount: r.ReturnedAmount,
		ForwardCount:   r.ForwardCount,
		ReturnCount:    r.ReturnCount,
	}
}

func costsOf(r domain.LedgerRow) domain.Costs {
	return domain.Order{
		Cost:       r.Cost,
		Shipping:   r.Shipping,
		CODFee:     r.CODFee,
		Commission: r.Commission,
		Tax:        r.Tax,
	}.Costs()
}

func (s *Service) ledgerRows(ctx context.Context, snapshotID int64) ([]domain.LedgerRow, error) {
	if _, err := s.GetSnapshot(ctx, snapshotID); err != nil {
		return nil, err
	}
	return s.repo.LedgerRows(ctx, s.db, snapshotID)
}

func (s *Service) Stats(ctx context.Context, snapshotID int64) (domain.Stats, error) {
	rows, err := s.ledgerRows(ctx, snapshotID)
	if err != nil {
		return domain.Stats{}, err
	}
	totals, err := s.repo.CollectionTotals(ctx, s.db, snapshotID)
	if err != nil {
		return domain.Stats{}, err
	}
	orphans, err := s.repo.OrphanCollectionTotals(ctx, s.db, snapshotID)
	if err != nil {
		return domain.Stats{}, err
	}

	stats := domain.Stats{
		SnapshotID:      snapshotID,
		OrderCount:      int64(len(rows)),
		CollectionCount: totals.Count,
		TotalCollected:  normalize.Round(totals.Net, 2),
		OrphanCount:     orphans.Count,
		OrphanAmount:    normalize.Round(orphans.Net, 2),
		StatusCounts:    make(map[domain.Status]int64, len(domain.Statuses)),
	}
	for _, st := range domain.Statuses {
		stats.StatusCounts[st] = 0
	}

	var expected, uncollected, profit float64
	for _, r := range rows {
		settlement := settlementOf(r)
		status := domain.ClassifyStatus(r.Price, settlement)
		stats.StatusCounts[status]++

		expected += r.Price
		profit += domain.NetProfit(settlement, costsOf(r))
		if status == domain.StatusUnpaid {
			uncollected += r.Price
		}
	}

	stats.TotalExpected = normalize.Round(expected, 2)
	stats.TotalUncollected = normalize.Round(uncollected, 2)
	stats.NetProfit = normalize.Round(profit, 2)
	stats.CollectionRate = normalize.Percent(totals.Net, expected)
	stats.ProfitMargin = normalize.Percent(profit, totals.Net)
	if len(rows) > 0 {
		stats.AverageOrderValue = normalize.Round(expected/float64(len(rows)), 2)
	}
	return stats, nil
}

// PlatformBreakdown aggregates per platform in platform name order. Orphan
// collections have no platform and are only visible in Stats.
func (s *Service) PlatformBreakdown(ctx context.Context, snapshotID int64) ([]domain.PlatformStats, error) {
	rows, err := s.ledgerRows(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	var out []domain.PlatformStats
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.Platform]
		if !ok {
			i = len(out)
			index[r.Platform] = i
			out = append(out, domain.PlatformStats{Platform: r.Platform})
		}
		ps := &out[i]

		settlement := settlementOf(r)
		costs := costsOf(r)
		ps.OrderCount++
		ps.CollectionCount += r.ForwardCount + r.ReturnCount
		ps.TotalExpected += r.Price
		ps.TotalCollected += r.CollectedNet - r.ReturnedAmount
		ps.TotalCost += costs.Total()
		ps.NetProfit += domain.NetProfit(settlement, costs)
	}

	for i := range out {
		ps := &out[i]
		ps.CollectionRate = normalize.Percent(ps.TotalCollected, ps.TotalExpected)
		ps.TotalExpected = normalize.Round(ps.TotalExpected, 2)
		ps.TotalCollected = normalize.Round(ps.TotalCollected, 2)
		ps.TotalCost = normalize.Round(ps.TotalCost, 2)
		ps.NetProfit = normalize.Round(ps.NetProfit, 2)
	}
	return out, nil
}

func (s *Service) ReportRows(ctx context.Context, snapshotID int64, filter domain.ReportFilter) ([]domain.ReportRow, error) {
	rows, err := s.ledgerRows(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	platformFilter := strings.TrimSpace(filter.Platform)
	out := make([]domain.ReportRow, 0, len(rows))
	for _, r := range rows {
		if platformFilter != "" && !strings.EqualFold(r.Platform, platformFilter) {
			continue
		}
		settlement := settlementOf(r)
		status := domain.ClassifyStatus(r.Price, settlement)
		if filter.Outstanding && status == domain.StatusPaid {
			continue
		}
		collected := r.CollectedNet - r.ReturnedAmount
		out = append(out, domain.ReportRow{
			OrderID:         r.OrderID,
			Platform:        r.Platform,
			AccountName:     r.AccountName,
			Country:         r.Country,
			OrderDate:       r.OrderDate,
			WeekNumber:      r.WeekNumber,
			Expected:        r.Price,
			Collected:       normalize.Round(collected, 2),
			Returned:        normalize.Round(r.ReturnedAmount, 2),
			Difference:      normalize.Round(collected-r.Price, 2),
			Cost:            r.Cost,
			Shipping:        r.Shipping,
			Commission:      r.Commission,
			Tax:             r.Tax,
			CollectionFee:   r.CODFee,
			NetProfit:       normalize.Round(domain.NetProfit(settlement, costsOf(r)), 2),
			Status:          status,
			Transactions:    r.ForwardCount + r.ReturnCount,
			ItemsSummary:    r.ItemsSummary,
			PaymentMethod:   r.PaymentMethod,
			UpstreamStatus:  r.UpstreamStatus,
			TrackingNumber:  r.TrackingNumber,
			City:            r.City,
			ShippingCompany: r.ShippingCompany,
		})
	}
	return out, nil
}

// RefreshWeeklyReport recomputes and stores the cached aggregate of one
// snapshot.
func (s *Service) RefreshWeeklyReport(ctx context.Context, snapshotID int64) (*domain.WeeklyReport, error) {
	snap, err := s.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	stats, err := s.Stats(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindWeeklyReport(ctx, s.db, snapshotID)
	if err != nil {
		return nil, err
	}
	id := s.genID.Generate().Int64()
	if existing != nil {
		id = existing.ID
	}

	report := domain.WeeklyReport{
		ID:               id,
		SnapshotID:       snap.ID,
		Label:            snap.Label,
		WeekNumber:       snap.WeekNumber,
		Year:             snap.Year,
		TotalOrders:      stats.OrderCount,
		TotalSales:       stats.TotalExpected,
		TotalCollected:   stats.TotalCollected,
		TotalUncollected: stats.TotalUncollected,
		NetProfit:        stats.NetProfit,
		CollectionRate:   stats.CollectionRate,
		PaidCount:        stats.StatusCounts[domain.StatusPaid],
		UnpaidCount:      stats.StatusCounts[domain.StatusUnpaid],
		OverpaidCount:    stats.StatusCounts[domain.StatusOverpaid],
		ReturnedCount:    stats.StatusCounts[domain.StatusReturned],
		GeneratedAt:      s.clock.Now(ctx),
	}
	if err := s.repo.UpsertWeeklyReport(ctx, s.db, &report); err != nil {
		return nil, err
	}

	s.log.Info("weekly report refreshed",
		zap.Int64("snapshot_id", snapshotID),
		zap.Int64("orders", report.TotalOrders),
		zap.Float64("collection_rate", report.CollectionRate),
	)
	return &report, nil
}

func (s *Service) ListWeeklyReports(ctx context.Context) ([]domain.WeeklyReport, error) {
	return s.repo.ListWeeklyReports(ctx, s.db)
}
