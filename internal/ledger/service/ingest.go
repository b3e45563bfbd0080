package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/normalize"
	"github.com/railzwaylabs/recon/pkg/db"
	"go.uber.org/zap"
)

func (s *Service) IngestOrder(ctx context.Context, snapshotID int64, rec domain.OrderRecord) (domain.WriteOutcome, error) {
	return s.writeOrder(ctx, snapshotID, rec, newEnricher(s))
}

// IngestCollection inserts rec unless the snapshot already holds a matching
// collection. The bool reports whether a row was written.
func (s *Service) IngestCollection(ctx context.Context, snapshotID int64, rec domain.CollectionRecord) (bool, error) {
	return s.writeCollection(ctx, snapshotID, rec, 1)
}

// IngestBatch writes one file's records row by row. Invalid records are
// counted and skipped; only storage failures abort the batch.
func (s *Service) IngestBatch(ctx context.Context, snapshotID int64, batch domain.Batch) (domain.BatchSummary, error) {
	var summary domain.BatchSummary
	enrich := newEnricher(s)

	for _, rec := range batch.Orders {
		outcome, err := s.writeOrder(ctx, snapshotID, rec, enrich)
		if err != nil {
			if isRejection(err) {
				summary.OrdersRejected++
				summary.Rejections = append(summary.Rejections, fmt.Sprintf("order %q: %v", rec.OrderID, err))
				continue
			}
			return summary, db.Classify(err)
		}
		switch outcome {
		case domain.OrderInserted:
			summary.OrdersInserted++
		case domain.OrderUpdated:
			summary.OrdersUpdated++
		default:
			summary.OrdersUnchanged++
		}
	}

	seen := make(map[string]int64)
	for _, rec := range batch.Collections {
		key := occurrenceKey(rec)
		seen[key]++
		if seen[key] > 1 {
			summary.RepeatedInFile++
		}

		inserted, err := s.writeCollection(ctx, snapshotID, rec, seen[key])
		if err != nil {
			if isRejection(err) {
				summary.CollectionsRejected++
				summary.Rejections = append(summary.Rejections, fmt.Sprintf("collection %q: %v", rec.OrderID, err))
				continue
			}
			return summary, db.Classify(err)
		}
		if inserted {
			summary.CollectionsInserted++
		} else {
			summary.CollectionsDuplicate++
		}
	}

	s.log.Debug("batch ingested",
		zap.Int64("snapshot_id", snapshotID),
		zap.Int("orders_inserted", summary.OrdersInserted),
		zap.Int("orders_updated", summary.OrdersUpdated),
		zap.Int("collections_inserted", summary.CollectionsInserted),
		zap.Int("collections_duplicate", summary.CollectionsDuplicate),
	)
	return summary, nil
}

func isRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidOrderID) || errors.Is(err, domain.ErrNegativePrice)
}

// occurrenceKey identifies value-identical collections within one batch.
func occurrenceKey(rec domain.CollectionRecord) string {
	date := ""
	if rec.CollectionDate != nil {
		date = rec.CollectionDate.Format("2006-01-02")
	}
	return fmt.Sprintf("%s|%.3f|%s|%t", strings.TrimSpace(rec.OrderID), rec.CollectedAmount, date, rec.IsReturn)
}

// writeCollection inserts rec when fewer than occurrence matching rows are
// stored. The n-th identical line of one batch is only a duplicate when the
// store already holds n of them.
func (s *Service) writeCollection(ctx context.Context, snapshotID int64, rec domain.CollectionRecord, occurrence int64) (bool, error) {
	rec.OrderID = strings.TrimSpace(rec.OrderID)
	if rec.OrderID == "" {
		return false, domain.ErrInvalidOrderID
	}

	matches, err := s.repo.CountMatchingCollections(ctx, s.db, snapshotID, rec, domain.DedupTolerance)
	if err != nil {
		return false, err
	}
	if matches >= occurrence {
		return false, nil
	}

	week, year := normalize.ISOWeek(rec.CollectionDate)
	c := domain.Collection{
		ID:              s.genID.Generate().Int64(),
		SnapshotID:      snapshotID,
		OrderID:         rec.OrderID,
		OriginalAmount:  rec.OriginalAmount,
		CollectionFee:   rec.CollectionFee,
		CollectedAmount: rec.CollectedAmount,
		CollectionDate:  rec.CollectionDate,
		IsReturn:        rec.IsReturn,
		AccountName:     rec.AccountName,
		Source:          rec.Source,
		WeekNumber:      week,
		Year:            year,
		CreatedAt:       s.clock.Now(ctx),
	}
	if err := s.repo.InsertCollection(ctx, s.db, &c); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) writeOrder(ctx context.Context, snapshotID int64, rec domain.OrderRecord, enrich *enricher) (domain.WriteOutcome, error) {
	rec.OrderID = strings.TrimSpace(rec.OrderID)
	if rec.OrderID == "" {
		return "", domain.ErrInvalidOrderID
	}
	if rec.Price < 0 {
		return "", domain.ErrNegativePrice
	}

	order, err := enrich.order(ctx, snapshotID, rec)
	if err != nil {
		return "", err
	}

	existing, err := s.repo.FindOrder(ctx, s.db, snapshotID, order.OrderID)
	if err != nil {
		return "", err
	}

	now := s.clock.Now(ctx)
	if existing == nil {
		order.CreatedAt = now
		order.UpdatedAt = now
		if err := s.repo.InsertOrder(ctx, s.db, &order); err != nil {
			return "", err
		}
		return domain.OrderInserted, nil
	}

	if sameOrder(*existing, order) {
		return domain.OrderUnchanged, nil
	}
	order.UpdatedAt = now
	if err := s.repo.UpdateOrder(ctx, s.db, &order); err != nil {
		return "", err
	}
	return domain.OrderUpdated, nil
}

// sameOrder compares every field the writer may update; cost is owned by
// the recalculator.
func sameOrder(a, b domain.Order) bool {
	return a.Platform == b.Platform &&
		a.AccountName == b.AccountName &&
		a.Country == b.Country &&
		sameDate(a.OrderDate, b.OrderDate) &&
		a.WeekNumber == b.WeekNumber &&
		a.Year == b.Year &&
		sameAmount(a.Price, b.Price) &&
		sameAmount(a.Shipping, b.Shipping) &&
		sameAmount(a.CODFee, b.CODFee) &&
		sameAmount(a.Commission, b.Commission) &&
		sameAmount(a.Tax, b.Tax) &&
		a.ItemsSummary == b.ItemsSummary &&
		a.PaymentMethod == b.PaymentMethod &&
		a.UpstreamStatus == b.UpstreamStatus &&
		a.OrderURL == b.OrderURL &&
		a.City == b.City &&
		a.ShippingCompany == b.ShippingCompany &&
		a.TrackingNumber == b.TrackingNumber &&
		sameAmount(a.DiscountValue, b.DiscountValue) &&
		a.MarketingSource == b.MarketingSource
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameAmount(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < domain.DedupTolerance
}

// enricher fills fee defaults from platform and account settings, caching
// lookups for the lifetime of one batch.
type enricher struct {
	s         *Service
	platforms map[string]*domain.Platform
	accounts  map[string]*domain.Account
}

func newEnricher(s *Service) *enricher {
	return &enricher{
		s:         s,
		platforms: make(map[string]*domain.Platform),
		accounts:  make(map[string]*domain.Account),
	}
}

func (e *enricher) platform(ctx context.Context, name string) (*domain.Platform, error) {
	if p, ok := e.platforms[name]; ok {
		return p, nil
	}
	p, err := e.s.repo.FindPlatform(ctx, e.s.db, name)
	if err != nil {
		return nil, err
	}
	e.platforms[name] = p
	return p, nil
}

func (e *enricher) account(ctx context.Context, name string) (*domain.Account, error) {
	if name == "" {
		return nil, nil
	}
	if a, ok := e.accounts[name]; ok {
		return a, nil
	}
	a, err := e.s.repo.FindAccount(ctx, e.s.db, name)
	if err != nil {
		return nil, err
	}
	e.accounts[name] = a
	return a, nil
}

func (e *enricher) order(ctx context.Context, snapshotID int64, rec domain.OrderRecord) (domain.Order, error) {
	week, year := normalize.ISOWeek(rec.OrderDate)
	o := domain.Order{
		OrderID:         rec.OrderID,
		SnapshotID:      snapshotID,
		Platform:        rec.Platform,
		AccountName:     strings.TrimSpace(rec.AccountName),
		Country:         e.s.defaultCountry,
		OrderDate:       rec.OrderDate,
		WeekNumber:      week,
		Year:            year,
		Price:           rec.Price,
		Cost:            rec.Cost,
		Shipping:        rec.Shipping,
		CODFee:          rec.CODFee,
		Commission:      rec.Commission,
		Tax:             rec.Tax,
		ItemsSummary:    rec.ItemsSummary,
		PaymentMethod:   rec.PaymentMethod,
		UpstreamStatus:  rec.UpstreamStatus,
		OrderURL:        rec.OrderURL,
		City:            rec.City,
		ShippingCompany: rec.ShippingCompany,
		TrackingNumber:  rec.TrackingNumber,
		DiscountValue:   rec.DiscountValue,
		MarketingSource: rec.MarketingSource,
	}

	acct, err := e.account(ctx, o.AccountName)
	if err != nil {
		return o, err
	}
	plat, err := e.platform(ctx, o.Platform)
	if err != nil {
		return o, err
	}

	commissionRate, taxRate := 0.0, 0.0
	includesTax := false
	if plat != nil {
		commissionRate = plat.CommissionRate
		taxRate = plat.TaxRate
		if !rec.HasShipping && o.Shipping == 0 {
			o.Shipping = plat.ShippingDefault
		}
	}
	if acct != nil {
		if acct.Country != "" {
			o.Country = acct.Country
		}
		if acct.FixedShipping > 0 {
			o.Shipping = acct.FixedShipping
		}
		if acct.PaymentCommissionRate > 0 {
			commissionRate = acct.PaymentCommissionRate
		}
		if acct.TaxRate > 0 {
			taxRate = acct.TaxRate
		}
		includesTax = acct.CostIncludesTax
	}

	if !rec.HasCommission && o.Commission == 0 && commissionRate > 0 {
		o.Commission = normalize.Round(o.Price*commissionRate, 2)
	}
	if !rec.HasTax && o.Tax == 0 && taxRate > 0 && !includesTax {
		o.Tax = normalize.Round(o.Price*taxRate, 2)
	}
	return o, nil
}
