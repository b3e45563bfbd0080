package service

import (
	"context"
	"strings"

	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"go.uber.org/zap"
)

func normalizeScanCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RecordReturnScan stores a physically received parcel. Scanning the same
// code twice is not an error; the bool reports whether it was new.
func (s *Service) RecordReturnScan(ctx context.Context, code, note string) (bool, error) {
	code = normalizeScanCode(code)
	if code == "" {
		return false, domain.ErrInvalidScanCode
	}

	scan := domain.ReturnScan{
		ID:        s.genID.Generate().Int64(),
		Code:      code,
		Note:      strings.TrimSpace(note),
		ScannedAt: s.clock.Now(ctx),
	}
	inserted, err := s.repo.InsertReturnScan(ctx, s.db, &scan)
	if err != nil {
		return false, err
	}
	if !inserted {
		s.log.Debug("return already scanned", zap.String("code", code))
	}
	return inserted, nil
}

// ReturnWarnings cross-checks financial returns against physical scans. A
// scan matches an order by tracking number or order id.
func (s *Service) ReturnWarnings(ctx context.Context, snapshotID int64) (domain.ReturnWarnings, error) {
	rows, err := s.ledgerRows(ctx, snapshotID)
	if err != nil {
		return domain.ReturnWarnings{}, err
	}
	codes, err := s.repo.ListReturnScanCodes(ctx, s.db)
	if err != nil {
		return domain.ReturnWarnings{}, err
	}

	scanned := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		scanned[normalizeScanCode(c)] = struct{}{}
	}
	isScanned := func(r domain.LedgerRow) bool {
		for _, key := range []string{r.TrackingNumber, r.OrderID} {
			key = normalizeScanCode(key)
			if key == "" {
				continue
			}
			if _, ok := scanned[key]; ok {
				return true
			}
		}
		return false
	}

	out := domain.ReturnWarnings{
		ReturnedNotScanned: []domain.ReturnWarning{},
		ScannedNotReturned: []domain.ReturnWarning{},
	}
	for _, r := range rows {
		hit := isScanned(r)
		returned := r.ReturnCount > 0
		if returned == hit {
			continue
		}
		w := domain.ReturnWarning{
			OrderID:        r.OrderID,
			Platform:       r.Platform,
			TrackingNumber: r.TrackingNumber,
			Status:         domain.ClassifyStatus(r.Price, settlementOf(r)),
		}
		if hit {
			out.ScannedNotReturned = append(out.ScannedNotReturned, w)
		} else {
			out.ReturnedNotScanned = append(out.ReturnedNotScanned, w)
		}
	}
	return out, nil
}
