package extract

import (
	"strings"

	"github.com/railzwaylabs/recon/internal/columns"
	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/normalize"
)

// Tabby settlement reports open with a ten row summary block.
var tabbyCollections = table{
	headerRow: 10,
	fields: []columns.Field{
		{Key: "order", Candidates: []string{"order number"}},
		{Key: "amount", Candidates: []string{"order amount"}},
		{Key: "fee", Candidates: []string{"total deduction", "total fee"}},
		{Key: "transferred", Candidates: []string{"transferred amount", "transfer amount"}},
		{Key: "date", Candidates: []string{"transfer date"}},
		{Key: "type", Candidates: []string{"type"}, ExactOnly: true},
	},
	required: []string{"order", "transferred"},
	row: func(src Source, m columns.Mapping, row []string, res *Result) string {
		id := normalize.CanonicalID(m.Get(row, "order"))
		if id == "" {
			return SkipMissingOrderID
		}
		transferred, err := optionalAmount(m, row, "transferred")
		if err != nil {
			return SkipNonNumericAmount
		}
		if transferred == 0 {
			return SkipZeroAmount
		}
		res.Collections = append(res.Collections, domain.CollectionRecord{
			OrderID:         id,
			OriginalAmount:  normalize.AmountOrZero(m.Get(row, "amount")),
			CollectionFee:   normalize.AmountOrZero(m.Get(row, "fee")),
			CollectedAmount: transferred,
			CollectionDate:  normalize.ParseDatePtr(m.Get(row, "date")),
			IsReturn:        strings.Contains(strings.ToLower(m.Get(row, "type")), "refund"),
			AccountName:     src.account(),
			Source:          string(src.Label),
		})
		return ""
	},
}

// SMSA COD statements reference shipments by waybill, which the ledger links
// to orders through their tracking number.
var smsaCollections = table{
	headerRow: 2,
	fields: []columns.Field{
		{Key: "ref", Candidates: []string{"ref no"}},
		{Key: "cod", Candidates: []string{"cod amount"}},
		{Key: "fee", Candidates: []string{"cod charges", "cod charge"}},
		{Key: "date", Candidates: []string{"payment date"}},
	},
	required: []string{"ref", "cod"},
	row: func(src Source, m columns.Mapping, row []string, res *Result) string {
		ref := normalize.CanonicalID(m.Get(row, "ref"))
		if ref == "" {
			return SkipMissingOrderID
		}
		cod, err := optionalAmount(m, row, "cod")
		if err != nil {
			return SkipNonNumericAmount
		}
		if cod <= 0 {
			return SkipNotTransaction
		}
		fee := normalize.AmountOrZero(m.Get(row, "fee"))
		res.Collections = append(res.Collections, domain.CollectionRecord{
			OrderID:         ref,
			OriginalAmount:  cod,
			CollectionFee:   fee,
			CollectedAmount: normalize.Round(cod-fee, 2),
			CollectionDate:  normalize.ParseDatePtr(m.Get(row, "date")),
			AccountName:     src.account(),
			Source:          string(src.Label),
		})
		return ""
	},
}
