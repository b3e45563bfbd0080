package extract

import (
	"regexp"
	"strings"

	"github.com/railzwaylabs/recon/internal/columns"
	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/normalize"
)

var isoDateInText = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// noonOrderID keeps the first comma separated part of order_nr, stripped
// to letters, digits and dashes.
func noonOrderID(raw string, sep func(string) []string) string {
	parts := sep(strings.TrimSpace(raw))
	if len(parts) == 0 {
		return ""
	}
	return alnumDash(parts[0])
}

func alnumDash(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var noonOrders = table{
	fields: []columns.Field{
		{Key: "order", Candidates: []string{"order_nr"}, ExactOnly: true},
		{Key: "received", Candidates: []string{"order_received_at"}, ExactOnly: true},
		{Key: "date", Candidates: []string{"date"}},
		{Key: "title", Candidates: []string{"title", "title_ar"}, ExactOnly: true},
		{Key: "qty", Candidates: []string{"quantity"}, ExactOnly: true},
		{Key: "price", Candidates: []string{"total_price", "price"}},
		{Key: "status", Candidates: []string{"status", "order_status"}},
	},
	required: []string{"order"},
	row: func(src Source, m columns.Mapping, row []string, res *Result) string {
		raw := m.Get(row, "order")
		id := noonOrderID(raw, func(s string) []string { return strings.Split(s, ",") })
		if id == "" {
			return SkipMissingOrderID
		}

		price, err := optionalAmount(m, row, "price")
		if err != nil {
			return SkipNonNumericAmount
		}

		date := normalize.ParseDatePtr(m.Get(row, "received"))
		if date == nil {
			date = normalize.ParseDatePtr(m.Get(row, "date"))
		}
		if date == nil {
			date = normalize.ParseDatePtr(isoDateInText.FindString(raw))
		}

		items := ""
		if title := m.Get(row, "title"); title != "" {
			items = itemLine(title, quantity(m, row, "qty"))
		}

		res.Orders = append(res.Orders, domain.OrderRecord{
			OrderID:        id,
			Platform:       src.Label.Platform(),
			AccountName:    src.account(),
			OrderDate:      date,
			Price:          price,
			ItemsSummary:   items,
			UpstreamStatus: m.Get(row, "status"),
		})
		return ""
	},
}

var noonStatement = table{
	fields: []columns.Field{
		{Key: "order", Candidates: []string{"order_nr", "order nr", "order ref", "order"}},
		{Key: "amount", Candidates: []string{"total_payment", "payment", "amount"}},
		{Key: "date", Candidates: []string{"statement_date", "date"}},
	},
	required: []string{"order", "amount"},
	row: func(src Source, m columns.Mapping, row []string, res *Result) string {
		id := noonOrderID(m.Get(row, "order"), strings.Fields)
		if id == "" {
			return SkipMissingOrderID
		}
		amount, err := optionalAmount(m, row, "amount")
		if err != nil {
			return SkipNonNumericAmount
		}
		if amount == 0 {
			return SkipZeroAmount
		}
		res.Collections = append(res.Collections, domain.CollectionRecord{
			OrderID:         id,
			OriginalAmount:  amount,
			CollectedAmount: amount,
			CollectionDate:  normalize.ParseDatePtr(m.Get(row, "date")),
			AccountName:     src.account(),
			Source:          string(src.Label),
		})
		return ""
	},
}
