package extract

import (
	"math"
	"strings"

	"github.com/railzwaylabs/recon/internal/columns"
	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/normalize"
)

var trendyolStatement = table{
	fields: []columns.Field{
		{Key: "order", Candidates: []string{"order number"}},
		{Key: "order_date", Candidates: []string{"order date"}},
		{Key: "credit", Candidates: []string{"credit"}, ExactOnly: true},
		{Key: "type", Candidates: []string{"transaction type", "type"}},
		{Key: "item", Candidates: []string{"product name", "storefront"}},
		{Key: "qty", Candidates: []string{"quantity", "qty"}},
		{Key: "gross", Candidates: []string{"sales amount", "gross amount", "selling price"}},
		{Key: "commission", Candidates: []string{"commission", "عمولة", "deduction", "kesinti", "fee"}},
		{Key: "shipping", Candidates: []string{"shipping", "cargo", "kargo", "delivery", "شحن"}},
		{Key: "paid_at", Candidates: []string{"payment date", "settlement date"}},
	},
	required: []string{"order", "credit"},
	row:      trendyolRow,
	finish: func(src Source, res *Result) {
		res.Orders = mergeOrders(res.Orders)
	},
}

func trendyolRow(src Source, m columns.Mapping, row []string, res *Result) string {
	id := normalize.CanonicalID(m.Get(row, "order"))
	if id == "" {
		return SkipMissingOrderID
	}
	credit, err := optionalAmount(m, row, "credit")
	if err != nil {
		return SkipNonNumericAmount
	}

	kind := strings.ToLower(m.Get(row, "type"))
	isReturn := strings.Contains(kind, "refund") || strings.Contains(kind, "return") || credit < 0
	isSale := kind == "" || kind == "sale" || strings.Contains(kind, "sale")

	orderDate := normalize.ParseDatePtr(m.Get(row, "order_date"))
	produced := false

	if isSale && !isReturn {
		commission := math.Abs(normalize.AmountOrZero(m.Get(row, "commission")))
		shipping := math.Abs(normalize.AmountOrZero(m.Get(row, "shipping")))

		price := credit
		gross, err := normalize.ParseAmount(m.Get(row, "gross"))
		switch {
		case err == nil:
			price = gross
		case credit > 0:
			price = credit + commission + shipping
		}

		items := ""
		if name := m.Get(row, "item"); name != "" {
			items = itemLine(name, quantity(m, row, "qty"))
		}

		res.Orders = append(res.Orders, domain.OrderRecord{
			OrderID:       id,
			Platform:      src.Label.Platform(),
			AccountName:   src.account(),
			OrderDate:     orderDate,
			Price:         price,
			Shipping:      shipping,
			Commission:    commission,
			ItemsSummary:  items,
			HasShipping:   m.Has("shipping"),
			HasCommission: m.Has("commission"),
		})
		produced = true
	}

	if credit != 0 {
		date := normalize.ParseDatePtr(m.Get(row, "paid_at"))
		if date == nil {
			date = orderDate
		}
		res.Collections = append(res.Collections, domain.CollectionRecord{
			OrderID:         id,
			OriginalAmount:  math.Abs(credit),
			CollectedAmount: credit,
			CollectionDate:  date,
			IsReturn:        isReturn,
			AccountName:     src.account(),
			Source:          string(src.Label),
		})
		produced = true
	}

	if !produced {
		if !isSale {
			return SkipNotTransaction
		}
		return SkipZeroAmount
	}
	return ""
}

// mergeOrders folds multi-line orders into one record per id, keeping the
// first occurrence's position.
func mergeOrders(orders []domain.OrderRecord) []domain.OrderRecord {
	index := make(map[string]int, len(orders))
	out := make([]domain.OrderRecord, 0, len(orders))
	for _, o := range orders {
		i, ok := index[o.OrderID]
		if !ok {
			index[o.OrderID] = len(out)
			out = append(out, o)
			continue
		}
		merged := &out[i]
		merged.Price += o.Price
		merged.Shipping += o.Shipping
		merged.Commission += o.Commission
		merged.Tax += o.Tax
		if o.ItemsSummary != "" {
			if merged.ItemsSummary == "" {
				merged.ItemsSummary = o.ItemsSummary
			} else {
				merged.ItemsSummary += " | " + o.ItemsSummary
			}
		}
		if merged.OrderDate == nil {
			merged.OrderDate = o.OrderDate
		}
	}
	return out
}
