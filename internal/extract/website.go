package extract

import (
	"math"

	"github.com/railzwaylabs/recon/internal/columns"
	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/normalize"
)

const websitePaymentMethod = "Website"

// websiteOrders reads a generic storefront export. Storefront orders are paid
// up front, so every order also produces its collection.
var websiteOrders = table{
	fields: []columns.Field{
		{Key: "order", Candidates: []string{"order id", "رقم الطلب", "order_id"}},
		{Key: "status", Candidates: []string{"order status", "حالة الطلب", "status"}},
		{Key: "amount", Candidates: []string{"order total", "إجمالي الطلب", "total", "إجمالي", "المبلغ", "amount"}},
		{Key: "date", Candidates: []string{"date", "تاريخ"}},
		{Key: "payment", Candidates: []string{"payment", "دفع", "method"}},
		{Key: "shipping", Candidates: []string{"shipping", "الشحن"}},
		{Key: "tax", Candidates: []string{"tax", "الضريبة"}},
		{Key: "items", Candidates: []string{"items", "products", "المنتجات"}},
	},
	required: []string{"order", "amount"},
	row: func(src Source, m columns.Mapping, row []string, res *Result) string {
		id := normalize.CanonicalID(m.Get(row, "order"))
		if id == "" {
			return SkipMissingOrderID
		}
		amount, err := optionalAmount(m, row, "amount")
		if err != nil {
			return SkipNonNumericAmount
		}

		date := src.today()
		if m.Has("date") {
			date = normalize.ParseDatePtr(m.Get(row, "date"))
		}
		payment := m.Get(row, "payment")
		if payment == "" {
			payment = websitePaymentMethod
		}

		res.Orders = append(res.Orders, domain.OrderRecord{
			OrderID:        id,
			Platform:       src.Label.Platform(),
			AccountName:    src.account(),
			OrderDate:      date,
			Price:          amount,
			Shipping:       normalize.AmountOrZero(m.Get(row, "shipping")),
			Tax:            normalize.AmountOrZero(m.Get(row, "tax")),
			ItemsSummary:   m.Get(row, "items"),
			PaymentMethod:  payment,
			UpstreamStatus: m.Get(row, "status"),
			HasShipping:    m.Has("shipping"),
			HasTax:         m.Has("tax"),
		})
		if amount != 0 {
			res.Collections = append(res.Collections, domain.CollectionRecord{
				OrderID:         id,
				OriginalAmount:  math.Abs(amount),
				CollectedAmount: amount,
				CollectionDate:  date,
				AccountName:     src.account(),
				Source:          string(src.Label),
			})
		}
		return ""
	},
}
