package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/railzwaylabs/recon/internal/columns"
	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/normalize"
)

const unknownPaymentMethod = "Unknown"

var ilasouqOrders = table{
	fields: []columns.Field{
		{Key: "order", Candidates: []string{"رقم الطلب"}},
		{Key: "date", Candidates: []string{"تاريخ الطلب"}},
		{Key: "total", Candidates: []string{"إجمالي الطلب"}},
		{Key: "tax", Candidates: []string{"الضريبة"}, ExactOnly: true},
		{Key: "status", Candidates: []string{"حالة الطلب"}},
		{Key: "url", Candidates: []string{"رابط الطلب", "رابط"}},
		{Key: "cod", Candidates: []string{"رسوم الدفع عند الاستلام", "cod"}, Exclude: []string{"barcode"}},
		{Key: "pay", Candidates: []string{"طريقة الدفع", "payment method"}},
		{Key: "pgfee", Candidates: []string{"payment fee", "رسوم الدفع", "fee", "commission", "عمولة", "mada", "visa"}, Exclude: []string{"الاستلام", "cod"}},
		{Key: "shipco", Candidates: []string{"شركة الشحن"}},
		{Key: "shipping", Candidates: []string{"تكلفة الشحن", "shipping", "cargo", "delivery", "شحن", "توصيل"}, Exclude: []string{"شركة", "company"}},
		{Key: "branch", Candidates: []string{"الفرع"}, ExactOnly: true},
		{Key: "city", Candidates: []string{"المدينة"}},
		{Key: "tracking", Candidates: []string{"بوليصة", "tracking"}},
		{Key: "discount", Candidates: []string{"خصم", "discount"}},
		{Key: "coupon_name", Candidates: []string{"اسم الكوبون"}},
		{Key: "coupon_code", Candidates: []string{"رمز الكوبون"}},
		{Key: "utm", Candidates: []string{"utm_source", "مصدر"}},
		{Key: "skus", Candidates: []string{"skus_json"}, ExactOnly: true},
		{Key: "names", Candidates: []string{"اسماء المنتجات مع SKU"}},
	},
	required: []string{"order", "total"},
	row: func(src Source, m columns.Mapping, row []string, res *Result) string {
		id := normalize.CanonicalID(m.Get(row, "order"))
		if id == "" {
			return SkipMissingOrderID
		}

		price, err := optionalAmount(m, row, "total")
		if err != nil {
			return SkipNonNumericAmount
		}

		payment := m.Get(row, "pay")
		if payment == "" {
			payment = unknownPaymentMethod
		}

		account := branchName(m.Get(row, "branch"))
		if account == "" {
			account = src.account()
		}

		items := skusSummary(m.Get(row, "skus"))
		if items == "" {
			items = strings.Trim(m.Get(row, "names"), "'")
		}

		res.Orders = append(res.Orders, domain.OrderRecord{
			OrderID:         id,
			Platform:        src.Label.Platform(),
			AccountName:     account,
			OrderDate:       normalize.ParseDatePtr(m.Get(row, "date")),
			Price:           price,
			Shipping:        normalize.AmountOrZero(m.Get(row, "shipping")),
			CODFee:          normalize.AmountOrZero(m.Get(row, "cod")),
			Commission:      math.Abs(normalize.AmountOrZero(m.Get(row, "pgfee"))),
			Tax:             normalize.AmountOrZero(m.Get(row, "tax")),
			ItemsSummary:    items,
			PaymentMethod:   payment,
			UpstreamStatus:  m.Get(row, "status"),
			OrderURL:        m.Get(row, "url"),
			City:            m.Get(row, "city"),
			ShippingCompany: m.Get(row, "shipco"),
			TrackingNumber:  m.Get(row, "tracking"),
			DiscountValue:   normalize.AmountOrZero(m.Get(row, "discount")),
			MarketingSource: firstNonEmpty(m.Get(row, "coupon_name"), m.Get(row, "coupon_code"), m.Get(row, "utm")),
			HasShipping:     m.Has("shipping"),
			HasCommission:   m.Has("pgfee"),
			HasTax:          m.Has("tax"),
		})
		return ""
	},
}

var ilasouqCollections = table{
	fields: []columns.Field{
		{Key: "order", Candidates: []string{"رقم الطلب"}},
		{Key: "amount", Candidates: []string{"بعد الضريبة", "إجمالي الطلب"}},
	},
	required: []string{"order", "amount"},
	row: func(src Source, m columns.Mapping, row []string, res *Result) string {
		id := normalize.CanonicalID(m.Get(row, "order"))
		if id == "" {
			return SkipMissingOrderID
		}
		amount, err := normalize.ParseAmount(m.Get(row, "amount"))
		if err != nil {
			return SkipNonNumericAmount
		}
		res.Collections = append(res.Collections, domain.CollectionRecord{
			OrderID:         id,
			OriginalAmount:  amount,
			CollectedAmount: amount,
			CollectionDate:  src.today(),
			AccountName:     src.account(),
			Source:          string(src.Label),
		})
		return ""
	},
}

// branchName unwraps the list syntax some exports use for branches, e.g.
// "['Riyadh']".
func branchName(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || s == `\N` || strings.EqualFold(s, "nan") {
		return ""
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		inner := strings.TrimSpace(s[1 : len(s)-1])
		first, _, _ := strings.Cut(inner, ",")
		s = strings.Trim(strings.TrimSpace(first), `'"`)
	}
	return strings.TrimSpace(s)
}

// skusSummary renders a skus_json cell ([[name, qty, sku], ...]) as an item
// summary. The SKU travels as a "(SKU: x)" prefix so cost matching can use it.
func skusSummary(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return ""
	}
	var entries [][]any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return ""
	}

	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		if len(e) < 2 {
			continue
		}
		name := strings.TrimSpace(fmt.Sprint(e[0]))
		if name == "" {
			continue
		}
		qty := 1
		if v, ok := e[1].(float64); ok && v >= 1 {
			qty = int(v)
		} else if s, ok := e[1].(string); ok {
			if v, err := normalize.ParseAmount(s); err == nil && v >= 1 {
				qty = int(v)
			}
		}
		line := itemLine(name, qty)
		if len(e) > 2 && e[2] != nil {
			if sku := strings.TrimSpace(fmt.Sprint(e[2])); sku != "" {
				line = fmt.Sprintf("(SKU: %s) %s", sku, line)
			}
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " | ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
