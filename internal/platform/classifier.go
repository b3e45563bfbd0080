package platform

import (
	"regexp"
	"strings"

	"github.com/railzwaylabs/recon/internal/columns"
)

// Input is what the classifier looks at: the header of the first row and the
// file name.
type Input struct {
	Columns  []string
	Filename string
}

type evidence struct {
	columns []string
	joined  string
	name    string
}

func newEvidence(in Input) evidence {
	cols := make([]string, 0, len(in.Columns))
	for _, c := range in.Columns {
		if n := columns.Normalize(c); n != "" {
			cols = append(cols, n)
		}
	}
	return evidence{
		columns: cols,
		joined:  strings.Join(cols, " "),
		name:    strings.ToLower(in.Filename),
	}
}

// has reports whether every name is an exact column.
func (e evidence) has(names ...string) bool {
	for _, n := range names {
		want := columns.Normalize(n)
		found := false
		for _, c := range e.columns {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// hasLike reports whether some column contains any of the fragments.
func (e evidence) hasLike(fragments ...string) bool {
	for _, f := range fragments {
		want := columns.Normalize(f)
		for _, c := range e.columns {
			if strings.Contains(c, want) {
				return true
			}
		}
	}
	return false
}

func (e evidence) named(fragments ...string) bool {
	for _, f := range fragments {
		if strings.Contains(e.name, f) {
			return true
		}
	}
	return false
}

type rule struct {
	label Label
	match func(e evidence) bool
}

var (
	noonNames     = []string{"noon", "نون"}
	trendyolNames = []string{"trendyol", "ترنديول"}
	websiteNames  = []string{"website", "موقع", "site", "web", "store", "متجر"}
	costNames     = []string{"تكلفة", "cost", "أسعار", "prices", "منتجات", "products"}
)

// rules is evaluated top to bottom; the first match wins.
var rules = []rule{
	{TabbyCollections, func(e evidence) bool { return e.named("tabby", "تابي") }},
	{SMSACollections, func(e evidence) bool { return e.named("smsa", "سمسا") }},

	{NoonStatement, func(e evidence) bool { return e.has("statement_nr", "id_partner") }},
	{NoonStatement, func(e evidence) bool { return e.has("order_nr") && e.hasLike("payment") }},
	{NoonOrders, func(e evidence) bool { return e.has("order_nr") }},
	{NoonStatement, func(e evidence) bool {
		return e.named(noonNames...) && e.hasLike("payment", "amount")
	}},

	{TrendyolSales, func(e evidence) bool { return e.has("الباركود", "اسم المنتج") }},
	{TrendyolSales, func(e evidence) bool { return e.named(trendyolNames...) && e.named("sales", "مبيعات") }},
	{TrendyolStatement, func(e evidence) bool { return e.has("transaction no", "storefront") }},
	{TrendyolStatement, func(e evidence) bool {
		return e.named(trendyolNames...) && e.named("statement", "كشف", "عمليات")
	}},

	{AmazonTransactions, func(e evidence) bool { return e.hasLike("amazon") }},
	{AmazonTransactions, func(e evidence) bool { return e.hasLike("نوع المعاملة") && e.hasLike("رقم الطلب") }},
	{AmazonTransactions, func(e evidence) bool { return e.named("amazon", "أمازون", "امازون", "المعاملات") }},

	{IlasouqOrders, func(e evidence) bool { return e.named("ilasouq", "ilasoq") && e.has("تاريخ الطلب") }},
	{IlasouqCollections, func(e evidence) bool { return e.named("ilasouq", "ilasoq") }},
	{IlasouqOrders, func(e evidence) bool { return e.has("رقم الطلب", "طريقة الدفع") }},

	{WebsiteOrders, func(e evidence) bool { return e.named(websiteNames...) }},
	{WebsiteOrders, func(e evidence) bool { return e.has("order id", "order status", "order total") }},
	{WebsiteOrders, func(e evidence) bool {
		return e.has("رقم الطلب", "حالة الطلب", "إجمالي الطلب")
	}},

	{ProductCosts, func(e evidence) bool { return e.named(costNames...) }},
	{ProductCosts, looksLikeCostTable},
}

// maxCostColumns bounds how wide a sheet can be and still be read as a cost
// table by column evidence alone.
const maxCostColumns = 15

func looksLikeCostTable(e evidence) bool {
	hasCost := e.hasLike("cost", "تكلفة", "السعر", "سعر", "purchase", "price", "unit")
	hasID := e.hasLike("sku", "كود", "رمز", "name", "product", "اسم", "منتج", "صنف", "item")
	return hasCost && hasID && len(e.columns) < maxCostColumns
}

// Classify returns the format label for a file. It is a pure function of its
// input, so the same header and name always give the same label.
func Classify(in Input) Label {
	e := newEvidence(in)
	for _, r := range rules {
		if r.match(e) {
			return r.label
		}
	}
	return Unknown
}

var bracketTag = regexp.MustCompile(`\[(.*?)\]`)

// DetectAccount derives the store/branch account from a file name. Known
// legacy store names win over a "[Branch]" tag.
func DetectAccount(filename string) string {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "امواج") || strings.Contains(name, "amwaj"):
		return "أمواج"
	case strings.Contains(name, "ilasouq") || strings.Contains(name, "ilasoq"):
		return "ILASOUQ"
	}
	if m := bracketTag.FindStringSubmatch(filename); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
