package extract

import (
	"strings"

	"github.com/railzwaylabs/recon/internal/columns"
	"github.com/railzwaylabs/recon/internal/costmatch"
	"github.com/railzwaylabs/recon/internal/normalize"
)

var productCosts = table{
	fields: []columns.Field{
		{Key: "sku", Candidates: []string{"sku", "كود", "رمز"}},
		{Key: "cost", Candidates: []string{"cost", "تكلفة", "التكلفة", "شراء", "توريد", "purchase", "سعر الحبة", "سعر", "price", "unit"}},
		{Key: "name", Candidates: []string{"name", "product", "اسم", "منتج", "الصنف", "البيان", "الوصف", "item"}},
	},
	required: []string{"cost"},
	anyOf:    []string{"sku", "name"},
	row: func(src Source, m columns.Mapping, row []string, res *Result) string {
		name := m.Get(row, "name")
		sku := m.Get(row, "sku")
		if strings.EqualFold(sku, "nan") {
			sku = ""
		}
		if sku == "" && name != "" {
			sku = costmatch.AutoSKU(name)
		}
		if sku == "" {
			return SkipMissingProduct
		}
		cost, err := normalize.ParseAmount(m.Get(row, "cost"))
		if err != nil {
			return SkipNonNumericAmount
		}
		res.Costs = append(res.Costs, CostRecord{SKU: sku, ProductName: name, Cost: cost})
		return ""
	},
}
