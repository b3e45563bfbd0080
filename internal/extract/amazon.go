package extract

import (
	"encoding/csv"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/railzwaylabs/recon/internal/columns"
	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/normalize"
	"github.com/railzwaylabs/recon/internal/tabular"
)

// amazonFixedShipping replaces whatever Easy Ship charged on an order.
const amazonFixedShipping = 12.0

var amazonHeaderMarkers = []string{"رقم الطلب", "Order ID"}

var amazonFields = []columns.Field{
	{Key: "order", Candidates: []string{"رقم الطلب", "order id"}},
	{Key: "type", Candidates: []string{"نوع المعاملة", "transaction type"}},
	{Key: "date", Candidates: []string{"التاريخ", "date"}},
	{Key: "product", Candidates: []string{"رسوم المنتج", "product charges"}},
	{Key: "fee", Candidates: []string{"رسوم أمازون", "amazon fees"}},
	{Key: "other", Candidates: []string{"أخرى", "other"}, Exclude: []string{"رسوم", "fee"}},
	{Key: "total", Candidates: []string{"الإجمالي", "total"}, Exclude: []string{"rebate", "promotional", "product"}},
	{Key: "sku", Candidates: []string{"sku"}},
	{Key: "title", Candidates: []string{"وصف", "description", "title", "اسم"}},
}

var (
	amazonTitlePrefixes = []string{"order item - ", "order - ", "عنصر الطلب - ", "الطلب - "}
	amazonTitleIgnore   = []string{"shipping", "شحن", "توصيل", "عمولة", "fee", "commission", "tax", "ضريبة"}
)

// amazonTransactions reads the seller central transaction report. The export
// is quoted inconsistently, so lines are repaired one by one before parsing.
type amazonTransactions struct{}

type amazonOrder struct {
	date       *time.Time
	price      float64
	shipping   float64
	commission float64
	sku        string
	items      []string
}

func (amazonTransactions) Extract(src Source) (Result, error) {
	var res Result
	records, err := amazonRecords(src)
	if err != nil {
		return res, err
	}

	headerIdx := -1
	for i := 0; i < headerSearchRows && i < len(records); i++ {
		if hasAmazonMarker(strings.Join(records[i], ",")) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return res, ErrNoHeader
	}

	m := columns.Resolve(records[headerIdx], amazonFields)
	if !m.Has("order") {
		return res, ErrMissingColumns
	}
	if !m.Has("total") {
		res.note("%s: no total column, settlement lines not imported", src.name())
	}

	var order []string
	orders := make(map[string]*amazonOrder)
	for _, row := range records[headerIdx+1:] {
		if blankRow(row) {
			continue
		}
		res.RowsRead++

		id := m.Get(row, "order")
		if !validAmazonID(id) {
			res.skip(SkipInvalidOrderID)
			continue
		}
		res.ok()

		agg, ok := orders[id]
		if !ok {
			agg = &amazonOrder{date: normalize.ParseDatePtr(m.Get(row, "date"))}
			orders[id] = agg
			order = append(order, id)
		}

		product := normalize.AmountOrZero(m.Get(row, "product"))
		other := normalize.AmountOrZero(m.Get(row, "other"))
		fee := normalize.AmountOrZero(m.Get(row, "fee"))
		total, totalErr := normalize.ParseAmount(m.Get(row, "total"))
		kind := m.Get(row, "type")

		switch {
		case strings.Contains(kind, "مبلغ الطلب") || product > 0:
			agg.price += product
			if other > 0 {
				agg.price += other
			}
			agg.commission += math.Abs(fee)
		case strings.Contains(kind, "شحن") || strings.Contains(strings.ToLower(kind), "shipping"):
			agg.shipping += math.Abs(total)
		case strings.Contains(kind, "رسوم"):
			agg.commission += math.Abs(total)
		}

		if title := amazonTitle(m.Get(row, "title")); title != "" && !contains(agg.items, title) {
			agg.items = append(agg.items, title)
		}
		if agg.sku == "" {
			agg.sku = m.Get(row, "sku")
		}

		if totalErr == nil && total != 0 {
			res.Collections = append(res.Collections, domain.CollectionRecord{
				OrderID:         id,
				OriginalAmount:  math.Abs(total),
				CollectedAmount: total,
				CollectionDate:  normalize.ParseDatePtr(m.Get(row, "date")),
				AccountName:     src.account(),
				Source:          string(src.Label),
			})
		}
	}

	for _, id := range order {
		agg := orders[id]
		if agg.shipping > 0 || agg.price > 0 {
			agg.shipping = amazonFixedShipping
		}
		items := strings.Join(agg.items, " | ")
		if items == "" {
			items = agg.sku
		}
		res.Orders = append(res.Orders, domain.OrderRecord{
			OrderID:       id,
			Platform:      src.Label.Platform(),
			AccountName:   src.account(),
			OrderDate:     agg.date,
			Price:         normalize.Round(agg.price, 2),
			Shipping:      agg.shipping,
			Commission:    normalize.Round(agg.commission, 2),
			ItemsSummary:  items,
			HasShipping:   true,
			HasCommission: true,
		})
	}
	return res, nil
}

// amazonRecords returns the report as cell rows. Workbooks go through the
// regular reader; text exports are repaired line by line.
func amazonRecords(src Source) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".xlsx", ".xlsm", ".xls":
		sheet, err := src.sheet()
		if err != nil {
			return nil, err
		}
		return sheet.Rows, nil
	}
	if src.Path == "" && src.Sheet != nil {
		return src.Sheet.Rows, nil
	}

	lines, err := tabular.Lines(src.Path)
	if err != nil {
		return nil, err
	}
	records := make([][]string, 0, len(lines))
	for _, line := range lines {
		records = append(records, amazonLine(line))
	}
	return records, nil
}

// amazonLine parses one report line. Some exports wrap each whole line in
// quotes with the inner quotes doubled.
func amazonLine(line string) []string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, `"`) && strings.Contains(line, `,""`) {
		line = strings.TrimPrefix(line, `"`)
		line = strings.TrimSuffix(line, `"`)
		line = strings.ReplaceAll(line, `""`, `"`)
	}
	if line == "" {
		return nil
	}

	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	row, err := r.Read()
	if err != nil || (len(row) == 1 && strings.Contains(row[0], ",")) {
		row = strings.Split(line, ",")
	}
	for i, cell := range row {
		row[i] = strings.TrimSpace(strings.NewReplacer(`"`, "", "=", "").Replace(cell))
	}
	return row
}

func hasAmazonMarker(line string) bool {
	for _, marker := range amazonHeaderMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// validAmazonID accepts ids shaped like 404-1234567-1234567.
func validAmazonID(id string) bool {
	return len(id) >= 5 && strings.Contains(id, "-") && id[0] >= '0' && id[0] <= '9'
}

func amazonTitle(raw string) string {
	title := strings.TrimSpace(raw)
	lower := strings.ToLower(title)
	for _, prefix := range amazonTitlePrefixes {
		if strings.HasPrefix(lower, prefix) {
			title = strings.TrimSpace(title[len(prefix):])
			break
		}
	}
	if len([]rune(title)) <= 3 {
		return ""
	}
	lower = strings.ToLower(title)
	for _, word := range amazonTitleIgnore {
		if strings.Contains(lower, word) {
			return ""
		}
	}
	return title
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
