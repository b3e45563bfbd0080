package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/railzwaylabs/recon/internal/columns"
	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/normalize"
	"github.com/railzwaylabs/recon/internal/platform"
	"github.com/railzwaylabs/recon/internal/tabular"
)

var (
	ErrMissingColumns = errors.New("missing_required_columns")
	ErrNoHeader       = errors.New("header_not_found")
	ErrNoExtractor    = errors.New("no_extractor_for_label")
)

// Row skip reasons.
const (
	SkipMissingOrderID   = "missing_order_id"
	SkipNonNumericAmount = "non_numeric_amount"
	SkipZeroAmount       = "zero_amount"
	SkipNotTransaction   = "not_a_transaction"
	SkipMissingProduct   = "missing_product"
	SkipInvalidOrderID   = "invalid_order_id"
)

// Source is one classified input file.
type Source struct {
	Path    string
	Label   platform.Label
	Account string
	// Sheet is the already decoded grid; extractors open Path when nil.
	Sheet *tabular.Sheet
	// Now dates collections whose export has no date column.
	Now time.Time
}

func (s Source) name() string {
	return filepath.Base(s.Path)
}

func (s Source) account() string {
	if s.Account != "" {
		return s.Account
	}
	return s.Label.DefaultAccount()
}

// today is the date of Now, or nil when the source carries no clock.
func (s Source) today() *time.Time {
	if s.Now.IsZero() {
		return nil
	}
	return normalize.ParseDatePtr(s.Now.UTC().Format("2006-01-02"))
}

func (s Source) sheet() (*tabular.Sheet, error) {
	if s.Sheet != nil {
		return s.Sheet, nil
	}
	return tabular.Open(s.Path)
}

// CostRecord is one row of a product cost table.
type CostRecord struct {
	SKU         string
	ProductName string
	Cost        float64
}

// RowStatus is the outcome of one data row.
type RowStatus string

const (
	RowOK      RowStatus = "ok"
	RowSkipped RowStatus = "skipped"
)

// RowResult reports one data row. Row is 1-based within the data rows;
// Reason is set only for skipped rows.
type RowResult struct {
	Row    int
	Status RowStatus
	Reason string
}

// Result is everything extracted from one file.
type Result struct {
	Orders      []domain.OrderRecord
	Collections []domain.CollectionRecord
	Costs       []CostRecord
	RowsRead    int
	Rows        []RowResult
	Notes       []string
}

func (r *Result) ok() {
	r.Rows = append(r.Rows, RowResult{Row: r.RowsRead, Status: RowOK})
}

func (r *Result) skip(reason string) {
	r.Rows = append(r.Rows, RowResult{Row: r.RowsRead, Status: RowSkipped, Reason: reason})
}

func (r *Result) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Skipped is the number of rows dropped.
func (r Result) Skipped() int {
	n := 0
	for _, row := range r.Rows {
		if row.Status == RowSkipped {
			n++
		}
	}
	return n
}

// SkipReasons returns the skip count per reason.
func (r Result) SkipReasons() map[string]int {
	out := make(map[string]int)
	for _, row := range r.Rows {
		if row.Status == RowSkipped {
			out[row.Reason]++
		}
	}
	return out
}

// SkipSummary renders the skip reasons in a stable order.
func (r Result) SkipSummary() string {
	reasons := r.SkipReasons()
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%d", k, reasons[k])
	}
	return out
}

// Records is the number of ledger records produced.
func (r Result) Records() int {
	return len(r.Orders) + len(r.Collections) + len(r.Costs)
}

// Extractor turns one classified file into normalized records. Row problems
// are counted on the Result; an error means the file as a whole is unusable.
type Extractor interface {
	Extract(src Source) (Result, error)
}

var registry = map[platform.Label]Extractor{
	platform.NoonOrders:         noonOrders,
	platform.NoonStatement:      noonStatement,
	platform.IlasouqOrders:      ilasouqOrders,
	platform.IlasouqCollections: ilasouqCollections,
	platform.TrendyolStatement:  trendyolStatement,
	platform.TrendyolSales:      referenceOnly{},
	platform.AmazonTransactions: amazonTransactions{},
	platform.WebsiteOrders:      websiteOrders,
	platform.TabbyCollections:   tabbyCollections,
	platform.SMSACollections:    smsaCollections,
	platform.ProductCosts:       productCosts,
}

// For returns the extractor of label.
func For(label platform.Label) (Extractor, error) {
	e, ok := registry[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoExtractor, label)
	}
	return e, nil
}

// referenceOnly accepts a file without producing records.
type referenceOnly struct{}

func (referenceOnly) Extract(src Source) (Result, error) {
	var res Result
	sheet, err := src.sheet()
	if err != nil {
		return res, err
	}
	res.RowsRead = len(sheet.Frame(0).Rows)
	res.note("%s: %s is reference only, %d rows not imported", src.name(), src.Label, res.RowsRead)
	return res, nil
}

// rowFunc handles one data row and returns a skip reason, or "" when the row
// produced records.
type rowFunc func(src Source, m columns.Mapping, row []string, res *Result) string

// table is an extractor over a header-plus-rows sheet.
type table struct {
	// headerRow is where the export puts its header; other rows within the
	// first headerSearchRows are searched when the required columns are not there.
	headerRow int
	fields    []columns.Field
	required  []string
	// anyOf lists fields of which at least one must resolve.
	anyOf  []string
	row    rowFunc
	finish func(src Source, res *Result)
}

const headerSearchRows = 20

func (t table) Extract(src Source) (Result, error) {
	var res Result
	sheet, err := src.sheet()
	if err != nil {
		return res, err
	}

	frame, m, err := t.locate(sheet)
	if err != nil {
		return res, fmt.Errorf("%s: %w", src.name(), err)
	}

	for _, row := range frame.Rows {
		res.RowsRead++
		if reason := t.row(src, m, row, &res); reason != "" {
			res.skip(reason)
		} else {
			res.ok()
		}
	}
	if t.finish != nil {
		t.finish(src, &res)
	}
	return res, nil
}

func (t table) locate(sheet *tabular.Sheet) (tabular.Frame, columns.Mapping, error) {
	candidates := []int{t.headerRow}
	for i := 0; i < headerSearchRows && i < len(sheet.Rows); i++ {
		if i != t.headerRow {
			candidates = append(candidates, i)
		}
	}

	var missing []string
	for i, idx := range candidates {
		if idx >= len(sheet.Rows) {
			continue
		}
		frame := sheet.Frame(idx)
		m := columns.Resolve(frame.Header, t.fields)
		gaps := t.missing(m)
		if len(gaps) == 0 {
			return frame, m, nil
		}
		if i == 0 {
			missing = gaps
		}
	}
	if missing == nil {
		return tabular.Frame{}, columns.Mapping{}, ErrNoHeader
	}
	return tabular.Frame{}, columns.Mapping{}, fmt.Errorf("%w: %v", ErrMissingColumns, missing)
}

func (t table) missing(m columns.Mapping) []string {
	var out []string
	for _, key := range t.required {
		if !m.Has(key) {
			out = append(out, key)
		}
	}
	if len(t.anyOf) == 0 {
		return out
	}
	for _, key := range t.anyOf {
		if m.Has(key) {
			return out
		}
	}
	return append(out, strings.Join(t.anyOf, "|"))
}

// optionalAmount reads a numeric cell where blank means zero.
func optionalAmount(m columns.Mapping, row []string, key string) (float64, error) {
	v, err := normalize.ParseAmount(m.Get(row, key))
	if errors.Is(err, normalize.ErrEmpty) {
		return 0, nil
	}
	return v, err
}

// quantity reads an item count, defaulting to 1.
func quantity(m columns.Mapping, row []string, key string) int {
	v, err := normalize.ParseAmount(m.Get(row, key))
	if err != nil || v < 1 {
		return 1
	}
	return int(v)
}

func itemLine(name string, qty int) string {
	return fmt.Sprintf("%s x%d", name, qty)
}
