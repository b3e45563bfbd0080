// Package costmatch resolves free-text item names against the product cost
// table.
package costmatch

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/railzwaylabs/recon/internal/normalize"
)

// Method records which step of the cascade produced a match.
type Method string

const (
	MethodNone       Method = ""
	MethodSKUHint    Method = "sku_hint"
	MethodExact      Method = "exact"
	MethodNormalized Method = "normalized"
	MethodSubstring  Method = "substring"
	MethodSKU        Method = "sku"
)

var (
	skuHint  = regexp.MustCompile(`^\s*[\(\[]\s*SKU\s*:\s*([^\)\]]*)[\)\]]\s*`)
	skuToken = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9_-]{3,}`)
)

// Product is one row of the cost table.
type Product struct {
	SKU  string
	Name string
	Cost float64
}

type normalizedName struct {
	name string
	cost float64
}

// Resolver answers unit cost lookups for a fixed cost table. It is safe for
// concurrent use once built.
type Resolver struct {
	bySKU      map[string]float64
	byName     map[string]float64
	byNorm     map[string]float64
	substrings []normalizedName
}

// NewResolver indexes products. When two products share a name the first one
// wins.
func NewResolver(products []Product) *Resolver {
	r := &Resolver{
		bySKU:  make(map[string]float64, len(products)),
		byName: make(map[string]float64, len(products)),
		byNorm: make(map[string]float64, len(products)),
	}
	for _, p := range products {
		if sku := strings.ToUpper(strings.TrimSpace(p.SKU)); sku != "" {
			if _, ok := r.bySKU[sku]; !ok {
				r.bySKU[sku] = p.Cost
			}
		}
		name := strings.TrimSpace(p.Name)
		n := normalize.Fold(name)
		if n == "" {
			continue
		}
		if _, ok := r.byName[name]; !ok {
			r.byName[name] = p.Cost
		}
		if _, ok := r.byNorm[n]; !ok {
			r.byNorm[n] = p.Cost
			r.substrings = append(r.substrings, normalizedName{name: n, cost: p.Cost})
		}
	}
	// Longest names first so "blue shirt large" beats "shirt".
	sort.SliceStable(r.substrings, func(i, j int) bool {
		return utf8.RuneCountInString(r.substrings[i].name) > utf8.RuneCountInString(r.substrings[j].name)
	})
	return r
}

// Len is the number of distinct product names indexed.
func (r *Resolver) Len() int {
	return len(r.byNorm)
}

// UnitCost resolves one item name. The cascade order matters: an exact name
// always beats a product whose name merely contains it, and any name match
// beats a SKU. A "(SKU: x)" prefix is stripped first and its value is the
// first SKU candidate.
func (r *Resolver) UnitCost(item string) (float64, Method) {
	name := item
	hint := ""
	if m := skuHint.FindStringSubmatch(name); m != nil {
		hint = strings.ToUpper(strings.TrimSpace(m[1]))
		name = name[len(m[0]):]
	}
	name = strings.TrimSpace(name)

	if name != "" {
		if cost, method := r.byNameCascade(name); method != MethodNone {
			return cost, method
		}
	}

	if hint != "" {
		if cost, ok := r.bySKU[hint]; ok {
			return cost, MethodSKUHint
		}
	}
	if name == "" {
		return 0, MethodNone
	}

	for _, token := range skuToken.FindAllString(name, -1) {
		if cost, ok := r.bySKU[strings.ToUpper(token)]; ok {
			return cost, MethodSKU
		}
	}
	if cost, ok := r.bySKU[strings.ToUpper(name)]; ok {
		return cost, MethodSKU
	}
	return 0, MethodNone
}

func (r *Resolver) byNameCascade(name string) (float64, Method) {
	if cost, ok := r.byName[name]; ok {
		return cost, MethodExact
	}

	// marks or tatweel only: nothing left to compare
	n := normalize.Fold(name)
	if n == "" {
		return 0, MethodNone
	}
	if cost, ok := r.byNorm[n]; ok {
		return cost, MethodNormalized
	}

	for _, p := range r.substrings {
		if strings.Contains(n, p.name) || strings.Contains(p.name, n) {
			return p.cost, MethodSubstring
		}
	}
	return 0, MethodNone
}

// OrderCost is the result of costing one item summary.
type OrderCost struct {
	Cost    float64
	Items   int
	Matched int
}

// Cost prices every item of summary. Matched is zero when nothing resolved,
// in which case Cost must not replace a stored value.
func (r *Resolver) Cost(summary string) OrderCost {
	var out OrderCost
	for _, item := range ParseItems(summary) {
		out.Items++
		unit, method := r.UnitCost(item.Name)
		if method == MethodNone {
			continue
		}
		out.Matched++
		out.Cost += unit * float64(item.Quantity)
	}
	out.Cost = normalize.Round(out.Cost, 2)
	return out
}
