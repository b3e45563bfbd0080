package columns

import (
	"strings"

	"github.com/railzwaylabs/recon/internal/normalize"
)

// Field declares the candidate header names for one logical field. Candidates
// are tried in order, first as exact matches and then, unless ExactOnly is
// set, as substrings of the header.
type Field struct {
	Key        string
	Candidates []string
	ExactOnly  bool
	// Exclude rejects substring matches on headers containing any of these.
	Exclude []string
}

// Mapping holds the resolved column index of each logical field.
type Mapping struct {
	index  map[string]int
	header []string
}

// Normalize is the comparison form of a header cell.
func Normalize(header string) string {
	s := strings.NewReplacer("\"", "", "=", "", "\ufeff", "", "_", " ").Replace(header)
	return normalize.Fold(s)
}

// Resolve maps each field to the first matching header column. Columns are
// assigned to at most one field, in field declaration order.
func Resolve(header []string, fields []Field) Mapping {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = Normalize(h)
	}

	m := Mapping{index: make(map[string]int, len(fields)), header: header}
	taken := make(map[int]bool, len(fields))
	for _, f := range fields {
		if idx, ok := find(normalized, f, taken); ok {
			m.index[f.Key] = idx
			taken[idx] = true
		}
	}
	return m
}

// Find resolves a single field against header.
func Find(header []string, f Field) (int, bool) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = Normalize(h)
	}
	return find(normalized, f, nil)
}

func find(normalized []string, f Field, taken map[int]bool) (int, bool) {
	candidates := make([]string, 0, len(f.Candidates))
	for _, c := range f.Candidates {
		if n := Normalize(c); n != "" {
			candidates = append(candidates, n)
		}
	}

	for _, c := range candidates {
		for i, h := range normalized {
			if !taken[i] && h == c {
				return i, true
			}
		}
	}
	if f.ExactOnly {
		return -1, false
	}

	for _, c := range candidates {
		for i, h := range normalized {
			if taken[i] || !strings.Contains(h, c) || excluded(h, f.Exclude) {
				continue
			}
			return i, true
		}
	}
	return -1, false
}

func excluded(h string, exclude []string) bool {
	for _, e := range exclude {
		if strings.Contains(h, Normalize(e)) {
			return true
		}
	}
	return false
}

// Has reports whether the field was resolved.
func (m Mapping) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

// Column returns the original header text of a resolved field.
func (m Mapping) Column(key string) string {
	idx, ok := m.index[key]
	if !ok {
		return ""
	}
	return m.header[idx]
}

// Get returns the trimmed cell of row for the field, or "" when the field is
// unresolved or the row is short.
func (m Mapping) Get(row []string, key string) string {
	idx, ok := m.index[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
