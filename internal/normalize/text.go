package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tatweel = 'ـ'

// Fold produces the comparison form of free text: diacritics and tatweel
// removed, case folded and whitespace collapsed. Arabic hamza carriers
// decompose to their bare letter, so "أ" and "ا" compare equal.
func Fold(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == tatweel })),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return CollapseSpaces(cases.Fold().String(out))
}

// CollapseSpaces trims s and squeezes every whitespace run to one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
