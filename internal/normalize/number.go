package normalize

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmpty      = errors.New("empty_value")
	ErrNotNumeric = errors.New("not_numeric")
)

var amountReplacer = strings.NewReplacer(
	"\"", "",
	"=", "",
	",", "",
	"٬", "", // arabic thousands separator
	"٫", ".", // arabic decimal separator
	"SAR", "",
	"sar", "",
	"ر.س", "",
	"\u00a0", "",
	" ", "",
)

var arabicDigits = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// ParseAmount parses a money or quantity value exported by a vendor file.
// Blank input yields ErrEmpty so callers can tell a missing cell from garbage.
func ParseAmount(raw string) (float64, error) {
	d, err := parseDecimal(raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// AmountOrZero treats blank and unparseable values as zero.
func AmountOrZero(raw string) float64 {
	v, err := ParseAmount(raw)
	if err != nil {
		return 0
	}
	return v
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	s := cleanCell(raw)
	s = arabicDigits.Replace(s)
	s = amountReplacer.Replace(s)
	if s == "" || isNullToken(s) {
		return decimal.Zero, ErrEmpty
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrNotNumeric
	}
	return d, nil
}

// CanonicalID turns spreadsheet-mangled numeric identifiers ("1.2345E+9",
// "00123", "123.0") into their integer form. Anything that is not a number is
// returned trimmed and otherwise untouched.
func CanonicalID(raw string) string {
	s := cleanCell(raw)
	if s == "" || isNullToken(s) {
		return ""
	}
	d, err := decimal.NewFromString(arabicDigits.Replace(s))
	if err != nil {
		return s
	}
	return d.Truncate(0).String()
}

// Round rounds half away from zero to the given number of places.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Percent returns part/whole*100 rounded to one decimal, or 0 when whole is 0.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	p := decimal.NewFromFloat(part).Div(decimal.NewFromFloat(whole)).Mul(decimal.NewFromInt(100))
	return p.Round(1).InexactFloat64()
}

func cleanCell(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.Trim(s, "\"'")
	s = strings.TrimPrefix(s, "=")
	s = strings.Trim(s, "\"")
	return strings.TrimSpace(s)
}

func isNullToken(s string) bool {
	switch strings.ToLower(s) {
	case "nan", "none", "null", "nat", "\\n", "-":
		return true
	}
	return false
}
