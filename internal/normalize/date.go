package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006 15:04",
	"02.01.2006",
	"01/02/2006 3:04:05 PM",
	"01/02/2006",
}

// Spreadsheet serials outside this window are treated as plain numbers.
const (
	minExcelSerial = 20000 // 1954-10-03
	maxExcelSerial = 80000 // 2119-01-10
)

// ParseDate returns the calendar date of raw at UTC midnight.
func ParseDate(raw string) (time.Time, bool) {
	s := cleanCell(raw)
	s = strings.TrimSuffix(s, " UTC")
	s = strings.TrimSpace(arabicDigits.Replace(s))
	if s == "" || isNullToken(s) {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return dateOnly(t), true
		}
	}
	return time.Time{}, false
}

// ParseDatePtr is ParseDate for nullable columns.
func ParseDatePtr(raw string) *time.Time {
	t, ok := ParseDate(raw)
	if !ok {
		return nil
	}
	return &t
}

// ISOWeek returns the ISO week number and ISO year of t, or zeros for nil.
func ISOWeek(t *time.Time) (int, int) {
	if t == nil {
		return 0, 0
	}
	year, week := t.ISOWeek()
	return week, year
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
