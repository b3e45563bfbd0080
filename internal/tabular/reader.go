package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported_file_format")
	ErrNoColumns         = errors.New("no_tabular_columns")
)

// Sheet is the raw cell grid of a file. Header handling is left to callers
// because some exports carry a multi-row preamble.
type Sheet struct {
	Name      string
	Rows      [][]string
	Encoding  string
	Separator rune
}

// Frame is a header row plus the data rows below it.
type Frame struct {
	Header []string
	Rows   [][]string
	// Offset is the zero-based sheet row of the first data row.
	Offset int
}

type decoding struct {
	name string
	enc  encoding.Encoding
}

var decodings = []decoding{
	{name: "utf-8-sig"},
	{name: "utf-8"},
	{name: "windows-1256", enc: charmap.Windows1256},
	{name: "latin1", enc: charmap.ISO8859_1},
}

var separators = []rune{',', ';', '\t'}

// probeRows is how many leading rows are inspected when judging whether a
// decoding/separator pair produced a real table.
const probeRows = 20

// Open reads a spreadsheet or delimited text file.
func Open(path string) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return openWorkbook(path)
	case ".csv", ".txt", ".tsv":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return parseDelimited(filepath.Base(path), data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func openWorkbook(path string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoColumns
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return &Sheet{Name: filepath.Base(path), Rows: rows, Encoding: "xlsx"}, nil
}

func parseDelimited(name string, data []byte) (*Sheet, error) {
	for _, d := range decodings {
		text, ok := decode(data, d)
		if !ok {
			continue
		}
		for _, sep := range separators {
			rows, err := readCSV(text, sep)
			if err != nil || widest(rows) < 2 {
				continue
			}
			return &Sheet{Name: name, Rows: rows, Encoding: d.name, Separator: sep}, nil
		}
	}
	return nil, ErrNoColumns
}

func decode(data []byte, d decoding) (string, bool) {
	switch d.name {
	case "utf-8-sig":
		if !bytes.HasPrefix(data, []byte("\xef\xbb\xbf")) {
			return "", false
		}
		rest := data[3:]
		return string(rest), utf8.Valid(rest)
	case "utf-8":
		return string(data), utf8.Valid(data)
	default:
		out, err := d.enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", false
		}
		return string(out), true
	}
}

func readCSV(text string, sep rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func widest(rows [][]string) int {
	max := 0
	for i, row := range rows {
		if i >= probeRows {
			break
		}
		if len(row) > max {
			max = len(row)
		}
	}
	return max
}

// Frame returns the table whose header sits at headerRow. Blank rows are
// dropped; rows shorter than the header are kept as-is.
func (s *Sheet) Frame(headerRow int) Frame {
	if s == nil || headerRow < 0 || headerRow >= len(s.Rows) {
		return Frame{}
	}
	header := make([]string, len(s.Rows[headerRow]))
	for i, h := range s.Rows[headerRow] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([][]string, 0, len(s.Rows)-headerRow-1)
	for _, row := range s.Rows[headerRow+1:] {
		if blank(row) {
			continue
		}
		rows = append(rows, row)
	}
	return Frame{Header: header, Rows: rows, Offset: headerRow + 1}
}

// Columns is the header of the default frame.
func (s *Sheet) Columns() []string {
	return s.Frame(0).Header
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Lines decodes a text file into lines, trying UTF-8 (with or without BOM)
// before the legacy Arabic code page.
func Lines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var text string
	switch {
	case bytes.HasPrefix(data, []byte("\xef\xbb\xbf")) && utf8.Valid(data[3:]):
		text = string(data[3:])
	case utf8.Valid(data):
		text = string(data)
	default:
		out, err := charmap.Windows1256.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		text = string(out)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n"), nil
}
