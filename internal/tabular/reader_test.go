package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpenUTF8WithBOM(t *testing.T) {
	path := writeFile(t, "orders.csv", []byte("\xef\xbb\xbforder_nr,price\nN1,10\n\nN2,20\n"))

	sheet, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "utf-8-sig", sheet.Encoding)
	assert.Equal(t, []string{"order_nr", "price"}, sheet.Columns())

	frame := sheet.Frame(0)
	require.Len(t, frame.Rows, 2)
	assert.Equal(t, "N2", frame.Rows[1][0])
}

func TestOpenLegacyArabicSemicolon(t *testing.T) {
	encoded, err := charmap.Windows1256.NewEncoder().String("رقم الطلب;المبلغ\n1001;50\n")
	require.NoError(t, err)
	path := writeFile(t, "collection.csv", []byte(encoded))

	sheet, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "windows-1256", sheet.Encoding)
	assert.Equal(t, ';', sheet.Separator)
	assert.Equal(t, []string{"رقم الطلب", "المبلغ"}, sheet.Columns())
}

func TestOpenSingleColumnRejected(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("just one column\nmore text\n"))
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestOpenUnsupported(t *testing.T) {
	path := writeFile(t, "legacy.xls", []byte{0xd0, 0xcf})
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestOpenWorkbookWithPreamble(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Merchant statement"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"Order Number", "Transferred Amount"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{12345, 99.5}))
	path := filepath.Join(t.TempDir(), "tabby.xlsx")
	require.NoError(t, f.SaveAs(path))

	sheet, err := Open(path)
	require.NoError(t, err)

	frame := sheet.Frame(2)
	assert.Equal(t, []string{"Order Number", "Transferred Amount"}, frame.Header)
	require.Len(t, frame.Rows, 1)
	assert.Equal(t, "12345", frame.Rows[0][0])
	assert.Equal(t, "99.5", frame.Rows[0][1])
	assert.Equal(t, Frame{}, sheet.Frame(10))
}

func TestLines(t *testing.T) {
	encoded, err := charmap.Windows1256.NewEncoder().String("رقم الطلب,الإجمالي\r\n171-1-1,5\r\n")
	require.NoError(t, err)
	path := writeFile(t, "amazon.csv", []byte(encoded))

	lines, err := Lines(path)
	require.NoError(t, err)
	assert.Equal(t, "رقم الطلب,الإجمالي", lines[0])
	assert.Equal(t, "171-1-1,5", lines[1])
}
