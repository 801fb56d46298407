package pipeline

import (
	"bytes"
	"encoding/csv"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"packtrack/internal"
	"packtrack/internal/util"
)

// Table is one parsed manifest: a header row plus string-only data rows.
// Keeping every cell textual is what guarantees tracking numbers survive
// spreadsheet round-trips intact.
type Table struct {
	Headers []string
	Rows    [][]string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat sniffs shape A (CSV) vs shape B (XLSX). XLSX files are zip
// archives, so the magic bytes are authoritative; the filename is a hint.
func DetectFormat(filename string, data []byte) internal.ManifestFormat {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return internal.FormatXLSX
	}
	lower := strings.ToLower(filename)
	if strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls") {
		return internal.FormatXLSX
	}
	return internal.FormatCSV
}

func ReadTable(data []byte, format internal.ManifestFormat) (Table, error) {
	switch format {
	case internal.FormatXLSX:
		return readXLSX(data)
	default:
		return readCSV(data)
	}
}

func readCSV(data []byte) (Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		// Same fallback the legacy uploads needed: Windows-1252 exports.
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return Table{}, &IngestFormatError{Format: "csv", Err: err}
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	headers, err := r.Read()
	if err != nil {
		return Table{}, &IngestFormatError{Format: "csv", Err: err}
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	rows := make([][]string, 0, 64)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, &IngestFormatError{Format: "csv", Err: err}
		}
		rows = append(rows, record)
	}

	return Table{Headers: headers, Rows: rows}, nil
}

func readXLSX(data []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Table{}, &IngestFormatError{Format: "xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, &IngestFormatError{Format: "xlsx", Err: io.ErrUnexpectedEOF}
	}

	// RawCellValue skips number formatting, which otherwise mangles long
	// numeric tracking values into display strings.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, &IngestFormatError{Format: "xlsx", Err: err}
	}
	if len(rows) == 0 {
		return Table{Headers: nil, Rows: nil}, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	return Table{Headers: headers, Rows: rows[1:]}, nil
}

var scientificPattern = regexp.MustCompile(`^(\d)(?:[.,](\d+))?[eE]\+?(\d{1,3})$`)

// CoerceTracking forces a tracking cell back to plain text. Cells that
// passed through an arithmetic representation show up with a trailing ".0"
// or in exponential notation; both are undone here. The value is never
// parsed as a number otherwise.
func CoerceTracking(cell string) string {
	s := strings.TrimSpace(cell)
	s = strings.TrimSuffix(s, ".0")

	m := scientificPattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	exp, err := strconv.Atoi(m[3])
	if err != nil {
		return s
	}
	digits := m[1] + m[2]
	if exp+1 < len(digits) {
		// A true fraction, not a corrupted integer.
		return s
	}
	return digits + strings.Repeat("0", exp+1-len(digits))
}

// dateFromExcelSerial recovers a date from a date-typed spreadsheet cell.
// Raw reading (which tracking numbers need) turns such cells into their
// serial number, e.g. "46254". The bounds keep bare values like a year or
// a day-of-month from being mistaken for serials: 20000..80000 covers
// 1954 through 2118.
func dateFromExcelSerial(cell string) (string, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return "", false
	}
	if f < 20000 || f > 80000 {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return "", false
	}
	return t.Format(util.ISODate), true
}

// parseQuantity reads a quantity cell, tolerating "3", "3.0" and blanks.
// Anything unusable defaults to one unit; negatives are clamped.
func parseQuantity(cell string) int {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 1
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 1
	}
	q := int(f)
	if q < 0 {
		return 0
	}
	return q
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
