package pipeline

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"packtrack/internal"
)

func mkXLSX(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if s, ok := v.(string); ok {
				_ = f.SetCellStr(sheet, cell, s)
			} else {
				_ = f.SetCellValue(sheet, cell, v)
			}
		}
	}
	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	xlsx := mkXLSX(t, [][]any{{"TrackingNumber"}})
	if got := DetectFormat("upload.bin", xlsx); got != internal.FormatXLSX {
		t.Fatalf("zip magic not detected: %s", got)
	}
	if got := DetectFormat("manifest.csv", []byte("a,b\n1,2\n")); got != internal.FormatCSV {
		t.Fatalf("csv not detected: %s", got)
	}
}

func TestReadCSVWithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("TrackingNumber,ItemName\nTBA123,Widget\n")...)
	table, err := ReadTable(data, internal.FormatCSV)
	if err != nil {
		t.Fatal(err)
	}
	if table.Headers[0] != "TrackingNumber" {
		t.Fatalf("BOM leaked into header: %q", table.Headers[0])
	}
	if len(table.Rows) != 1 || table.Rows[0][0] != "TBA123" {
		t.Fatalf("rows=%v", table.Rows)
	}
}

func TestReadCSVWindows1252(t *testing.T) {
	// 0xE9 is e-acute in cp1252 and invalid on its own in UTF-8.
	data := []byte("TrackingNumber,ItemName\n900001,Caf\xe9 sampler\n")
	table, err := ReadTable(data, internal.FormatCSV)
	if err != nil {
		t.Fatal(err)
	}
	if table.Rows[0][1] != "Café sampler" {
		t.Fatalf("got %q", table.Rows[0][1])
	}
}

func TestReadUnparseableInput(t *testing.T) {
	var formatErr *IngestFormatError

	_, err := ReadTable([]byte("not a zip archive"), internal.FormatXLSX)
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected IngestFormatError, got %v", err)
	}

	_, err = ReadTable(nil, internal.FormatCSV)
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected IngestFormatError for empty csv, got %v", err)
	}
}

func TestCoerceTracking(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain digits untouched", input: "9400102000880000000000", want: "9400102000880000000000"},
		{name: "trailing point zero", input: "420943109400.0", want: "420943109400"},
		{name: "scientific notation expanded", input: "9.40010200088E+21", want: "9400102000880000000000"},
		{name: "lowercase exponent", input: "9.4001e21", want: "9400100000000000000000"},
		{name: "alnum untouched", input: "1Z999AA10123456784", want: "1Z999AA10123456784"},
		{name: "true decimal untouched", input: "1.25E+1", want: "1.25E+1"},
		{name: "whitespace trimmed", input: "  TBA123456789012 ", want: "TBA123456789012"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CoerceTracking(tc.input); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestDateTypedDeliveryCellRoundTrip(t *testing.T) {
	// Spreadsheet exports store delivery dates as date-typed cells, which
	// raw reading surfaces as Excel serial numbers. The resolved date must
	// still be the calendar date, not the Pending sentinel.
	blob := mkXLSX(t, [][]any{
		{"Tracking Number", "Item Name", "Expected Delivery Date"},
		{"TBA123456789012", "Widget", time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)},
	})

	table, err := ReadTable(blob, internal.FormatXLSX)
	if err != nil {
		t.Fatal(err)
	}
	cols, err := DetectColumns(table.Headers)
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := NormalizeRows(table, cols)
	if len(rows) != 1 {
		t.Fatalf("rows=%d", len(rows))
	}
	if rows[0].Date != "2026-09-04" {
		t.Fatalf("date-typed cell resolved to %q", rows[0].Date)
	}
}

func TestDateFromExcelSerial(t *testing.T) {
	cases := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "46254", want: "2026-08-20", ok: true},
		{input: "46254.5", want: "2026-08-20", ok: true},
		{input: "2026", ok: false},   // bare year, not a serial
		{input: "12", ok: false},     // bare day-of-month
		{input: "200000", ok: false}, // out of range
		{input: "Pending", ok: false},
		{input: "", ok: false},
	}
	for _, tc := range cases {
		got, ok := dateFromExcelSerial(tc.input)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("dateFromExcelSerial(%q) = %q, %t; want %q, %t", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDigitsOnlyTrackingRoundTrip(t *testing.T) {
	// A 22-digit USPS-style tracking value must survive an XLSX round trip
	// byte for byte.
	const tracking = "9400102000880000000000"
	blob := mkXLSX(t, [][]any{
		{"TrackingNumber", "ItemName"},
		{tracking, "Widget"},
	})

	table, err := ReadTable(blob, internal.FormatXLSX)
	if err != nil {
		t.Fatal(err)
	}
	cols, err := DetectColumns(table.Headers)
	if err != nil {
		t.Fatal(err)
	}
	rows, skipped := NormalizeRows(table, cols)
	if skipped != 0 || len(rows) != 1 {
		t.Fatalf("rows=%d skipped=%d", len(rows), skipped)
	}
	if rows[0].TrackingNumber != tracking {
		t.Fatalf("tracking corrupted: %q", rows[0].TrackingNumber)
	}
}
