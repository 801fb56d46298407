package pipeline

import (
	"fmt"
	"strings"

	"packtrack/internal"
	"packtrack/internal/util"
)

// NormalizeRows converts raw table rows to canonical manifest rows using
// the detected column map. Rows with an empty tracking number after trim
// are dropped and counted, not fatal.
func NormalizeRows(table Table, cols ColumnMap) (rows []internal.CanonicalRow, skipped int) {
	rows = make([]internal.CanonicalRow, 0, len(table.Rows))
	for _, raw := range table.Rows {
		tracking := CoerceTracking(cellAt(raw, cols.Tracking))
		if tracking == "" {
			skipped++
			continue
		}

		row := internal.CanonicalRow{
			TrackingNumber: tracking,
			ItemName:       util.NormalizeSpaces(cellAt(raw, cols.Name)),
			Date:           resolveDate(raw, cols),
			Quantity:       1,
			ImageURL:       cellAt(raw, cols.Image),
		}
		if cols.Quantity >= 0 {
			row.Quantity = parseQuantity(cellAt(raw, cols.Quantity))
		}
		if row.ImageURL == "" {
			row.ImageURL = ImageURLForASIN(cellAt(raw, cols.ASIN))
		}
		rows = append(rows, row)
	}
	return rows, skipped
}

// resolveDate prefers a parseable delivery date. A row that only carries an
// order date resolves to the Pending sentinel: an old order date says
// nothing about when the package arrives and must not flag it overdue.
func resolveDate(raw []string, cols ColumnMap) string {
	if cols.Delivery >= 0 {
		cell := cellAt(raw, cols.Delivery)
		if date, ok := util.ParseManifestDate(cell); ok {
			return date
		}
		// Date-typed XLSX cells arrive as serial numbers under raw reading.
		if date, ok := dateFromExcelSerial(cell); ok {
			return date
		}
	}
	return internal.PendingDate
}

// ImageURLForASIN derives the storefront image URL for rows that ship an
// ASIN but no image of their own.
func ImageURLForASIN(asin string) string {
	a := strings.ToUpper(strings.TrimSpace(asin))
	switch strings.ToLower(a) {
	case "", "nan", "none":
		return ""
	}
	if len(a) < 10 {
		return ""
	}
	return fmt.Sprintf("https://images-na.ssl-images-amazon.com/images/P/%s.01._SX200_.jpg", a)
}
