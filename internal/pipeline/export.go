package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"packtrack/internal"
	"packtrack/internal/util"
)

// ExportPackagesToXLSX writes the current package set to a spreadsheet
// report. Tracking numbers are written as explicit strings so the sheet
// cannot re-corrupt them into numbers.
func ExportPackagesToXLSX(packages []internal.PackageRecord, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"tracking_number", "item_name", "status", "source",
		"date_expected", "manual_date", "date_scanned",
		"quantity", "priority", "image_url", "refund_date",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, p := range packages {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
		trackingCell, _ := excelize.CoordinatesToCellName(1, r)
		_ = f.SetCellStr(sheet, trackingCell, p.TrackingNumber)

		set(2, util.SanitizeForCSV(p.ItemName))
		set(3, string(p.Status))
		set(4, string(p.Source))
		set(5, p.DateExpected)
		set(6, derefString(p.ManualDate))
		set(7, derefString(p.DateScanned))
		set(8, p.Quantity)
		set(9, p.Priority)
		set(10, p.ImageURL)
		set(11, derefString(p.RefundDate))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
