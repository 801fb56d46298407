package pipeline

import (
	"packtrack/internal"
)

// ItemNameSeparator joins the item names of a multi-row shipment.
const ItemNameSeparator = " + "

// MergeRows collapses rows sharing a tracking number into one canonical row
// per shipment: item names concatenate in first-seen order, quantities sum,
// and the date comes from the first row with a concrete (non-Pending) date.
// Output order follows first appearance in the manifest.
func MergeRows(rows []internal.CanonicalRow) []internal.CanonicalRow {
	byTracking := make(map[string]int, len(rows))
	out := make([]internal.CanonicalRow, 0, len(rows))

	for _, row := range rows {
		idx, seen := byTracking[row.TrackingNumber]
		if !seen {
			byTracking[row.TrackingNumber] = len(out)
			out = append(out, row)
			continue
		}

		merged := &out[idx]
		merged.Quantity += row.Quantity
		if row.ItemName != "" {
			if merged.ItemName == "" {
				merged.ItemName = row.ItemName
			} else {
				merged.ItemName += ItemNameSeparator + row.ItemName
			}
		}
		if merged.Date == internal.PendingDate && row.Date != internal.PendingDate {
			merged.Date = row.Date
		}
		if merged.ImageURL == "" {
			merged.ImageURL = row.ImageURL
		}
	}

	return out
}
