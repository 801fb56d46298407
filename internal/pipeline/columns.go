package pipeline

import (
	"strings"

	"packtrack/internal/util"
)

// ColumnMap holds the detected source-column index per logical field.
// Indices other than Tracking are -1 when the manifest lacks the column.
type ColumnMap struct {
	Tracking int
	Name     int
	Delivery int
	Order    int
	Quantity int
	Image    int
	ASIN     int
}

// Alias tables are checked in order; the first header matching an alias
// wins, so detection is deterministic when several columns could fit.
// Exact aliases always outrank the substring fallbacks below.
var (
	trackingAliases = []string{
		"tracking number", "trackingnumber", "tracking_number",
		"carrier tracking number", "carrier tracking #", "tracking #",
		"tracking",
	}

	nameAliases = []string{
		"item name", "itemname", "title", "item title", "product name",
		"item description", "description", "name",
	}

	// Columns that hold opaque identifiers, never display names. They must
	// not become the item-name source even when nothing better exists.
	nameExclusions = map[string]struct{}{
		"itemid":      {},
		"item number": {},
		"category":    {},
	}

	// Delivery-date columns, best first. A plain "Date" column is trusted
	// as a delivery date, matching how uploads were standardized upstream.
	deliveryDateAliases = []string{
		"expected delivery date", "estimated delivery date", "expected date",
		"promise date", "delivery date", "date delivered", "received date",
		"date",
	}

	// Order/ship dates say nothing about arrival; rows carrying only these
	// resolve to the Pending sentinel.
	orderDateAliases = []string{
		"purchase date", "order date", "shipment date", "ship date",
	}

	quantityAliases = []string{"quantity", "qty", "quantity ordered", "qty ordered"}

	imageAliases = []string{"image", "image url", "photo"}
)

// DetectColumns infers the source columns from the header row. Only the
// tracking column is mandatory; its absence is a ColumnDetectionError.
func DetectColumns(headers []string) (ColumnMap, error) {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = util.NormalizeHeaderName(h)
	}

	cols := ColumnMap{
		Tracking: findAlias(norm, trackingAliases, nil),
		Name:     findAlias(norm, nameAliases, nameExclusions),
		Delivery: findAlias(norm, deliveryDateAliases, nil),
		Order:    findAlias(norm, orderDateAliases, nil),
		Quantity: findAlias(norm, quantityAliases, nil),
		Image:    findAlias(norm, imageAliases, nil),
		ASIN:     findAlias(norm, []string{"asin"}, nil),
	}

	if cols.Tracking < 0 {
		cols.Tracking = findTrackingFallback(norm)
	}
	if cols.Tracking < 0 {
		return ColumnMap{}, &ColumnDetectionError{Headers: headers}
	}

	if cols.Name < 0 {
		cols.Name = findNameFallback(norm, cols.Tracking)
	}

	return cols, nil
}

func findAlias(headers []string, aliases []string, exclude map[string]struct{}) int {
	for _, alias := range aliases {
		for i, h := range headers {
			if h != alias {
				continue
			}
			if exclude != nil {
				if _, banned := exclude[h]; banned {
					continue
				}
			}
			return i
		}
	}
	return -1
}

func findTrackingFallback(headers []string) int {
	for i, h := range headers {
		if strings.Contains(h, "track") && (strings.Contains(h, "number") || strings.Contains(h, "#")) {
			return i
		}
	}
	return -1
}

func findNameFallback(headers []string, trackingIdx int) int {
	for i, h := range headers {
		if i == trackingIdx {
			continue
		}
		if _, banned := nameExclusions[h]; banned {
			continue
		}
		if strings.Contains(h, "title") || strings.Contains(h, "item") || strings.Contains(h, "product") {
			return i
		}
	}
	return -1
}
