package pipeline

import (
	"time"

	"packtrack/internal"
	"packtrack/internal/util"
)

// isOpenStatus reports whether ingest may still move this status around.
// Received and the return/refund states are terminal for the mirror.
func isOpenStatus(s internal.PackageStatus) bool {
	switch s {
	case internal.StatusPending, internal.StatusOnTime, internal.StatusExpected, internal.StatusPastDue:
		return true
	default:
		return false
	}
}

// dueStatus evaluates a resolved date against today. Pending dates keep
// the fallback, so a sentinel never flags a package overdue.
func dueStatus(date string, today time.Time, fallback internal.PackageStatus) internal.PackageStatus {
	cmp, ok := util.CompareToToday(date, today)
	if !ok {
		return fallback
	}
	switch {
	case cmp < 0:
		return internal.StatusPastDue
	case cmp == 0:
		return internal.StatusExpected
	default:
		return internal.StatusOnTime
	}
}

// statusForUpdate applies the past-due business rule to an existing record
// during mirror update. Terminal statuses are preserved; a scanned package
// becomes received; otherwise the effective date decides.
func statusForUpdate(existing internal.PackageRecord, effectiveDate string, today time.Time) internal.PackageStatus {
	if !isOpenStatus(existing.Status) {
		return existing.Status
	}
	if existing.DateScanned != nil {
		return internal.StatusReceived
	}
	return dueStatus(effectiveDate, today, existing.Status)
}
