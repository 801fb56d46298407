package receiving

import (
	"fmt"
	"time"

	"packtrack/internal"
	"packtrack/internal/config"
	"packtrack/internal/storage"
	"packtrack/internal/util"
)

// Alerter is notified when a priority package is scanned in.
type Alerter interface {
	PriorityReceived(tracking, itemName string, quantity int) error
}

// Service owns the receiving-floor workflow: scan receipts, returns and
// stale-record trimming.
type Service struct {
	db      *storage.DB
	cfg     config.Config
	alerter Alerter
	now     func() time.Time
}

func NewService(db *storage.DB, cfg config.Config, alerter Alerter) *Service {
	return &Service{db: db, cfg: cfg, alerter: alerter, now: time.Now}
}

type Receipt struct {
	TrackingNumber string
	ItemName       string
	Known          bool
	Priority       bool
	Status         internal.PackageStatus
}

// LogReceipt marks a scanned package received and appends a history row.
// Unknown tracking numbers auto-create a scan-sourced record so walk-up
// deliveries are not lost.
func (s *Service) LogReceipt(tracking, itemName string, quantity int) (Receipt, error) {
	tracking = util.NormalizeSpaces(tracking)
	if tracking == "" {
		return Receipt{}, fmt.Errorf("empty tracking number")
	}
	if quantity <= 0 {
		quantity = 1
	}

	rec, err := s.db.GetPackageByTracking(tracking)
	if err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{TrackingNumber: tracking, Known: rec != nil}
	var packageID int

	if rec != nil {
		receipt.ItemName = rec.ItemName
		receipt.Priority = rec.Priority
		receipt.Status = rec.Status
		if isReceivable(rec.Status) {
			receipt.Status = internal.StatusReceived
		}
		if err := s.db.MarkScanned(rec.ID, receipt.Status); err != nil {
			return Receipt{}, err
		}
		packageID = rec.ID
	} else {
		id, err := s.db.InsertPackage(internal.PackageRecord{
			TrackingNumber: tracking,
			ItemName:       util.FirstNonEmpty(itemName, "Unknown item"),
			Status:         internal.StatusReceived,
			Source:         internal.SourceScan,
			DateExpected:   s.now().Format(util.ISODate),
			Quantity:       quantity,
		})
		if err != nil {
			return Receipt{}, err
		}
		if err := s.db.MarkScanned(int(id), internal.StatusReceived); err != nil {
			return Receipt{}, err
		}
		packageID = int(id)
		receipt.ItemName = util.FirstNonEmpty(itemName, "Unknown item")
		receipt.Status = internal.StatusReceived
	}

	if err := s.db.InsertHistory(packageID, "received", fmt.Sprintf("Qty: %d", quantity)); err != nil {
		return Receipt{}, err
	}

	if receipt.Priority && s.alerter != nil {
		// Best effort; a down chat webhook must not block the scan lane.
		if err := s.alerter.PriorityReceived(tracking, receipt.ItemName, quantity); err != nil {
			fmt.Printf("priority alert failed for %s: %v\n", tracking, err)
		}
	}

	return receipt, nil
}

func isReceivable(status internal.PackageStatus) bool {
	switch status {
	case internal.StatusPending, internal.StatusOnTime, internal.StatusExpected, internal.StatusPastDue:
		return true
	default:
		return false
	}
}

// StartReturn flags a received package for return shipment.
func (s *Service) StartReturn(tracking, reason string) error {
	rec, err := s.db.GetPackageByTracking(tracking)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("package not found: %s", tracking)
	}
	if err := s.db.SetPackageStatus(tracking, internal.StatusReturnPending); err != nil {
		return err
	}
	return s.db.InsertHistory(rec.ID, "return_started", reason)
}

func (s *Service) CompleteReturn(tracking string) error {
	rec, err := s.db.GetPackageByTracking(tracking)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("package not found: %s", tracking)
	}
	if rec.Status != internal.StatusReturnPending {
		return fmt.Errorf("package %s has no open return (status %s)", tracking, rec.Status)
	}
	if err := s.db.SetPackageStatus(tracking, internal.StatusReturned); err != nil {
		return err
	}
	return s.db.InsertHistory(rec.ID, "returned", "")
}

func (s *Service) MarkRefunded(tracking string) error {
	rec, err := s.db.GetPackageByTracking(tracking)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("package not found: %s", tracking)
	}
	if err := s.db.SetRefunded(tracking, s.now().Format(util.ISODate)); err != nil {
		return err
	}
	return s.db.InsertHistory(rec.ID, "refunded", "")
}

func (s *Service) Stats() (internal.DashboardStats, error) {
	return s.db.DashboardStats(s.now())
}

func (s *Service) DailyScans(days int) ([]internal.DailyScanCount, error) {
	return s.db.DailyScanCounts(s.now(), days)
}

// TrimStale drops received or past-due packages older than the configured
// horizon, then sweeps history rows past the same cutoff. Returns the
// number of packages removed.
func (s *Service) TrimStale() (int, error) {
	cutoff := s.now().AddDate(0, 0, -s.cfg.TrimAfterDays).Format(util.ISODate)
	trimmed, err := s.db.TrimStalePackages(cutoff)
	if err != nil {
		return trimmed, err
	}
	if _, err := s.db.TrimHistory(cutoff); err != nil {
		return trimmed, err
	}
	return trimmed, nil
}
