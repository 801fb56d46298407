package mailscan

import (
	"fmt"
	"os"
	"strings"

	"packtrack/internal"
	"packtrack/internal/config"
	"packtrack/internal/storage"
)

// Service turns stored shipping emails into expected-package records.
type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

type ProcessResult struct {
	Emails   int
	Packages int
	Skipped  int
}

// Senders allowed to auto-create packages. Anything else is skipped
// outright: a newsletter quoting a 22-digit order number must not become
// an expected package.
var shippingSenders = []string{"amazon", "shipping", "ups.com", "usps.com", "fedex.com"}

func isShippingSender(from string) bool {
	f := strings.ToLower(from)
	for _, token := range shippingSenders {
		if strings.Contains(f, token) {
			return true
		}
	}
	return false
}

// ProcessPending scans up to batch fetched emails for tracking numbers and
// creates auto-email packages for the ones not already tracked. Emails from
// unrecognized senders or that yield nothing are marked skipped so they are
// not re-read every cycle.
func (s *Service) ProcessPending(batch int) (ProcessResult, error) {
	emails, err := s.db.ListEmailsByStatus("fetched", batch)
	if err != nil {
		return ProcessResult{}, err
	}

	result := ProcessResult{}
	for _, email := range emails {
		if !isShippingSender(email.Sender) {
			result.Skipped++
			if err := s.db.UpdateEmailStatus(email.ID, "skipped"); err != nil {
				return result, err
			}
			continue
		}

		created, err := s.processOne(email)
		if err != nil {
			fmt.Printf("email %d (%s): %v\n", email.ID, email.MessageID, err)
			if uerr := s.db.UpdateEmailStatus(email.ID, "error"); uerr != nil {
				return result, uerr
			}
			continue
		}

		result.Emails++
		result.Packages += created
		status := "processed"
		if created == 0 {
			status = "skipped"
			result.Skipped++
		}
		if err := s.db.UpdateEmailStatus(email.ID, status); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (s *Service) processOne(email internal.EmailRow) (int, error) {
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return 0, fmt.Errorf("read raw mail: %w", err)
	}

	shipments, _, err := ExtractShipments(raw)
	if err != nil {
		return 0, fmt.Errorf("parse mail: %w", err)
	}

	created := 0
	for _, sp := range shipments {
		inserted, err := s.db.InsertPackageIfAbsent(internal.PackageRecord{
			TrackingNumber: sp.TrackingNumber,
			ItemName:       sp.ItemName,
			Status:         internal.StatusExpected,
			Source:         internal.SourceAutoEmail,
			DateExpected:   sp.Date,
			Quantity:       1,
			ImageURL:       sp.ImageURL,
		})
		if err != nil {
			return created, err
		}
		if !inserted {
			continue
		}
		created++

		rec, err := s.db.GetPackageByTracking(sp.TrackingNumber)
		if err != nil {
			return created, err
		}
		if rec != nil {
			details := fmt.Sprintf("From email: %s", email.Subject)
			if err := s.db.InsertHistory(rec.ID, "auto_added", details); err != nil {
				return created, err
			}
		}
	}

	return created, nil
}
