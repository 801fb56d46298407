package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"packtrack/internal"
	"packtrack/internal/config"
	"packtrack/internal/storage"
)

// Service runs the manifest ingestion pipeline: read, detect columns,
// normalize, merge, then mirror the result into the package store.
type Service struct {
	db  *storage.DB
	cfg config.Config
	now func() time.Time
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg, now: time.Now}
}

func (s *Service) IngestFile(path string) (internal.IngestSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return internal.IngestSummary{}, &IngestFormatError{Format: "file", Err: err}
	}
	return s.Ingest(data, DetectFormat(filepath.Base(path), data))
}

// Ingest processes one complete manifest snapshot. Format and
// column-detection failures abort before any store mutation; the mirror
// apply itself is a single transaction.
func (s *Service) Ingest(data []byte, format internal.ManifestFormat) (internal.IngestSummary, error) {
	table, err := ReadTable(data, format)
	if err != nil {
		return internal.IngestSummary{}, err
	}

	cols, err := DetectColumns(table.Headers)
	if err != nil {
		return internal.IngestSummary{}, err
	}

	rows, skipped := NormalizeRows(table, cols)
	merged := MergeRows(rows)

	existing, err := s.db.ListPackages()
	if err != nil {
		return internal.IngestSummary{}, err
	}

	plan := BuildSyncPlan(merged, existing, s.now())
	if err := s.db.ApplySyncPlan(plan); err != nil {
		return internal.IngestSummary{}, err
	}

	return internal.IngestSummary{
		RowsRead:    len(table.Rows),
		RowsSkipped: skipped,
		RowsMerged:  len(merged),
		Created:     len(plan.Creates),
		Updated:     len(plan.Updates),
		Pruned:      len(plan.Prunes),
	}, nil
}

// BuildSyncPlan diffs the merged manifest against the persisted store.
// The manifest is the sole source of truth for what is still expected:
// manifest-sourced records it no longer lists are pruned. Records created
// by scans or email ingest are matched for updates (a shipment can be
// scanned before its manifest arrives) but never pruned.
func BuildSyncPlan(merged []internal.CanonicalRow, existing []internal.PackageRecord, today time.Time) storage.SyncPlan {
	byTracking := make(map[string]internal.PackageRecord, len(existing))
	for _, p := range existing {
		byTracking[p.TrackingNumber] = p
	}

	plan := storage.SyncPlan{}
	inManifest := make(map[string]struct{}, len(merged))

	for _, row := range merged {
		inManifest[row.TrackingNumber] = struct{}{}

		current, ok := byTracking[row.TrackingNumber]
		if !ok {
			plan.Creates = append(plan.Creates, internal.PackageRecord{
				TrackingNumber: row.TrackingNumber,
				ItemName:       row.ItemName,
				Status:         dueStatus(row.Date, today, internal.StatusExpected),
				Source:         internal.SourceManifest,
				DateExpected:   row.Date,
				Quantity:       row.Quantity,
				ImageURL:       row.ImageURL,
			})
			continue
		}

		// A manually pinned date outranks whatever the manifest says.
		effectiveDate := row.Date
		if current.ManualDate != nil && *current.ManualDate != "" {
			effectiveDate = *current.ManualDate
		}

		update := storage.PackageUpdate{
			TrackingNumber: row.TrackingNumber,
			ItemName:       row.ItemName,
			DateExpected:   effectiveDate,
			Quantity:       row.Quantity,
			ImageURL:       row.ImageURL,
			Status:         statusForUpdate(current, effectiveDate, today),
		}

		if update.ItemName != current.ItemName ||
			update.DateExpected != current.DateExpected ||
			update.Quantity != current.Quantity ||
			update.ImageURL != current.ImageURL ||
			update.Status != current.Status {
			plan.Updates = append(plan.Updates, update)
		}
	}

	for _, p := range existing {
		if p.Source != internal.SourceManifest {
			continue
		}
		if _, ok := inManifest[p.TrackingNumber]; !ok {
			plan.Prunes = append(plan.Prunes, p.TrackingNumber)
		}
	}

	return plan
}
